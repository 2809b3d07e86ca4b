package repository

import (
	"context"
	"fmt"

	"github.com/lib/pq"

	"procurement/internal/models"
)

var tenderSchema = Schema[models.Tender, tenderChanges]{
	Table: "tender",
	Columns: []string{
		"id",
		"version",
		"organization_id",
		"creator_id",
		"status",
		"service_type",
		"name",
		"description",
		"created_at",
		"updated_at",
	},
	NotFound: models.ErrNoTender,
	Changes: func(t models.Tender) tenderChanges {
		return tenderChanges(t.Changes())
	},
}

type tenderChanges models.TenderChanges

func (c tenderChanges) Columns() []string {
	return []string{"name", "description", "service_type"}
}

func (c tenderChanges) Values() []any {
	return []any{nullable(c.Name), nullable(c.Description), nullable(c.ServiceType)}
}

type newTender models.Tender

func (t newTender) Columns() []string {
	return []string{"organization_id", "creator_id", "status", "service_type", "name", "description"}
}

func (t newTender) Values() []any {
	return []any{t.OrganizationId, t.CreatorId, string(t.Status), string(t.ServiceType), t.Name, t.Description}
}

// CreateTender stores t as a new tender in the Created status.
func (repo *Repository) CreateTender(ctx context.Context, t models.Tender) (models.Tender, error) {
	t.Status = models.TenderCreated
	tender, err := repo.tenders.Create(ctx, newTender(t))
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.CreateTender: %w", err)
	}
	return tender, nil
}

func (repo *Repository) TenderByID(ctx context.Context, id string) (models.Tender, error) {
	tender, err := repo.tenders.GetByID(ctx, id)
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.TenderByID: %w", err)
	}
	return tender, nil
}

// PublishedTenders lists published tenders. An empty serviceTypes matches any type.
func (repo *Repository) PublishedTenders(ctx context.Context, serviceTypes []models.ServiceType, page models.Page) ([]models.Tender, error) {
	conds := []Condition{Eq("status", string(models.TenderPublished))}
	if len(serviceTypes) > 0 {
		types := make([]string, 0, len(serviceTypes))
		for _, st := range serviceTypes {
			types = append(types, string(st))
		}
		conds = append(conds, Condition{Expr: "service_type = ANY($$)", Arg: pq.Array(types)})
	}

	tenders, err := repo.tenders.List(ctx, conds, page)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.PublishedTenders: %w", err)
	}
	return tenders, nil
}

func (repo *Repository) TendersByCreator(ctx context.Context, creatorId string, page models.Page) ([]models.Tender, error) {
	tenders, err := repo.tenders.GetByCreator(ctx, creatorId, page)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.TendersByCreator: %w", err)
	}
	return tenders, nil
}

func (repo *Repository) SetTenderStatus(ctx context.Context, id string, status models.TenderStatus) (models.Tender, error) {
	tender, err := repo.tenders.UpdateStatus(ctx, id, string(status))
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.SetTenderStatus: %w", err)
	}
	return tender, nil
}

func (repo *Repository) EditTender(ctx context.Context, id string, changes models.TenderChanges) (models.Tender, error) {
	tender, err := repo.tenders.Edit(ctx, id, tenderChanges(changes))
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.EditTender: %w", err)
	}
	return tender, nil
}

func (repo *Repository) TenderVersion(ctx context.Context, id string, version int) (models.Tender, error) {
	tender, err := repo.tenders.GetVersion(ctx, id, version)
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.TenderVersion: %w", err)
	}
	return tender, nil
}

func (repo *Repository) RollbackTender(ctx context.Context, id string, version int) (models.Tender, error) {
	tender, err := repo.tenders.Rollback(ctx, id, version)
	if err != nil {
		return tender, fmt.Errorf("repository.Repository.RollbackTender: %w", err)
	}
	return tender, nil
}

func nullable[T ~string](v *T) any {
	if v == nil {
		return nil
	}
	return string(*v)
}
