package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"procurement/internal/guard"
	"procurement/internal/models"
)

// Tenders lists published tenders, optionally restricted to the given service types.
func (s *Service) Tenders(ctx context.Context, serviceTypes []models.ServiceType, page models.Page) ([]models.Tender, error) {
	tenders, err := s.repo.PublishedTenders(ctx, serviceTypes, page)
	if err != nil {
		return nil, fmt.Errorf("service.Service.Tenders: %w", err)
	}
	return tenders, nil
}

// CreateTender creates a tender for t.OrganizationId on behalf of username, who must
// be responsible for that organization.
func (s *Service) CreateTender(ctx context.Context, username string, t models.Tender) (models.Tender, error) {
	actor, err := s.actor(ctx, username)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	if err = guard.Authorize(actor, guard.Tender(t), guard.TenderOwner); err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	t.CreatorId = actor.Id
	tender, err := s.repo.CreateTender(ctx, t)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.CreateTender: %w", err)
	}

	s.log.Debug("tender created", zap.String("tender_id", tender.Id), zap.String("organization_id", tender.OrganizationId))
	return tender, nil
}

// UserTenders lists every tender created by username, whatever its status.
func (s *Service) UserTenders(ctx context.Context, username string, page models.Page) ([]models.Tender, error) {
	actor, err := s.actor(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.UserTenders: %w", err)
	}

	tenders, err := s.repo.TendersByCreator(ctx, actor.Id, page)
	if err != nil {
		return nil, fmt.Errorf("service.Service.UserTenders: %w", err)
	}
	return tenders, nil
}

// TenderStatus is visible to anyone once the tender is published, and to the
// responsible employees of its organization before that.
func (s *Service) TenderStatus(ctx context.Context, username, tenderId string) (models.TenderStatus, error) {
	tender, actor, err := s.tenderAndActor(ctx, username, tenderId)
	if err != nil {
		return "", fmt.Errorf("service.Service.TenderStatus: %w", err)
	}

	if tender.Status == models.TenderPublished {
		return tender.Status, nil
	}
	if err = guard.Authorize(actor, guard.Tender(tender), guard.TenderOwner); err != nil {
		return "", fmt.Errorf("service.Service.TenderStatus: %w", err)
	}
	return tender.Status, nil
}

// SetTenderStatus accepts any tender status; transitions are not restricted.
func (s *Service) SetTenderStatus(ctx context.Context, username, tenderId string, status models.TenderStatus) (models.Tender, error) {
	if !models.ValidTenderStatus(status) {
		return models.Tender{}, fmt.Errorf("service.Service.SetTenderStatus: %w: %s", models.ErrInvalidStatus, status)
	}

	if _, err := s.ownedTender(ctx, username, tenderId); err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.SetTenderStatus: %w", err)
	}

	tender, err := s.repo.SetTenderStatus(ctx, tenderId, status)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.SetTenderStatus: %w", err)
	}
	return tender, nil
}

func (s *Service) EditTender(ctx context.Context, username, tenderId string, changes models.TenderChanges) (models.Tender, error) {
	if changes.Empty() {
		return models.Tender{}, fmt.Errorf("service.Service.EditTender: %w", models.ErrNoChanges)
	}

	if _, err := s.ownedTender(ctx, username, tenderId); err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.EditTender: %w", err)
	}

	tender, err := s.repo.EditTender(ctx, tenderId, changes)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.EditTender: %w", err)
	}
	return tender, nil
}

// RollbackTender restores the fields of version as a new version of the tender.
func (s *Service) RollbackTender(ctx context.Context, username, tenderId string, version int) (models.Tender, error) {
	if _, err := s.ownedTender(ctx, username, tenderId); err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.RollbackTender: %w", err)
	}

	tender, err := s.repo.RollbackTender(ctx, tenderId, version)
	if err != nil {
		return models.Tender{}, fmt.Errorf("service.Service.RollbackTender: %w", err)
	}

	s.log.Debug("tender rolled back", zap.String("tender_id", tenderId), zap.Int("to_version", version), zap.Int("version", tender.Version))
	return tender, nil
}

func (s *Service) tenderAndActor(ctx context.Context, username, tenderId string) (models.Tender, models.Employee, error) {
	tender, err := s.repo.TenderByID(ctx, tenderId)
	if err != nil {
		return models.Tender{}, models.Employee{}, err
	}

	actor, err := s.actor(ctx, username)
	if err != nil {
		return models.Tender{}, models.Employee{}, err
	}
	return tender, actor, nil
}

// ownedTender loads a tender that username may administer.
func (s *Service) ownedTender(ctx context.Context, username, tenderId string) (models.Tender, error) {
	tender, actor, err := s.tenderAndActor(ctx, username, tenderId)
	if err != nil {
		return models.Tender{}, err
	}

	if err = guard.Authorize(actor, guard.Tender(tender), guard.TenderOwner); err != nil {
		return models.Tender{}, err
	}
	return tender, nil
}
