package repository

import (
	"context"
	"fmt"
	"time"

	"procurement/internal/models"
)

var bidSchema = Schema[bidRow, bidChanges]{
	Table: "bid",
	Columns: []string{
		"id",
		"version",
		"tender_id",
		"author_type",
		"author_id",
		"creator_id",
		"status",
		"name",
		"description",
		"created_at",
		"updated_at",
	},
	NotFound: models.ErrNoBid,
	Changes: func(r bidRow) bidChanges {
		return bidChanges{Name: &r.Name, Description: &r.Description}
	},
}

// bidRow is a bid as stored: the author is split into its type and id.
type bidRow struct {
	Id          string            `db:"id"`
	Version     int               `db:"version"`
	TenderId    string            `db:"tender_id"`
	AuthorType  models.AuthorType `db:"author_type"`
	AuthorId    string            `db:"author_id"`
	CreatorId   string            `db:"creator_id"`
	Status      models.BidStatus  `db:"status"`
	Name        string            `db:"name"`
	Description string            `db:"description"`
	CreatedAt   time.Time         `db:"created_at"`
	UpdatedAt   time.Time         `db:"updated_at"`
}

func (r bidRow) bid() (models.Bid, error) {
	author, err := models.NewAuthor(r.AuthorType, r.AuthorId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("bid %s: %w", r.Id, err)
	}
	return models.Bid{
		Id:          r.Id,
		Version:     r.Version,
		TenderId:    r.TenderId,
		Author:      author,
		CreatorId:   r.CreatorId,
		Status:      r.Status,
		Name:        r.Name,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}, nil
}

func bidsFromRows(rows []bidRow) ([]models.Bid, error) {
	bids := make([]models.Bid, 0, len(rows))
	for _, r := range rows {
		b, err := r.bid()
		if err != nil {
			return nil, err
		}
		bids = append(bids, b)
	}
	return bids, nil
}

type bidChanges models.BidChanges

func (c bidChanges) Columns() []string {
	return []string{"name", "description"}
}

func (c bidChanges) Values() []any {
	return []any{nullable(c.Name), nullable(c.Description)}
}

type newBid models.Bid

func (b newBid) Columns() []string {
	return []string{"tender_id", "author_type", "author_id", "creator_id", "status", "name", "description"}
}

func (b newBid) Values() []any {
	return []any{b.TenderId, string(b.Author.Type()), b.Author.Id(), b.CreatorId, string(b.Status), b.Name, b.Description}
}

// CreateBid stores b as a new bid in the Created status.
func (repo *Repository) CreateBid(ctx context.Context, b models.Bid) (models.Bid, error) {
	if b.Author == nil {
		return b, fmt.Errorf("repository.Repository.CreateBid: %w", models.ErrInvalidAuthor)
	}
	b.Status = models.BidCreated
	row, err := repo.bids.Create(ctx, newBid(b))
	if err != nil {
		return b, fmt.Errorf("repository.Repository.CreateBid: %w", err)
	}
	return repo.toBid("CreateBid", row)
}

func (repo *Repository) BidByID(ctx context.Context, id string) (models.Bid, error) {
	row, err := repo.bids.GetByID(ctx, id)
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.BidByID: %w", err)
	}
	return repo.toBid("BidByID", row)
}

// AuthorHasBid reports whether author has a current bid on the tender, in any status.
func (repo *Repository) AuthorHasBid(ctx context.Context, tenderId string, author models.Author) (bool, error) {
	var exists bool
	err := repo.db.GetContext(ctx, &exists, `
	SELECT EXISTS (
		SELECT 1
		FROM bid
		WHERE tender_id = $1 AND author_type = $2 AND author_id = $3 AND original_id IS NULL
	)
	`, tenderId, string(author.Type()), author.Id())
	if err != nil {
		return false, fmt.Errorf("repository.Repository.AuthorHasBid: %w", translateErr(err))
	}
	return exists, nil
}

// PublishedBidsByTender lists the published bids placed on a tender.
func (repo *Repository) PublishedBidsByTender(ctx context.Context, tenderId string, page models.Page) ([]models.Bid, error) {
	conds := []Condition{
		Eq("tender_id", tenderId),
		Eq("status", string(models.BidPublished)),
	}
	rows, err := repo.bids.List(ctx, conds, page)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.PublishedBidsByTender: %w", err)
	}
	bids, err := bidsFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.PublishedBidsByTender: %w", err)
	}
	return bids, nil
}

func (repo *Repository) BidsByCreator(ctx context.Context, creatorId string, page models.Page) ([]models.Bid, error) {
	rows, err := repo.bids.GetByCreator(ctx, creatorId, page)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.BidsByCreator: %w", err)
	}
	bids, err := bidsFromRows(rows)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.BidsByCreator: %w", err)
	}
	return bids, nil
}

func (repo *Repository) SetBidStatus(ctx context.Context, id string, status models.BidStatus) (models.Bid, error) {
	row, err := repo.bids.UpdateStatus(ctx, id, string(status))
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.SetBidStatus: %w", err)
	}
	return repo.toBid("SetBidStatus", row)
}

func (repo *Repository) EditBid(ctx context.Context, id string, changes models.BidChanges) (models.Bid, error) {
	row, err := repo.bids.Edit(ctx, id, bidChanges(changes))
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.EditBid: %w", err)
	}
	return repo.toBid("EditBid", row)
}

func (repo *Repository) BidVersion(ctx context.Context, id string, version int) (models.Bid, error) {
	row, err := repo.bids.GetVersion(ctx, id, version)
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.BidVersion: %w", err)
	}
	return repo.toBid("BidVersion", row)
}

func (repo *Repository) RollbackBid(ctx context.Context, id string, version int) (models.Bid, error) {
	row, err := repo.bids.Rollback(ctx, id, version)
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.RollbackBid: %w", err)
	}
	return repo.toBid("RollbackBid", row)
}

func (repo *Repository) toBid(method string, row bidRow) (models.Bid, error) {
	b, err := row.bid()
	if err != nil {
		return b, fmt.Errorf("repository.Repository.%s: %w", method, err)
	}
	return b, nil
}
