package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"procurement/internal/models"
)

// AddFeedback appends a message to the feedback of a bid.
func (repo *Repository) AddFeedback(ctx context.Context, f models.Feedback) (models.Feedback, error) {
	var result models.Feedback
	query := `
	INSERT INTO feedback
		(id, bid_id, message, creator_id)
	VALUES
		($1, $2, $3, $4)
	RETURNING
		id, bid_id, message, creator_id, created_at
	`

	err := repo.db.GetContext(ctx, &result, query, uuid.NewString(), f.BidId, f.Message, f.CreatorId)
	if err != nil {
		return result, fmt.Errorf("repository.Repository.AddFeedback: %w", translateErr(err))
	}
	return result, nil
}

// FeedbackByAuthor returns the feedback left on current bids of author, newest first.
func (repo *Repository) FeedbackByAuthor(ctx context.Context, author models.Author, page models.Page) ([]models.Feedback, error) {
	result := []models.Feedback{}
	if page.Limit <= 0 {
		return result, nil
	}

	query := `
	SELECT
		f.id,
		f.bid_id,
		f.message,
		f.creator_id,
		f.created_at
	FROM feedback f
	JOIN bid b ON b.id = f.bid_id
	WHERE b.original_id IS NULL AND b.author_type = $1 AND b.author_id = $2
	ORDER BY f.created_at DESC, f.id
	LIMIT $3
	OFFSET $4
	`

	err := repo.db.SelectContext(ctx, &result, query, string(author.Type()), author.Id(), page.Limit, page.Offset)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.FeedbackByAuthor: %w", translateErr(err))
	}
	return result, nil
}
