package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"procurement/internal/models"
)

// SubmitDecision records the decision of d.EmployeeId on a published bid of a
// published tender and applies what rule derives from the resulting tally.
// organizationId owns the tender of the bid. Everything happens in one
// transaction. The bid row and then the tender row are locked, so decisions on
// one bid are counted one after another and a tender closed by another bid's
// approval accepts no further decisions.
func (repo *Repository) SubmitDecision(ctx context.Context, d models.BidDecision, organizationId string, rule models.DecisionRule) (models.Bid, error) {
	var result bidRow

	err := inTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		bids := repo.bids.WithTx(tx)

		row, err := bids.getByID(ctx, tx, d.BidId, true)
		if err != nil {
			return err
		}
		if row.Status != models.BidPublished {
			return models.ErrBidNotPublished
		}

		tenders := repo.tenders.WithTx(tx)
		tender, err := tenders.getByID(ctx, tx, row.TenderId, true)
		if err != nil {
			return err
		}
		if tender.Status != models.TenderPublished {
			return models.ErrTenderClosed
		}

		_, err = tx.ExecContext(ctx, `
		INSERT INTO bid_decision
			(bid_id, employee_id, decision)
		VALUES
			($1, $2, $3)
		ON CONFLICT (bid_id, employee_id) DO UPDATE
		SET decision = EXCLUDED.decision, created_at = CURRENT_TIMESTAMP
		`, d.BidId, d.EmployeeId, string(d.Decision))
		if err != nil {
			return fmt.Errorf("record decision: %w", translateErr(err))
		}

		tally, err := decisionTally(ctx, tx, d.BidId, organizationId)
		if err != nil {
			return err
		}

		result = row
		outcome := rule(tally)
		if outcome.BidStatus != "" && outcome.BidStatus != row.Status {
			if result, err = bids.UpdateStatus(ctx, d.BidId, string(outcome.BidStatus)); err != nil {
				return err
			}
		}
		if outcome.CloseTender {
			if _, err = tenders.UpdateStatus(ctx, row.TenderId, string(models.TenderClosed)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return models.Bid{}, fmt.Errorf("repository.Repository.SubmitDecision: %w", err)
	}

	return repo.toBid("SubmitDecision", result)
}

func decisionTally(ctx context.Context, tx *sqlx.Tx, bidId, organizationId string) (models.DecisionTally, error) {
	var tally models.DecisionTally
	err := tx.GetContext(ctx, &tally, `
	SELECT
		COUNT(*) FILTER (WHERE decision = 'Approved') AS approved,
		COUNT(*) FILTER (WHERE decision = 'Rejected') AS rejected
	FROM bid_decision
	WHERE bid_id = $1
	`, bidId)
	if err != nil {
		return tally, fmt.Errorf("count decisions: %w", translateErr(err))
	}

	tally.Responsible, err = responsibleCount(ctx, tx, organizationId)
	if err != nil {
		return tally, fmt.Errorf("count responsible: %w", err)
	}
	return tally, nil
}
