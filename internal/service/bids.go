package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"procurement/internal/guard"
	"procurement/internal/models"
)

// CreateBid submits b on the tender b.TenderId, which must be neither closed nor
// canceled. For an organization author the creator must be responsible for that
// organization, for a user author the creator must be that user.
func (s *Service) CreateBid(ctx context.Context, username string, b models.Bid) (models.Bid, error) {
	tender, err := s.repo.TenderByID(ctx, b.TenderId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.CreateBid: %w", err)
	}

	actor, err := s.actor(ctx, username)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.CreateBid: %w", err)
	}

	if err = s.authorExists(ctx, b.Author); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.CreateBid: %w", err)
	}

	if err = guard.Authorize(actor, guard.Bid(b), guard.BidAuthor); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.CreateBid: %w", err)
	}

	if tender.Status == models.TenderClosed || tender.Status == models.TenderCanceled {
		return models.Bid{}, fmt.Errorf("service.Service.CreateBid: %w: tender is %s", models.ErrTenderClosed, tender.Status)
	}

	b.CreatorId = actor.Id
	bid, err := s.repo.CreateBid(ctx, b)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.CreateBid: %w", err)
	}

	s.log.Debug("bid created", zap.String("bid_id", bid.Id), zap.String("tender_id", bid.TenderId))
	return bid, nil
}

func (s *Service) authorExists(ctx context.Context, author models.Author) error {
	switch a := author.(type) {
	case models.UserAuthor:
		_, err := s.repo.EmployeeByID(ctx, a.EmployeeId, false)
		return err
	case models.OrganizationAuthor:
		ok, err := s.repo.OrganizationExists(ctx, a.OrganizationId)
		if err != nil {
			return err
		}
		if !ok {
			return models.ErrNoOrganization
		}
		return nil
	}
	return models.ErrInvalidAuthor
}

// UserBids lists every bid created by username, whatever its status.
func (s *Service) UserBids(ctx context.Context, username string, page models.Page) ([]models.Bid, error) {
	actor, err := s.actor(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("service.Service.UserBids: %w", err)
	}

	bids, err := s.repo.BidsByCreator(ctx, actor.Id, page)
	if err != nil {
		return nil, fmt.Errorf("service.Service.UserBids: %w", err)
	}
	return bids, nil
}

// TenderBids lists the published bids of a tender to the responsible employees of
// the tender organization.
func (s *Service) TenderBids(ctx context.Context, username, tenderId string, page models.Page) ([]models.Bid, error) {
	if _, err := s.ownedTender(ctx, username, tenderId); err != nil {
		return nil, fmt.Errorf("service.Service.TenderBids: %w", err)
	}

	bids, err := s.repo.PublishedBidsByTender(ctx, tenderId, page)
	if err != nil {
		return nil, fmt.Errorf("service.Service.TenderBids: %w", err)
	}
	return bids, nil
}

// BidStatus is visible to the creator and the author of the bid.
func (s *Service) BidStatus(ctx context.Context, username, bidId string) (models.BidStatus, error) {
	bid, actor, err := s.bidAndActor(ctx, username, bidId)
	if err != nil {
		return "", fmt.Errorf("service.Service.BidStatus: %w", err)
	}

	if err = guard.Any(actor, guard.Bid(bid), guard.Creator, guard.BidAuthor); err != nil {
		return "", fmt.Errorf("service.Service.BidStatus: %w", err)
	}
	return bid.Status, nil
}

// SetBidStatus moves a bid between Created, Published and Canceled. Decisions go
// through SubmitDecision.
func (s *Service) SetBidStatus(ctx context.Context, username, bidId string, status models.BidStatus) (models.Bid, error) {
	if !models.SettableBidStatus(status) {
		return models.Bid{}, fmt.Errorf("service.Service.SetBidStatus: %w: %s", models.ErrInvalidStatus, status)
	}

	if _, err := s.authoredBid(ctx, username, bidId); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SetBidStatus: %w", err)
	}

	bid, err := s.repo.SetBidStatus(ctx, bidId, status)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SetBidStatus: %w", err)
	}
	return bid, nil
}

func (s *Service) EditBid(ctx context.Context, username, bidId string, changes models.BidChanges) (models.Bid, error) {
	if changes.Empty() {
		return models.Bid{}, fmt.Errorf("service.Service.EditBid: %w", models.ErrNoChanges)
	}

	if _, err := s.authoredBid(ctx, username, bidId); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.EditBid: %w", err)
	}

	bid, err := s.repo.EditBid(ctx, bidId, changes)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.EditBid: %w", err)
	}
	return bid, nil
}

func (s *Service) RollbackBid(ctx context.Context, username, bidId string, version int) (models.Bid, error) {
	if _, err := s.authoredBid(ctx, username, bidId); err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.RollbackBid: %w", err)
	}

	bid, err := s.repo.RollbackBid(ctx, bidId, version)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.RollbackBid: %w", err)
	}

	s.log.Debug("bid rolled back", zap.String("bid_id", bidId), zap.Int("to_version", version), zap.Int("version", bid.Version))
	return bid, nil
}

// SubmitDecision records the decision of a responsible employee of the tender
// organization and settles the bid by QuorumRule.
func (s *Service) SubmitDecision(ctx context.Context, username, bidId string, decision models.Decision) (models.Bid, error) {
	if !models.ValidDecision(decision) {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitDecision: %w: decision %q", models.ErrInvalid, decision)
	}

	_, tender, actor, err := s.bidOnOwnedTender(ctx, username, bidId)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitDecision: %w", err)
	}
	if tender.Status != models.TenderPublished {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitDecision: %w: tender is %s", models.ErrTenderClosed, tender.Status)
	}

	d := models.BidDecision{BidId: bidId, EmployeeId: actor.Id, Decision: decision}
	bid, err := s.repo.SubmitDecision(ctx, d, tender.OrganizationId, QuorumRule)
	if err != nil {
		return models.Bid{}, fmt.Errorf("service.Service.SubmitDecision: %w", err)
	}

	s.log.Info("bid decision submitted",
		zap.String("bid_id", bidId),
		zap.String("decision", string(decision)),
		zap.String("status", string(bid.Status)))
	return bid, nil
}

// Feedback leaves a message on a bid. Only responsible employees of the tender
// organization may do so.
func (s *Service) Feedback(ctx context.Context, username, bidId, message string) (models.Feedback, error) {
	_, _, actor, err := s.bidOnOwnedTender(ctx, username, bidId)
	if err != nil {
		return models.Feedback{}, fmt.Errorf("service.Service.Feedback: %w", err)
	}

	feedback, err := s.repo.AddFeedback(ctx, models.Feedback{BidId: bidId, Message: message, CreatorId: actor.Id})
	if err != nil {
		return models.Feedback{}, fmt.Errorf("service.Service.Feedback: %w", err)
	}
	return feedback, nil
}

// Reviews lists the feedback left on bids of an author, for a responsible employee
// of the organization owning tenderId. The author must have a current bid on
// tenderId. authorRef is the username of a User author or the id of an
// Organization author.
func (s *Service) Reviews(ctx context.Context, username, tenderId string, authorType models.AuthorType, authorRef string, page models.Page) ([]models.Feedback, error) {
	if _, err := s.ownedTender(ctx, username, tenderId); err != nil {
		return nil, fmt.Errorf("service.Service.Reviews: %w", err)
	}

	author, err := s.resolveAuthor(ctx, authorType, authorRef)
	if err != nil {
		return nil, fmt.Errorf("service.Service.Reviews: %w", err)
	}

	ok, err := s.repo.AuthorHasBid(ctx, tenderId, author)
	if err != nil {
		return nil, fmt.Errorf("service.Service.Reviews: %w", err)
	}
	if !ok {
		return nil, fmt.Errorf("service.Service.Reviews: %w: author has no bid on the tender", models.ErrNoBid)
	}

	feedback, err := s.repo.FeedbackByAuthor(ctx, author, page)
	if err != nil {
		return nil, fmt.Errorf("service.Service.Reviews: %w", err)
	}
	return feedback, nil
}

func (s *Service) resolveAuthor(ctx context.Context, authorType models.AuthorType, ref string) (models.Author, error) {
	if authorType != models.AuthorUser {
		author, err := models.NewAuthor(authorType, ref)
		if err != nil {
			return nil, err
		}
		return author, s.authorExists(ctx, author)
	}

	employee, err := s.repo.EmployeeByUsername(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	return models.UserAuthor{EmployeeId: employee.Id}, nil
}

func (s *Service) bidAndActor(ctx context.Context, username, bidId string) (models.Bid, models.Employee, error) {
	bid, err := s.repo.BidByID(ctx, bidId)
	if err != nil {
		return models.Bid{}, models.Employee{}, err
	}

	actor, err := s.actor(ctx, username)
	if err != nil {
		return models.Bid{}, models.Employee{}, err
	}
	return bid, actor, nil
}

// authoredBid loads a bid username may act on as its author.
func (s *Service) authoredBid(ctx context.Context, username, bidId string) (models.Bid, error) {
	bid, actor, err := s.bidAndActor(ctx, username, bidId)
	if err != nil {
		return models.Bid{}, err
	}

	if err = guard.Authorize(actor, guard.Bid(bid), guard.BidAuthor); err != nil {
		return models.Bid{}, err
	}
	return bid, nil
}

// bidOnOwnedTender loads a bid and its tender when username administers the tender.
func (s *Service) bidOnOwnedTender(ctx context.Context, username, bidId string) (models.Bid, models.Tender, models.Employee, error) {
	bid, actor, err := s.bidAndActor(ctx, username, bidId)
	if err != nil {
		return models.Bid{}, models.Tender{}, models.Employee{}, err
	}

	tender, err := s.repo.TenderByID(ctx, bid.TenderId)
	if err != nil {
		return models.Bid{}, models.Tender{}, models.Employee{}, err
	}

	if err = guard.Authorize(actor, guard.Bid(bid).OnTender(tender), guard.TenderOwner); err != nil {
		return models.Bid{}, models.Tender{}, models.Employee{}, err
	}
	return bid, tender, actor, nil
}
