package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"procurement/internal/models"
)

// Repository is the storage the service relies on. *repository.Repository implements it.
type Repository interface {
	Ping(ctx context.Context) error

	EmployeeByUsername(ctx context.Context, username string, withOrganizations bool) (models.Employee, error)
	EmployeeByID(ctx context.Context, id string, withOrganizations bool) (models.Employee, error)
	OrganizationExists(ctx context.Context, organizationId string) (bool, error)

	CreateTender(ctx context.Context, t models.Tender) (models.Tender, error)
	TenderByID(ctx context.Context, id string) (models.Tender, error)
	PublishedTenders(ctx context.Context, serviceTypes []models.ServiceType, page models.Page) ([]models.Tender, error)
	TendersByCreator(ctx context.Context, creatorId string, page models.Page) ([]models.Tender, error)
	SetTenderStatus(ctx context.Context, id string, status models.TenderStatus) (models.Tender, error)
	EditTender(ctx context.Context, id string, changes models.TenderChanges) (models.Tender, error)
	RollbackTender(ctx context.Context, id string, version int) (models.Tender, error)

	CreateBid(ctx context.Context, b models.Bid) (models.Bid, error)
	BidByID(ctx context.Context, id string) (models.Bid, error)
	PublishedBidsByTender(ctx context.Context, tenderId string, page models.Page) ([]models.Bid, error)
	AuthorHasBid(ctx context.Context, tenderId string, author models.Author) (bool, error)
	BidsByCreator(ctx context.Context, creatorId string, page models.Page) ([]models.Bid, error)
	SetBidStatus(ctx context.Context, id string, status models.BidStatus) (models.Bid, error)
	EditBid(ctx context.Context, id string, changes models.BidChanges) (models.Bid, error)
	RollbackBid(ctx context.Context, id string, version int) (models.Bid, error)

	AddFeedback(ctx context.Context, f models.Feedback) (models.Feedback, error)
	FeedbackByAuthor(ctx context.Context, author models.Author, page models.Page) ([]models.Feedback, error)
	SubmitDecision(ctx context.Context, d models.BidDecision, organizationId string, rule models.DecisionRule) (models.Bid, error)
}

// Service implements the tender and bid lifecycles. Every operation addressing an
// existing entity loads it first, then the acting employee, then checks access, so a
// missing entity is reported before an unknown or unauthorized actor.
type Service struct {
	repo Repository
	log  *zap.Logger
}

func NewService(repo Repository, log *zap.Logger) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{repo: repo, log: log}
}

func (s *Service) Ping(ctx context.Context) error {
	if err := s.repo.Ping(ctx); err != nil {
		return fmt.Errorf("service.Service.Ping: %w", err)
	}
	return nil
}

// actor resolves username to an employee along with the organizations it is
// responsible for.
func (s *Service) actor(ctx context.Context, username string) (models.Employee, error) {
	if username == "" {
		return models.Employee{}, models.ErrInvalidUser
	}

	employee, err := s.repo.EmployeeByUsername(ctx, username, true)
	if errors.Is(err, models.ErrNoEmployee) {
		return employee, fmt.Errorf("%w: %s", models.ErrInvalidUser, username)
	} else if err != nil {
		return employee, err
	}
	return employee, nil
}

// decisionQuorum is the number of approvals that settle a bid, unless the tender
// organization has fewer responsible employees.
const decisionQuorum = 3

// QuorumRule rejects a bid on the first rejection, and approves it once approvals
// reach the quorum. An approved bid closes its tender.
func QuorumRule(tally models.DecisionTally) models.DecisionOutcome {
	if tally.Rejected > 0 {
		return models.DecisionOutcome{BidStatus: models.BidRejected}
	}
	if tally.Approved >= min(decisionQuorum, tally.Responsible) {
		return models.DecisionOutcome{BidStatus: models.BidApproved, CloseTender: true}
	}
	return models.DecisionOutcome{}
}
