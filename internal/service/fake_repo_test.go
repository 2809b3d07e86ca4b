package service

import (
	"context"
	"slices"
	"strconv"
	"strings"

	"procurement/internal/models"
)

// fakeRepo is an in-memory Repository. Lists ignore pagination.
type fakeRepo struct {
	employees     map[string]models.Employee
	organizations map[string]bool
	tenders       map[string]models.Tender
	bids          map[string]models.Bid
	feedback      []models.Feedback
	decisions     map[string]models.Decision
	responsible   map[string]int

	nextId  int
	lastOrg string
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{
		employees:     map[string]models.Employee{},
		organizations: map[string]bool{},
		tenders:       map[string]models.Tender{},
		bids:          map[string]models.Bid{},
		decisions:     map[string]models.Decision{},
		responsible:   map[string]int{},
	}
}

func (r *fakeRepo) id(prefix string) string {
	r.nextId++
	return prefix + "-" + strconv.Itoa(r.nextId)
}

func (r *fakeRepo) addOrganization(id string) {
	r.organizations[id] = true
}

func (r *fakeRepo) addEmployee(id, username string, orgs ...string) models.Employee {
	e := models.Employee{Id: id, Username: username, OrganizationIds: orgs}
	r.employees[username] = e
	for _, org := range orgs {
		r.responsible[org]++
	}
	return e
}

func (r *fakeRepo) Ping(ctx context.Context) error { return nil }

func (r *fakeRepo) EmployeeByUsername(ctx context.Context, username string, withOrganizations bool) (models.Employee, error) {
	e, ok := r.employees[username]
	if !ok {
		return models.Employee{}, models.ErrNoEmployee
	}
	if !withOrganizations {
		e.OrganizationIds = nil
	}
	return e, nil
}

func (r *fakeRepo) EmployeeByID(ctx context.Context, id string, withOrganizations bool) (models.Employee, error) {
	for _, e := range r.employees {
		if e.Id == id {
			return r.EmployeeByUsername(ctx, e.Username, withOrganizations)
		}
	}
	return models.Employee{}, models.ErrNoEmployee
}

func (r *fakeRepo) OrganizationExists(ctx context.Context, organizationId string) (bool, error) {
	return r.organizations[organizationId], nil
}

func (r *fakeRepo) CreateTender(ctx context.Context, t models.Tender) (models.Tender, error) {
	t.Id, t.Version, t.Status = r.id("tender"), 1, models.TenderCreated
	r.tenders[t.Id] = t
	return t, nil
}

func (r *fakeRepo) TenderByID(ctx context.Context, id string) (models.Tender, error) {
	t, ok := r.tenders[id]
	if !ok {
		return t, models.ErrNoTender
	}
	return t, nil
}

func (r *fakeRepo) PublishedTenders(ctx context.Context, serviceTypes []models.ServiceType, page models.Page) ([]models.Tender, error) {
	result := []models.Tender{}
	for _, t := range r.tenders {
		if t.Status == models.TenderPublished && (len(serviceTypes) == 0 || slices.Contains(serviceTypes, t.ServiceType)) {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *fakeRepo) TendersByCreator(ctx context.Context, creatorId string, page models.Page) ([]models.Tender, error) {
	result := []models.Tender{}
	for _, t := range r.tenders {
		if t.CreatorId == creatorId {
			result = append(result, t)
		}
	}
	return result, nil
}

func (r *fakeRepo) SetTenderStatus(ctx context.Context, id string, status models.TenderStatus) (models.Tender, error) {
	t, err := r.TenderByID(ctx, id)
	if err != nil {
		return t, err
	}
	t.Status = status
	r.tenders[id] = t
	return t, nil
}

func (r *fakeRepo) EditTender(ctx context.Context, id string, changes models.TenderChanges) (models.Tender, error) {
	t, err := r.TenderByID(ctx, id)
	if err != nil {
		return t, err
	}
	if changes.Name != nil {
		t.Name = *changes.Name
	}
	if changes.Description != nil {
		t.Description = *changes.Description
	}
	if changes.ServiceType != nil {
		t.ServiceType = *changes.ServiceType
	}
	t.Version++
	r.tenders[id] = t
	return t, nil
}

func (r *fakeRepo) RollbackTender(ctx context.Context, id string, version int) (models.Tender, error) {
	t, err := r.TenderByID(ctx, id)
	if err != nil {
		return t, err
	}
	if version < 1 || version >= t.Version {
		return t, models.ErrNoVersion
	}
	t.Version++
	r.tenders[id] = t
	return t, nil
}

func (r *fakeRepo) CreateBid(ctx context.Context, b models.Bid) (models.Bid, error) {
	b.Id, b.Version, b.Status = r.id("bid"), 1, models.BidCreated
	r.bids[b.Id] = b
	return b, nil
}

func (r *fakeRepo) BidByID(ctx context.Context, id string) (models.Bid, error) {
	b, ok := r.bids[id]
	if !ok {
		return b, models.ErrNoBid
	}
	return b, nil
}

func (r *fakeRepo) PublishedBidsByTender(ctx context.Context, tenderId string, page models.Page) ([]models.Bid, error) {
	result := []models.Bid{}
	for _, b := range r.bids {
		if b.TenderId == tenderId && b.Status == models.BidPublished {
			result = append(result, b)
		}
	}
	return result, nil
}

func (r *fakeRepo) AuthorHasBid(ctx context.Context, tenderId string, author models.Author) (bool, error) {
	for _, b := range r.bids {
		if b.TenderId == tenderId && b.Author == author {
			return true, nil
		}
	}
	return false, nil
}

func (r *fakeRepo) BidsByCreator(ctx context.Context, creatorId string, page models.Page) ([]models.Bid, error) {
	result := []models.Bid{}
	for _, b := range r.bids {
		if b.CreatorId == creatorId {
			result = append(result, b)
		}
	}
	return result, nil
}

func (r *fakeRepo) SetBidStatus(ctx context.Context, id string, status models.BidStatus) (models.Bid, error) {
	b, err := r.BidByID(ctx, id)
	if err != nil {
		return b, err
	}
	b.Status = status
	r.bids[id] = b
	return b, nil
}

func (r *fakeRepo) EditBid(ctx context.Context, id string, changes models.BidChanges) (models.Bid, error) {
	b, err := r.BidByID(ctx, id)
	if err != nil {
		return b, err
	}
	if changes.Name != nil {
		b.Name = *changes.Name
	}
	if changes.Description != nil {
		b.Description = *changes.Description
	}
	b.Version++
	r.bids[id] = b
	return b, nil
}

func (r *fakeRepo) RollbackBid(ctx context.Context, id string, version int) (models.Bid, error) {
	b, err := r.BidByID(ctx, id)
	if err != nil {
		return b, err
	}
	if version < 1 || version >= b.Version {
		return b, models.ErrNoVersion
	}
	b.Version++
	r.bids[id] = b
	return b, nil
}

func (r *fakeRepo) AddFeedback(ctx context.Context, f models.Feedback) (models.Feedback, error) {
	f.Id = r.id("feedback")
	r.feedback = append(r.feedback, f)
	return f, nil
}

func (r *fakeRepo) FeedbackByAuthor(ctx context.Context, author models.Author, page models.Page) ([]models.Feedback, error) {
	result := []models.Feedback{}
	for i := len(r.feedback) - 1; i >= 0; i-- {
		if b := r.bids[r.feedback[i].BidId]; b.Author == author {
			result = append(result, r.feedback[i])
		}
	}
	return result, nil
}

func (r *fakeRepo) SubmitDecision(ctx context.Context, d models.BidDecision, organizationId string, rule models.DecisionRule) (models.Bid, error) {
	b, err := r.BidByID(ctx, d.BidId)
	if err != nil {
		return b, err
	}
	if b.Status != models.BidPublished {
		return b, models.ErrBidNotPublished
	}
	if r.tenders[b.TenderId].Status != models.TenderPublished {
		return b, models.ErrTenderClosed
	}
	r.lastOrg = organizationId
	r.decisions[d.BidId+"/"+d.EmployeeId] = d.Decision

	tally := models.DecisionTally{Responsible: r.responsible[organizationId]}
	for key, decision := range r.decisions {
		if strings.HasPrefix(key, d.BidId+"/") {
			if decision == models.DecisionApproved {
				tally.Approved++
			} else {
				tally.Rejected++
			}
		}
	}

	outcome := rule(tally)
	if outcome.BidStatus != "" {
		b.Status = outcome.BidStatus
		r.bids[b.Id] = b
	}
	if outcome.CloseTender {
		t := r.tenders[b.TenderId]
		t.Status = models.TenderClosed
		r.tenders[t.Id] = t
	}
	return b, nil
}
