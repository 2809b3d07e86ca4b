// Package guard decides whether an employee may act on a tender or a bid.
// It never touches storage: callers pass the actor with its organizations loaded
// and a snapshot of the entity.
package guard

import (
	"fmt"

	"procurement/internal/models"
)

type Relation int

const (
	// TenderOwner requires the actor to be responsible for the organization owning the tender.
	TenderOwner Relation = iota
	// BidAuthor requires the actor to be the author of the bid, or responsible for the
	// authoring organization.
	BidAuthor
	// Creator requires the actor to be the employee who created the entity.
	Creator
)

func (r Relation) String() string {
	switch r {
	case TenderOwner:
		return "tender owner"
	case BidAuthor:
		return "bid author"
	case Creator:
		return "creator"
	}
	return fmt.Sprintf("relation(%d)", int(r))
}

// Subject is the part of an entity snapshot relevant to authorization.
type Subject struct {
	OrganizationId string
	Author         models.Author
	CreatorId      string
}

// Tender builds the subject of a tender.
func Tender(t models.Tender) Subject {
	return Subject{OrganizationId: t.OrganizationId, CreatorId: t.CreatorId}
}

// Bid builds the subject of a bid. The tender owner is unknown from the bid alone,
// so TenderOwner checks need OnTender.
func Bid(b models.Bid) Subject {
	return Subject{Author: b.Author, CreatorId: b.CreatorId}
}

// OnTender returns s with the owner organization of tender t.
func (s Subject) OnTender(t models.Tender) Subject {
	s.OrganizationId = t.OrganizationId
	return s
}

// Authorize returns nil when actor holds rel on subject, and an error of the
// models.ErrForbidden kind otherwise.
func Authorize(actor models.Employee, subject Subject, rel Relation) error {
	switch rel {
	case TenderOwner:
		if actor.Responsible(subject.OrganizationId) {
			return nil
		}
		return models.ErrNotResponsible
	case BidAuthor:
		return authorizeAuthor(actor, subject.Author)
	case Creator:
		if subject.CreatorId != "" && subject.CreatorId == actor.Id {
			return nil
		}
		return models.ErrNotCreator
	}
	return fmt.Errorf("guard.Authorize: unknown relation %s: %w", rel, models.ErrForbidden)
}

func authorizeAuthor(actor models.Employee, author models.Author) error {
	switch a := author.(type) {
	case models.UserAuthor:
		if a.EmployeeId == actor.Id {
			return nil
		}
	case models.OrganizationAuthor:
		if actor.Responsible(a.OrganizationId) {
			return nil
		}
	}
	return models.ErrNotAuthor
}

// Any passes when actor holds at least one of rels. The error of the last
// relation is returned otherwise.
func Any(actor models.Employee, subject Subject, rels ...Relation) error {
	err := fmt.Errorf("guard.Any: no relation given: %w", models.ErrForbidden)
	for _, rel := range rels {
		if err = Authorize(actor, subject, rel); err == nil {
			return nil
		}
	}
	return err
}
