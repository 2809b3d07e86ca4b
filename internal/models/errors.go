package models

import (
	"errors"
	"fmt"
)

// Error kinds. Every error produced by the service layer wraps exactly one of them,
// so callers can tell them apart with errors.Is.
var (
	ErrNotFound     = errors.New("not found")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrInvalid      = errors.New("invalid input")
	ErrConflict     = errors.New("concurrent update conflict")
)

var (
	ErrInvalidUser     = withKind(ErrUnauthorized, "provided username does not belong to any employee")
	ErrNotResponsible  = withKind(ErrForbidden, "employee is not responsible for the organization")
	ErrNotAuthor       = withKind(ErrForbidden, "employee is not authorized to act as the bid author")
	ErrNotCreator      = withKind(ErrForbidden, "employee is not the creator of the entity")
	ErrBidNotPublished = withKind(ErrForbidden, "bid is not published, decisions are not accepted")
	ErrTenderClosed    = withKind(ErrForbidden, "tender does not accept bids or decisions in its current status")
	ErrNoTender        = withKind(ErrNotFound, "requested tender does not exist")
	ErrNoBid           = withKind(ErrNotFound, "requested bid does not exist")
	ErrNoVersion       = withKind(ErrNotFound, "requested version does not exist")
	ErrNoEmployee      = withKind(ErrNotFound, "requested employee does not exist")
	ErrNoOrganization  = withKind(ErrNotFound, "requested organization does not exist")
	ErrInvalidStatus   = withKind(ErrInvalid, "status is not allowed for this operation")
	ErrInvalidAuthor   = withKind(ErrInvalid, "invalid bid author")
	ErrNoChanges       = withKind(ErrInvalid, "edit changes no fields")
)

func withKind(kind error, msg string) error {
	return fmt.Errorf("%s: %w", msg, kind)
}

// Kind returns the error kind err wraps, or nil for errors outside the taxonomy.
func Kind(err error) error {
	for _, kind := range []error{ErrNotFound, ErrUnauthorized, ErrForbidden, ErrInvalid, ErrConflict} {
		if errors.Is(err, kind) {
			return kind
		}
	}
	return nil
}
