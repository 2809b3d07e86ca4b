package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type AuthorType string

const (
	AuthorUser         AuthorType = "User"
	AuthorOrganization AuthorType = "Organization"
)

func ValidAuthorType(t AuthorType) bool {
	switch t {
	case AuthorUser, AuthorOrganization:
		return true
	default:
		return false
	}
}

// Author is the party a bid is submitted on behalf of. It is either a
// UserAuthor or an OrganizationAuthor.
type Author interface {
	Type() AuthorType
	Id() string
	author()
}

type UserAuthor struct {
	EmployeeId string
}

func (a UserAuthor) Type() AuthorType { return AuthorUser }
func (a UserAuthor) Id() string       { return a.EmployeeId }
func (UserAuthor) author()            {}

type OrganizationAuthor struct {
	OrganizationId string
}

func (a OrganizationAuthor) Type() AuthorType { return AuthorOrganization }
func (a OrganizationAuthor) Id() string       { return a.OrganizationId }
func (OrganizationAuthor) author()            {}

func NewAuthor(t AuthorType, id string) (Author, error) {
	if len(id) == 0 {
		return nil, fmt.Errorf("models.NewAuthor: empty author id: %w", ErrInvalidAuthor)
	}
	switch t {
	case AuthorUser:
		return UserAuthor{EmployeeId: id}, nil
	case AuthorOrganization:
		return OrganizationAuthor{OrganizationId: id}, nil
	}
	return nil, fmt.Errorf("models.NewAuthor: unknown author type %q: %w", t, ErrInvalidAuthor)
}

type BidStatus string

const (
	BidCreated   BidStatus = "Created"
	BidPublished BidStatus = "Published"
	BidCanceled  BidStatus = "Canceled"
	BidApproved  BidStatus = "Approved"
	BidRejected  BidStatus = "Rejected"
)

func ValidBidStatus(t BidStatus) bool {
	switch t {
	case BidCreated, BidPublished, BidCanceled, BidApproved, BidRejected:
		return true
	default:
		return false
	}
}

// SettableBidStatus reports whether t may be set directly. Approved and Rejected
// are only reachable through a decision.
func SettableBidStatus(t BidStatus) bool {
	switch t {
	case BidCreated, BidPublished, BidCanceled:
		return true
	default:
		return false
	}
}

type Bid struct {
	Id          string    `json:"id"`
	Version     int       `json:"version"`
	TenderId    string    `json:"tenderId"`
	Author      Author    `json:"-"`
	CreatorId   string    `json:"-"`
	Status      BidStatus `json:"status"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"-"`
}

type bidJSON struct {
	AuthorType AuthorType `json:"authorType"`
	AuthorId   string     `json:"authorId"`
}

func (b Bid) MarshalJSON() ([]byte, error) {
	type alias Bid
	out := struct {
		alias
		bidJSON
	}{alias: alias(b)}
	if b.Author != nil {
		out.AuthorType, out.AuthorId = b.Author.Type(), b.Author.Id()
	}
	return json.Marshal(out)
}

func (b *Bid) UnmarshalJSON(data []byte) error {
	type alias Bid
	in := struct {
		*alias
		bidJSON
	}{alias: (*alias)(b)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if len(in.AuthorType) == 0 {
		return nil
	}
	author, err := NewAuthor(in.AuthorType, in.AuthorId)
	if err != nil {
		return err
	}
	b.Author = author
	return nil
}

// BidChanges holds the versioned, editable fields of a bid. Nil fields keep
// their current value on edit.
type BidChanges struct {
	Name        *string
	Description *string
}

func (c BidChanges) Empty() bool {
	return c.Name == nil && c.Description == nil
}

func (b Bid) Changes() BidChanges {
	return BidChanges{Name: &b.Name, Description: &b.Description}
}
