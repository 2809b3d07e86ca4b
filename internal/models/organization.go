package models

import (
	"slices"
	"time"
)

type OrganizationType string

const (
	IE  OrganizationType = "IE"
	LLC OrganizationType = "LLC"
	JSC OrganizationType = "JSC"
)

type Organization struct {
	Id          string           `db:"id"`
	Name        string           `db:"name"`
	Description string           `db:"description"`
	Type        OrganizationType `db:"type"`
	CreatedAt   time.Time        `db:"created_at"`
	UpdatedAt   time.Time        `db:"updated_at"`
}

// Employee is an identity resolved by username. OrganizationIds lists the
// organizations the employee is responsible for, and is only filled when requested.
type Employee struct {
	Id              string    `db:"id"`
	Username        string    `db:"username"`
	FirstName       string    `db:"first_name"`
	LastName        string    `db:"last_name"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
	OrganizationIds []string  `db:"-"`
}

func (e Employee) Responsible(organizationId string) bool {
	return organizationId != "" && slices.Contains(e.OrganizationIds, organizationId)
}

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

const DefaultPageLimit = 5

func DefaultPage() Page {
	return Page{Limit: DefaultPageLimit}
}
