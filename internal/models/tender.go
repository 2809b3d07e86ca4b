package models

import "time"

type TenderStatus string

const (
	TenderCreated   TenderStatus = "Created"
	TenderPublished TenderStatus = "Published"
	TenderClosed    TenderStatus = "Closed"
	TenderCanceled  TenderStatus = "Canceled"
)

func ValidTenderStatus(t TenderStatus) bool {
	switch t {
	case TenderCreated, TenderPublished, TenderClosed, TenderCanceled:
		return true
	default:
		return false
	}
}

type ServiceType string

const (
	STConstruction ServiceType = "Construction"
	STDelivery     ServiceType = "Delivery"
	STManufacture  ServiceType = "Manufacture"
)

func ValidServiceType(t ServiceType) bool {
	switch t {
	case STConstruction, STDelivery, STManufacture:
		return true
	default:
		return false
	}
}

type Tender struct {
	Id             string       `db:"id" json:"id"`
	Version        int          `db:"version" json:"version"`
	OrganizationId string       `db:"organization_id" json:"organizationId"`
	CreatorId      string       `db:"creator_id" json:"-"`
	Status         TenderStatus `db:"status" json:"status"`
	ServiceType    ServiceType  `db:"service_type" json:"serviceType"`
	Name           string       `db:"name" json:"name"`
	Description    string       `db:"description" json:"description"`
	CreatedAt      time.Time    `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time    `db:"updated_at" json:"-"`
}

// TenderChanges holds the versioned, editable fields of a tender. Nil fields keep
// their current value on edit.
type TenderChanges struct {
	Name        *string
	Description *string
	ServiceType *ServiceType
}

func (c TenderChanges) Empty() bool {
	return c.Name == nil && c.Description == nil && c.ServiceType == nil
}

// Changes returns the full set of editable fields held by t.
func (t Tender) Changes() TenderChanges {
	return TenderChanges{Name: &t.Name, Description: &t.Description, ServiceType: &t.ServiceType}
}
