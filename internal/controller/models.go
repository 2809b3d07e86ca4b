package controller

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/google/uuid"

	"procurement/internal/models"
)

const (
	nameLimit        = 100
	descriptionLimit = 500
	feedbackLimit    = 1000
	usernameLimit    = 50
)

// New tender request

type NewTenderReq struct {
	Name            string             `json:"name"`
	Description     string             `json:"description"`
	ServiceType     models.ServiceType `json:"serviceType"`
	OrganizationId  string             `json:"organizationId"`
	CreatorUsername string             `json:"creatorUsername"`
}

func ParseNewTenderReq(data []byte) (*NewTenderReq, error) {
	t := &NewTenderReq{}

	if err := decodeStrict(data, t); err != nil {
		return nil, err
	}

	if !models.ValidServiceType(t.ServiceType) {
		return nil, fmt.Errorf("invalid service type supplied: %s, should be one of: %s, %s, %s", string(t.ServiceType), models.STConstruction, models.STDelivery, models.STManufacture)
	}
	if err := checkLength(t.Name, "name", 1, nameLimit); err != nil {
		return nil, err
	}
	if err := checkLength(t.Description, "description", 0, descriptionLimit); err != nil {
		return nil, err
	}
	if err := checkUUID(t.OrganizationId, "organizationId"); err != nil {
		return nil, err
	}
	if err := checkLength(t.CreatorUsername, "creatorUsername", 0, usernameLimit); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *NewTenderReq) Tender() models.Tender {
	return models.Tender{
		Name:           t.Name,
		Description:    t.Description,
		ServiceType:    t.ServiceType,
		OrganizationId: t.OrganizationId,
	}
}

// Edit tender request

type TenderChangeReq struct {
	Name        *string             `json:"name"`
	Description *string             `json:"description"`
	ServiceType *models.ServiceType `json:"serviceType"`
}

func ParseTenderChangeReq(data []byte) (models.TenderChanges, error) {
	t := TenderChangeReq{}

	if err := decodeStrict(data, &t); err != nil {
		return models.TenderChanges{}, err
	}

	if t.ServiceType != nil && !models.ValidServiceType(*t.ServiceType) {
		return models.TenderChanges{}, fmt.Errorf("invalid service type supplied: %s", *t.ServiceType)
	}
	if err := checkOptionalLength(t.Name, "name", 1, nameLimit); err != nil {
		return models.TenderChanges{}, err
	}
	if err := checkOptionalLength(t.Description, "description", 0, descriptionLimit); err != nil {
		return models.TenderChanges{}, err
	}

	changes := models.TenderChanges(t)
	if changes.Empty() {
		return changes, errNoFields
	}
	return changes, nil
}

// New bid request

type NewBidReq struct {
	Name            string            `json:"name"`
	Description     string            `json:"description"`
	TenderId        string            `json:"tenderId"`
	AuthorType      models.AuthorType `json:"authorType"`
	AuthorId        string            `json:"authorId"`
	CreatorUsername string            `json:"creatorUsername"`
}

func ParseNewBidReq(data []byte) (*NewBidReq, error) {
	t := &NewBidReq{}

	if err := decodeStrict(data, t); err != nil {
		return nil, err
	}

	if !models.ValidAuthorType(t.AuthorType) {
		return nil, fmt.Errorf("invalid author type supplied: %s, should be one of: %s, %s", t.AuthorType, models.AuthorOrganization, models.AuthorUser)
	}
	if err := checkLength(t.Name, "name", 1, nameLimit); err != nil {
		return nil, err
	}
	if err := checkLength(t.Description, "description", 0, descriptionLimit); err != nil {
		return nil, err
	}
	if err := checkUUID(t.TenderId, "tenderId"); err != nil {
		return nil, err
	}
	if err := checkUUID(t.AuthorId, "authorId"); err != nil {
		return nil, err
	}
	if err := checkLength(t.CreatorUsername, "creatorUsername", 0, usernameLimit); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *NewBidReq) Bid() (models.Bid, error) {
	author, err := models.NewAuthor(t.AuthorType, t.AuthorId)
	if err != nil {
		return models.Bid{}, err
	}
	return models.Bid{
		Name:        t.Name,
		Description: t.Description,
		TenderId:    t.TenderId,
		Author:      author,
	}, nil
}

// Edit bid request

type BidChangeReq struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func ParseBidChangeReq(data []byte) (models.BidChanges, error) {
	t := BidChangeReq{}

	if err := decodeStrict(data, &t); err != nil {
		return models.BidChanges{}, err
	}

	if err := checkOptionalLength(t.Name, "name", 1, nameLimit); err != nil {
		return models.BidChanges{}, err
	}
	if err := checkOptionalLength(t.Description, "description", 0, descriptionLimit); err != nil {
		return models.BidChanges{}, err
	}

	changes := models.BidChanges(t)
	if changes.Empty() {
		return changes, errNoFields
	}
	return changes, nil
}

// Service

var errNoFields = errors.New("request body should set at least one field")

func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("malformed request body: %w", err)
	}
	return nil
}

func checkLength(str, fieldName string, minLen, maxLen int) error {
	n := utf8.RuneCountInString(str)
	if n < minLen || n > maxLen {
		return fmt.Errorf("field '%s' length %d is out of range [%d, %d]", fieldName, n, minLen, maxLen)
	}
	return nil
}

func checkOptionalLength(str *string, fieldName string, minLen, maxLen int) error {
	if str == nil {
		return nil
	}
	return checkLength(*str, fieldName, minLen, maxLen)
}

func checkUUID(str, fieldName string) error {
	if _, err := uuid.Parse(str); err != nil {
		return fmt.Errorf("field '%s' is not a valid uuid: %s", fieldName, str)
	}
	return nil
}
