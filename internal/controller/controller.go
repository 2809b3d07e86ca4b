package controller

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"procurement/internal/models"
)

type Service interface {
	Ping(ctx context.Context) error

	Tenders(ctx context.Context, serviceTypes []models.ServiceType, page models.Page) ([]models.Tender, error)
	CreateTender(ctx context.Context, username string, t models.Tender) (models.Tender, error)
	UserTenders(ctx context.Context, username string, page models.Page) ([]models.Tender, error)
	TenderStatus(ctx context.Context, username, tenderId string) (models.TenderStatus, error)
	SetTenderStatus(ctx context.Context, username, tenderId string, status models.TenderStatus) (models.Tender, error)
	EditTender(ctx context.Context, username, tenderId string, changes models.TenderChanges) (models.Tender, error)
	RollbackTender(ctx context.Context, username, tenderId string, version int) (models.Tender, error)

	CreateBid(ctx context.Context, username string, b models.Bid) (models.Bid, error)
	UserBids(ctx context.Context, username string, page models.Page) ([]models.Bid, error)
	TenderBids(ctx context.Context, username, tenderId string, page models.Page) ([]models.Bid, error)
	BidStatus(ctx context.Context, username, bidId string) (models.BidStatus, error)
	SetBidStatus(ctx context.Context, username, bidId string, status models.BidStatus) (models.Bid, error)
	EditBid(ctx context.Context, username, bidId string, changes models.BidChanges) (models.Bid, error)
	RollbackBid(ctx context.Context, username, bidId string, version int) (models.Bid, error)
	SubmitDecision(ctx context.Context, username, bidId string, decision models.Decision) (models.Bid, error)
	Feedback(ctx context.Context, username, bidId, message string) (models.Feedback, error)
	Reviews(ctx context.Context, username, tenderId string, authorType models.AuthorType, authorRef string, page models.Page) ([]models.Feedback, error)
}

type Controller struct {
	service Service
	log     *zap.Logger
	retries uint64
}

// NewController builds the HTTP handlers. Edits and rollbacks failing on a concurrent
// update are retried up to retries times.
func NewController(service Service, log *zap.Logger, retries uint64) *Controller {
	if log == nil {
		log = zap.NewNop()
	}
	return &Controller{service: service, log: log, retries: retries}
}

// GET /api/ping
func (c *Controller) Ping(w http.ResponseWriter, r *http.Request) {
	if err := c.service.Ping(r.Context()); err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, "ok")
}

//// Tenders

// GET /api/tenders
func (c *Controller) GetTenders(w http.ResponseWriter, r *http.Request) {
	var serviceTypes []models.ServiceType

	query := r.URL.Query()

	page, err := c.getPage(query)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	for _, str := range query["service_type"] {
		t := models.ServiceType(str)
		if models.ValidServiceType(t) {
			serviceTypes = append(serviceTypes, t)
			continue
		}
		c.errorResponse(w, http.StatusBadRequest, "invalid service type supplied: "+string(t))
		return
	}

	tenders, err := c.service.Tenders(r.Context(), serviceTypes, page)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, tenders)
}

// POST /api/tenders/new
func (c *Controller) NewTender(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewTenderReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	tender, err := c.service.CreateTender(r.Context(), req.CreatorUsername, req.Tender())
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, tender)
}

// GET /api/tenders/my
func (c *Controller) MyTenders(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	page, err := c.getPage(query)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	username, ok := c.getUsername(w, query, "username")
	if !ok {
		return
	}

	tenders, err := c.service.UserTenders(r.Context(), username, page)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, tenders)
}

// GET /api/tenders/{tenderId}/status
func (c *Controller) TenderStatus(w http.ResponseWriter, r *http.Request) {
	username, ok := c.getUsername(w, r.URL.Query(), "username")
	if !ok {
		return
	}

	tenderId, ok := c.getPathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	status, err := c.service.TenderStatus(r.Context(), username, tenderId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, status)
}

// PUT /api/tenders/{tenderId}/status
func (c *Controller) SetTenderStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	username, ok := c.getUsername(w, query, "username")
	if !ok {
		return
	}

	tenderId, ok := c.getPathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	status := models.TenderStatus(query.Get("status"))
	if !models.ValidTenderStatus(status) {
		c.errorResponse(w, http.StatusBadRequest, "empty or invalid status supplied")
		return
	}

	tender, err := c.service.SetTenderStatus(r.Context(), username, tenderId, status)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, tender)
}

// PATCH /api/tenders/{tenderId}/edit
func (c *Controller) EditTender(w http.ResponseWriter, r *http.Request) {
	username, ok := c.getUsername(w, r.URL.Query(), "username")
	if !ok {
		return
	}

	tenderId, ok := c.getPathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}
	changes, err := ParseTenderChangeReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var tender models.Tender
	err = c.retryConflicts(r.Context(), func() (err error) {
		tender, err = c.service.EditTender(r.Context(), username, tenderId, changes)
		return err
	})
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, tender)
}

// PUT /api/tenders/{tenderId}/rollback/{version}
func (c *Controller) RollbackTender(w http.ResponseWriter, r *http.Request) {
	username, ok := c.getUsername(w, r.URL.Query(), "username")
	if !ok {
		return
	}

	tenderId, ok := c.getPathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	version, ok := c.getPathVersion(w, r)
	if !ok {
		return
	}

	var tender models.Tender
	err := c.retryConflicts(r.Context(), func() (err error) {
		tender, err = c.service.RollbackTender(r.Context(), username, tenderId, version)
		return err
	})
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, tender)
}

// Service

type ErrorResponse struct {
	Reason string `json:"reason"`
}

// retryConflicts runs op again with exponential backoff while it fails with
// models.ErrConflict.
func (c *Controller) retryConflicts(ctx context.Context, op func() error) error {
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.retries), ctx)

	return backoff.RetryNotify(func() error {
		err := op()
		if err != nil && !errors.Is(err, models.ErrConflict) {
			return backoff.Permanent(err)
		}
		return err
	}, policy, func(err error, wait time.Duration) {
		c.log.Warn("retrying after concurrent update", zap.Error(err), zap.Duration("wait", wait))
	})
}

func (c *Controller) getPage(query url.Values) (models.Page, error) {
	page := models.DefaultPage()

	var err error
	if page.Limit, err = c.getQueryInt(query, "limit", page.Limit); err != nil {
		return page, err
	}
	if page.Offset, err = c.getQueryInt(query, "offset", page.Offset); err != nil {
		return page, err
	}
	return page, nil
}

func (c *Controller) getQueryInt(query url.Values, key string, def int) (int, error) {
	strs, ok := query[key]
	if !ok || len(strs) == 0 {
		return def, nil
	}

	v, err := strconv.Atoi(strs[0])
	if err != nil || v < 0 {
		return 0, fmt.Errorf("invalid value of '%s' query parameter: %s", key, strs[0])
	}
	return v, nil
}

// getUsername passes an empty username through: the service reports it as an
// unknown user once the addressed entity is found.
func (c *Controller) getUsername(w http.ResponseWriter, query url.Values, key string) (string, bool) {
	username := query.Get(key)
	if err := checkLength(username, key, 0, usernameLimit); err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return "", false
	}
	return username, true
}

func (c *Controller) getPathUUID(w http.ResponseWriter, r *http.Request, key string) (string, bool) {
	value := chi.URLParam(r, key)
	if _, err := uuid.Parse(value); err != nil {
		c.errorResponse(w, http.StatusBadRequest, "invalid "+key+" supplied: "+value)
		return "", false
	}
	return value, true
}

func (c *Controller) getPathVersion(w http.ResponseWriter, r *http.Request) (int, bool) {
	str := chi.URLParam(r, "version")
	version, err := strconv.Atoi(str)
	if err != nil || version < 1 {
		c.errorResponse(w, http.StatusBadRequest, "invalid version supplied: "+str)
		return 0, false
	}
	return version, true
}

func (c *Controller) errorResponse(w http.ResponseWriter, status int, text string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	data, err := json.Marshal(ErrorResponse{Reason: text})
	if err != nil {
		c.log.Error("controller.Controller.errorResponse", zap.Error(err))
		return
	}

	if _, err = w.Write(data); err != nil {
		c.log.Debug("controller.Controller.errorResponse", zap.Error(err))
	}
}

func (c *Controller) serviceErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch models.Kind(err) {
	case models.ErrUnauthorized:
		c.errorResponse(w, http.StatusUnauthorized, "user does not exist or have no rights for requested action")
	case models.ErrForbidden:
		c.errorResponse(w, http.StatusForbidden, reason(err, "user have no permission for requested action"))
	case models.ErrNotFound:
		c.errorResponse(w, http.StatusNotFound, reason(err, "requested entity does not exist"))
	case models.ErrInvalid:
		c.errorResponse(w, http.StatusBadRequest, reason(err, "invalid request"))
	case models.ErrConflict:
		c.errorResponse(w, http.StatusConflict, "entity was modified concurrently, try again")
	default:
		c.log.Error("request failed",
			zap.String("request_id", middleware.GetReqID(r.Context())),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		c.errorResponse(w, http.StatusInternalServerError, "internal server error")
	}
}

// reason returns the message of the most specific known error in err.
func reason(err error, fallback string) string {
	for _, known := range []error{
		models.ErrNoTender, models.ErrNoBid, models.ErrNoVersion, models.ErrNoEmployee, models.ErrNoOrganization,
		models.ErrNotResponsible, models.ErrNotAuthor, models.ErrNotCreator, models.ErrBidNotPublished, models.ErrTenderClosed,
		models.ErrInvalidStatus, models.ErrInvalidAuthor, models.ErrNoChanges,
	} {
		if errors.Is(err, known) {
			return known.Error()
		}
	}
	return fallback
}

func (c *Controller) marshalResponse(w http.ResponseWriter, data any) {
	d, err := json.Marshal(data)
	if err != nil {
		c.errorResponse(w, http.StatusInternalServerError, "could not marshal response data")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if _, err = w.Write(d); err != nil {
		c.log.Debug("controller.Controller.marshalResponse", zap.Error(err))
	}
}

func (c *Controller) readBody(src io.ReadCloser) ([]byte, error) {
	defer src.Close()
	return io.ReadAll(io.LimitReader(src, 1<<20))
}
