package controller

import (
	"net/http"

	"procurement/internal/models"
)

//// Bids

// POST /api/bids/new
func (c *Controller) NewBid(w http.ResponseWriter, r *http.Request) {
	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}

	req, err := ParseNewBidReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err := req.Bid()
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	bid, err = c.service.CreateBid(r.Context(), req.CreatorUsername, bid)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bid)
}

// GET /api/bids/my
func (c *Controller) MyBids(w http.ResponseWriter, r *http.Request) {
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

	bids, err := c.service.UserBids(r.Context(), username, page)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bids)
}

// GET /api/bids/{tenderId}/list
func (c *Controller) TenderBids(w http.ResponseWriter, r *http.Request) {
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

	tenderId, ok := c.getPathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	bids, err := c.service.TenderBids(r.Context(), username, tenderId, page)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bids)
}

// GET /api/bids/{bidId}/status
func (c *Controller) BidStatus(w http.ResponseWriter, r *http.Request) {
	username, ok := c.getUsername(w, r.URL.Query(), "username")
	if !ok {
		return
	}

	bidId, ok := c.getPathUUID(w, r, "bidId")
	if !ok {
		return
	}

	status, err := c.service.BidStatus(r.Context(), username, bidId)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, status)
}

// PUT /api/bids/{bidId}/status
func (c *Controller) SetBidStatus(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	username, ok := c.getUsername(w, query, "username")
	if !ok {
		return
	}

	bidId, ok := c.getPathUUID(w, r, "bidId")
	if !ok {
		return
	}

	status := models.BidStatus(query.Get("status"))
	if !models.SettableBidStatus(status) {
		c.errorResponse(w, http.StatusBadRequest, "empty or invalid status supplied, should be one of: Created, Published, Canceled")
		return
	}

	bid, err := c.service.SetBidStatus(r.Context(), username, bidId, status)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bid)
}

// PATCH /api/bids/{bidId}/edit
func (c *Controller) EditBid(w http.ResponseWriter, r *http.Request) {
	username, ok := c.getUsername(w, r.URL.Query(), "username")
	if !ok {
		return
	}

	bidId, ok := c.getPathUUID(w, r, "bidId")
	if !ok {
		return
	}

	data, err := c.readBody(r.Body)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, "could not read request body")
		return
	}
	changes, err := ParseBidChangeReq(data)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	var bid models.Bid
	err = c.retryConflicts(r.Context(), func() (err error) {
		bid, err = c.service.EditBid(r.Context(), username, bidId, changes)
		return err
	})
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bid)
}

// PUT /api/bids/{bidId}/submit_decision
func (c *Controller) SubmitDecision(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	username, ok := c.getUsername(w, query, "username")
	if !ok {
		return
	}

	bidId, ok := c.getPathUUID(w, r, "bidId")
	if !ok {
		return
	}

	decision := models.Decision(query.Get("decision"))
	if !models.ValidDecision(decision) {
		c.errorResponse(w, http.StatusBadRequest, "empty or invalid decision supplied, should be one of: Approved, Rejected")
		return
	}

	bid, err := c.service.SubmitDecision(r.Context(), username, bidId, decision)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bid)
}

// PUT /api/bids/{bidId}/feedback
func (c *Controller) BidFeedback(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	username, ok := c.getUsername(w, query, "username")
	if !ok {
		return
	}

	bidId, ok := c.getPathUUID(w, r, "bidId")
	if !ok {
		return
	}

	message := query.Get("bidFeedback")
	if err := checkLength(message, "bidFeedback", 1, feedbackLimit); err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	feedback, err := c.service.Feedback(r.Context(), username, bidId, message)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, feedback)
}

// PUT /api/bids/{bidId}/rollback/{version}
func (c *Controller) RollbackBid(w http.ResponseWriter, r *http.Request) {
	username, ok := c.getUsername(w, r.URL.Query(), "username")
	if !ok {
		return
	}

	bidId, ok := c.getPathUUID(w, r, "bidId")
	if !ok {
		return
	}

	version, ok := c.getPathVersion(w, r)
	if !ok {
		return
	}

	var bid models.Bid
	err := c.retryConflicts(r.Context(), func() (err error) {
		bid, err = c.service.RollbackBid(r.Context(), username, bidId, version)
		return err
	})
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, bid)
}

// GET /api/bids/{tenderId}/reviews
//
// The author is given either by authorUsername or by authorOrganizationId.
func (c *Controller) BidReviews(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	requesterUsername, ok := c.getUsername(w, query, "requesterUsername")
	if !ok {
		return
	}

	tenderId, ok := c.getPathUUID(w, r, "tenderId")
	if !ok {
		return
	}

	page, err := c.getPage(query)
	if err != nil {
		c.errorResponse(w, http.StatusBadRequest, err.Error())
		return
	}

	authorType, authorRef := models.AuthorUser, query.Get("authorUsername")
	if orgId := query.Get("authorOrganizationId"); len(orgId) > 0 {
		if len(authorRef) > 0 {
			c.errorResponse(w, http.StatusBadRequest, "only one of authorUsername and authorOrganizationId may be supplied")
			return
		}
		if err = checkUUID(orgId, "authorOrganizationId"); err != nil {
			c.errorResponse(w, http.StatusBadRequest, err.Error())
			return
		}
		authorType, authorRef = models.AuthorOrganization, orgId
	}
	if len(authorRef) == 0 {
		c.errorResponse(w, http.StatusBadRequest, "empty authorUsername supplied")
		return
	}

	reviews, err := c.service.Reviews(r.Context(), requesterUsername, tenderId, authorType, authorRef, page)
	if err != nil {
		c.serviceErrorResponse(w, r, err)
		return
	}

	c.marshalResponse(w, reviews)
}
