package httpapi

import (
	"errors"
	"net/http"
	"time"

	"maintenance-platform/internal/auth"
	"maintenance-platform/internal/lifecycle"

	"github.com/gin-gonic/gin"
)

// Handlers groups HTTP handlers for dependency injection.
// Keep these thin: parse/validate input, call internal services, return JSON.

type Handlers struct {
	Auth   *auth.Manager
	Engine *lifecycle.Service
}

// --- Auth ---

type loginRequest struct {
	UserID string `json:"user_id"`
	Role   string `json:"role"`
}

// Login issues a JWT token pair.
//
// NOTE: This is a skeleton-only endpoint. Real systems must validate credentials.
func (h Handlers) Login(c *gin.Context) {
	if h.Auth == nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "auth not configured"})
		return
	}
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if req.UserID == "" || req.Role == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "user_id, role required"})
		return
	}
	pair, err := h.Auth.IssuePair(time.Now(), req.UserID, req.Role)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "token issuance failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"access_token": pair.AccessToken, "refresh_token": pair.RefreshToken})
}

// Me echoes the authenticated identity.
func (h Handlers) Me(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"user_id": actor.ID, "role": actor.Role})
}

// --- Requests ---

type createRequestBody struct {
	Title            string `json:"title"`
	Description      string `json:"description,omitempty"`
	CategoryID       string `json:"category_id,omitempty"`
	Priority         string `json:"priority,omitempty"`
	Location         string `json:"location,omitempty"`
	Building         string `json:"building,omitempty"`
	SpecificLocation string `json:"specific_location,omitempty"`
	CustomID         string `json:"custom_id,omitempty"`

	EstimatedCostMinor *int64 `json:"estimated_cost_minor,omitempty"`

	// RequestedByID is honored only for admin callers.
	RequestedByID string `json:"requested_by_id,omitempty"`

	Submit bool `json:"submit,omitempty"`
}

func (h Handlers) CreateRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body createRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Engine.Create(c.Request.Context(), actor, lifecycle.CreateInput{
		Title:              body.Title,
		Description:        body.Description,
		CategoryID:         body.CategoryID,
		Priority:           lifecycle.Priority(body.Priority),
		Location:           body.Location,
		Building:           body.Building,
		SpecificLocation:   body.SpecificLocation,
		CustomID:           body.CustomID,
		EstimatedCostMinor: body.EstimatedCostMinor,
		RequestedByID:      body.RequestedByID,
		Submit:             body.Submit,
	})
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, r)
}

func (h Handlers) GetRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	r, err := h.Engine.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) SubmitRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	r, err := h.Engine.Submit(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type updateStatusBody struct {
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

func (h Handlers) UpdateStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body updateStatusBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	if body.Status == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "status required"})
		return
	}
	r, err := h.Engine.UpdateStatus(c.Request.Context(), actor, c.Param("id"), lifecycle.Status(body.Status), body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- Assignment ---

type assignBody struct {
	TechnicianID string `json:"technician_id"`
	Reason       string `json:"reason,omitempty"`
}

func (h Handlers) AssignRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body assignBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Engine.Assign(c.Request.Context(), actor, c.Param("id"), body.TechnicianID, body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) SelfAssignRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	r, err := h.Engine.SelfAssign(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type reasonBody struct {
	Reason string `json:"reason,omitempty"`
}

func (h Handlers) UnassignRequest(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body reasonBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Engine.Unassign(c.Request.Context(), actor, c.Param("id"), body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

// --- Confirmation ---

type confirmCompletionBody struct {
	Comment string `json:"comment,omitempty"`
	// OverrideReason is required when an admin confirms on the customer's
	// behalf; customers leave it empty.
	OverrideReason string `json:"override_reason,omitempty"`
}

func (h Handlers) ConfirmCompletion(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body confirmCompletionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Engine.ConfirmCompletion(c.Request.Context(), actor, c.Param("id"), body.Comment, body.OverrideReason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

type rejectCompletionBody struct {
	Reason  string `json:"reason"`
	Comment string `json:"comment,omitempty"`
}

func (h Handlers) RejectCompletion(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body rejectCompletionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Engine.RejectCompletion(c.Request.Context(), actor, c.Param("id"), body.Reason, body.Comment)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) CloseWithoutConfirmation(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	var body reasonBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid json"})
		return
	}
	r, err := h.Engine.CloseWithoutConfirmation(c.Request.Context(), actor, c.Param("id"), body.Reason)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func (h Handlers) ConfirmationStatus(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	v, err := h.Engine.ConfirmationStatus(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, v)
}

func (h Handlers) RequestHistory(c *gin.Context) {
	actor, ok := actorFrom(c)
	if !ok {
		return
	}
	sh, ah, err := h.Engine.History(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status_history": sh, "assignment_history": ah})
}

// --- Plumbing ---

func actorFrom(c *gin.Context) (lifecycle.Actor, bool) {
	userID, err := auth.UserID(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing identity"})
		return lifecycle.Actor{}, false
	}
	role, err := auth.Role(c.Request.Context())
	if err != nil {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing role"})
		return lifecycle.Actor{}, false
	}
	return lifecycle.Actor{ID: userID, Role: role}, true
}

// writeError maps engine error types onto HTTP statuses. Conflicts (lost
// races, stale preconditions) are 409 so clients know to re-fetch and retry.
func writeError(c *gin.Context, err error) {
	var (
		ite *lifecycle.InvalidTransitionError
		fe  *lifecycle.ForbiddenError
		ise *lifecycle.InvalidStateError
		ve  *lifecycle.ValidationError
	)
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "not found"})
	case errors.Is(err, lifecycle.ErrAlreadyAssigned):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "request already assigned"})
	case errors.Is(err, lifecycle.ErrAlreadyResolved):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": "confirmation already resolved"})
	case errors.As(err, &ite):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ite.Error()})
	case errors.As(err, &fe):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": fe.Error()})
	case errors.As(err, &ise):
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"error": ise.Error()})
	case errors.As(err, &ve):
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": ve.Error()})
	default:
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
