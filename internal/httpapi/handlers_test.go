package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"maintenance-platform/internal/auth"
	"maintenance-platform/internal/lifecycle"
	"maintenance-platform/internal/rbac"

	"github.com/gin-gonic/gin"
)

func newTestRouter(t *testing.T) (*gin.Engine, *lifecycle.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := lifecycle.NewMemoryStore()
	dir := lifecycle.NewMemoryDirectory(
		lifecycle.User{ID: "cust-1", Role: rbac.RoleCustomer},
		lifecycle.User{ID: "tech-1", Role: rbac.RoleTechnician},
		lifecycle.User{ID: "admin-1", Role: rbac.RoleMaintenanceAdmin},
	)
	engine := lifecycle.NewService(store, dir, lifecycle.Options{})
	h := Handlers{Engine: engine}

	// Identity is injected from headers instead of a verified JWT so the
	// handlers can be exercised without token plumbing.
	identity := func(c *gin.Context) {
		uid := c.GetHeader("X-Test-User")
		role := c.GetHeader("X-Test-Role")
		if uid != "" {
			ctx := auth.WithIdentity(c.Request.Context(), uid, role)
			c.Request = c.Request.WithContext(ctx)
		}
		c.Next()
	}

	r := gin.New()
	v1 := r.Group("/v1", identity)
	{
		v1.POST("/requests", h.CreateRequest)
		v1.GET("/requests/:id", h.GetRequest)
		v1.POST("/requests/:id/submit", h.SubmitRequest)
		v1.PATCH("/requests/:id/status", h.UpdateStatus)
		v1.POST("/requests/:id/assign", h.AssignRequest)
		v1.POST("/requests/:id/self-assign", h.SelfAssignRequest)
		v1.POST("/requests/:id/confirm-completion", h.ConfirmCompletion)
		v1.POST("/requests/:id/reject-completion", h.RejectCompletion)
		v1.GET("/requests/:id/confirmation-status", h.ConfirmationStatus)
		v1.GET("/requests/:id/history", h.RequestHistory)
	}
	return r, engine
}

func doJSON(t *testing.T, r *gin.Engine, method, path, user, role string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	} else {
		buf.WriteString("{}")
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("X-Test-User", user)
		req.Header.Set("X-Test-Role", role)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRequestLifecycleOverHTTP(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/requests", "cust-1", rbac.RoleCustomer,
		gin.H{"title": "Leaking pipe", "submit": true})
	if w.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if created.Status != "SUBMITTED" {
		t.Fatalf("expected SUBMITTED, got %s", created.Status)
	}
	base := "/v1/requests/" + created.ID

	if w := doJSON(t, r, http.MethodPost, base+"/self-assign", "tech-1", rbac.RoleTechnician, nil); w.Code != 200 {
		t.Fatalf("self-assign: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPatch, base+"/status", "tech-1", rbac.RoleTechnician,
		gin.H{"status": "IN_PROGRESS"}); w.Code != 200 {
		t.Fatalf("start: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPatch, base+"/status", "tech-1", rbac.RoleTechnician,
		gin.H{"status": "COMPLETED"}); w.Code != 200 {
		t.Fatalf("complete: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	w = doJSON(t, r, http.MethodGet, base+"/confirmation-status", "cust-1", rbac.RoleCustomer, nil)
	if w.Code != 200 {
		t.Fatalf("confirmation-status: expected 200, got %d", w.Code)
	}
	var view struct {
		Status     string `json:"status"`
		CanConfirm bool   `json:"can_confirm"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &view)
	if view.Status != "PENDING" || !view.CanConfirm {
		t.Fatalf("unexpected view: %s", w.Body.String())
	}

	if w := doJSON(t, r, http.MethodPost, base+"/confirm-completion", "cust-1", rbac.RoleCustomer,
		gin.H{"comment": "thanks"}); w.Code != 200 {
		t.Fatalf("confirm: expected 200, got %d: %s", w.Code, w.Body.String())
	}

	// A second resolution attempt is a conflict.
	if w := doJSON(t, r, http.MethodPost, base+"/reject-completion", "cust-1", rbac.RoleCustomer,
		gin.H{"reason": "changed my mind"}); w.Code != http.StatusConflict {
		t.Fatalf("late reject: expected 409, got %d", w.Code)
	}

	w = doJSON(t, r, http.MethodGet, base+"/history", "cust-1", rbac.RoleCustomer, nil)
	if w.Code != 200 {
		t.Fatalf("history: expected 200, got %d", w.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	r, _ := newTestRouter(t)

	// Unknown id -> 404.
	if w := doJSON(t, r, http.MethodGet, "/v1/requests/nope", "cust-1", rbac.RoleCustomer, nil); w.Code != 404 {
		t.Fatalf("expected 404, got %d", w.Code)
	}

	// Missing identity -> 401.
	if w := doJSON(t, r, http.MethodPost, "/v1/requests", "", "", gin.H{"title": "x"}); w.Code != 401 {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	// Missing title -> 400.
	if w := doJSON(t, r, http.MethodPost, "/v1/requests", "cust-1", rbac.RoleCustomer, gin.H{}); w.Code != 400 {
		t.Fatalf("expected 400, got %d", w.Code)
	}

	w := doJSON(t, r, http.MethodPost, "/v1/requests", "cust-1", rbac.RoleCustomer,
		gin.H{"title": "x", "submit": true})
	var created struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	base := "/v1/requests/" + created.ID

	// Customer touching the generic status update -> 403.
	if w := doJSON(t, r, http.MethodPatch, base+"/status", "cust-1", rbac.RoleCustomer,
		gin.H{"status": "ASSIGNED"}); w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	// Illegal transition -> 409.
	if w := doJSON(t, r, http.MethodPatch, base+"/status", "admin-1", rbac.RoleMaintenanceAdmin,
		gin.H{"status": "CLOSED"}); w.Code != 409 {
		t.Fatalf("expected 409, got %d", w.Code)
	}

	// Losing a self-assign race -> 409.
	if w := doJSON(t, r, http.MethodPost, base+"/assign", "admin-1", rbac.RoleMaintenanceAdmin,
		gin.H{"technician_id": "tech-1"}); w.Code != 200 {
		t.Fatalf("assign: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if w := doJSON(t, r, http.MethodPost, base+"/self-assign", "tech-1", rbac.RoleTechnician, nil); w.Code != 409 {
		t.Fatalf("expected 409 for claimed request, got %d", w.Code)
	}
}

func TestDraftSubmitFlow(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/v1/requests", "cust-1", rbac.RoleCustomer,
		gin.H{"title": "Flickering light"})
	var created struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	_ = json.Unmarshal(w.Body.Bytes(), &created)
	if created.Status != "DRAFT" {
		t.Fatalf("expected DRAFT, got %s", created.Status)
	}

	// Another customer cannot see or submit the draft.
	base := "/v1/requests/" + created.ID
	if w := doJSON(t, r, http.MethodGet, base, "cust-2", rbac.RoleCustomer, nil); w.Code != 403 {
		t.Fatalf("expected 403, got %d", w.Code)
	}

	if w := doJSON(t, r, http.MethodPost, base+"/submit", "cust-1", rbac.RoleCustomer, nil); w.Code != 200 {
		t.Fatalf("submit: expected 200, got %d: %s", w.Code, w.Body.String())
	}
	// Submitting twice is a conflict.
	if w := doJSON(t, r, http.MethodPost, base+"/submit", "cust-1", rbac.RoleCustomer, nil); w.Code != 409 {
		t.Fatalf("double submit: expected 409, got %d", w.Code)
	}
}
