package httpkit

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"dealer_portal_backend/platform/apperr"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

func newContext() (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	return c, w
}

func TestHandleErrorMapsKinds(t *testing.T) {
	c, w := newContext()
	if !HandleError(c, apperr.TooLarge("narrow the filters")) {
		t.Fatal("expected error to be handled")
	}
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if len(c.Errors) != 1 {
		t.Fatal("expected error to be recorded for the request logger")
	}
}

func TestHandleErrorHidesUntypedErrors(t *testing.T) {
	c, w := newContext()
	HandleError(c, errors.New("pq: relation dealers does not exist"))
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}
	if strings.Contains(w.Body.String(), "relation") {
		t.Fatalf("raw error leaked: %s", w.Body.String())
	}
}

func TestHandleErrorNil(t *testing.T) {
	c, _ := newContext()
	if HandleError(c, nil) {
		t.Fatal("nil error should not be handled")
	}
}

func TestMustGetTenantID(t *testing.T) {
	c, w := newContext()
	c.Set(ContextUserIDKey, uuid.New())
	if _, ok := MustGetTenantID(c); ok || w.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without organization, got %d", w.Code)
	}

	c, _ = newContext()
	tenantID := uuid.New()
	c.Set(ContextUserIDKey, uuid.New())
	c.Set(ContextTenantIDKey, tenantID)
	got, ok := MustGetTenantID(c)
	if !ok || got != tenantID {
		t.Fatalf("expected tenant %s, got %s (%v)", tenantID, got, ok)
	}

	c, w = newContext()
	if _, ok := MustGetTenantID(c); ok || w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 when unauthenticated, got %d", w.Code)
	}
}
