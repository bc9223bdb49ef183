package scope_test

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantmux/pkg/logger"
	"github.com/dmitrymomot/tenantmux/pkg/scope"
	"github.com/dmitrymomot/tenantmux/pkg/tenant"
)

func TestMiddleware(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	var seen *scope.Scope
	var leasedInHandler int
	h := scope.Middleware(f.svc,
		scope.WithSkipPaths("/healthz"),
		scope.WithLogger(logger.Discard()),
	)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = scope.FromContext(r.Context())
		leasedInHandler = f.mux.Stats().Leased
		if tn, ok := tenant.FromContext(r.Context()); ok {
			w.Header().Set("X-Tenant", tn.Slug)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("stores scope and releases the lease", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("acme.example.com"))

		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "acme", rec.Header().Get("X-Tenant"))
		require.NotNil(t, seen)
		assert.Equal(t, acmeMain, seen.Company.ID)
		assert.Equal(t, 1, leasedInHandler)
		assert.Equal(t, 0, f.mux.Stats().Leased)
	})

	t.Run("skip paths bypass resolution", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "http://example.com/healthz", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
	})

	t.Run("maps errors to status codes", func(t *testing.T) {
		for host, code := range map[string]int{
			"ghost.example.com":  http.StatusNotFound,
			"frozen.example.com": http.StatusForbidden,
			"example.com":        http.StatusBadRequest,
			"empty.example.com":  http.StatusConflict,
		} {
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, request(host))
			assert.Equal(t, code, rec.Code, host)
			assert.Empty(t, rec.Header().Get("Retry-After"), host)
		}
	})

	t.Run("resource errors ask to retry", func(t *testing.T) {
		f.factory.fail(errors.New("connection refused"))
		f.mux.Invalidate(acmeAddress)

		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, request("acme.example.com"))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "1", rec.Header().Get("Retry-After"))
	})
}

func TestRequireScope(t *testing.T) {
	t.Parallel()

	h := scope.RequireScope(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, request("acme.example.com"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
