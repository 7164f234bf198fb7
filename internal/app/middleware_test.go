package app

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestOrgContextResolvesHeader(t *testing.T) {
	var gotOrg int64
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotOrg = shared.OrgFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/documents/quotes", nil)
	req.Header.Set(OrgHeader, "42")
	rec := httptest.NewRecorder()
	OrgContext(next).ServeHTTP(rec, req)

	require.Equal(t, http.StatusNoContent, rec.Code)
	require.Equal(t, int64(42), gotOrg)
}

func TestOrgContextRejectsMissingOrInvalidHeader(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run without an organisation")
	})

	for _, value := range []string{"", "abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/documents/quotes", nil)
		if value != "" {
			req.Header.Set(OrgHeader, value)
		}
		rec := httptest.NewRecorder()
		OrgContext(next).ServeHTTP(rec, req)
		require.Equal(t, http.StatusUnprocessableEntity, rec.Code, "header %q", value)
	}
}
