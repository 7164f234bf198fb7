package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/meridian-erp/meridian-erp/internal/shared"
)

func TestRespondErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantTitle  string
	}{
		{"not found", fmt.Errorf("%w: quote 7", shared.ErrNotFound), 404, "Not Found"},
		{"validation", fmt.Errorf("%w: qty must be positive", shared.ErrValidation), 422, "Validation Failed"},
		{"conflict", fmt.Errorf("%w: already posted", shared.ErrConflict), 409, "Conflict"},
		{"schema unavailable", fmt.Errorf("%w: invoices", shared.ErrSchemaUnavailable), 503, "Schema Unavailable"},
		{"unknown", errors.New("pq: connection reset"), 500, "Internal Error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			RespondError(rec, tc.err)

			require.Equal(t, tc.wantStatus, rec.Code)
			require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var problem ProblemDetail
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
			require.Equal(t, tc.wantTitle, problem.Title)
			require.Equal(t, tc.wantStatus, problem.Status)
		})
	}
}

func TestRespondErrorHidesInternalDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondError(rec, errors.New("dial tcp 10.0.0.5:5432: connect: connection refused"))

	var problem ProblemDetail
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &problem))
	require.Empty(t, problem.Detail)
}
