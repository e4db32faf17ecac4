package httpapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
)

func TestStatusForKindMapsEveryTaxonomyCode(t *testing.T) {
	cases := map[string]int{
		string(errs.KindInvalidInput):          http.StatusBadRequest,
		string(errs.KindBatchLimitExceeded):     http.StatusBadRequest,
		string(errs.KindUnknownTool):            http.StatusNotFound,
		string(errs.KindUnknownOrResolved):      http.StatusNotFound,
		string(errs.KindUserCancelled):          http.StatusConflict,
		string(errs.KindRateLimitedUpstream):    http.StatusTooManyRequests,
		string(errs.KindERPPermanent):           http.StatusBadGateway,
		string(errs.KindERPTransient):           http.StatusServiceUnavailable,
		string(errs.KindMaxIterationsExceeded):  http.StatusServiceUnavailable,
		string(errs.KindInternal):               http.StatusInternalServerError,
		"totally-unrecognized-code":             http.StatusInternalServerError,
	}
	for code, want := range cases {
		assert.Equal(t, want, statusForKind(code), "code=%s", code)
	}
}

func TestWriteErrorSerializesFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	writeError(rec, errs.ErrUnknownTool)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var frame errs.Frame
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &frame))
	assert.Equal(t, string(errs.KindUnknownTool), frame.Code)
}

func TestDecodeJSONRejectsMalformedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", bytes.NewBufferString("{not json"))
	var v map[string]any
	ok := decodeJSON(rec, req, &v)
	assert.False(t, ok)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDecodeJSONAcceptsWellFormedBody(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/x", strings.NewReader(`{"a":1}`))
	var v map[string]any
	ok := decodeJSON(rec, req, &v)
	assert.True(t, ok)
	assert.Equal(t, float64(1), v["a"])
}
