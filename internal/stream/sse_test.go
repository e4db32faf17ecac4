package stream_test

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/stream"
)

func TestNewSSESinkWritesHeadersAndFlushes(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := stream.NewSSESink(rec, nil)
	require.NoError(t, err)
	defer sink.Close()

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, 200, rec.Code)
}

func TestSSESinkEmitWritesDataFrame(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := stream.NewSSESink(rec, nil)
	require.NoError(t, err)
	defer sink.Close()

	e := stream.NewEmitter(sink, "corr-1")
	require.NoError(t, e.Message("hello"))

	body := rec.Body.String()
	assert.True(t, strings.HasPrefix(body, "data: "))
	assert.True(t, strings.HasSuffix(body, "\n\n"))
	assert.Contains(t, body, `"corr-1"`)
	assert.Contains(t, body, `"hello"`)
}

func TestSSESinkEmitAfterCloseIsNoop(t *testing.T) {
	rec := httptest.NewRecorder()
	sink, err := stream.NewSSESink(rec, nil)
	require.NoError(t, err)

	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close()) // idempotent

	before := rec.Body.Len()
	e := stream.NewEmitter(sink, "corr-2")
	require.NoError(t, e.Message("dropped"))
	assert.Equal(t, before, rec.Body.Len())
}
