package resilience_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/model"
	"github.com/frappe/erp-coagent-gateway/internal/resilience"
)

type failingClient struct{ err error }

func (f *failingClient) Complete(ctx context.Context, req *model.Request) (*model.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Response{}, nil
}

func (f *failingClient) Stream(ctx context.Context, req *model.Request) (model.Streamer, error) {
	return nil, f.err
}

func TestWrapModelClientTripsBreakerOnRepeatedFailure(t *testing.T) {
	breaker := resilience.NewBreaker("llm", resilience.Config{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Hour})
	client := resilience.WrapModelClient(&failingClient{err: errors.New("upstream down")}, breaker)

	_, err := client.Complete(context.Background(), &model.Request{})
	require.Error(t, err)
	_, err = client.Complete(context.Background(), &model.Request{})
	require.Error(t, err)

	_, err = client.Complete(context.Background(), &model.Request{})
	assert.ErrorIs(t, err, errs.ErrRateLimitedUpstream)
}

func TestWrapModelClientPassesThroughOnSuccess(t *testing.T) {
	breaker := resilience.NewBreaker("llm", resilience.Config{FailureThreshold: 2, SuccessThreshold: 1, OpenTimeout: time.Hour})
	client := resilience.WrapModelClient(&failingClient{}, breaker)

	resp, err := client.Complete(context.Background(), &model.Request{})
	require.NoError(t, err)
	assert.NotNil(t, resp)
	assert.Equal(t, resilience.StateClosed, breaker.Snapshot().State)
}
