package erp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/resilience"
	"github.com/frappe/erp-coagent-gateway/internal/telemetry"
)

// Client is a session-token-authenticated REST client for the ERP backend
// (spec §4.1, §6.3). Every exported method is a suspension point (spec §5):
// it performs an HTTP round trip and may wait on the rate limiter.
type Client struct {
	httpc     *http.Client
	baseURL   string
	token     string
	limiter   *rate.Limiter
	idem      IdempotencyCache
	batchMax  int
	logger    telemetry.Logger
	namespace uuid.UUID
	breaker   *resilience.Breaker
}

// Options configures a Client.
type Options struct {
	BaseURL         string
	SessionToken    string
	RateLimitPerSec int
	BatchMax        int
	Idempotency     IdempotencyCache
	Logger          telemetry.Logger
	HTTPClient      *http.Client
	// Breaker, if set, trips open after consecutive erp_transient/
	// rate_limited_upstream responses (spec §7) and rejects further calls
	// until its cooldown elapses.
	Breaker *resilience.Breaker
}

// New constructs an ERP Client. One Client instance owns exactly one
// rate-limit bucket and one idempotency cache, scoped to the session token
// it was built with (spec §3 ownership: "The ERP Adapter exclusively owns
// the idempotency cache and rate-limit token bucket").
func New(opts Options) *Client {
	httpc := opts.HTTPClient
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	idem := opts.Idempotency
	if idem == nil {
		idem = NewInMemoryIdempotencyCache(5 * time.Minute)
	}
	batchMax := opts.BatchMax
	if batchMax <= 0 {
		batchMax = 50
	}
	return &Client{
		httpc:     httpc,
		baseURL:   opts.BaseURL,
		token:     opts.SessionToken,
		limiter:   newLimiter(opts.RateLimitPerSec, opts.RateLimitPerSec),
		idem:      idem,
		batchMax:  batchMax,
		logger:    logger,
		namespace: uuid.New(),
		breaker:   opts.Breaker,
	}
}

// IdempotencyKey derives the idempotency cache key for a write call scoped
// to this client's own namespace (spec §4.1). Tool handlers call this once
// per logical write and pass the result to Create/Update/Submit/Cancel, so
// retries of the same logical invocation reuse the same key.
func (c *Client) IdempotencyKey(method, doctype string, payload []byte) string {
	return Key(c.namespace, method, doctype, payload)
}

// Search performs a `search` call (spec §6.3). An empty filter set returns
// the first limit rows (default 20) without error (spec §8 boundary case).
func (c *Client) Search(ctx context.Context, doctype string, filters Filters, fields []string, limit int) (*SearchResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 20
	}
	q := url.Values{}
	if len(filters) > 0 {
		b, _ := json.Marshal(filters)
		q.Set("filters", string(b))
	}
	if len(fields) > 0 {
		b, _ := json.Marshal(fields)
		q.Set("fields", string(b))
	}
	q.Set("limit_page_length", fmt.Sprintf("%d", limit))

	var rows []Doc
	if err := c.get(ctx, fmt.Sprintf("/api/resource/%s?%s", doctype, q.Encode()), &rows); err != nil {
		return nil, err
	}
	return &SearchResult{Rows: rows}, nil
}

// Get performs a `get` call (spec §6.3).
func (c *Client) Get(ctx context.Context, doctype, name string) (Doc, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var doc Doc
	if err := c.get(ctx, fmt.Sprintf("/api/resource/%s/%s", doctype, url.PathEscape(name)), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// Create performs a `create` call, consulting the idempotency cache first
// (spec §4.1, §8). idempotencyKey should be stable across retries of the
// same logical write; callers derive it with erp.Key.
func (c *Client) Create(ctx context.Context, doctype string, payload Doc, idempotencyKey string) (*WriteResult, error) {
	return c.write(ctx, http.MethodPost, fmt.Sprintf("/api/resource/%s", doctype), payload, idempotencyKey)
}

// Update performs an `update` call, consulting the idempotency cache first.
func (c *Client) Update(ctx context.Context, doctype, name string, payload Doc, idempotencyKey string) (*WriteResult, error) {
	return c.write(ctx, http.MethodPut, fmt.Sprintf("/api/resource/%s/%s", doctype, url.PathEscape(name)), payload, idempotencyKey)
}

// Submit performs a `submit` call via the ERP's submit method endpoint.
func (c *Client) Submit(ctx context.Context, doctype, name string, idempotencyKey string) (*WriteResult, error) {
	return c.callMethodWrite(ctx, "frappe.client.submit", Doc{"doctype": doctype, "name": name}, idempotencyKey)
}

// Cancel performs a `cancel` call via the ERP's cancel method endpoint.
func (c *Client) Cancel(ctx context.Context, doctype, name string, idempotencyKey string) (*WriteResult, error) {
	return c.callMethodWrite(ctx, "frappe.client.cancel", Doc{"doctype": doctype, "name": name}, idempotencyKey)
}

// RunReport performs a `run_report` call.
func (c *Client) RunReport(ctx context.Context, reportName string, filters Filters) (*ReportResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var res ReportResult
	if err := c.callMethod(ctx, "frappe.desk.query_report.run", Doc{"report_name": reportName, "filters": filters}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// CallMethod performs a generic `call_method` invocation.
func (c *Client) CallMethod(ctx context.Context, method string, args Doc) (*MethodResult, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var raw json.RawMessage
	if err := c.callMethod(ctx, method, args, &raw); err != nil {
		return nil, err
	}
	return &MethodResult{Raw: raw}, nil
}

// BulkUpdate performs a sequential bulk write, rejecting requests above
// BatchMax with errs.ErrBatchLimitExceeded and performing no writes in that
// case (spec §4.1, §8).
func (c *Client) BulkUpdate(ctx context.Context, doctype string, updates []Doc) (*BulkUpdateResult, error) {
	if len(updates) > c.batchMax {
		return nil, fmt.Errorf("%w: %d entries exceeds batch max %d", errs.ErrBatchLimitExceeded, len(updates), c.batchMax)
	}
	result := &BulkUpdateResult{}
	for _, u := range updates {
		name, _ := u["name"].(string)
		wr, err := c.Update(ctx, doctype, name, u, "")
		if err != nil {
			result.ErrorCount++
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		result.SuccessCount++
		result.Results = append(result.Results, wr.Doc)
	}
	return result, nil
}

func (c *Client) write(ctx context.Context, method, path string, payload Doc, idempotencyKey string) (*WriteResult, error) {
	if idempotencyKey != "" {
		if cached, ok, err := c.idem.Get(ctx, idempotencyKey); err == nil && ok {
			var wr WriteResult
			if err := json.Unmarshal(cached, &wr); err == nil {
				wr.FromCache = true
				return &wr, nil
			}
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var doc Doc
	if err := c.do(ctx, method, path, payload, true, &doc); err != nil {
		return nil, err
	}
	wr := &WriteResult{Doc: doc}
	if idempotencyKey != "" {
		if b, err := json.Marshal(wr); err == nil {
			_ = c.idem.Put(ctx, idempotencyKey, b)
		}
	}
	return wr, nil
}

func (c *Client) callMethodWrite(ctx context.Context, method string, args Doc, idempotencyKey string) (*WriteResult, error) {
	if idempotencyKey != "" {
		if cached, ok, err := c.idem.Get(ctx, idempotencyKey); err == nil && ok {
			var wr WriteResult
			if err := json.Unmarshal(cached, &wr); err == nil {
				wr.FromCache = true
				return &wr, nil
			}
		}
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var doc Doc
	if err := c.callMethod(ctx, method, args, &doc); err != nil {
		return nil, err
	}
	wr := &WriteResult{Doc: doc}
	if idempotencyKey != "" {
		if b, err := json.Marshal(wr); err == nil {
			_ = c.idem.Put(ctx, idempotencyKey, b)
		}
	}
	return wr, nil
}

func (c *Client) callMethod(ctx context.Context, method string, args Doc, out any) error {
	// call_method endpoints (spec §6.3) take the args directly as the body,
	// not wrapped in {"data": ...} like resource create/update.
	return c.do(ctx, http.MethodPost, fmt.Sprintf("/api/method/%s", method), args, false, out)
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	return c.do(ctx, http.MethodGet, path, nil, false, out)
}

func (c *Client) do(ctx context.Context, method, path string, body any, wrapAsData bool, out any) error {
	if c.breaker != nil && !c.breaker.Allow() {
		return fmt.Errorf("%w: circuit breaker open for erp", errs.ErrRateLimitedUpstream)
	}
	if err := c.doRequest(ctx, method, path, body, wrapAsData, out); err != nil {
		if c.breaker != nil && isBreakerFailure(err) {
			c.breaker.RecordFailure()
		}
		return err
	}
	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}
	return nil
}

// isBreakerFailure reports whether err represents upstream instability
// (spec §7: erp_transient, rate_limited_upstream) rather than a permanent
// 4xx the caller's request caused, which should not count against the
// breaker.
func isBreakerFailure(err error) bool {
	return errors.Is(err, errs.ErrERPTransient) || errors.Is(err, errs.ErrRateLimitedUpstream)
}

func (c *Client) doRequest(ctx context.Context, method, path string, body any, wrapAsData bool, out any) error {
	var reader *bytes.Reader
	switch {
	case body == nil:
		reader = bytes.NewReader(nil)
	case wrapAsData:
		b, err := json.Marshal(map[string]any{"data": body})
		if err != nil {
			return fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
		}
		reader = bytes.NewReader(b)
	default:
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrInternal, err)
	}
	req.Header.Set("Authorization", "token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s", errs.ErrERPTransient, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: erp rate limited", errs.ErrRateLimitedUpstream)
	}
	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: erp status %d", errs.ErrERPTransient, resp.StatusCode)
	}
	if resp.StatusCode >= 400 {
		var body struct {
			Message string `json:"message"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		msg := body.Message
		if msg == "" {
			msg = fmt.Sprintf("erp status %d", resp.StatusCode)
		}
		return fmt.Errorf("%w: %s", errs.ErrERPPermanent, msg)
	}

	if out == nil {
		return nil
	}
	var envelope struct {
		Data    json.RawMessage `json:"data"`
		Message json.RawMessage `json:"message"`
	}
	dec := json.NewDecoder(resp.Body)
	if err := dec.Decode(&envelope); err != nil {
		return fmt.Errorf("%w: decode response: %s", errs.ErrInternal, err)
	}
	payload := envelope.Data
	if len(payload) == 0 {
		payload = envelope.Message
	}
	if len(payload) == 0 {
		return nil
	}
	return json.Unmarshal(payload, out)
}
