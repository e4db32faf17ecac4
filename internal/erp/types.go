// Package erp implements the ERP Adapter (spec §4.1, component C1): an
// authenticated REST client with client-side rate limiting and an
// idempotency cache for write operations.
package erp

import "encoding/json"

type (
	// Filters is an opaque filter document passed through to the ERP's
	// `search` endpoint as a JSON query string parameter.
	Filters map[string]any

	// Doc is a generic ERP document payload (field name -> value).
	Doc map[string]any

	// SearchResult is the response of a `search` call.
	SearchResult struct {
		Rows []Doc `json:"rows"`
	}

	// WriteResult is the response of a create/update/submit/cancel call.
	WriteResult struct {
		Doc Doc `json:"doc"`
		// FromCache is true when this result was served from the idempotency
		// cache instead of issuing a new ERP request (spec §4.1, §8).
		FromCache bool `json:"from_cache"`
	}

	// ReportResult is the response of a `run_report` call.
	ReportResult struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}

	// BulkUpdateResult aggregates the outcome of a bulk_update call (spec §4.1).
	BulkUpdateResult struct {
		SuccessCount int      `json:"success_count"`
		ErrorCount   int      `json:"error_count"`
		Results      []Doc    `json:"results"`
		Errors       []string `json:"errors"`
	}

	// MethodResult is the response of a call_method invocation.
	MethodResult struct {
		Raw json.RawMessage `json:"raw"`
	}
)
