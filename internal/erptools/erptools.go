// Package erptools registers the common, industry-agnostic ERP read/write
// tools (spec §6.3, §4.2) into a tools.Registry: search, get, create_doc,
// update_doc, submit_doc, cancel_doc, run_report, bulk_update_doc, and
// call_method. These are the tools every session sees regardless of its
// enabled_industries set (spec §3 invariant 2: industry == common).
package erptools

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/frappe/erp-coagent-gateway/internal/erp"
	"github.com/frappe/erp-coagent-gateway/internal/errs"
	"github.com/frappe/erp-coagent-gateway/internal/stream"
	"github.com/frappe/erp-coagent-gateway/internal/tools"
	"github.com/frappe/erp-coagent-gateway/internal/tools/risk"
)

// Register adds every common ERP tool to registry, backed by client.
func Register(registry *tools.Registry, client *erp.Client) error {
	defs := []tools.Definition{
		searchDefinition(client),
		getDefinition(client),
		createDocDefinition(client),
		updateDocDefinition(client),
		submitDocDefinition(client),
		cancelDocDefinition(client),
		runReportDefinition(client),
		bulkUpdateDocDefinition(client),
		callMethodDefinition(client),
	}
	for _, def := range defs {
		if err := registry.Register(def); err != nil {
			return fmt.Errorf("erptools: register %s: %w", def.Name, err)
		}
	}
	return nil
}

type searchInput struct {
	Doctype string         `json:"doctype"`
	Filters map[string]any `json:"filters"`
	Fields  []string       `json:"fields"`
	Limit   int            `json:"limit"`
}

func searchDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "search",
		Description:   "Search an ERP doctype with optional filters, field projection, and row limit.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpRead,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"filters": map[string]any{"type": "object"},
				"fields":  map[string]any{"type": "array", "items": map[string]any{"type": "string"}},
				"limit":   map[string]any{"type": "integer", "minimum": 0},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in searchInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			return client.Search(ctx, in.Doctype, erp.Filters(in.Filters), in.Fields, in.Limit)
		},
	}
}

type getInput struct {
	Doctype string `json:"doctype"`
	Name    string `json:"name"`
}

func getDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "get",
		Description:   "Fetch a single ERP document by doctype and name.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpRead,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype", "name"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"name":    map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in getInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			return client.Get(ctx, in.Doctype, in.Name)
		},
	}
}

type createDocInput struct {
	Doctype string         `json:"doctype"`
	Data    map[string]any `json:"data"`
}

func createDocDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "create_doc",
		Description:   "Create a new ERP document of the given doctype.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpCreate,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype", "data"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"data":    map[string]any{"type": "object"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in createDocInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			payload, _ := json.Marshal(in.Data)
			key := client.IdempotencyKey("create", in.Doctype, payload)
			return client.Create(ctx, in.Doctype, erp.Doc(in.Data), key)
		},
	}
}

type updateDocInput struct {
	Doctype string         `json:"doctype"`
	Name    string         `json:"name"`
	Data    map[string]any `json:"data"`
}

func updateDocDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "update_doc",
		Description:   "Update fields on an existing ERP document.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpUpdate,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype", "name", "data"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"name":    map[string]any{"type": "string"},
				"data":    map[string]any{"type": "object"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in updateDocInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			payload, _ := json.Marshal(in.Data)
			key := client.IdempotencyKey("update", in.Doctype+"/"+in.Name, payload)
			return client.Update(ctx, in.Doctype, in.Name, erp.Doc(in.Data), key)
		},
	}
}

type docRefInput struct {
	Doctype string `json:"doctype"`
	Name    string `json:"name"`
}

func submitDocDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "submit_doc",
		Description:   "Submit a draft ERP document, locking it from further edits.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpSubmit,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype", "name"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"name":    map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in docRefInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			key := client.IdempotencyKey("submit", in.Doctype+"/"+in.Name, nil)
			return client.Submit(ctx, in.Doctype, in.Name, key)
		},
	}
}

func cancelDocDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "cancel_doc",
		Description:   "Cancel a submitted ERP document.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpCancel,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype", "name"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"name":    map[string]any{"type": "string"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in docRefInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			key := client.IdempotencyKey("cancel", in.Doctype+"/"+in.Name, nil)
			return client.Cancel(ctx, in.Doctype, in.Name, key)
		},
	}
}

type runReportInput struct {
	ReportName string         `json:"report_name"`
	Filters    map[string]any `json:"filters"`
}

func runReportDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "run_report",
		Description:   "Run a named ERP query report with optional filters.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpRead,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"report_name"},
			"properties": map[string]any{
				"report_name": map[string]any{"type": "string"},
				"filters":     map[string]any{"type": "object"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in runReportInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			return client.RunReport(ctx, in.ReportName, erp.Filters(in.Filters))
		},
	}
}

type bulkUpdateDocInput struct {
	Doctype string           `json:"doctype"`
	Updates []map[string]any `json:"updates"`
}

func bulkUpdateDocDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "bulk_update_doc",
		Description:   "Update many ERP documents of the same doctype in one call (spec §4.1 batch limit).",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpBulk,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"doctype", "updates"},
			"properties": map[string]any{
				"doctype": map[string]any{"type": "string"},
				"updates": map[string]any{"type": "array", "items": map[string]any{"type": "object"}},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in bulkUpdateDocInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			updates := make([]erp.Doc, len(in.Updates))
			for i, u := range in.Updates {
				updates[i] = erp.Doc(u)
			}
			return client.BulkUpdate(ctx, in.Doctype, updates)
		},
	}
}

type callMethodInput struct {
	Method string         `json:"method"`
	Args   map[string]any `json:"args"`
}

func callMethodDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "call_method",
		Description:   "Invoke an arbitrary whitelisted ERP server method with named arguments.",
		Industry:      tools.CommonIndustry,
		OperationKind: risk.OpUpdate,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"method"},
			"properties": map[string]any{
				"method": map[string]any{"type": "string"},
				"args":   map[string]any{"type": "object"},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in callMethodInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			return client.CallMethod(ctx, in.Method, erp.Doc(in.Args))
		},
	}
}
