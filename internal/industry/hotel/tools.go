// Package hotel provides the hotel industry's tool definitions and its
// check-in-to-invoice workflow graph (spec §4.2 "industry" tag, §4.7
// example graph referenced by §8 scenario 5 and §4.9's "check in this guest
// and bill them" illustration).
package hotel

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

// Industry is the tag hotel tools and the hotel/o2c graph register under.
const Industry = "hotel"

// RegisterTools adds the hotel industry's tools to registry, backed by
// client for the ERP reads the room_availability tool performs.
func RegisterTools(registry *tools.Registry, client *erp.Client) error {
	return registry.Register(roomAvailabilityDefinition(client))
}

type roomAvailabilityInput struct {
	CheckIn  string `json:"check_in"`
	CheckOut string `json:"check_out"`
	Guests   int    `json:"guests"`
}

// roomAvailabilityDefinition implements spec §8 scenario 1: a read-only
// tool searching the Room doctype for open rooms in a date
// range that fit the requested party size.
func roomAvailabilityDefinition(client *erp.Client) tools.Definition {
	return tools.Definition{
		Name:          "room_availability",
		Description:   "Find rooms available for a date range and party size.",
		Industry:      Industry,
		OperationKind: risk.OpRead,
		Schema: map[string]any{
			"type":     "object",
			"required": []string{"check_in", "check_out"},
			"properties": map[string]any{
				"check_in":  map[string]any{"type": "string"},
				"check_out": map[string]any{"type": "string"},
				"guests":    map[string]any{"type": "integer", "minimum": 1},
			},
		},
		Handler: func(ctx context.Context, raw json.RawMessage, _ *stream.Emitter) (any, error) {
			var in roomAvailabilityInput
			if err := json.Unmarshal(raw, &in); err != nil {
				return nil, fmt.Errorf("%w: %s", errs.ErrInvalidInput, err)
			}
			filters := erp.Filters{
				"status":    "Available",
				"check_in":  in.CheckIn,
				"check_out": in.CheckOut,
			}
			if in.Guests > 0 {
				filters["capacity"] = map[string]any{">=": in.Guests}
			}
			result, err := client.Search(ctx, "Room", filters, nil, 0)
			if err != nil {
				return nil, err
			}
			return map[string]any{"available_rooms": result.Rows}, nil
		},
	}
}
