package hotel

import (
	"fmt"

	"github.com/frappe/erp-coagent-gateway/internal/erp"
	"github.com/frappe/erp-coagent-gateway/internal/workflow"
	"github.com/frappe/erp-coagent-gateway/internal/workflowregistry"
)

// O2CGraphName is the graph name spec §8 scenario 5 drives end to end:
// check-in, folio creation (approval-gated), charge accrual, and invoice
// creation (approval-gated).
const O2CGraphName = "hotel/o2c"

// RegisterWorkflow binds the hotel/o2c graph factory to registry under
// O2CGraphName, closing over client so its nodes can create the Folio and
// Sales Invoice documents the graph's own transitions call for. This is
// called once at startup (cmd/gateway), after the ERP client exists: the
// graph factory closes over that constructed client, so it is bound
// explicitly here rather than from a package init().
func RegisterWorkflow(client *erp.Client) {
	workflowregistry.RegisterFactory(O2CGraphName, func() *workflow.Graph {
		return newO2CGraph(client)
	})
}

func o2cSchema() workflow.Schema {
	return workflow.Schema{
		"reservation_id": {Required: true},
		"guest_name":     {Required: true},
		"folio_id":       {Default: func() any { return "" }},
		"invoice_id":     {Default: func() any { return "" }},
		"charges":        {Default: func() any { return []any{} }, Reducer: workflow.ReducerAppend},
	}
}

func newO2CGraph(client *erp.Client) *workflow.Graph {
	return &workflow.Graph{
		Name:        O2CGraphName,
		Schema:      o2cSchema(),
		InitialNode: "check_in",
		Transitions: map[string][]string{
			"check_in": {"folio"},
			"folio":    {"charges", "cancelled"},
			"charges":  {"invoice"},
			"invoice":  {"cancelled"},
		},
		Capabilities: []string{"check_in", "folio", "billing"},
		Tags:         []string{Industry, "billing"},
		Nodes: map[string]workflow.NodeFunc{
			"check_in": checkInNode(),
			"folio":    folioNode(client),
			"charges":  chargesNode(),
			"invoice":  invoiceNode(client),
			"cancelled": func(n *workflow.NodeContext, state map[string]any) (workflow.Command, error) {
				return workflow.Command{Goto: workflow.End}, nil
			},
		},
	}
}

func checkInNode() workflow.NodeFunc {
	return func(n *workflow.NodeContext, state map[string]any) (workflow.Command, error) {
		return workflow.Command{
			Update: map[string]any{"checked_in_at": n.Now().Format("2006-01-02T15:04:05Z07:00")},
			Goto:   "folio",
		}, nil
	}
}

func folioNode(client *erp.Client) workflow.NodeFunc {
	return func(n *workflow.NodeContext, state map[string]any) (workflow.Command, error) {
		reservationID, _ := state["reservation_id"].(string)
		guestName, _ := state["guest_name"].(string)

		decision, err := n.Interrupt(map[string]any{
			"operation":      "create_folio",
			"reservation_id": reservationID,
			"guest_name":     guestName,
			"preview":        fmt.Sprintf("Open a folio for %s (reservation %s)", guestName, reservationID),
		})
		if err != nil {
			return workflow.Command{}, err
		}
		if !workflow.NormalizeDecision(decision) {
			return workflow.Command{Goto: "cancelled"}, nil
		}

		key := client.IdempotencyKey("create", "Folio/"+reservationID, nil)
		wr, err := client.Create(n.Context(), "Folio", erp.Doc{
			"reservation_id": reservationID,
			"guest_name":     guestName,
		}, key)
		if err != nil {
			return workflow.Command{}, err
		}
		folioID, _ := wr.Doc["name"].(string)
		return workflow.Command{
			Update: map[string]any{"folio_id": folioID},
			Goto:   "charges",
		}, nil
	}
}

func chargesNode() workflow.NodeFunc {
	return func(n *workflow.NodeContext, state map[string]any) (workflow.Command, error) {
		return workflow.Command{
			Update: map[string]any{"charges": []any{map[string]any{"item": "Room", "amount": 0.0}}},
			Goto:   "invoice",
		}, nil
	}
}

func invoiceNode(client *erp.Client) workflow.NodeFunc {
	return func(n *workflow.NodeContext, state map[string]any) (workflow.Command, error) {
		reservationID, _ := state["reservation_id"].(string)
		folioID, _ := state["folio_id"].(string)

		decision, err := n.Interrupt(map[string]any{
			"operation": "create_invoice",
			"folio_id":  folioID,
			"preview":   fmt.Sprintf("Create an invoice from folio %s", folioID),
		})
		if err != nil {
			return workflow.Command{}, err
		}
		if !workflow.NormalizeDecision(decision) {
			return workflow.Command{Goto: "cancelled"}, nil
		}

		key := client.IdempotencyKey("create", "Sales Invoice/"+reservationID, nil)
		wr, err := client.Create(n.Context(), "Sales Invoice", erp.Doc{
			"folio_id": folioID,
			"charges":  state["charges"],
		}, key)
		if err != nil {
			return workflow.Command{}, err
		}
		invoiceID, _ := wr.Doc["name"].(string)
		return workflow.Command{
			Update: map[string]any{"invoice_id": invoiceID},
			Goto:   workflow.End,
		}, nil
	}
}
