package workflow

import "context"

// Notifier delivers an external notification for an escalated workflow
// (spec §4.7 step 5: "creates an external notification via a configured
// notifier").
type Notifier interface {
	Notify(ctx context.Context, threadID, message string) error
}

// LogNotifier is the default Notifier. Its Notify delivers nothing and
// writes no log entry; it only returns nil. Production deployments supply their own
// Notifier (paging system, chat webhook) wired at startup.
type LogNotifier struct{}

func (LogNotifier) Notify(ctx context.Context, threadID, message string) error {
	return nil
}

// EscalateNode builds a reusable node implementing spec §4.7 step 5: it
// notifies notifier and transitions to terminal, which must be a
// human-intervention terminal the workflow can still be resumed from.
func EscalateNode(notifier Notifier, message string, terminal string) NodeFunc {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	return func(n *NodeContext, state map[string]any) (Command, error) {
		if err := notifier.Notify(n.Context(), "", message); err != nil {
			n.Logger().Warn(n.Context(), "workflow: escalation notify failed", "error", err.Error())
		}
		return Command{Goto: terminal}, nil
	}
}
