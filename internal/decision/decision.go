// Package decision normalizes the wire encoding of an approval decision
// (spec §6.1: `POST /agui/resume` body "decision: \"approve\" | \"cancel\" |
// bool") into a canonical bool, at the HTTP boundary, before it reaches
// either HITL model (spec §9 decision 1: the agent loop's pending-resolver
// table and the workflow engine's checkpoint-and-resume path both consume a
// plain bool, never the wire encoding directly).
package decision

import "strings"

// Normalize maps v onto true only for an explicit, recognized approval. Any
// other shape — a bare bool false, the string "cancel", an unrecognized
// type, or a missing field decoded as nil — normalizes to false (deny).
func Normalize(v any) bool {
	switch d := v.(type) {
	case bool:
		return d
	case string:
		switch strings.ToLower(strings.TrimSpace(d)) {
		case "approve", "approved", "true":
			return true
		default:
			return false
		}
	default:
		return false
	}
}
