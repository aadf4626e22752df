package anomaly

import (
	"github.com/kaviarasu301/imperium-exec-core/internal/journal"
	"github.com/kaviarasu301/imperium-exec-core/internal/model"
)

var playbooks = map[model.IncidentKind][]string{
	model.IncidentStuckOrder:      {"pause_strategy", "unwind_risk"},
	model.IncidentStaleTick:       {"pause_strategy", "reroute_data_feed"},
	model.IncidentDuplicateSignal: {"pause_strategy"},
	model.IncidentRunawayLoop:     {"pause_strategy", "unwind_risk", "reroute_execution"},
}

func playbookFor(kind model.IncidentKind) []string {
	out := make([]string, len(playbooks[kind]))
	copy(out, playbooks[kind])
	return out
}

// aliasFor maps a playbook action name to the caller-supplied hook name it
// is routed through.
func aliasFor(action string) string {
	switch action {
	case "pause_strategy":
		return "pause"
	case "unwind_risk":
		return "unwind"
	case "reroute_data_feed", "reroute_execution":
		return "reroute"
	default:
		return action
	}
}

// Hook is a caller-supplied remediation action, keyed by alias name
// ("pause", "unwind", "reroute").
type Hook func(incident model.Incident) error

// Responder dispatches an incident's playbook through registered hooks.
type Responder struct {
	hooks map[string]Hook
}

// NewResponder builds a Responder with no hooks registered; RegisterHook
// wires each alias.
func NewResponder() *Responder {
	return &Responder{hooks: map[string]Hook{}}
}

// RegisterHook wires a remediation action under its alias name.
func (r *Responder) RegisterHook(alias string, hook Hook) {
	r.hooks[alias] = hook
}

// Respond runs every action in the incident's playbook through its aliased
// hook, journaling the outcome of each invocation. Hook failures never
// propagate out of the detector.
func (r *Responder) Respond(incident model.Incident, j *journal.Journal) {
	for _, action := range incident.Playbook {
		alias := aliasFor(action)
		hook, ok := r.hooks[alias]
		if !ok {
			continue
		}

		err := hook(incident)
		payload := map[string]any{
			"action": action,
			"alias":  alias,
			"kind":   string(incident.Kind),
		}
		if err != nil {
			payload["status"] = "failed"
			payload["error"] = err.Error()
		} else {
			payload["status"] = "executed"
		}
		j.Append("incident_action", "respond", "", "", "", nil, payload)
	}
}
