package sensors

import (
	"fmt"
	"strings"
	"time"
)

// StateAuto releases a forced panel.
const StateAuto = "AUTO"

// ForceCommand is the remote command record.
type ForceCommand struct {
	State string `json:"forcar_estado"`
}

// EffectKind is the external side effect a command produces.
type EffectKind string

const (
	EffectNone         EffectKind = "none"
	EffectSetOverlay   EffectKind = "set_overlay"
	EffectClearOverlay EffectKind = "clear_overlay"
)

// Effect is the outcome of reconciling one command.
type Effect struct {
	Kind    EffectKind
	Overlay PanelOverlay
}

// Reconcile maps a command to at most one effect. A nil command produces EffectNone; an
// empty or AUTO state clears the overlay; a panel color sets it stamped with now.
func Reconcile(cmd *ForceCommand, now time.Time) (Effect, error) {
	if cmd == nil {
		return Effect{Kind: EffectNone}, nil
	}
	state := strings.ToUpper(strings.TrimSpace(cmd.State))
	if state == "" || state == StateAuto {
		return Effect{Kind: EffectClearOverlay}, nil
	}
	panel, ok := ParsePanel(state)
	if !ok {
		return Effect{Kind: EffectNone}, fmt.Errorf("%w: %q", ErrInvalidForceState, cmd.State)
	}
	return Effect{
		Kind:    EffectSetOverlay,
		Overlay: PanelOverlay{State: panel, At: now},
	}, nil
}
