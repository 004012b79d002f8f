package domain

type ActionOutcome string

const (
	ActionEscalate     ActionOutcome = "ESCALATE"
	ActionNotifyBroker ActionOutcome = "NOTIFY_BROKER"
	ActionAutoClose    ActionOutcome = "AUTO_CLOSE"
	ActionNone         ActionOutcome = "NONE"
)

// Valid reports whether a is one of the known outcomes, NONE included.
func (a ActionOutcome) Valid() bool {
	switch a {
	case ActionEscalate, ActionNotifyBroker, ActionAutoClose, ActionNone:
		return true
	default:
		return false
	}
}

// Actionable reports whether a is a directive a dispatcher should act on.
func (a ActionOutcome) Actionable() bool {
	return a.Valid() && a != ActionNone
}
