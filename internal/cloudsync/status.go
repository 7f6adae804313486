package cloudsync

import "time"

// Status is the user-visible sync state. It is not persisted.
type Status struct {
	IsSyncing bool       `json:"is_syncing"`
	LastSync  *time.Time `json:"last_sync,omitempty"`
	Error     string     `json:"error,omitempty"`
}

type phase int

const (
	phaseIdle phase = iota
	phasePulling
	phasePushing
)

func (p phase) String() string {
	switch p {
	case phasePulling:
		return "pulling"
	case phasePushing:
		return "pushing"
	default:
		return "idle"
	}
}

type trigger string

const (
	triggerInitial  trigger = "initial"
	triggerPeriodic trigger = "periodic"
	triggerDebounce trigger = "debounce"
	triggerManual   trigger = "manual"
)
