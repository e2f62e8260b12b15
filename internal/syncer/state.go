package syncer

import (
	"errors"
	"time"

	"github.com/retailbill/billsync/internal/upsert"
)

var (
	// ErrAlreadySyncing is returned when a run is already in flight.
	ErrAlreadySyncing = errors.New("sync already in progress")

	// ErrDeclined is returned when the confirm hook declines a sync.
	ErrDeclined = errors.New("sync declined")

	// ErrOffline is returned when a run is requested while the connectivity
	// signal reports no link.
	ErrOffline = errors.New("cannot sync: offline")
)

// State is the orchestrator's sync state.
type State int

const (
	Idle State = iota
	Syncing
	Error
	Offline
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Syncing:
		return "syncing"
	case Error:
		return "error"
	case Offline:
		return "offline"
	}
	return "unknown"
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Mode selects the steps of a run.
type Mode string

const (
	// ModeAuto pushes only before the first recorded sync, then pushes and pulls.
	ModeAuto Mode = "auto"
	ModePush Mode = "push"
	ModePull Mode = "pull"
)

// Result reports both steps of one run.
type Result struct {
	Mode Mode `json:"mode"`

	Pushed      bool  `json:"pushed"`
	PushSkipped bool  `json:"push_skipped,omitempty"`
	PushRecords int   `json:"push_records"`
	PushErr     error `json:"-"`

	Pulled      bool           `json:"pulled"`
	PullSkipped bool           `json:"pull_skipped,omitempty"`
	Imported    upsert.Summary `json:"imported"`
	PullErr     error          `json:"-"`

	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// Err joins the step errors; nil when every attempted step succeeded.
func (r Result) Err() error {
	return errors.Join(r.PushErr, r.PullErr)
}

// Status is a snapshot of the orchestrator.
type Status struct {
	State      State     `json:"state"`
	Online     bool      `json:"online"`
	LastSync   time.Time `json:"last_sync"`
	LastError  string    `json:"last_error,omitempty"`
	LastResult *Result   `json:"last_result,omitempty"`
}
