package translation

import "time"

// State of a translation job
type State int

const (
	StateIdle State = iota
	StateSubmitted
	StateJobCreated
	StatePolling
	StateFetching
	StateDone
	StateFailed
	StateTimedOut
)

var stateNames = map[State]string{
	StateIdle:       "idle",
	StateSubmitted:  "submitted",
	StateJobCreated: "job_created",
	StatePolling:    "polling",
	StateFetching:   "fetching",
	StateDone:       "done",
	StateFailed:     "failed",
	StateTimedOut:   "timed_out",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further automatic transition happens
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed || s == StateTimedOut
}

// InFlight reports whether a job is running
func (s State) InFlight() bool {
	return s != StateIdle && !s.Terminal()
}

// Job is a snapshot of the active translation job
type Job struct {
	// ID is the local token for this submission; Key is the server-issued user key
	ID    string `json:"id"`
	Key   string `json:"key,omitempty"`
	Pair  string `json:"pair,omitempty"`
	State State  `json:"-"`
	// ServiceStatus is the last status message reported by the service
	ServiceStatus string    `json:"service_status,omitempty"`
	Text          string    `json:"text"`
	Result        string    `json:"result,omitempty"`
	Err           error     `json:"-"`
	Polls         int       `json:"polls"`
	StartedAt     time.Time `json:"started_at"`
	FinishedAt    time.Time `json:"finished_at,omitempty"`
}

// StateName is the JSON friendly state
func (j Job) StateName() string {
	return j.State.String()
}
