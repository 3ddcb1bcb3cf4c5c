package state

type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusDone      JobStatus = "done"
	StatusFailed    JobStatus = "failed"
	StatusCancelled JobStatus = "cancelled"
)

func (s JobStatus) String() string {
	return string(s)
}

// Terminal reports whether a job in this status will never change again.
func (s JobStatus) Terminal() bool {
	return s == StatusDone || s == StatusFailed || s == StatusCancelled
}

var AllStatuses = []JobStatus{
	StatusPending,
	StatusRunning,
	StatusDone,
	StatusFailed,
	StatusCancelled,
}

type Transition struct {
	From JobStatus
	To   JobStatus
}

// ValidTransitions is the full set of legal status changes. A job moves
// strictly forward: pending to running to done or failed, or pending
// straight to cancelled.
var ValidTransitions = []Transition{
	{From: StatusPending, To: StatusRunning},
	{From: StatusRunning, To: StatusDone},
	{From: StatusRunning, To: StatusFailed},
	{From: StatusPending, To: StatusCancelled},
}

func IsValidTransition(from, to JobStatus) bool {
	for _, t := range ValidTransitions {
		if t.From == from && t.To == to {
			return true
		}
	}
	return false
}
