package storage

import "time"

// State identifies one stage of the incident lifecycle. States form a plain
// ordered list; ordering is defined by stateOrder, not by the string values.
type State string

const (
	StateVictimStatement   State = "victim_statement"
	StateVictimProof       State = "victim_proof"
	StateOffenderStatement State = "offender_statement"
	StateOffenderProof     State = "offender_proof"
	StateStewardStatement  State = "steward_statement"
	StateDiscussion        State = "discussion_phase"
	StateClosed            State = "closed_phase"
)

var stateOrder = []State{
	StateVictimStatement,
	StateVictimProof,
	StateOffenderStatement,
	StateOffenderProof,
	StateStewardStatement,
	StateDiscussion,
	StateClosed,
}

// Index returns the position of the state in forward order, -1 for unknown states.
func (s State) Index() int {
	for i, st := range stateOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// Before reports whether s comes strictly before other in forward order.
func (s State) Before(other State) bool {
	return s.Index() < other.Index()
}

// Next returns the following state in forward order.
// ok is false for the terminal state and for unknown states.
func (s State) Next() (next State, ok bool) {
	i := s.Index()
	if i < 0 || i+1 >= len(stateOrder) {
		return s, false
	}
	return stateOrder[i+1], true
}

// Prev returns the preceding state in forward order.
func (s State) Prev() (prev State, ok bool) {
	i := s.Index()
	if i <= 0 {
		return s, false
	}
	return stateOrder[i-1], true
}

// Terminal reports whether the state accepts no further forward transitions.
func (s State) Terminal() bool {
	return s == StateClosed
}

// Driver identifies one party of an incident. UserID is the Discord user id
// and is immutable once the ticket is created.
type Driver struct {
	Name   string
	Number int
	UserID string
}

// Incident is the aggregate root of one dispute ticket. ChannelID is the
// stable external key: one incident maps to exactly one channel, never reused.
type Incident struct {
	GuildID   string
	ChannelID string

	State State

	// Title is the human-readable ticket name ("incident-ticket-<n>"),
	// derived from the guild counter at creation.
	Title string

	RaceName  string
	LapCorner string // free text, "-" when unspecified

	// ReportedCategory is the classification the reporter picked during
	// intake. It is the fallback when the stewards never answer the
	// infringement solicitation.
	ReportedCategory string
	Infringement     string
	Outcome          string

	Victim   Driver
	Offender Driver

	// LastActivityAt is bumped on every text message in the incident channel
	// and reset on every transition, so timeouts always measure time since
	// the last observed progress.
	LastActivityAt time.Time

	// LockedAt is set once, on the transition into the closed state.
	LockedAt *time.Time

	// CleanupQueue holds prompt message ids to delete on the next transition.
	CleanupQueue []string

	// EvidencePosted records that the gated party wrote at least one message
	// since entering the current proof state. EvidenceWarned records that the
	// soft re-prompt was already posted. Both reset on every transition.
	EvidencePosted bool
	EvidenceWarned bool

	CreatedAt time.Time
}

// GuildSettings stores per-server configuration
type GuildSettings struct {
	GuildID            string
	IncidentCategoryID string
	StewardRoleID      string
	SummaryChannelID   string
	LogChannelID       string

	// IncidentCounter generates human-readable ticket numbers. It is
	// monotonic and never reused, even if a creation fails partway.
	IncidentCounter int64

	CreatedAt time.Time
}
