package engine

import (
	"time"

	"github.com/Mayerch1/IncidentBot/internal/storage"
)

// Reaction emojis driving manual transitions.
const (
	EmojiAdvance = "⏩"
	EmojiRevert  = "⏪"
	EmojiLock    = "🔒"
	EmojiEdit    = "🔧"
)

// Timeouts holds the idle thresholds that force a stage forward when a party
// stays silent. The steward and discussion windows are deployment policy and
// come from configuration; the party-facing thresholds are fixed business
// rules.
type Timeouts struct {
	VictimStatement   time.Duration
	VictimProof       time.Duration
	OffenderStatement time.Duration
	OffenderProof     time.Duration
	StewardStatement  time.Duration
	Discussion        time.Duration

	// ClosedRetention is the delay between locking a ticket and deleting it.
	ClosedRetention time.Duration

	// Solicitation is the window a human gets to answer a text prompt before
	// the engine proceeds with defaults.
	Solicitation time.Duration
}

// DefaultTimeouts returns the stock policy
func DefaultTimeouts() Timeouts {
	return Timeouts{
		VictimStatement:   30 * time.Minute,
		VictimProof:       30 * time.Minute,
		OffenderStatement: 24 * time.Hour,
		OffenderProof:     2 * time.Hour,
		StewardStatement:  48 * time.Hour,
		Discussion:        24 * time.Hour,
		ClosedRetention:   48 * time.Hour,
		Solicitation:      5 * time.Minute,
	}
}

// Idle returns the idle threshold for a state, 0 for the terminal state.
func (t Timeouts) Idle(s storage.State) time.Duration {
	switch s {
	case storage.StateVictimStatement:
		return t.VictimStatement
	case storage.StateVictimProof:
		return t.VictimProof
	case storage.StateOffenderStatement:
		return t.OffenderStatement
	case storage.StateOffenderProof:
		return t.OffenderProof
	case storage.StateStewardStatement:
		return t.StewardStatement
	case storage.StateDiscussion:
		return t.Discussion
	}
	return 0
}

// MinIdle returns the shortest idle threshold across all open states, used as
// the sweep's candidate cutoff.
func (t Timeouts) MinIdle() time.Duration {
	min := t.VictimStatement
	for _, d := range []time.Duration{t.VictimProof, t.OffenderStatement, t.OffenderProof, t.StewardStatement, t.Discussion} {
		if d < min {
			min = d
		}
	}
	return min
}

// Actor identifies whoever triggered an operation.
type Actor struct {
	UserID    string
	IsSteward bool
}

// authorizedToAdvance checks the manual-advance actor rule for the current state.
func authorizedToAdvance(inc *storage.Incident, actor Actor) bool {
	switch inc.State {
	case storage.StateVictimStatement, storage.StateVictimProof:
		return actor.UserID == inc.Victim.UserID
	case storage.StateOffenderStatement, storage.StateOffenderProof:
		return actor.UserID == inc.Offender.UserID
	case storage.StateStewardStatement:
		return actor.IsSteward
	}
	return false
}

// writeMatrix describes which party may write in the incident channel.
// Stewards keep write access in every state.
type writeMatrix struct {
	victim   bool
	offender bool
}

func matrixFor(s storage.State) writeMatrix {
	switch s {
	case storage.StateVictimStatement, storage.StateVictimProof:
		return writeMatrix{victim: true}
	case storage.StateOffenderStatement, storage.StateOffenderProof:
		return writeMatrix{offender: true}
	case storage.StateDiscussion:
		return writeMatrix{victim: true, offender: true}
	}
	// steward statement, closed
	return writeMatrix{}
}
