package storage

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()
	repo, err := NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func testIncident(channelID string) *Incident {
	now := time.Now()
	return &Incident{
		GuildID:          "guild-1",
		ChannelID:        channelID,
		State:            StateVictimStatement,
		Title:            "incident-ticket-1",
		RaceName:         "Round 3 - Monza",
		LapCorner:        "Lap 4, T1",
		ReportedCategory: "causing a collision",
		Victim:           Driver{Name: "Hamilton", Number: 44, UserID: "user-victim"},
		Offender:         Driver{Name: "Verstappen", Number: 1, UserID: "user-offender"},
		LastActivityAt:   now,
		CleanupQueue:     []string{"msg-1", "msg-2"},
		CreatedAt:        now,
	}
}

func TestIncidentRoundTrip(t *testing.T) {
	repo := newTestRepository(t)

	locked := time.Now().Add(-time.Hour)
	inc := testIncident("chan-1")
	inc.State = StateClosed
	inc.Infringement = "abuse of track limits"
	inc.Outcome = "1st warning"
	inc.LockedAt = &locked
	inc.EvidencePosted = true
	inc.EvidenceWarned = true

	require.NoError(t, repo.PutIncident(inc))

	got, err := repo.GetIncident("chan-1")
	require.NoError(t, err)

	assert.Equal(t, inc.GuildID, got.GuildID)
	assert.Equal(t, inc.State, got.State)
	assert.Equal(t, inc.Title, got.Title)
	assert.Equal(t, inc.RaceName, got.RaceName)
	assert.Equal(t, inc.LapCorner, got.LapCorner)
	assert.Equal(t, inc.ReportedCategory, got.ReportedCategory)
	assert.Equal(t, inc.Infringement, got.Infringement)
	assert.Equal(t, inc.Outcome, got.Outcome)
	assert.Equal(t, inc.Victim, got.Victim)
	assert.Equal(t, inc.Offender, got.Offender)
	assert.Equal(t, inc.CleanupQueue, got.CleanupQueue)
	assert.True(t, got.EvidencePosted)
	assert.True(t, got.EvidenceWarned)

	// timestamps are stored with second precision
	assert.Equal(t, inc.LastActivityAt.Unix(), got.LastActivityAt.Unix())
	require.NotNil(t, got.LockedAt)
	assert.Equal(t, locked.Unix(), got.LockedAt.Unix())
}

func TestPutIncidentOverwrites(t *testing.T) {
	repo := newTestRepository(t)

	inc := testIncident("chan-1")
	require.NoError(t, repo.PutIncident(inc))

	inc.State = StateDiscussion
	inc.Outcome = "racing incident"
	inc.CleanupQueue = nil
	require.NoError(t, repo.PutIncident(inc))

	got, err := repo.GetIncident("chan-1")
	require.NoError(t, err)
	assert.Equal(t, StateDiscussion, got.State)
	assert.Equal(t, "racing incident", got.Outcome)
	assert.Empty(t, got.CleanupQueue)
}

func TestGetIncidentNotFound(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.GetIncident("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestNextIncidentNumber(t *testing.T) {
	repo := newTestRepository(t)

	for want := int64(1); want <= 3; want++ {
		n, err := repo.NextIncidentNumber("guild-1")
		require.NoError(t, err)
		assert.Equal(t, want, n)
	}

	// counters are per guild
	n, err := repo.NextIncidentNumber("guild-2")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSettingsFieldUpdates(t *testing.T) {
	repo := newTestRepository(t)

	// settings rows materialize lazily
	s, err := repo.GetSettings("guild-1")
	require.NoError(t, err)
	assert.Empty(t, s.IncidentCategoryID)

	require.NoError(t, repo.SetIncidentCategory("guild-1", "cat-1"))
	require.NoError(t, repo.SetStewardRole("guild-1", "role-1"))
	require.NoError(t, repo.SetSummaryChannel("guild-1", "sum-1"))
	require.NoError(t, repo.SetLogChannel("guild-1", "log-1"))

	s, err = repo.GetSettings("guild-1")
	require.NoError(t, err)
	assert.Equal(t, "cat-1", s.IncidentCategoryID)
	assert.Equal(t, "role-1", s.StewardRoleID)
	assert.Equal(t, "sum-1", s.SummaryChannelID)
	assert.Equal(t, "log-1", s.LogChannelID)
}

func TestListIncidentsIdleBefore(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	stale := testIncident("chan-stale")
	stale.LastActivityAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.PutIncident(stale))

	fresh := testIncident("chan-fresh")
	fresh.LastActivityAt = now
	require.NoError(t, repo.PutIncident(fresh))

	closed := testIncident("chan-closed")
	closed.State = StateClosed
	closed.LastActivityAt = now.Add(-2 * time.Hour)
	require.NoError(t, repo.PutIncident(closed))

	got, err := repo.ListIncidentsIdleBefore(now.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chan-stale", got[0].ChannelID)
}

func TestListIncidentsLockedBefore(t *testing.T) {
	repo := newTestRepository(t)
	now := time.Now()

	oldLock := now.Add(-3 * 24 * time.Hour)
	expired := testIncident("chan-expired")
	expired.State = StateClosed
	expired.LockedAt = &oldLock
	require.NoError(t, repo.PutIncident(expired))

	recentLock := now.Add(-time.Hour)
	recent := testIncident("chan-recent")
	recent.State = StateClosed
	recent.LockedAt = &recentLock
	require.NoError(t, repo.PutIncident(recent))

	open := testIncident("chan-open")
	require.NoError(t, repo.PutIncident(open))

	got, err := repo.ListIncidentsLockedBefore(now.Add(-2 * 24 * time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "chan-expired", got[0].ChannelID)
}

func TestTouchActivityAndEvidence(t *testing.T) {
	repo := newTestRepository(t)

	inc := testIncident("chan-1")
	inc.LastActivityAt = time.Now().Add(-time.Hour)
	require.NoError(t, repo.PutIncident(inc))

	bump := time.Now()
	require.NoError(t, repo.TouchActivity("chan-1", bump))
	require.NoError(t, repo.MarkEvidencePosted("chan-1"))

	got, err := repo.GetIncident("chan-1")
	require.NoError(t, err)
	assert.Equal(t, bump.Unix(), got.LastActivityAt.Unix())
	assert.True(t, got.EvidencePosted)

	// other fields stay untouched
	assert.Equal(t, inc.State, got.State)
	assert.Equal(t, inc.CleanupQueue, got.CleanupQueue)
}

func TestDeleteIncident(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.PutIncident(testIncident("chan-1")))
	require.NoError(t, repo.DeleteIncident("chan-1"))

	_, err := repo.GetIncident("chan-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteGuild(t *testing.T) {
	repo := newTestRepository(t)

	require.NoError(t, repo.SetStewardRole("guild-1", "role-1"))
	require.NoError(t, repo.PutIncident(testIncident("chan-1")))

	other := testIncident("chan-2")
	other.GuildID = "guild-2"
	require.NoError(t, repo.PutIncident(other))

	require.NoError(t, repo.DeleteGuild("guild-1"))

	_, err := repo.GetIncident("chan-1")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = repo.GetIncident("chan-2")
	assert.NoError(t, err)

	s, err := repo.GetSettings("guild-1")
	require.NoError(t, err)
	assert.Empty(t, s.StewardRoleID)
}
