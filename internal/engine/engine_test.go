package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mayerch1/IncidentBot/internal/report"
	"github.com/Mayerch1/IncidentBot/internal/storage"
	"github.com/Mayerch1/IncidentBot/internal/transport"
)

// fakeMessenger records every messaging side effect in memory.
type fakeMessenger struct {
	mu     sync.Mutex
	nextID int

	posts           []fakePost
	embeds          []fakePost
	files           []string
	deleted         []string
	reactions       map[string][]string
	writePerms      map[string]bool
	hidden          []string
	renames         map[string]string
	createdChannels []string
	deletedChannels []string
}

type fakePost struct {
	channelID string
	messageID string
	content   string
}

func newFakeMessenger() *fakeMessenger {
	return &fakeMessenger{
		reactions:  make(map[string][]string),
		writePerms: make(map[string]bool),
		renames:    make(map[string]string),
	}
}

func (f *fakeMessenger) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeMessenger) Post(ctx context.Context, channelID, content string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("msg")
	f.posts = append(f.posts, fakePost{channelID, id, content})
	return id, nil
}

func (f *fakeMessenger) PostEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("msg")
	f.embeds = append(f.embeds, fakePost{channelID, id, embed.Title})
	return id, nil
}

func (f *fakeMessenger) PostFile(ctx context.Context, channelID, filename string, content []byte, comment string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files = append(f.files, channelID+"/"+filename)
	return nil
}

func (f *fakeMessenger) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.reactions[messageID] = append(f.reactions[messageID], emoji)
	return nil
}

func (f *fakeMessenger) Delete(ctx context.Context, channelID, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, messageID)
	return nil
}

func (f *fakeMessenger) SetMemberWrite(ctx context.Context, channelID, userID string, canWrite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writePerms[channelID+"/"+userID] = canWrite
	return nil
}

func (f *fakeMessenger) SetRoleWrite(ctx context.Context, channelID, roleID string, canWrite bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writePerms[channelID+"/"+roleID] = canWrite
	return nil
}

func (f *fakeMessenger) HideChannel(ctx context.Context, channelID, roleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden = append(f.hidden, channelID+"/"+roleID)
	return nil
}

func (f *fakeMessenger) Rename(ctx context.Context, channelID, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.renames[channelID] = name
	return nil
}

func (f *fakeMessenger) CreateChannel(ctx context.Context, guildID, categoryID, name string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.id("chan")
	f.createdChannels = append(f.createdChannels, id)
	return id, nil
}

func (f *fakeMessenger) DeleteChannel(ctx context.Context, channelID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedChannels = append(f.deletedChannels, channelID)
	return nil
}

func (f *fakeMessenger) ChannelResolvable(channelID string) bool { return true }

func (f *fakeMessenger) DMChannel(ctx context.Context, userID string) (string, error) {
	return "dm-" + userID, nil
}

func (f *fakeMessenger) postsIn(channelID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, p := range f.posts {
		if p.channelID == channelID {
			out = append(out, p.content)
		}
	}
	return out
}

// fakePrompter replays scripted answers.
type fakePrompter struct {
	answers []string
	asked   []string
}

func (f *fakePrompter) next() (string, error) {
	if len(f.answers) == 0 {
		return "", transport.ErrNoAnswer
	}
	a := f.answers[0]
	f.answers = f.answers[1:]
	return a, nil
}

func (f *fakePrompter) AskText(ctx context.Context, channelID, prompt string, eligible transport.AnswerFilter, timeout time.Duration, validate transport.Validator) (string, error) {
	f.asked = append(f.asked, prompt)
	return f.next()
}

func (f *fakePrompter) AskChoice(ctx context.Context, channelID, prompt string, options []transport.Choice, eligible transport.AnswerFilter, timeout time.Duration) (string, error) {
	f.asked = append(f.asked, prompt)
	return f.next()
}

type fakeRoles struct{ stewards map[string]bool }

func (f *fakeRoles) HasRole(guildID, userID, roleID string) bool { return f.stewards[userID] }

type fakeScribe struct{ rendered int }

func (f *fakeScribe) RenderTranscript(ctx context.Context, channelID, victimID, offenderID, stewardRoleID string) (*transport.Document, error) {
	f.rendered++
	return &transport.Document{Filename: "transcript.html", Content: []byte("<html></html>")}, nil
}

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type testEnv struct {
	repo     *storage.Repository
	msgr     *fakeMessenger
	prompter *fakePrompter
	roles    *fakeRoles
	scribe   *fakeScribe
	clock    *fakeClock
	eng      *Engine
}

const (
	testGuild    = "guild-1"
	victimID     = "user-victim"
	offenderID   = "user-offender"
	stewardID    = "user-steward"
	categoryID   = "cat-1"
	stewardRole  = "role-stewards"
	summaryChan  = "chan-summary"
	logChan      = "chan-log"
)

var (
	victimActor   = Actor{UserID: victimID}
	offenderActor = Actor{UserID: offenderID}
	stewardActor  = Actor{UserID: stewardID, IsSteward: true}
)

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	repo, err := storage.NewRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })

	env := &testEnv{
		repo:     repo,
		msgr:     newFakeMessenger(),
		prompter: &fakePrompter{},
		roles:    &fakeRoles{stewards: map[string]bool{stewardID: true}},
		scribe:   &fakeScribe{},
		clock:    &fakeClock{t: time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)},
	}
	env.eng = New(Config{
		Repo:        repo,
		Messenger:   env.msgr,
		Prompter:    env.prompter,
		Roles:       env.roles,
		Renderer:    report.Embeds{},
		Transcriber: env.scribe,
		Timeouts:    DefaultTimeouts(),
		Now:         env.clock.Now,
	})
	return env
}

func (env *testEnv) configureGuild(t *testing.T) {
	t.Helper()
	require.NoError(t, env.repo.SetIncidentCategory(testGuild, categoryID))
	require.NoError(t, env.repo.SetStewardRole(testGuild, stewardRole))
	require.NoError(t, env.repo.SetSummaryChannel(testGuild, summaryChan))
	require.NoError(t, env.repo.SetLogChannel(testGuild, logChan))
}

func testIntake() Intake {
	return Intake{
		RaceName:         "Round 3 - Monza",
		LapCorner:        "Lap 4, T1",
		ReportedCategory: "causing a collision",
		Victim:           storage.Driver{Name: "Hamilton", Number: 44, UserID: victimID},
		Offender:         storage.Driver{Name: "Verstappen", Number: 1, UserID: offenderID},
	}
}

func (env *testEnv) create(t *testing.T) *storage.Incident {
	t.Helper()
	env.configureGuild(t)
	inc, err := env.eng.Create(context.Background(), testGuild, testIntake())
	require.NoError(t, err)
	return inc
}

// putState jumps the stored incident into the given state directly.
func (env *testEnv) putState(t *testing.T, inc *storage.Incident, s storage.State) *storage.Incident {
	t.Helper()
	inc.State = s
	inc.LastActivityAt = env.clock.Now()
	require.NoError(t, env.repo.PutIncident(inc))
	return inc
}

func (env *testEnv) reload(t *testing.T, channelID string) *storage.Incident {
	t.Helper()
	inc, err := env.repo.GetIncident(channelID)
	require.NoError(t, err)
	return inc
}

func TestCreateRequiresSetup(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.eng.Create(context.Background(), testGuild, testIntake())
	assert.ErrorIs(t, err, ErrMissingConfig)
	assert.Empty(t, env.msgr.createdChannels)
}

func TestCreateRejectsSelfReport(t *testing.T) {
	env := newTestEnv(t)
	env.configureGuild(t)

	intake := testIntake()
	intake.Offender.UserID = victimID

	_, err := env.eng.Create(context.Background(), testGuild, intake)
	assert.ErrorIs(t, err, ErrSameParticipant)
}

func TestCreateOpensTicket(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)

	assert.Equal(t, storage.StateVictimStatement, inc.State)
	assert.Equal(t, "incident-ticket-1", inc.Title)
	assert.NotEmpty(t, inc.CleanupQueue)

	// the channel is hidden from everyone, stewards and the victim can write
	assert.Contains(t, env.msgr.hidden, inc.ChannelID+"/"+testGuild)
	assert.True(t, env.msgr.writePerms[inc.ChannelID+"/"+stewardRole])
	assert.True(t, env.msgr.writePerms[inc.ChannelID+"/"+victimID])
	assert.False(t, env.msgr.writePerms[inc.ChannelID+"/"+offenderID])

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateVictimStatement, got.State)

	// ticket numbers are monotonic across tickets
	inc2, err := env.eng.Create(context.Background(), testGuild, testIntake())
	require.NoError(t, err)
	assert.Equal(t, "incident-ticket-2", inc2.Title)
}

func TestManualAdvanceAuthorization(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	ctx := context.Background()

	err := env.eng.Advance(ctx, inc.ChannelID, offenderActor, TriggerManual)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.Equal(t, storage.StateVictimStatement, env.reload(t, inc.ChannelID).State)

	require.NoError(t, env.eng.Advance(ctx, inc.ChannelID, victimActor, TriggerManual))
	assert.Equal(t, storage.StateVictimProof, env.reload(t, inc.ChannelID).State)
}

func TestAdvanceDrainsCleanupQueue(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	queued := inc.CleanupQueue
	require.NotEmpty(t, queued)

	require.NoError(t, env.eng.Advance(context.Background(), inc.ChannelID, victimActor, TriggerManual))

	for _, id := range queued {
		assert.Contains(t, env.msgr.deleted, id)
	}

	got := env.reload(t, inc.ChannelID)
	assert.NotEmpty(t, got.CleanupQueue)
	assert.NotEqual(t, queued, got.CleanupQueue)
}

func TestEvidenceGate(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	ctx := context.Background()

	require.NoError(t, env.eng.Advance(ctx, inc.ChannelID, victimActor, TriggerManual))

	// first attempt without evidence posts a warning and refuses
	err := env.eng.Advance(ctx, inc.ChannelID, victimActor, TriggerManual)
	assert.ErrorIs(t, err, ErrEvidenceMissing)

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateVictimProof, got.State)
	assert.True(t, got.EvidenceWarned)

	warnCount := func() int {
		n := 0
		for _, p := range env.msgr.postsIn(inc.ChannelID) {
			if strings.Contains(p, "No proof was posted yet") {
				n++
			}
		}
		return n
	}
	assert.Equal(t, 1, warnCount())

	// a second attempt refuses again but does not repeat the warning
	err = env.eng.Advance(ctx, inc.ChannelID, victimActor, TriggerManual)
	assert.ErrorIs(t, err, ErrEvidenceMissing)
	assert.Equal(t, 1, warnCount())

	// any message by the gated party satisfies the gate
	require.NoError(t, env.eng.NoteMessage(inc.ChannelID, victimID))
	require.NoError(t, env.eng.Advance(ctx, inc.ChannelID, victimActor, TriggerManual))

	got = env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateOffenderStatement, got.State)
	assert.False(t, got.EvidencePosted)
	assert.False(t, got.EvidenceWarned)
}

func TestEvidenceGateIgnoresOtherAuthors(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)

	env.putState(t, inc, storage.StateVictimProof)
	require.NoError(t, env.eng.NoteMessage(inc.ChannelID, offenderID))

	got := env.reload(t, inc.ChannelID)
	assert.False(t, got.EvidencePosted)
}

func TestTimeoutAdvanceSkipsEvidenceGate(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateVictimProof)

	env.clock.Advance(31 * time.Minute)
	require.NoError(t, env.eng.Advance(context.Background(), inc.ChannelID, Actor{}, TriggerTimeout))
	assert.Equal(t, storage.StateOffenderStatement, env.reload(t, inc.ChannelID).State)
}

func TestTimeoutAdvanceIdempotent(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	ctx := context.Background()

	env.clock.Advance(31 * time.Minute)
	require.NoError(t, env.eng.Advance(ctx, inc.ChannelID, Actor{}, TriggerTimeout))
	assert.Equal(t, storage.StateVictimProof, env.reload(t, inc.ChannelID).State)

	// a second sweep right after must not advance again
	require.NoError(t, env.eng.Advance(ctx, inc.ChannelID, Actor{}, TriggerTimeout))
	assert.Equal(t, storage.StateVictimProof, env.reload(t, inc.ChannelID).State)
}

func TestStewardVerdictSolicitation(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateStewardStatement)

	env.prompter.answers = []string{"abuse of track limits", "1st warning"}

	require.NoError(t, env.eng.Advance(context.Background(), inc.ChannelID, stewardActor, TriggerManual))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateDiscussion, got.State)
	assert.Equal(t, "abuse of track limits", got.Infringement)
	assert.Equal(t, "1st warning", got.Outcome)
}

func TestStewardVerdictFallback(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateStewardStatement)

	// no answers scripted, both solicitations run into ErrNoAnswer
	env.clock.Advance(49 * time.Hour)
	require.NoError(t, env.eng.Advance(context.Background(), inc.ChannelID, Actor{}, TriggerTimeout))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateDiscussion, got.State)
	assert.Equal(t, "causing a collision", got.Infringement)
	assert.Equal(t, "no action recorded", got.Outcome)
}

func TestCloseRequiresSteward(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateDiscussion)

	err := env.eng.Close(context.Background(), inc.ChannelID, victimActor, TriggerManual)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestCloseOnlyFromDiscussion(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)

	err := env.eng.Close(context.Background(), inc.ChannelID, stewardActor, TriggerManual)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestCloseFlow(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateDiscussion)

	require.NoError(t, env.eng.Close(context.Background(), inc.ChannelID, stewardActor, TriggerManual))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateClosed, got.State)
	require.NotNil(t, got.LockedAt)
	assert.Equal(t, env.clock.Now().Unix(), got.LockedAt.Unix())

	// summary published once, transcript archived, channel flagged
	summaries := 0
	for _, e := range env.msgr.embeds {
		if e.channelID == summaryChan {
			summaries++
		}
	}
	assert.Equal(t, 1, summaries)
	assert.Equal(t, 1, env.scribe.rendered)
	assert.Equal(t, []string{logChan + "/transcript.html"}, env.msgr.files)
	assert.Equal(t, "closed-"+inc.Title, env.msgr.renames[inc.ChannelID])

	// parties lose write access
	assert.False(t, env.msgr.writePerms[inc.ChannelID+"/"+victimID])
	assert.False(t, env.msgr.writePerms[inc.ChannelID+"/"+offenderID])
}

func TestCloseTimeoutRechecksIdle(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateDiscussion)

	// not idle long enough
	require.NoError(t, env.eng.Close(context.Background(), inc.ChannelID, Actor{}, TriggerTimeout))
	assert.Equal(t, storage.StateDiscussion, env.reload(t, inc.ChannelID).State)

	env.clock.Advance(25 * time.Hour)
	require.NoError(t, env.eng.Close(context.Background(), inc.ChannelID, Actor{}, TriggerTimeout))
	assert.Equal(t, storage.StateClosed, env.reload(t, inc.ChannelID).State)
}

func TestCancelByVictim(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	ctx := context.Background()

	require.NoError(t, env.eng.Cancel(ctx, inc.ChannelID, victimActor))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateClosed, got.State)
	assert.NotNil(t, got.LockedAt)
	assert.Equal(t, "cancelled-"+inc.Title, env.msgr.renames[inc.ChannelID])

	// no summary, no transcript for cancelled tickets
	assert.Empty(t, env.msgr.files)
	assert.Equal(t, 0, env.scribe.rendered)
}

func TestCancelByVictimTooLate(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateOffenderStatement)

	err := env.eng.Cancel(context.Background(), inc.ChannelID, victimActor)
	assert.ErrorIs(t, err, ErrUnauthorized)

	// stewards may still cancel
	require.NoError(t, env.eng.Cancel(context.Background(), inc.ChannelID, stewardActor))
	assert.Equal(t, storage.StateClosed, env.reload(t, inc.ChannelID).State)
}

func TestCancelClosedTicket(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateClosed)

	err := env.eng.Cancel(context.Background(), inc.ChannelID, stewardActor)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestRevertRequiresSteward(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateOffenderStatement)

	err := env.eng.Revert(context.Background(), inc.ChannelID, victimActor)
	assert.ErrorIs(t, err, ErrUnauthorized)
}

func TestRevertInitialStageRefused(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)

	err := env.eng.Revert(context.Background(), inc.ChannelID, stewardActor)
	assert.ErrorIs(t, err, ErrRevertRefused)
	assert.Equal(t, storage.StateVictimStatement, env.reload(t, inc.ChannelID).State)

	// the refusal is explained in the incident channel and queued for cleanup
	explained := ""
	for _, p := range env.msgr.postsIn(inc.ChannelID) {
		if strings.Contains(p, "Cancel the ticket instead") {
			explained = p
		}
	}
	assert.NotEmpty(t, explained)
	assert.Greater(t, len(env.reload(t, inc.ChannelID).CleanupQueue), len(inc.CleanupQueue))
}

func TestRevertStepsBack(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateOffenderStatement)

	require.NoError(t, env.eng.Revert(context.Background(), inc.ChannelID, stewardActor))
	assert.Equal(t, storage.StateVictimProof, env.reload(t, inc.ChannelID).State)

	// permissions follow the new state
	assert.True(t, env.msgr.writePerms[inc.ChannelID+"/"+victimID])
	assert.False(t, env.msgr.writePerms[inc.ChannelID+"/"+offenderID])
}

func TestRevertKeepsVerdict(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	inc.Infringement = "blocking"
	inc.Outcome = "1st warning"
	env.putState(t, inc, storage.StateDiscussion)

	require.NoError(t, env.eng.Revert(context.Background(), inc.ChannelID, stewardActor))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateStewardStatement, got.State)
	assert.Equal(t, "blocking", got.Infringement)
	assert.Equal(t, "1st warning", got.Outcome)
}

func TestReopenClosedTicket(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateDiscussion)
	require.NoError(t, env.eng.Close(context.Background(), inc.ChannelID, stewardActor, TriggerManual))

	require.NoError(t, env.eng.Revert(context.Background(), inc.ChannelID, stewardActor))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, storage.StateDiscussion, got.State)
	assert.Nil(t, got.LockedAt)
	assert.Equal(t, inc.Title, env.msgr.renames[inc.ChannelID])

	// both parties can respond again
	assert.True(t, env.msgr.writePerms[inc.ChannelID+"/"+victimID])
	assert.True(t, env.msgr.writePerms[inc.ChannelID+"/"+offenderID])
}

func TestDeleteAfterRetention(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	env.putState(t, inc, storage.StateDiscussion)
	require.NoError(t, env.eng.Close(context.Background(), inc.ChannelID, stewardActor, TriggerManual))

	// retention not elapsed, nothing happens
	require.NoError(t, env.eng.Delete(context.Background(), inc.ChannelID))
	assert.Empty(t, env.msgr.deletedChannels)

	env.clock.Advance(49 * time.Hour)
	require.NoError(t, env.eng.Delete(context.Background(), inc.ChannelID))

	_, err := env.repo.GetIncident(inc.ChannelID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Equal(t, []string{inc.ChannelID}, env.msgr.deletedChannels)

	// repeated delete is a no-op
	require.NoError(t, env.eng.Delete(context.Background(), inc.ChannelID))
}

func TestDeleteIgnoresOpenIncidents(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)

	env.clock.Advance(100 * time.Hour)
	require.NoError(t, env.eng.Delete(context.Background(), inc.ChannelID))

	_, err := env.repo.GetIncident(inc.ChannelID)
	assert.NoError(t, err)
}

func TestEditOutcome(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	inc.Infringement = "blocking"
	inc.Outcome = "1st warning"
	env.putState(t, inc, storage.StateDiscussion)

	env.prompter.answers = []string{"-", "2nd warning"}

	require.NoError(t, env.eng.EditOutcome(context.Background(), inc.ChannelID, stewardActor))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, "blocking", got.Infringement)
	assert.Equal(t, "2nd warning", got.Outcome)
}

func TestEditOutcomeNoChange(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)
	inc.Infringement = "blocking"
	inc.Outcome = "1st warning"
	env.putState(t, inc, storage.StateDiscussion)

	env.prompter.answers = []string{"-", "-"}

	require.NoError(t, env.eng.EditOutcome(context.Background(), inc.ChannelID, stewardActor))

	got := env.reload(t, inc.ChannelID)
	assert.Equal(t, "blocking", got.Infringement)
	assert.Equal(t, "1st warning", got.Outcome)
}

func TestEditOutcomeOnlyInDiscussion(t *testing.T) {
	env := newTestEnv(t)
	inc := env.create(t)

	err := env.eng.EditOutcome(context.Background(), inc.ChannelID, stewardActor)
	assert.ErrorIs(t, err, ErrInvalidStage)
}

func TestNoteMessageUnknownChannel(t *testing.T) {
	env := newTestEnv(t)

	assert.NoError(t, env.eng.NoteMessage("not-a-ticket", victimID))
}
