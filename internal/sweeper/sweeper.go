// Package sweeper periodically scans for incidents whose party went silent
// and forces them forward, and reaps closed tickets past their retention.
package sweeper

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/Mayerch1/IncidentBot/internal/engine"
	"github.com/Mayerch1/IncidentBot/internal/storage"
	"github.com/Mayerch1/IncidentBot/internal/transport"
)

type Sweeper struct {
	repo     *storage.Repository
	eng      *engine.Engine
	msgr     transport.Messenger
	schedule string
	cron     *cron.Cron
	now      func() time.Time
}

// New creates a sweeper running on the given cron schedule spec, e.g.
// "@every 5m".
func New(repo *storage.Repository, eng *engine.Engine, msgr transport.Messenger, schedule string) *Sweeper {
	return &Sweeper{
		repo:     repo,
		eng:      eng,
		msgr:     msgr,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers and starts the cron job. The first sweep runs after one
// schedule interval, not immediately, so a restart storm cannot hammer the
// API.
func (s *Sweeper) Start(ctx context.Context) error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, func() { s.Sweep(ctx) }); err != nil {
		return err
	}
	s.cron.Start()
	slog.Info("Sweeper started", "schedule", s.schedule)
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	slog.Info("Sweeper stopped")
}

// Sweep performs one pass. Exported so tests and operators can trigger it
// directly. Every candidate is re-validated inside the engine under the
// channel lock, so an overlapping or repeated sweep is harmless.
func (s *Sweeper) Sweep(ctx context.Context) {
	now := s.now()
	timeouts := s.eng.Timeouts()

	// The query filters on the shortest idle threshold; the exact per-state
	// threshold is applied here and again inside the engine.
	idle, err := s.repo.ListIncidentsIdleBefore(now.Add(-timeouts.MinIdle()))
	if err != nil {
		slog.Error("Failed to list idle incidents", "error", err)
	}
	for _, inc := range idle {
		if now.Sub(inc.LastActivityAt) <= timeouts.Idle(inc.State) {
			continue
		}
		if !s.msgr.ChannelResolvable(inc.ChannelID) {
			slog.Warn("Skipping incident, channel not resolvable", "channel", inc.ChannelID)
			continue
		}

		slog.Info("Forcing idle incident forward", "channel", inc.ChannelID, "state", inc.State)
		if inc.State == storage.StateDiscussion {
			err = s.eng.Close(ctx, inc.ChannelID, engine.Actor{}, engine.TriggerTimeout)
		} else {
			err = s.eng.Advance(ctx, inc.ChannelID, engine.Actor{}, engine.TriggerTimeout)
		}
		if err != nil {
			slog.Error("Failed to force incident forward", "channel", inc.ChannelID, "error", err)
		}
	}

	locked, err := s.repo.ListIncidentsLockedBefore(now.Add(-timeouts.ClosedRetention))
	if err != nil {
		slog.Error("Failed to list expired incidents", "error", err)
	}
	for _, inc := range locked {
		if !s.msgr.ChannelResolvable(inc.ChannelID) {
			slog.Warn("Skipping incident, channel not resolvable", "channel", inc.ChannelID)
			continue
		}
		if err := s.eng.Delete(ctx, inc.ChannelID); err != nil {
			slog.Error("Failed to delete expired incident", "channel", inc.ChannelID, "error", err)
		}
	}
}
