package storage

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when the requested record does not exist.
var ErrNotFound = errors.New("record not found")

// Repository handles all database operations
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new repository with SQLite
func NewRepository(dbPath string) (*Repository, error) {
	// Ensure directory exists
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo := &Repository{db: db}

	// Run migrations
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// Close closes the database connection
func (r *Repository) Close() error {
	return r.db.Close()
}

// migrate creates the database schema
func (r *Repository) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS guild_settings (
			guild_id VARCHAR(20) PRIMARY KEY,
			incident_category_id VARCHAR(20) NOT NULL DEFAULT '',
			steward_role_id VARCHAR(20) NOT NULL DEFAULT '',
			summary_channel_id VARCHAR(20) NOT NULL DEFAULT '',
			log_channel_id VARCHAR(20) NOT NULL DEFAULT '',
			incident_counter INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL DEFAULT (strftime('%s','now'))
		)`,
		`CREATE TABLE IF NOT EXISTS incidents (
			channel_id VARCHAR(20) PRIMARY KEY,
			guild_id VARCHAR(20) NOT NULL,
			state VARCHAR(32) NOT NULL,
			title TEXT NOT NULL DEFAULT '',
			race_name TEXT NOT NULL DEFAULT '',
			lap_corner TEXT NOT NULL DEFAULT '-',
			reported_category TEXT NOT NULL DEFAULT '',
			infringement TEXT NOT NULL DEFAULT '',
			outcome TEXT NOT NULL DEFAULT '',
			victim_name TEXT NOT NULL DEFAULT '',
			victim_number INTEGER NOT NULL DEFAULT 0,
			victim_id VARCHAR(20) NOT NULL,
			offender_name TEXT NOT NULL DEFAULT '',
			offender_number INTEGER NOT NULL DEFAULT 0,
			offender_id VARCHAR(20) NOT NULL,
			last_activity_at INTEGER NOT NULL,
			locked_at INTEGER,
			cleanup_queue TEXT NOT NULL DEFAULT '[]',
			evidence_posted INTEGER NOT NULL DEFAULT 0,
			evidence_warned INTEGER NOT NULL DEFAULT 0,
			created_at INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_guild ON incidents(guild_id)`,
		`CREATE INDEX IF NOT EXISTS idx_incidents_activity ON incidents(state, last_activity_at)`,
	}

	for _, migration := range migrations {
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
	}

	return nil
}

// Guild settings operations

// GetSettings retrieves the settings for a guild, creating a default row on
// first lookup so callers always get a usable object.
func (r *Repository) GetSettings(guildID string) (*GuildSettings, error) {
	if _, err := r.db.Exec(
		`INSERT INTO guild_settings (guild_id) VALUES (?) ON CONFLICT(guild_id) DO NOTHING`,
		guildID,
	); err != nil {
		return nil, err
	}

	s := &GuildSettings{}
	var createdAt int64
	err := r.db.QueryRow(
		`SELECT guild_id, incident_category_id, steward_role_id, summary_channel_id, log_channel_id, incident_counter, created_at
		 FROM guild_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&s.GuildID, &s.IncidentCategoryID, &s.StewardRoleID, &s.SummaryChannelID, &s.LogChannelID, &s.IncidentCounter, &createdAt)
	if err != nil {
		return nil, err
	}
	s.CreatedAt = time.Unix(createdAt, 0).UTC()
	return s, nil
}

// setSettingsField upserts a single settings column. Field-level updates keep
// concurrent setup commands from clobbering each other's writes.
func (r *Repository) setSettingsField(guildID, column, value string) error {
	query := fmt.Sprintf(
		`INSERT INTO guild_settings (guild_id, %s) VALUES (?, ?)
		 ON CONFLICT(guild_id) DO UPDATE SET %s = excluded.%s`,
		column, column, column,
	)
	_, err := r.db.Exec(query, guildID, value)
	return err
}

// SetIncidentCategory sets the category channel used for incident channels
func (r *Repository) SetIncidentCategory(guildID, categoryID string) error {
	return r.setSettingsField(guildID, "incident_category_id", categoryID)
}

// SetStewardRole sets the adjudicating role
func (r *Repository) SetStewardRole(guildID, roleID string) error {
	return r.setSettingsField(guildID, "steward_role_id", roleID)
}

// SetSummaryChannel sets the channel final dispositions are published to
func (r *Repository) SetSummaryChannel(guildID, channelID string) error {
	return r.setSettingsField(guildID, "summary_channel_id", channelID)
}

// SetLogChannel sets the channel transcripts are delivered to
func (r *Repository) SetLogChannel(guildID, channelID string) error {
	return r.setSettingsField(guildID, "log_channel_id", channelID)
}

// NextIncidentNumber increments the guild's ticket counter and returns the
// new value. The increment is a single UPDATE, so two tickets created
// back-to-back can never draw the same number.
func (r *Repository) NextIncidentNumber(guildID string) (int64, error) {
	tx, err := r.db.Begin()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`INSERT INTO guild_settings (guild_id) VALUES (?) ON CONFLICT(guild_id) DO NOTHING`,
		guildID,
	); err != nil {
		return 0, err
	}

	if _, err := tx.Exec(
		`UPDATE guild_settings SET incident_counter = incident_counter + 1 WHERE guild_id = ?`,
		guildID,
	); err != nil {
		return 0, err
	}

	var counter int64
	if err := tx.QueryRow(
		`SELECT incident_counter FROM guild_settings WHERE guild_id = ?`,
		guildID,
	).Scan(&counter); err != nil {
		return 0, err
	}

	return counter, tx.Commit()
}

// DeleteGuild removes the guild's settings and all of its incidents,
// used when the bot is removed from a server.
func (r *Repository) DeleteGuild(guildID string) error {
	if _, err := r.db.Exec(`DELETE FROM incidents WHERE guild_id = ?`, guildID); err != nil {
		return err
	}
	_, err := r.db.Exec(`DELETE FROM guild_settings WHERE guild_id = ?`, guildID)
	return err
}

// Incident operations

const incidentColumns = `channel_id, guild_id, state, title, race_name, lap_corner,
	reported_category, infringement, outcome,
	victim_name, victim_number, victim_id,
	offender_name, offender_number, offender_id,
	last_activity_at, locked_at, cleanup_queue,
	evidence_posted, evidence_warned, created_at`

// PutIncident writes the full incident record as a single atomic upsert
func (r *Repository) PutIncident(inc *Incident) error {
	queue, err := json.Marshal(inc.CleanupQueue)
	if err != nil {
		return err
	}

	var lockedAt sql.NullInt64
	if inc.LockedAt != nil {
		lockedAt = sql.NullInt64{Int64: inc.LockedAt.Unix(), Valid: true}
	}

	_, err = r.db.Exec(
		`INSERT INTO incidents (`+incidentColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(channel_id) DO UPDATE SET
			state = excluded.state,
			title = excluded.title,
			race_name = excluded.race_name,
			lap_corner = excluded.lap_corner,
			reported_category = excluded.reported_category,
			infringement = excluded.infringement,
			outcome = excluded.outcome,
			victim_name = excluded.victim_name,
			victim_number = excluded.victim_number,
			offender_name = excluded.offender_name,
			offender_number = excluded.offender_number,
			last_activity_at = excluded.last_activity_at,
			locked_at = excluded.locked_at,
			cleanup_queue = excluded.cleanup_queue,
			evidence_posted = excluded.evidence_posted,
			evidence_warned = excluded.evidence_warned`,
		inc.ChannelID, inc.GuildID, string(inc.State), inc.Title, inc.RaceName, inc.LapCorner,
		inc.ReportedCategory, inc.Infringement, inc.Outcome,
		inc.Victim.Name, inc.Victim.Number, inc.Victim.UserID,
		inc.Offender.Name, inc.Offender.Number, inc.Offender.UserID,
		inc.LastActivityAt.Unix(), lockedAt, string(queue),
		inc.EvidencePosted, inc.EvidenceWarned, inc.CreatedAt.Unix(),
	)
	return err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIncident(row rowScanner) (*Incident, error) {
	inc := &Incident{}
	var (
		state          string
		lastActivityAt int64
		lockedAt       sql.NullInt64
		queue          string
		createdAt      int64
	)

	err := row.Scan(
		&inc.ChannelID, &inc.GuildID, &state, &inc.Title, &inc.RaceName, &inc.LapCorner,
		&inc.ReportedCategory, &inc.Infringement, &inc.Outcome,
		&inc.Victim.Name, &inc.Victim.Number, &inc.Victim.UserID,
		&inc.Offender.Name, &inc.Offender.Number, &inc.Offender.UserID,
		&lastActivityAt, &lockedAt, &queue,
		&inc.EvidencePosted, &inc.EvidenceWarned, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	inc.State = State(state)
	inc.LastActivityAt = time.Unix(lastActivityAt, 0).UTC()
	if lockedAt.Valid {
		t := time.Unix(lockedAt.Int64, 0).UTC()
		inc.LockedAt = &t
	}
	inc.CreatedAt = time.Unix(createdAt, 0).UTC()

	if err := json.Unmarshal([]byte(queue), &inc.CleanupQueue); err != nil {
		return nil, fmt.Errorf("corrupt cleanup queue for channel %s: %w", inc.ChannelID, err)
	}
	return inc, nil
}

// GetIncident retrieves the incident hosted in the given channel
func (r *Repository) GetIncident(channelID string) (*Incident, error) {
	row := r.db.QueryRow(
		`SELECT `+incidentColumns+` FROM incidents WHERE channel_id = ?`,
		channelID,
	)
	inc, err := scanIncident(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return inc, err
}

// DeleteIncident removes the incident record
func (r *Repository) DeleteIncident(channelID string) error {
	_, err := r.db.Exec(`DELETE FROM incidents WHERE channel_id = ?`, channelID)
	return err
}

func (r *Repository) listIncidents(query string, args ...any) ([]*Incident, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var incidents []*Incident
	for rows.Next() {
		inc, err := scanIncident(rows)
		if err != nil {
			return nil, err
		}
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}

// ListIncidentsIdleBefore returns all open incidents whose last activity is
// older than the cutoff
func (r *Repository) ListIncidentsIdleBefore(cutoff time.Time) ([]*Incident, error) {
	return r.listIncidents(
		`SELECT `+incidentColumns+` FROM incidents WHERE state != ? AND last_activity_at < ?`,
		string(StateClosed), cutoff.Unix(),
	)
}

// ListIncidentsLockedBefore returns all closed incidents locked before the cutoff
func (r *Repository) ListIncidentsLockedBefore(cutoff time.Time) ([]*Incident, error) {
	return r.listIncidents(
		`SELECT `+incidentColumns+` FROM incidents WHERE state = ? AND locked_at IS NOT NULL AND locked_at < ?`,
		string(StateClosed), cutoff.Unix(),
	)
}

// TouchActivity updates only the activity timestamp of the incident. The
// single-column UPDATE lets message handlers run without taking the
// incident's transition lock.
func (r *Repository) TouchActivity(channelID string, at time.Time) error {
	_, err := r.db.Exec(
		`UPDATE incidents SET last_activity_at = ? WHERE channel_id = ?`,
		at.Unix(), channelID,
	)
	return err
}

// MarkEvidencePosted records that the gated party wrote a message while the
// incident sits in a proof state
func (r *Repository) MarkEvidencePosted(channelID string) error {
	_, err := r.db.Exec(
		`UPDATE incidents SET evidence_posted = 1 WHERE channel_id = ?`,
		channelID,
	)
	return err
}
