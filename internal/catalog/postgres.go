package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"zoomarchive/internal/attendance"
	"zoomarchive/internal/zoom"
)

const schema = `
CREATE TABLE IF NOT EXISTS archive_runs (
	id          UUID PRIMARY KEY,
	trigger     TEXT NOT NULL,
	tenant      TEXT NOT NULL,
	range_from  TIMESTAMPTZ,
	range_to    TIMESTAMPTZ,
	started_at  TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	finished_at TIMESTAMPTZ,
	status      TEXT NOT NULL DEFAULT 'running',
	error       TEXT
);
CREATE TABLE IF NOT EXISTS archived_files (
	id           UUID PRIMARY KEY,
	run_id       UUID NOT NULL REFERENCES archive_runs(id),
	meeting_uuid TEXT NOT NULL,
	meeting_id   BIGINT NOT NULL,
	file_id      TEXT NOT NULL,
	file_type    TEXT,
	path         TEXT NOT NULL,
	bytes        BIGINT NOT NULL,
	deleted      BOOLEAN NOT NULL DEFAULT FALSE,
	delete_error TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (run_id, meeting_uuid, file_id)
);
CREATE TABLE IF NOT EXISTS attendance_records (
	id             UUID PRIMARY KEY,
	run_id         UUID NOT NULL REFERENCES archive_runs(id),
	meeting_uuid   TEXT NOT NULL,
	participant_id TEXT NOT NULL,
	name           TEXT NOT NULL,
	email          TEXT NOT NULL,
	minutes        INTEGER NOT NULL,
	sessions       INTEGER NOT NULL,
	guest          BOOLEAN NOT NULL,
	first_join     TIMESTAMPTZ,
	last_leave     TIMESTAMPTZ,
	UNIQUE (meeting_uuid, participant_id, email, name)
);
`

// Postgres stores the catalog through database/sql with the pgx driver.
type Postgres struct {
	db *sql.DB
}

// NewPostgres wraps an open pool.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Migrate creates the catalog tables when missing.
func (p *Postgres) Migrate(ctx context.Context) error {
	_, err := p.db.ExecContext(ctx, schema)
	return err
}

// StartRun inserts a running row.
func (p *Postgres) StartRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return errors.New("run id required")
	}
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO archive_runs (id, trigger, tenant, range_from, range_to, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, run.ID, run.Trigger, run.Tenant, nullTime(run.From), nullTime(run.To), run.StartedAt)
	return err
}

// FinishRun records the final status of a run.
func (p *Postgres) FinishRun(ctx context.Context, run Run) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE archive_runs
		SET finished_at = $2, status = $3, error = NULLIF($4, '')
		WHERE id = $1
	`, run.ID, run.FinishedAt, run.Status, run.Error)
	return err
}

// RecordFile stores a confirmed download.
func (p *Postgres) RecordFile(ctx context.Context, f File) error {
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO archived_files (id, run_id, meeting_uuid, meeting_id, file_id, file_type, path, bytes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (run_id, meeting_uuid, file_id) DO UPDATE SET
			path = EXCLUDED.path,
			bytes = EXCLUDED.bytes
	`, uuid.NewString(), f.RunID, f.MeetingUUID, f.MeetingID, f.FileID, f.FileType, f.Path, f.Bytes)
	return err
}

// RecordDeletion marks the outcome of a cloud delete.
func (p *Postgres) RecordDeletion(ctx context.Context, runID, meetingUUID, fileID string, deleteErr error) error {
	msg := ""
	if deleteErr != nil {
		msg = deleteErr.Error()
	}
	_, err := p.db.ExecContext(ctx, `
		UPDATE archived_files
		SET deleted = $4, delete_error = NULLIF($5, '')
		WHERE run_id = $1 AND meeting_uuid = $2 AND file_id = $3
	`, runID, meetingUUID, fileID, deleteErr == nil, msg)
	return err
}

// RecordAttendance upserts one row per aggregate in a single transaction.
func (p *Postgres) RecordAttendance(ctx context.Context, runID string, meeting zoom.Meeting, aggregates []attendance.Aggregate) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO attendance_records
			(id, run_id, meeting_uuid, participant_id, name, email, minutes, sessions, guest, first_join, last_leave)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (meeting_uuid, participant_id, email, name) DO UPDATE SET
			run_id = EXCLUDED.run_id,
			minutes = EXCLUDED.minutes,
			sessions = EXCLUDED.sessions,
			guest = EXCLUDED.guest,
			first_join = EXCLUDED.first_join,
			last_leave = EXCLUDED.last_leave
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, a := range aggregates {
		if _, err := stmt.ExecContext(ctx, uuid.NewString(), runID, meeting.UUID, a.ID, a.Name, a.Email,
			a.Minutes, a.Sessions, a.Guest, nullTime(a.FirstJoin), nullTime(a.LastLeave)); err != nil {
			return fmt.Errorf("insert attendance for %s: %w", a.Email, err)
		}
	}
	return tx.Commit()
}

// Healthy pings the database.
func (p *Postgres) Healthy(ctx context.Context) bool {
	if p == nil || p.db == nil {
		return false
	}
	return p.db.PingContext(ctx) == nil
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}
