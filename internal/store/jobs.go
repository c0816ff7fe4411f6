package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dangbaokhoa/identity-card/internal/common"
	"github.com/dangbaokhoa/identity-card/internal/extract"
)

// JobStatus is the canonical status for rows in extract_jobs.
type JobStatus string

// Stable values (store these exact strings in the DB).
const (
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusSucceeded JobStatus = "SUCCEEDED"
	JobStatusFailed    JobStatus = "FAILED"
)

// Job modes.
const (
	ModeVisual = "VISUAL"
	ModeQR     = "QR"
)

// $N placeholders work for both pgx and SQLite.

// StartJob inserts a RUNNING job row for one source image.
func (s *Store) StartJob(ctx context.Context, id uuid.UUID, sourcePath, mode string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO extract_jobs (id, source_path, mode, status, started_at) VALUES ($1, $2, $3, $4, $5)`,
		id.String(), sourcePath, mode, string(JobStatusRunning), now(),
	)
	if err != nil {
		return dbErr("start job", err)
	}
	return nil
}

// FinishSuccess marks the job SUCCEEDED and stores its record.
func (s *Store) FinishSuccess(ctx context.Context, id uuid.UUID, rec extract.Record) error {
	if _, err := s.db.ExecContext(ctx,
		`UPDATE extract_jobs SET status = $1, finished_at = $2 WHERE id = $3`,
		string(JobStatusSucceeded), now(), id.String(),
	); err != nil {
		return dbErr("finish job", err)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO records (job_id, fullname, date_of_birth, sex, nationality, place_of_origin, no, residence, expiry_date, old_id, issue_date)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id.String(), rec.FullName, rec.DateOfBirth, rec.Sex, rec.Nationality,
		rec.PlaceOfOrigin, rec.Number, rec.Residence, rec.ExpiryDate, rec.OldID, rec.IssueDate,
	); err != nil {
		return dbErr("store record", err)
	}
	return nil
}

// FinishFailure marks the job FAILED with the item's error message.
func (s *Store) FinishFailure(ctx context.Context, id uuid.UUID, msg string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE extract_jobs SET status = $1, error = $2, finished_at = $3 WHERE id = $4`,
		string(JobStatusFailed), msg, now(), id.String(),
	)
	if err != nil {
		return dbErr("fail job", err)
	}
	return nil
}

// RecordRow is one stored record joined with its job.
type RecordRow struct {
	JobID      uuid.UUID
	SourcePath string
	Mode       string
	Record     extract.Record
}

// ListRecords returns every stored record in job start order.
func (s *Store) ListRecords(ctx context.Context) ([]RecordRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT j.id, j.source_path, j.mode,
		        r.fullname, r.date_of_birth, r.sex, r.nationality, r.place_of_origin,
		        r.no, r.residence, r.expiry_date, r.old_id, r.issue_date
		 FROM records r
		 JOIN extract_jobs j ON j.id = r.job_id
		 ORDER BY j.started_at, j.id`)
	if err != nil {
		return nil, dbErr("list records", err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var row RecordRow
		var id string
		if err := rows.Scan(&id, &row.SourcePath, &row.Mode,
			&row.Record.FullName, &row.Record.DateOfBirth, &row.Record.Sex,
			&row.Record.Nationality, &row.Record.PlaceOfOrigin, &row.Record.Number,
			&row.Record.Residence, &row.Record.ExpiryDate, &row.Record.OldID,
			&row.Record.IssueDate,
		); err != nil {
			return nil, dbErr("scan record", err)
		}
		row.JobID, err = uuid.Parse(id)
		if err != nil {
			return nil, fmt.Errorf("parse job id: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// GetRecord fetches one stored record by its job id.
func (s *Store) GetRecord(ctx context.Context, jobID uuid.UUID) (RecordRow, error) {
	row := RecordRow{JobID: jobID}
	err := s.db.QueryRowContext(ctx,
		`SELECT j.source_path, j.mode,
		        r.fullname, r.date_of_birth, r.sex, r.nationality, r.place_of_origin,
		        r.no, r.residence, r.expiry_date, r.old_id, r.issue_date
		 FROM records r
		 JOIN extract_jobs j ON j.id = r.job_id
		 WHERE r.job_id = $1`, jobID.String(),
	).Scan(&row.SourcePath, &row.Mode,
		&row.Record.FullName, &row.Record.DateOfBirth, &row.Record.Sex,
		&row.Record.Nationality, &row.Record.PlaceOfOrigin, &row.Record.Number,
		&row.Record.Residence, &row.Record.ExpiryDate, &row.Record.OldID,
		&row.Record.IssueDate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return RecordRow{}, fmt.Errorf("record %s: %w", jobID, common.ErrNotFound)
	}
	if err != nil {
		return RecordRow{}, dbErr("get record", err)
	}
	return row, nil
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
