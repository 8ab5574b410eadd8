package sqlite

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/tutu-network/tutu-gym/internal/domain"
)

// ─── Training Job Repository ────────────────────────────────────────────────

const jobColumns = `id, outcome, isolation, config_json, started_at, finished_at, error, report_json`

// InsertJob records a newly started job.
func (d *DB) InsertJob(job domain.JobRecord) error {
	report, err := marshalReport(job.Report)
	if err != nil {
		return err
	}
	configJSON := job.ConfigJSON
	if configJSON == "" {
		configJSON = "{}"
	}
	_, err = d.db.Exec(
		`INSERT INTO training_jobs (`+jobColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		job.ID, job.Outcome, job.Isolation, configJSON,
		job.StartedAt.UnixMilli(), nullableMilli(job.FinishedAt),
		nullableString(job.Error), report,
	)
	return err
}

// FinishJob stores the terminal outcome of a job.
func (d *DB) FinishJob(id string, outcome domain.JobOutcome, finishedAt time.Time, errMsg string, report *domain.TrainingReport) error {
	reportJSON, err := marshalReport(report)
	if err != nil {
		return err
	}
	result, err := d.db.Exec(
		`UPDATE training_jobs SET outcome = ?, finished_at = ?, error = ?, report_json = ? WHERE id = ?`,
		outcome, finishedAt.UnixMilli(), nullableString(errMsg), reportJSON, id,
	)
	if err != nil {
		return err
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return domain.ErrJobNotFound
	}
	return nil
}

// GetJob retrieves a job by id.
func (d *DB) GetJob(id string) (*domain.JobRecord, error) {
	row := d.db.QueryRow(`SELECT `+jobColumns+` FROM training_jobs WHERE id = ?`, id)
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	return job, err
}

// ListJobs returns up to limit jobs, newest first.
func (d *DB) ListJobs(limit int) ([]domain.JobRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := d.db.Query(
		`SELECT `+jobColumns+` FROM training_jobs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []domain.JobRecord
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, *j)
	}
	return jobs, rows.Err()
}

// FailOrphanedJobs marks jobs still recorded as running as failed. Called at
// startup: a running record with no live process means the previous daemon
// died mid-job.
func (d *DB) FailOrphanedJobs(reason string) (int64, error) {
	result, err := d.db.Exec(
		`UPDATE training_jobs SET outcome = ?, finished_at = ?, error = ? WHERE outcome = ?`,
		domain.OutcomeFailed, time.Now().UnixMilli(), reason, domain.OutcomeRunning,
	)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanJob(s scanner) (*domain.JobRecord, error) {
	var (
		j          domain.JobRecord
		startedAt  int64
		finishedAt sql.NullInt64
		errMsg     sql.NullString
		reportJSON sql.NullString
	)
	err := s.Scan(&j.ID, &j.Outcome, &j.Isolation, &j.ConfigJSON,
		&startedAt, &finishedAt, &errMsg, &reportJSON)
	if err != nil {
		return nil, err
	}

	j.StartedAt = time.UnixMilli(startedAt)
	if finishedAt.Valid {
		j.FinishedAt = time.UnixMilli(finishedAt.Int64)
	}
	j.Error = errMsg.String
	if reportJSON.Valid && reportJSON.String != "" {
		var r domain.TrainingReport
		if err := json.Unmarshal([]byte(reportJSON.String), &r); err != nil {
			return nil, fmt.Errorf("decode report for job %s: %w", j.ID, err)
		}
		j.Report = &r
	}
	return &j, nil
}

func marshalReport(r *domain.TrainingReport) (sql.NullString, error) {
	if r == nil {
		return sql.NullString{}, nil
	}
	b, err := json.Marshal(r)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(b), Valid: true}, nil
}
