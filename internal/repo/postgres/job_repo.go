package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"fieldseal/internal/domain/jobs"
	"fieldseal/internal/usecase"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type JobRepo struct {
	Pool *pgxpool.Pool
}

func NewJobRepo(pool *pgxpool.Pool) *JobRepo {
	return &JobRepo{Pool: pool}
}

const jobColumns = `id, reference, technician_id, assignment_id, technician_contact, status, notes,
signature_ref, confirmed, confirmed_at, sealed_at, evidence_hash, created_at, updated_at`

func (r *JobRepo) CreateJob(ctx context.Context, job jobs.Job) (jobs.Job, bool, error) {
	if r == nil || r.Pool == nil {
		return jobs.Job{}, false, fmt.Errorf("db not configured")
	}
	query := `
INSERT INTO jobs (reference, technician_id, assignment_id, technician_contact, status)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (reference) DO NOTHING
RETURNING id, created_at, updated_at`
	row := r.Pool.QueryRow(ctx, query,
		job.Reference,
		job.TechnicianID,
		nullable(job.AssignmentID),
		nullable(job.TechnicianContact),
		string(jobs.StatusAssigned),
	)
	var id string
	var createdAt, updatedAt time.Time
	err := row.Scan(&id, &createdAt, &updatedAt)
	if err == pgx.ErrNoRows {
		existing, err := r.getJobByReference(ctx, job.Reference)
		return existing, false, err
	}
	if err != nil {
		return jobs.Job{}, false, err
	}
	job.ID = id
	job.Status = jobs.StatusAssigned
	job.CreatedAt = createdAt
	job.UpdatedAt = updatedAt
	return job, true, nil
}

func (r *JobRepo) GetJob(ctx context.Context, jobID string) (jobs.Job, error) {
	if r == nil || r.Pool == nil {
		return jobs.Job{}, fmt.Errorf("db not configured")
	}
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`
	return scanJob(r.Pool.QueryRow(ctx, query, jobID))
}

func (r *JobRepo) getJobByReference(ctx context.Context, reference string) (jobs.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE reference = $1`
	return scanJob(r.Pool.QueryRow(ctx, query, reference))
}

func (r *JobRepo) ListJobs(ctx context.Context, filter usecase.JobListFilter) ([]usecase.JobListItem, string, error) {
	if r == nil || r.Pool == nil {
		return nil, "", fmt.Errorf("db not configured")
	}
	limit := normalizeLimit(filter.Limit)
	args := []any{}
	where := []string{"true"}
	if filter.Status != "" {
		args = append(args, filter.Status)
		where = append(where, fmt.Sprintf("j.status = $%d", len(args)))
	}
	if filter.TechnicianID != "" {
		args = append(args, filter.TechnicianID)
		where = append(where, fmt.Sprintf("j.technician_id = $%d", len(args)))
	}
	if filter.Cursor != "" {
		cursorTime, cursorID, err := decodeCursor(filter.Cursor)
		if err != nil {
			return nil, "", jobs.ErrInvalidArgument
		}
		args = append(args, cursorTime, cursorID)
		where = append(where, fmt.Sprintf("(j.created_at, j.id) < ($%d, $%d)", len(args)-1, len(args)))
	}
	query := fmt.Sprintf(`
SELECT j.id, j.reference, j.technician_id, j.status, j.sealed_at IS NOT NULL,
       (SELECT COUNT(*) FROM job_photos p WHERE p.job_id = j.id), j.created_at
FROM jobs j
WHERE %s
ORDER BY j.created_at DESC, j.id DESC
LIMIT %d`, strings.Join(where, " AND "), limit+1)
	rows, err := r.Pool.Query(ctx, query, args...)
	if err != nil {
		return nil, "", err
	}
	defer rows.Close()
	items := make([]usecase.JobListItem, 0, limit)
	for rows.Next() {
		var item usecase.JobListItem
		var status string
		if err := rows.Scan(
			&item.JobID,
			&item.Reference,
			&item.TechnicianID,
			&status,
			&item.Sealed,
			&item.PhotoCount,
			&item.CreatedAt,
		); err != nil {
			return nil, "", err
		}
		item.Status = jobs.JobStatus(status)
		items = append(items, item)
	}
	if rows.Err() != nil {
		return nil, "", rows.Err()
	}
	if len(items) > limit {
		last := items[limit-1]
		return items[:limit], encodeCursor(last.CreatedAt, last.JobID), nil
	}
	return items, "", nil
}

// MarkStarted is conditioned on the stored status still being assigned.
func (r *JobRepo) MarkStarted(ctx context.Context, jobID string) (jobs.Job, error) {
	if r == nil || r.Pool == nil {
		return jobs.Job{}, fmt.Errorf("db not configured")
	}
	query := `
UPDATE jobs
SET status = $2, updated_at = now()
WHERE id = $1 AND status = $3
RETURNING ` + jobColumns
	job, err := scanJob(r.Pool.QueryRow(ctx, query, jobID, string(jobs.StatusInProgress), string(jobs.StatusAssigned)))
	if err == jobs.ErrNotFound {
		return jobs.Job{}, jobs.ErrConflict
	}
	return job, err
}

// MarkSubmitted attaches the confirmation and notes together with the status
// flip, conditioned on the stored status still being in_progress.
func (r *JobRepo) MarkSubmitted(ctx context.Context, jobID string, confirmation jobs.ClientConfirmation, notes string) (jobs.Job, error) {
	if r == nil || r.Pool == nil {
		return jobs.Job{}, fmt.Errorf("db not configured")
	}
	query := `
UPDATE jobs
SET status = $2, notes = $3, signature_ref = $4, confirmed = $5, confirmed_at = $6, updated_at = now()
WHERE id = $1 AND status = $7
RETURNING ` + jobColumns
	job, err := scanJob(r.Pool.QueryRow(ctx, query,
		jobID,
		string(jobs.StatusSubmitted),
		notes,
		confirmation.SignatureRef,
		confirmation.Confirmed,
		confirmation.ConfirmedAt,
		string(jobs.StatusInProgress),
	))
	if err == jobs.ErrNotFound {
		return jobs.Job{}, jobs.ErrConflict
	}
	return job, err
}

// CommitSeal is the compare-and-set commit: it only succeeds while the stored
// status is still submitted, so a second concurrent writer is rejected.
func (r *JobRepo) CommitSeal(ctx context.Context, jobID string, record jobs.SealRecord) (jobs.Job, error) {
	if r == nil || r.Pool == nil {
		return jobs.Job{}, fmt.Errorf("db not configured")
	}
	query := `
UPDATE jobs
SET status = $2, sealed_at = $3, evidence_hash = $4, updated_at = now()
WHERE id = $1 AND status = $5
RETURNING ` + jobColumns
	job, err := scanJob(r.Pool.QueryRow(ctx, query,
		jobID,
		string(jobs.StatusSealed),
		record.SealedAt,
		record.EvidenceHash,
		string(jobs.StatusSubmitted),
	))
	if err == jobs.ErrNotFound {
		return jobs.Job{}, jobs.ErrConflict
	}
	return job, err
}

func scanJob(row pgx.Row) (jobs.Job, error) {
	var job jobs.Job
	var status string
	var assignmentID, technicianContact, signatureRef, evidenceHash *string
	var confirmed *bool
	var confirmedAt, sealedAt *time.Time
	if err := row.Scan(
		&job.ID,
		&job.Reference,
		&job.TechnicianID,
		&assignmentID,
		&technicianContact,
		&status,
		&job.Notes,
		&signatureRef,
		&confirmed,
		&confirmedAt,
		&sealedAt,
		&evidenceHash,
		&job.CreatedAt,
		&job.UpdatedAt,
	); err != nil {
		if err == pgx.ErrNoRows {
			return jobs.Job{}, jobs.ErrNotFound
		}
		return jobs.Job{}, err
	}
	job.Status = jobs.JobStatus(status)
	if assignmentID != nil {
		job.AssignmentID = *assignmentID
	}
	if technicianContact != nil {
		job.TechnicianContact = *technicianContact
	}
	if signatureRef != nil && confirmedAt != nil {
		job.Confirmation = &jobs.ClientConfirmation{
			SignatureRef: *signatureRef,
			Confirmed:    confirmed != nil && *confirmed,
			ConfirmedAt:  *confirmedAt,
		}
	}
	if sealedAt != nil && evidenceHash != nil {
		job.Seal = &jobs.SealRecord{
			SealedAt:     *sealedAt,
			EvidenceHash: *evidenceHash,
		}
	}
	return job, nil
}

func nullable(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return 50
	}
	if limit > 200 {
		return 200
	}
	return limit
}

func encodeCursor(createdAt time.Time, jobID string) string {
	return createdAt.UTC().Format(time.RFC3339Nano) + "|" + jobID
}

func decodeCursor(cursor string) (time.Time, string, error) {
	parts := strings.SplitN(cursor, "|", 2)
	if len(parts) != 2 {
		return time.Time{}, "", fmt.Errorf("invalid cursor")
	}
	parsed, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return time.Time{}, "", err
	}
	if parts[1] == "" {
		return time.Time{}, "", fmt.Errorf("invalid cursor")
	}
	return parsed, parts[1], nil
}
