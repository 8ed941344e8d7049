package postgres

import (
	"context"
	"fmt"
	"time"

	"fieldseal/internal/domain/jobs"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PhotoRepo struct {
	Pool *pgxpool.Pool
}

func NewPhotoRepo(pool *pgxpool.Pool) *PhotoRepo {
	return &PhotoRepo{Pool: pool}
}

// Add is idempotent on (job_id, ref) so duplicate capture taps and retried
// uploads do not produce duplicate evidence rows.
func (r *PhotoRepo) Add(ctx context.Context, photo jobs.Photo) (jobs.Photo, bool, error) {
	if r == nil || r.Pool == nil {
		return jobs.Photo{}, false, fmt.Errorf("db not configured")
	}
	query := `
INSERT INTO job_photos (job_id, ref, category, captured_at, latitude, longitude, place)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (job_id, ref) DO NOTHING
RETURNING id`
	row := r.Pool.QueryRow(ctx, query,
		photo.JobID,
		photo.Ref,
		string(photo.Category),
		photo.CapturedAt,
		photo.Latitude,
		photo.Longitude,
		nullable(photo.Place),
	)
	var id string
	if err := row.Scan(&id); err != nil {
		if err == pgx.ErrNoRows {
			existing, err := r.getByRef(ctx, photo.JobID, photo.Ref)
			return existing, false, err
		}
		return jobs.Photo{}, false, err
	}
	photo.ID = id
	return photo, true, nil
}

func (r *PhotoRepo) ListByJob(ctx context.Context, jobID string) ([]jobs.Photo, error) {
	if r == nil || r.Pool == nil {
		return nil, fmt.Errorf("db not configured")
	}
	query := `
SELECT id, job_id, ref, category, captured_at, latitude, longitude, place
FROM job_photos
WHERE job_id = $1
ORDER BY captured_at ASC, id ASC`
	rows, err := r.Pool.Query(ctx, query, jobID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []jobs.Photo
	for rows.Next() {
		photo, err := scanPhoto(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, photo)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

func (r *PhotoRepo) getByRef(ctx context.Context, jobID, ref string) (jobs.Photo, error) {
	query := `
SELECT id, job_id, ref, category, captured_at, latitude, longitude, place
FROM job_photos
WHERE job_id = $1 AND ref = $2`
	return scanPhoto(r.Pool.QueryRow(ctx, query, jobID, ref))
}

func scanPhoto(row pgx.Row) (jobs.Photo, error) {
	var photo jobs.Photo
	var category string
	var capturedAt time.Time
	var place *string
	if err := row.Scan(
		&photo.ID,
		&photo.JobID,
		&photo.Ref,
		&category,
		&capturedAt,
		&photo.Latitude,
		&photo.Longitude,
		&place,
	); err != nil {
		if err == pgx.ErrNoRows {
			return jobs.Photo{}, jobs.ErrNotFound
		}
		return jobs.Photo{}, err
	}
	photo.Category = jobs.PhotoCategory(category)
	photo.CapturedAt = capturedAt
	if place != nil {
		photo.Place = *place
	}
	return photo, nil
}
