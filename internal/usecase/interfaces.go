package usecase

import (
	"context"
	"time"

	"fieldseal/internal/domain/jobs"
)

type JobRepository interface {
	CreateJob(ctx context.Context, job jobs.Job) (jobs.Job, bool, error)
	GetJob(ctx context.Context, jobID string) (jobs.Job, error)
	ListJobs(ctx context.Context, filter JobListFilter) ([]JobListItem, string, error)
	// MarkStarted flips assigned -> in_progress, conditioned on the stored
	// status still being assigned.
	MarkStarted(ctx context.Context, jobID string) (jobs.Job, error)
	// MarkSubmitted attaches the confirmation and notes and flips
	// in_progress -> submitted in one conditional write.
	MarkSubmitted(ctx context.Context, jobID string, confirmation jobs.ClientConfirmation, notes string) (jobs.Job, error)
	// CommitSeal is a compare-and-set: it only succeeds while the stored
	// status is still submitted, which is what serializes a double-seal race.
	CommitSeal(ctx context.Context, jobID string, record jobs.SealRecord) (jobs.Job, error)
}

type PhotoRepository interface {
	Add(ctx context.Context, photo jobs.Photo) (jobs.Photo, bool, error)
	ListByJob(ctx context.Context, jobID string) ([]jobs.Photo, error)
}

// SealingGateway is the opaque remote hash+sign+store operation. One call per
// seal attempt; the gateway does not retry internally.
type SealingGateway interface {
	InvokeSealing(ctx context.Context, jobID string) (SealingResult, error)
}

type SealingResult struct {
	Success      bool
	SealedAt     time.Time
	EvidenceHash string
	ErrorCode    string
	ErrorMessage string
}

type JobListFilter struct {
	Status       string
	TechnicianID string
	Limit        int
	Cursor       string
}

type JobListItem struct {
	JobID        string
	Reference    string
	TechnicianID string
	Status       jobs.JobStatus
	PhotoCount   int
	Sealed       bool
	CreatedAt    time.Time
}
