package usecase

import (
	"context"
	"strings"
	"time"

	"fieldseal/internal/domain/jobs"
)

type JobService struct {
	Jobs   JobRepository
	Photos PhotoRepository
	Engine *SealEngine
	Clock  func() time.Time
}

type CreateJobInput struct {
	Reference         string
	TechnicianID      string
	AssignmentID      string
	TechnicianContact string
}

type PhotoInput struct {
	JobID      string
	Ref        string
	Category   string
	CapturedAt time.Time
	Latitude   *float64
	Longitude  *float64
	Place      string
	Principal  jobs.Principal
}

type SubmitInput struct {
	JobID        string
	Notes        string
	Confirmation jobs.ClientConfirmation
	Principal    jobs.Principal
}

// JobView is the job as returned to callers. AlreadySealed marks the
// idempotent no-op path: the job was sealed before the call, nothing changed.
type JobView struct {
	Job           jobs.Job
	AlreadySealed bool
	Warnings      []string
}

type VerifyResult struct {
	JobID       string
	Sealed      bool
	SealedAt    time.Time
	StoredHash  string
	LocalDigest string
	Match       bool
	Warnings    []string
}

func NewJobService(repo JobRepository, photos PhotoRepository, gateway SealingGateway, phaseFloor time.Duration) *JobService {
	return &JobService{
		Jobs:   repo,
		Photos: photos,
		Engine: NewSealEngine(repo, gateway, phaseFloor),
		Clock:  time.Now,
	}
}

func (s *JobService) CreateJob(ctx context.Context, input CreateJobInput) (jobs.Job, bool, error) {
	if strings.TrimSpace(input.Reference) == "" || strings.TrimSpace(input.TechnicianID) == "" {
		return jobs.Job{}, false, jobs.ErrInvalidArgument
	}
	job := jobs.Job{
		Reference:         strings.TrimSpace(input.Reference),
		TechnicianID:      strings.TrimSpace(input.TechnicianID),
		AssignmentID:      strings.TrimSpace(input.AssignmentID),
		TechnicianContact: strings.TrimSpace(input.TechnicianContact),
		Status:            jobs.StatusAssigned,
	}
	return s.Jobs.CreateJob(ctx, job)
}

func (s *JobService) GetJob(ctx context.Context, jobID string, principal jobs.Principal) (jobs.Job, error) {
	return s.loadJob(ctx, jobID)
}

func (s *JobService) ListJobs(ctx context.Context, filter JobListFilter) ([]JobListItem, string, error) {
	return s.Jobs.ListJobs(ctx, filter)
}

// StartJob runs the assigned -> in_progress transition.
func (s *JobService) StartJob(ctx context.Context, jobID string, principal jobs.Principal) (jobs.Job, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return jobs.Job{}, err
	}
	if err := jobs.CheckStart(job, principal); err != nil {
		return jobs.Job{}, err
	}
	started, err := s.Jobs.MarkStarted(ctx, jobID)
	if err == jobs.ErrConflict {
		// Raced with another start; the stored status already moved on.
		return jobs.Job{}, jobs.ErrInvalidTransition
	}
	if err != nil {
		return jobs.Job{}, err
	}
	started.Photos = job.Photos
	return started, nil
}

// AddPhoto attaches one evidence photo while the job is in progress.
// Idempotent on (job, ref).
func (s *JobService) AddPhoto(ctx context.Context, input PhotoInput) (jobs.Photo, bool, []string, error) {
	if strings.TrimSpace(input.Ref) == "" {
		return jobs.Photo{}, false, nil, jobs.ErrInvalidArgument
	}
	job, err := s.loadJob(ctx, input.JobID)
	if err != nil {
		return jobs.Photo{}, false, nil, err
	}
	if err := jobs.Authorize(job, input.Principal); err != nil {
		return jobs.Photo{}, false, nil, err
	}
	if job.Status == jobs.StatusSealed {
		return jobs.Photo{}, false, nil, jobs.ErrAlreadySealed
	}
	if job.Status != jobs.StatusInProgress {
		return jobs.Photo{}, false, nil, jobs.ErrInvalidTransition
	}
	category, known := jobs.NormalizeCategory(input.Category)
	var warnings []string
	if !known {
		warnings = append(warnings, "unrecognized photo category: "+input.Category)
	}
	capturedAt := input.CapturedAt
	if capturedAt.IsZero() {
		capturedAt = s.now()
	}
	photo, inserted, err := s.Photos.Add(ctx, jobs.Photo{
		JobID:      job.ID,
		Ref:        strings.TrimSpace(input.Ref),
		Category:   category,
		CapturedAt: capturedAt,
		Latitude:   input.Latitude,
		Longitude:  input.Longitude,
		Place:      input.Place,
	})
	if err != nil {
		return jobs.Photo{}, false, nil, err
	}
	return photo, inserted, warnings, nil
}

// SubmitEvidence validates the submission preconditions, commits the
// in_progress -> submitted transition together with the client confirmation,
// then immediately drives the seal protocol. A job already submitted resumes
// at the protocol; a job already sealed is a no-op success.
func (s *JobService) SubmitEvidence(ctx context.Context, input SubmitInput, emit func(ProgressEvent)) (JobView, error) {
	job, err := s.loadJob(ctx, input.JobID)
	if err != nil {
		return JobView{}, err
	}
	if err := jobs.Authorize(job, input.Principal); err != nil {
		return JobView{}, err
	}

	switch job.Status {
	case jobs.StatusSealed:
		return JobView{Job: job, AlreadySealed: true}, nil
	case jobs.StatusSubmitted:
		// A prior attempt committed the submission but the seal did not
		// land; resume at the protocol without re-validating evidence.
	case jobs.StatusInProgress:
		confirmation := input.Confirmation
		if confirmation.ConfirmedAt.IsZero() {
			confirmation.ConfirmedAt = s.now()
		}
		if err := jobs.CheckSubmit(job, input.Principal, confirmation); err != nil {
			return JobView{}, err
		}
		submitted, err := s.Jobs.MarkSubmitted(ctx, job.ID, confirmation, input.Notes)
		if err == jobs.ErrConflict {
			return JobView{}, jobs.ErrInvalidTransition
		}
		if err != nil {
			return JobView{}, err
		}
		submitted.Photos = job.Photos
		job = submitted
	default:
		return JobView{}, jobs.ErrInvalidTransition
	}

	_, warnings := jobs.BuildBundle(job)
	sealed, err := s.Engine.Seal(ctx, job.ID, emit)
	if err != nil {
		return JobView{Job: job, Warnings: warnings}, err
	}
	sealed.Photos = job.Photos
	return JobView{Job: sealed, Warnings: warnings}, nil
}

// RetrySeal re-runs the full protocol for a job stuck in submitted.
func (s *JobService) RetrySeal(ctx context.Context, jobID string, principal jobs.Principal, emit func(ProgressEvent)) (JobView, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return JobView{}, err
	}
	if err := jobs.Authorize(job, principal); err != nil {
		return JobView{}, err
	}
	switch job.Status {
	case jobs.StatusSealed:
		return JobView{Job: job, AlreadySealed: true}, nil
	case jobs.StatusSubmitted:
		sealed, err := s.Engine.Seal(ctx, jobID, emit)
		if err != nil {
			return JobView{Job: job}, err
		}
		sealed.Photos = job.Photos
		return JobView{Job: sealed}, nil
	default:
		return JobView{}, jobs.ErrInvalidTransition
	}
}

// VerifySeal recomputes the evidence bundle digest from persisted state and
// compares it with the stored seal hash.
func (s *JobService) VerifySeal(ctx context.Context, jobID string) (VerifyResult, error) {
	job, err := s.loadJob(ctx, jobID)
	if err != nil {
		return VerifyResult{}, err
	}
	bundle, warnings := jobs.BuildBundle(job)
	digest, err := bundle.Digest()
	if err != nil {
		return VerifyResult{}, err
	}
	result := VerifyResult{
		JobID:       job.ID,
		LocalDigest: digest,
		Warnings:    warnings,
	}
	if job.Seal != nil {
		result.Sealed = true
		result.SealedAt = job.Seal.SealedAt
		result.StoredHash = job.Seal.EvidenceHash
		result.Match = job.Seal.EvidenceHash == digest
	}
	return result, nil
}

func (s *JobService) loadJob(ctx context.Context, jobID string) (jobs.Job, error) {
	job, err := s.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return jobs.Job{}, err
	}
	if s.Photos != nil {
		photos, err := s.Photos.ListByJob(ctx, jobID)
		if err != nil {
			return jobs.Job{}, err
		}
		job.Photos = photos
	}
	return job, nil
}

func (s *JobService) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}
