package usecase

import (
	"context"
	"errors"
	"time"

	"fieldseal/internal/domain/jobs"
)

type SealPhase string

const (
	PhaseHashing  SealPhase = "hashing"
	PhaseSigning  SealPhase = "signing"
	PhaseStoring  SealPhase = "storing"
	PhaseComplete SealPhase = "complete"
	PhaseError    SealPhase = "error"
)

// ProgressEvent is one step of a seal attempt as observed by the caller.
// Percent is monotonically increasing within one attempt.
type ProgressEvent struct {
	Phase   SealPhase        `json:"phase"`
	Percent int              `json:"percent"`
	Message string           `json:"message,omitempty"`
	Seal    *jobs.SealRecord `json:"seal,omitempty"`
}

// SealEngine drives a submitted job to sealed. The hashing/signing/storing
// phases are a presentation of one atomic gateway round trip, not
// independently retryable sub-steps; a failed attempt leaves no local or
// remote commitment and may be re-run from the top.
type SealEngine struct {
	Jobs       JobRepository
	Gateway    SealingGateway
	PhaseFloor time.Duration
	Clock      func() time.Time
}

func NewSealEngine(repo JobRepository, gateway SealingGateway, phaseFloor time.Duration) *SealEngine {
	return &SealEngine{
		Jobs:       repo,
		Gateway:    gateway,
		PhaseFloor: phaseFloor,
		Clock:      time.Now,
	}
}

// Seal runs one attempt: emit phase progress, invoke the gateway once, and on
// success commit the returned seal record with a compare-and-set against the
// submitted status. A CAS rejection means a concurrent attempt already won;
// the attempt resolves to that winner's seal rather than writing a second one.
func (e *SealEngine) Seal(ctx context.Context, jobID string, emit func(ProgressEvent)) (jobs.Job, error) {
	if emit == nil {
		emit = func(ProgressEvent) {}
	}

	emit(ProgressEvent{Phase: PhaseHashing, Percent: 10})
	if err := e.pace(ctx); err != nil {
		return jobs.Job{}, err
	}
	emit(ProgressEvent{Phase: PhaseSigning, Percent: 40})
	if err := e.pace(ctx); err != nil {
		return jobs.Job{}, err
	}
	emit(ProgressEvent{Phase: PhaseStoring, Percent: 70})

	result, err := e.Gateway.InvokeSealing(ctx, jobID)
	if err != nil {
		gatewayErr := &jobs.GatewayError{Code: "transport_error", Message: err.Error()}
		emit(ProgressEvent{Phase: PhaseError, Message: gatewayErr.Message})
		return jobs.Job{}, gatewayErr
	}
	if !result.Success {
		gatewayErr := &jobs.GatewayError{Code: result.ErrorCode, Message: result.ErrorMessage}
		if gatewayErr.Message == "" {
			gatewayErr.Message = "sealing rejected by gateway"
		}
		emit(ProgressEvent{Phase: PhaseError, Message: gatewayErr.Message})
		return jobs.Job{}, gatewayErr
	}

	record := jobs.SealRecord{
		SealedAt:     result.SealedAt,
		EvidenceHash: result.EvidenceHash,
	}
	job, err := e.Jobs.CommitSeal(ctx, jobID, record)
	if errors.Is(err, jobs.ErrConflict) {
		// Lost the commit race. The winner's record is the seal of record.
		job, err = e.Jobs.GetJob(ctx, jobID)
		if err == nil && job.Status != jobs.StatusSealed {
			err = jobs.ErrConflict
		}
	}
	if err != nil {
		emit(ProgressEvent{Phase: PhaseError, Message: "failed to commit seal record"})
		return jobs.Job{}, err
	}

	emit(ProgressEvent{Phase: PhaseComplete, Percent: 100, Seal: job.Seal})
	return job, nil
}

// pace enforces the per-phase minimum duration floor. Purely UX pacing;
// zero floor skips the wait entirely.
func (e *SealEngine) pace(ctx context.Context) error {
	if e.PhaseFloor <= 0 {
		return nil
	}
	timer := time.NewTimer(e.PhaseFloor)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
