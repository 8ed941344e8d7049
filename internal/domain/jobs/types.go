package jobs

import (
	"errors"
	"strings"
	"time"
)

// JobStatus is the closed state-machine vocabulary. UI copy lives in
// DisplayLabel, never here.
type JobStatus string

const (
	StatusAssigned   JobStatus = "assigned"
	StatusInProgress JobStatus = "in_progress"
	StatusSubmitted  JobStatus = "submitted"
	StatusSealed     JobStatus = "sealed"
)

type PhotoCategory string

const (
	CategoryBefore PhotoCategory = "before"
	CategoryDuring PhotoCategory = "during"
	CategoryAfter  PhotoCategory = "after"
)

type Principal struct {
	Subject string
	Contact string
	Scopes  []string
	Roles   []string
}

type Authorizer interface {
	Require(principal Principal, permission string) error
}

type Job struct {
	ID                string
	Reference         string
	TechnicianID      string
	AssignmentID      string
	TechnicianContact string
	Status            JobStatus
	Notes             string
	Photos            []Photo
	Confirmation      *ClientConfirmation
	Seal              *SealRecord
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

type Photo struct {
	ID         string
	JobID      string
	Ref        string
	Category   PhotoCategory
	CapturedAt time.Time
	Latitude   *float64
	Longitude  *float64
	Place      string
}

type ClientConfirmation struct {
	SignatureRef string
	Confirmed    bool
	ConfirmedAt  time.Time
}

type SealRecord struct {
	SealedAt     time.Time
	EvidenceHash string
}

var (
	ErrNotAuthorized      = errors.New("not authorized")
	ErrPreconditionNotMet = errors.New("precondition not met")
	ErrInvalidTransition  = errors.New("invalid transition")
	ErrAlreadySealed      = errors.New("already sealed")
	ErrNotFound           = errors.New("not found")
	ErrConflict           = errors.New("conflict")
	ErrInvalidArgument    = errors.New("invalid argument")
)

// PreconditionError names the submission precondition that failed so the UI
// can tell the technician what to remediate.
type PreconditionError struct {
	Missing string
}

func (e *PreconditionError) Error() string {
	if e == nil {
		return ""
	}
	return "precondition not met: " + e.Missing
}

func (e *PreconditionError) Unwrap() error {
	return ErrPreconditionNotMet
}

// GatewayError marks a failed seal attempt. The job stays submitted and the
// attempt may be re-run from the top.
type GatewayError struct {
	Code    string
	Message string
}

func (e *GatewayError) Error() string {
	if e == nil {
		return ""
	}
	if e.Message == "" {
		return "sealing gateway failure: " + e.Code
	}
	return "sealing gateway failure: " + e.Message
}

var statusRank = map[JobStatus]int{
	StatusAssigned:   0,
	StatusInProgress: 1,
	StatusSubmitted:  2,
	StatusSealed:     3,
}

func (s JobStatus) Valid() bool {
	_, ok := statusRank[s]
	return ok
}

// Rank gives the monotonic position of a status; public operations may only
// move a job to a higher rank, one step at a time.
func (s JobStatus) Rank() int {
	rank, ok := statusRank[s]
	if !ok {
		return -1
	}
	return rank
}

func (s JobStatus) DisplayLabel() string {
	switch s {
	case StatusAssigned:
		return "Assigned"
	case StatusInProgress:
		return "In Progress"
	case StatusSubmitted:
		return "Submitted"
	case StatusSealed:
		return "Sealed"
	default:
		return string(s)
	}
}

// NormalizeCategory lowercases the tag at ingestion. Unrecognized tags are
// kept as-is and reported so callers can flag the data-quality issue; they
// are never excluded from the bundle.
func NormalizeCategory(raw string) (PhotoCategory, bool) {
	normalized := PhotoCategory(strings.ToLower(strings.TrimSpace(raw)))
	switch normalized {
	case CategoryBefore, CategoryDuring, CategoryAfter:
		return normalized, true
	default:
		return normalized, false
	}
}

// AuthorizedFor reports whether the acting identity owns the job: technician
// identity, assignment identity, or registered contact, any one match.
func (j Job) AuthorizedFor(principal Principal) bool {
	for _, candidate := range []string{principal.Subject, principal.Contact} {
		if candidate == "" {
			continue
		}
		if candidate == j.TechnicianID || candidate == j.AssignmentID || candidate == j.TechnicianContact {
			return true
		}
	}
	return false
}

func (j Job) PhotoCount(category PhotoCategory) int {
	count := 0
	for _, photo := range j.Photos {
		if normalized, _ := NormalizeCategory(string(photo.Category)); normalized == category {
			count++
		}
	}
	return count
}
