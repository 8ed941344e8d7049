package jobs

import "strings"

var legalTransitions = map[JobStatus]JobStatus{
	StatusAssigned:   StatusInProgress,
	StatusInProgress: StatusSubmitted,
	StatusSubmitted:  StatusSealed,
}

// ValidateTransition enforces the forward-only, no-skip status order.
func ValidateTransition(from, to JobStatus) error {
	if !from.Valid() || !to.Valid() {
		return ErrInvalidArgument
	}
	if from == StatusSealed {
		return ErrAlreadySealed
	}
	if legalTransitions[from] != to {
		return ErrInvalidTransition
	}
	return nil
}

// Authorize gates every transition. It never mutates state.
func Authorize(job Job, principal Principal) error {
	if !job.AuthorizedFor(principal) {
		return ErrNotAuthorized
	}
	return nil
}

// CheckStart validates the assigned -> in_progress trigger.
func CheckStart(job Job, principal Principal) error {
	if err := Authorize(job, principal); err != nil {
		return err
	}
	return ValidateTransition(job.Status, StatusInProgress)
}

// CheckSubmit validates the in_progress -> submitted trigger: at least one
// before photo, at least one after photo (case-insensitive tags), and a
// confirmed client confirmation with a non-empty signature.
func CheckSubmit(job Job, principal Principal, confirmation ClientConfirmation) error {
	if err := Authorize(job, principal); err != nil {
		return err
	}
	if err := ValidateTransition(job.Status, StatusSubmitted); err != nil {
		return err
	}
	if job.PhotoCount(CategoryBefore) == 0 {
		return &PreconditionError{Missing: "before_photo"}
	}
	if job.PhotoCount(CategoryAfter) == 0 {
		return &PreconditionError{Missing: "after_photo"}
	}
	if !confirmation.Confirmed {
		return &PreconditionError{Missing: "client_confirmation"}
	}
	if strings.TrimSpace(confirmation.SignatureRef) == "" {
		return &PreconditionError{Missing: "client_signature"}
	}
	return nil
}
