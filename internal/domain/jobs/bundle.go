package jobs

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"
)

// EvidenceBundle is the deterministic aggregate hashed to produce a seal.
// It is computed from persisted job state only; re-assembling from the same
// evidence yields bit-identical canonical bytes, so a verifier can recompute
// the digest long after sealing. Wall-clock time never enters the bundle.
type EvidenceBundle struct {
	JobID     string          `json:"job_id"`
	Photos    []BundlePhoto   `json:"photos"`
	Notes     string          `json:"notes"`
	Signature BundleSignature `json:"signature"`
}

type BundlePhoto struct {
	Ref        string `json:"ref"`
	Category   string `json:"category"`
	CapturedAt string `json:"captured_at"`
}

type BundleSignature struct {
	Ref         string `json:"ref"`
	ConfirmedAt string `json:"confirmed_at"`
}

// BuildBundle assembles the bundle from all photos on the job regardless of
// category tag. It also reports unrecognized tags as data-quality warnings;
// flagged photos are still included.
func BuildBundle(job Job) (EvidenceBundle, []string) {
	photos := make([]Photo, len(job.Photos))
	copy(photos, job.Photos)
	sort.Slice(photos, func(i, j int) bool {
		if !photos[i].CapturedAt.Equal(photos[j].CapturedAt) {
			return photos[i].CapturedAt.Before(photos[j].CapturedAt)
		}
		return photos[i].ID < photos[j].ID
	})

	var warnings []string
	entries := make([]BundlePhoto, 0, len(photos))
	for _, photo := range photos {
		category, known := NormalizeCategory(string(photo.Category))
		if !known {
			warnings = append(warnings, "unrecognized photo category "+string(photo.Category)+" on photo "+photo.ID)
		}
		entries = append(entries, BundlePhoto{
			Ref:        photo.Ref,
			Category:   string(category),
			CapturedAt: photo.CapturedAt.UTC().Format(time.RFC3339Nano),
		})
	}

	bundle := EvidenceBundle{
		JobID:  job.ID,
		Photos: entries,
		Notes:  job.Notes,
	}
	if job.Confirmation != nil {
		bundle.Signature = BundleSignature{
			Ref:         job.Confirmation.SignatureRef,
			ConfirmedAt: job.Confirmation.ConfirmedAt.UTC().Format(time.RFC3339Nano),
		}
	}
	return bundle, warnings
}

// CanonicalJSON encodes the bundle with a fixed field order so identical
// evidence always serializes to identical bytes.
func (b EvidenceBundle) CanonicalJSON() ([]byte, error) {
	return json.Marshal(b)
}

// Digest is the sha256 hex of the canonical bundle bytes.
func (b EvidenceBundle) Digest() (string, error) {
	canonical, err := b.CanonicalJSON()
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(canonical)
	return hex.EncodeToString(sum[:]), nil
}
