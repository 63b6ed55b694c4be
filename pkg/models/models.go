package models

import (
	"fmt"
	"strings"
	"time"
)

// Classification tags whether an item counts against storage quota
type Classification string

const (
	ClassificationFree    Classification = "free"
	ClassificationNonFree Classification = "non-free"
)

// Attributes is what the page driver can read off the currently focused
// item. Optional fields are pointers: presence, not zero value, is the
// signal the classifier keys on.
type Attributes struct {
	ID             string
	Filename       string
	SizeDescriptor *string
	QuotaExempt    bool
	DateMetadata   *time.Time
	Dimensions     string
}

// Fingerprint returns the identity used for stall detection: the id when
// the driver resolved one, otherwise a composite of the visible fields.
func (a Attributes) Fingerprint() string {
	if a.ID != "" {
		return a.ID
	}
	size := ""
	if a.SizeDescriptor != nil {
		size = *a.SizeDescriptor
	}
	date := ""
	if a.DateMetadata != nil {
		date = a.DateMetadata.UTC().Format(time.RFC3339)
	}
	return strings.Join([]string{a.Filename, size, date, a.Dimensions}, "|")
}

// LedgerEntry is one line of the scan ledger. Appended when an item is
// first observed, mutated only to flip the download/delete/correction
// flags afterwards, never removed.
type LedgerEntry struct {
	ID             string         `json:"id,omitempty"`
	Filename       string         `json:"filename,omitempty"`
	Classification Classification `json:"classification,omitempty"`
	SizeDescriptor string         `json:"size_descriptor,omitempty"`
	QuotaExempt    bool           `json:"quota_exempt,omitempty"`

	Downloaded bool   `json:"downloaded,omitempty"`
	Deleted    bool   `json:"deleted,omitempty"`
	LocalPath  string `json:"local_path,omitempty"`

	DateMetadata     *time.Time `json:"date_metadata,omitempty"`
	DateFromName     *time.Time `json:"date_from_name,omitempty"`
	CorrectionTarget *time.Time `json:"correction_target,omitempty"`
	Applied          bool       `json:"applied,omitempty"`

	SeenAt time.Time `json:"seen_at"`
}

// NewEntry builds a ledger entry from freshly extracted attributes
func NewEntry(attrs Attributes, classification Classification) LedgerEntry {
	entry := LedgerEntry{
		ID:             attrs.ID,
		Filename:       attrs.Filename,
		Classification: classification,
		QuotaExempt:    attrs.QuotaExempt,
		SeenAt:         time.Now().UTC(),
	}
	if attrs.SizeDescriptor != nil {
		entry.SizeDescriptor = *attrs.SizeDescriptor
	}
	if attrs.DateMetadata != nil {
		utc := attrs.DateMetadata.UTC()
		entry.DateMetadata = &utc
	}
	return entry
}

// HasID reports whether the entry can anchor a resume or be the target of
// an action that requires a remote identifier.
func (e LedgerEntry) HasID() bool {
	return e.ID != ""
}

// String renders a short human form for progress output
func (e LedgerEntry) String() string {
	name := e.Filename
	if name == "" {
		name = "<unnamed>"
	}
	return fmt.Sprintf("%s (%s, %s)", name, e.ID, e.Classification)
}
