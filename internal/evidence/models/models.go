package models

import (
	"slices"
	"time"

	id "seriosity/pkg/domain"
)

// DocumentKind separates the two document families the score counts.
type DocumentKind string

const (
	DocumentKindIncome    DocumentKind = "income"
	DocumentKindReference DocumentKind = "reference"
)

// IsValid reports whether the kind is one the score engine understands.
func (k DocumentKind) IsValid() bool {
	return k == DocumentKindIncome || k == DocumentKindReference
}

// Document is one uploaded piece of evidence. Ref points into the media store.
type Document struct {
	ID         id.DocumentID `json:"id"`
	Kind       DocumentKind  `json:"kind"`
	Verified   bool          `json:"verified"`
	Ref        string        `json:"ref,omitempty"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// InterviewStatus mirrors the lifecycle of an interview attempt.
type InterviewStatus string

const (
	InterviewStatusInProgress InterviewStatus = "in_progress"
	InterviewStatusDone       InterviewStatus = "done"
	InterviewStatusFailed     InterviewStatus = "failed"
)

// InterviewOutcome is the snapshot of a processed interview that the score
// engine reads. A failed outcome carries no analysis and contributes nothing.
type InterviewOutcome struct {
	InterviewID id.InterviewID    `json:"interview_id"`
	Status      InterviewStatus   `json:"status"`
	Clarity     float64           `json:"clarity"`
	Consistency float64           `json:"consistency"`
	Evasive     bool              `json:"evasive"`
	Facts       map[string]string `json:"facts,omitempty"`
	CompletedAt time.Time         `json:"completed_at"`
}

// Completed reports whether the outcome may contribute interview points.
func (o *InterviewOutcome) Completed() bool {
	return o != nil && o.Status == InterviewStatusDone
}

// TenantEvidence is the per-tenant record the score is computed from.
// Version is the compare-and-swap token; zero means the record has never
// been stored.
type TenantEvidence struct {
	TenantID           id.TenantID       `json:"tenant_id"`
	IdentityVerified   bool              `json:"identity_verified"`
	IncomeDocuments    []Document        `json:"income_documents"`
	ReferenceDocuments []Document        `json:"reference_documents"`
	Interview          *InterviewOutcome `json:"interview,omitempty"`
	ProfileCreatedAt   *time.Time        `json:"profile_created_at,omitempty"`
	ProfileUpdatedAt   *time.Time        `json:"profile_updated_at,omitempty"`
	Version            int64             `json:"version"`
	UpdatedAt          time.Time         `json:"updated_at"`
}

// NewTenantEvidence returns the empty record for a tenant with no evidence.
func NewTenantEvidence(tenantID id.TenantID) *TenantEvidence {
	return &TenantEvidence{TenantID: tenantID}
}

// Clone returns a deep copy so callers can mutate without touching the
// stored value.
func (e *TenantEvidence) Clone() *TenantEvidence {
	if e == nil {
		return nil
	}
	out := *e
	out.IncomeDocuments = slices.Clone(e.IncomeDocuments)
	out.ReferenceDocuments = slices.Clone(e.ReferenceDocuments)
	if e.Interview != nil {
		iv := *e.Interview
		if e.Interview.Facts != nil {
			iv.Facts = make(map[string]string, len(e.Interview.Facts))
			for k, v := range e.Interview.Facts {
				iv.Facts[k] = v
			}
		}
		out.Interview = &iv
	}
	if e.ProfileCreatedAt != nil {
		t := *e.ProfileCreatedAt
		out.ProfileCreatedAt = &t
	}
	if e.ProfileUpdatedAt != nil {
		t := *e.ProfileUpdatedAt
		out.ProfileUpdatedAt = &t
	}
	return &out
}

// AppendDocument adds a document in upload order.
func (e *TenantEvidence) AppendDocument(doc Document) {
	switch doc.Kind {
	case DocumentKindIncome:
		e.IncomeDocuments = append(e.IncomeDocuments, doc)
	case DocumentKindReference:
		e.ReferenceDocuments = append(e.ReferenceDocuments, doc)
	}
}

// RemoveDocument deletes a document by ID and returns it, preserving the
// order of the rest.
func (e *TenantEvidence) RemoveDocument(documentID id.DocumentID) (Document, bool) {
	for _, docs := range []*[]Document{&e.IncomeDocuments, &e.ReferenceDocuments} {
		for i, doc := range *docs {
			if doc.ID == documentID {
				*docs = slices.Delete(*docs, i, i+1)
				return doc, true
			}
		}
	}
	return Document{}, false
}

// FindDocument returns a pointer into the record for in-place updates.
func (e *TenantEvidence) FindDocument(documentID id.DocumentID) *Document {
	for _, docs := range [][]Document{e.IncomeDocuments, e.ReferenceDocuments} {
		for i := range docs {
			if docs[i].ID == documentID {
				return &docs[i]
			}
		}
	}
	return nil
}

// VerifiedIncomeCount counts income documents that passed verification.
func (e *TenantEvidence) VerifiedIncomeCount() int {
	n := 0
	for _, doc := range e.IncomeDocuments {
		if doc.Verified {
			n++
		}
	}
	return n
}
