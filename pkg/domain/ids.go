package domain

import (
	"strings"

	"github.com/google/uuid"

	dErrors "seriosity/pkg/domain-errors"
)

// Typed identifiers. Each wraps a UUID so a tenant ID can never be passed
// where a property ID is expected.
type (
	UserID      uuid.UUID
	TenantID    uuid.UUID
	LandlordID  uuid.UUID
	PropertyID  uuid.UUID
	InterviewID uuid.UUID
	DocumentID  uuid.UUID
)

func (id UserID) String() string { return uuid.UUID(id).String() }
func (id TenantID) String() string { return uuid.UUID(id).String() }
func (id LandlordID) String() string { return uuid.UUID(id).String() }
func (id PropertyID) String() string { return uuid.UUID(id).String() }
func (id InterviewID) String() string { return uuid.UUID(id).String() }
func (id DocumentID) String() string { return uuid.UUID(id).String() }

func (id UserID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id TenantID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id LandlordID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id PropertyID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id InterviewID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id DocumentID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func NewTenantID() TenantID { return TenantID(uuid.New()) }
func NewLandlordID() LandlordID { return LandlordID(uuid.New()) }
func NewPropertyID() PropertyID { return PropertyID(uuid.New()) }
func NewInterviewID() InterviewID { return InterviewID(uuid.New()) }
func NewDocumentID() DocumentID { return DocumentID(uuid.New()) }

func parseUUID(kind, s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" is required")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must be a valid UUID")
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" must not be nil")
	}
	return u, nil
}

func ParseUserID(s string) (UserID, error) {
	u, err := parseUUID("user id", s)
	return UserID(u), err
}

func ParseTenantID(s string) (TenantID, error) {
	u, err := parseUUID("tenant id", s)
	return TenantID(u), err
}

func ParseLandlordID(s string) (LandlordID, error) {
	u, err := parseUUID("landlord id", s)
	return LandlordID(u), err
}

func ParsePropertyID(s string) (PropertyID, error) {
	u, err := parseUUID("property id", s)
	return PropertyID(u), err
}

func ParseInterviewID(s string) (InterviewID, error) {
	u, err := parseUUID("interview id", s)
	return InterviewID(u), err
}

func ParseDocumentID(s string) (DocumentID, error) {
	u, err := parseUUID("document id", s)
	return DocumentID(u), err
}

// QuestionID names an interview question. Question IDs come from the
// question catalogue, not from storage, so they are short slugs rather
// than UUIDs.
type QuestionID string

const maxQuestionIDLength = 64

// ParseQuestionID accepts ASCII letters, digits, '-' and '_' only.
func ParseQuestionID(s string) (QuestionID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "question id is required")
	}
	if len(s) > maxQuestionIDLength {
		return "", dErrors.New(dErrors.CodeInvalidInput, "question id is too long")
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '-', c == '_':
		default:
			return "", dErrors.New(dErrors.CodeInvalidInput, "question id contains invalid characters")
		}
	}
	return QuestionID(s), nil
}

func (q QuestionID) String() string { return string(q) }

// Text marshaling keeps IDs readable inside JSON columns and payloads.

func (id UserID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id TenantID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id LandlordID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id PropertyID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id InterviewID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id DocumentID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

func (id *UserID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *TenantID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *LandlordID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *PropertyID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *InterviewID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
func (id *DocumentID) UnmarshalText(b []byte) error { return (*uuid.UUID)(id).UnmarshalText(b) }
