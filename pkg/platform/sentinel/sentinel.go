package sentinel

import "errors"

// Sentinel errors for storage facts. Stores return these (optionally
// wrapped) so services can translate them into domain errors:
//   - ErrNotFound: record does not exist
//   - ErrConflict: compare-and-swap lost against a concurrent writer
//   - ErrAlreadyExists: insert of a record that is already present
//   - ErrUnavailable: backing service temporarily unavailable
var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("version conflict")
	ErrAlreadyExists = errors.New("already exists")
	ErrUnavailable   = errors.New("unavailable")
)
