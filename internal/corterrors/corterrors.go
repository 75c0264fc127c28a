// Package corterrors defines the error taxonomy shared by the storage
// engine, retrieval engine, and tool dispatcher (spec.md §7).
package corterrors

import "errors"

// Sentinel errors forming the taxonomy. Every non-transport failure returned
// by the core is, or wraps, one of these. Callers should compare with
// errors.Is rather than string matching.
var (
	// ErrInvalid marks malformed input, schema violations, or out-of-range
	// values. Caller-fixable.
	ErrInvalid = errors.New("invalid input")

	// ErrNotFound marks a referenced id (memory, session, activity, link
	// endpoint) that does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict marks an invariant violation that is not malformed input,
	// e.g. an update that would set updated_at < created_at.
	ErrConflict = errors.New("conflict")

	// ErrSchemaNewer marks a stored catalog schema version that exceeds this
	// build's highest known migration. Opening must refuse and fail closed.
	ErrSchemaNewer = errors.New("catalog schema newer than this build understands")

	// ErrEmbeddingMismatch marks a catalog opened with an Embedder whose
	// dimension differs from the one the catalog was initialized with.
	ErrEmbeddingMismatch = errors.New("embedder dimension does not match catalog")

	// ErrCanceled marks a deadline or explicit cancellation reaching a
	// suspension point.
	ErrCanceled = errors.New("canceled")

	// ErrIO marks an underlying storage/filesystem failure. May be transient;
	// the core never retries it itself.
	ErrIO = errors.New("storage i/o failure")

	// ErrInternal marks a caught panic or unreachable state.
	ErrInternal = errors.New("internal error")
)

// Code is the stable numeric code a transport maps each taxonomy member to.
type Code int

const (
	CodeInvalid Code = iota + 1
	CodeNotFound
	CodeConflict
	CodeSchemaNewer
	CodeEmbeddingMismatch
	CodeCanceled
	CodeIO
	CodeInternal
)

// CodeFor returns the stable numeric code for err, walking its chain with
// errors.Is. Unrecognized errors map to CodeInternal.
func CodeFor(err error) Code {
	switch {
	case errors.Is(err, ErrInvalid):
		return CodeInvalid
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.Is(err, ErrConflict):
		return CodeConflict
	case errors.Is(err, ErrSchemaNewer):
		return CodeSchemaNewer
	case errors.Is(err, ErrEmbeddingMismatch):
		return CodeEmbeddingMismatch
	case errors.Is(err, ErrCanceled):
		return CodeCanceled
	case errors.Is(err, ErrIO):
		return CodeIO
	default:
		return CodeInternal
	}
}

// Structured is the user-visible error shape returned over the stdio
// transport (§7): {code, message, path?}.
type Structured struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path,omitempty"`
}

func (s *Structured) Error() string {
	if s.Path != "" {
		return s.Path + ": " + s.Message
	}
	return s.Message
}

// Unwrap exposes the sentinel error matching Code, so errors.Is(structured,
// corterrors.ErrInvalid) (etc.) works the same for a Structured as for a
// plain wrapped sentinel.
func (s *Structured) Unwrap() error {
	switch s.Code {
	case CodeInvalid:
		return ErrInvalid
	case CodeNotFound:
		return ErrNotFound
	case CodeConflict:
		return ErrConflict
	case CodeSchemaNewer:
		return ErrSchemaNewer
	case CodeEmbeddingMismatch:
		return ErrEmbeddingMismatch
	case CodeCanceled:
		return ErrCanceled
	case CodeIO:
		return ErrIO
	default:
		return ErrInternal
	}
}

// Invalid builds an ErrInvalid-wrapping Structured error naming the
// offending field path.
func Invalid(path, message string) *Structured {
	return &Structured{Code: CodeInvalid, Message: message, Path: path}
}

// FromError converts any error into a Structured response, inferring its
// code from the taxonomy.
func FromError(err error) *Structured {
	if err == nil {
		return nil
	}
	var s *Structured
	if errors.As(err, &s) {
		return s
	}
	return &Structured{Code: CodeFor(err), Message: err.Error()}
}
