package diff

import (
	"errors"
	"fmt"

	"github.com/iudanet/mapkeeper/internal/validation"
)

// Kind distinguishes how the calling layer should react to a failed diff.
type Kind uint8

const (
	// KindValidation batch is malformed or inconsistent with the snapshot, rejected before any write
	KindValidation Kind = iota + 1
	// KindConflict optimistic assumptions failed; retryable with a fresh prepare
	KindConflict
	// KindIntegrity decoded data violates element invariants (e.g. duplicate tag keys)
	KindIntegrity
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindIntegrity:
		return "integrity"
	default:
		return "unknown"
	}
}

// Причины ошибок, проверяются через errors.Is
var (
	ErrMalformedDraft       = errors.New("malformed draft")
	ErrUnknownPlaceholder   = errors.New("unknown placeholder")
	ErrDuplicatePlaceholder = errors.New("placeholder already created")
	ErrCreateWithID         = errors.New("create must use a placeholder id")
	ErrVersionMismatch      = errors.New("version mismatch")
	ErrElementNotFound      = errors.New("element not found")
	ErrAlreadyDeleted       = errors.New("element already deleted")
	ErrMemberNotFound       = errors.New("member not found or deleted")
	ErrChangesetNotFound    = errors.New("changeset not found")
	ErrChangesetForbidden   = errors.New("changeset belongs to another user")
	ErrChangesetTooBig      = errors.New("changeset size limit exceeded")

	ErrChangesetClosed   = errors.New("changeset closed")
	ErrStillReferenced   = errors.New("element is still referenced")
	ErrElementOutdated   = errors.New("element is outdated")
	ErrChangesetOutdated = errors.New("changeset is outdated")

	ErrDuplicateTagKey = validation.ErrDuplicateTagKey
)

// Error is returned for every rejected batch. Nothing of the batch is committed.
type Error struct {
	Err  error
	Kind Kind
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the kind of a diff error, 0 for any other error.
func KindOf(err error) Kind {
	var derr *Error
	if errors.As(err, &derr) {
		return derr.Kind
	}
	return 0
}

// IsConflict reports whether re-running prepare+apply may succeed.
func IsConflict(err error) bool {
	return KindOf(err) == KindConflict
}

func validationError(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Err: wrap(cause, format, args...)}
}

func conflictError(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Err: wrap(cause, format, args...)}
}

func integrityError(cause error, format string, args ...any) *Error {
	return &Error{Kind: KindIntegrity, Err: wrap(cause, format, args...)}
}

func wrap(cause error, format string, args ...any) error {
	if format == "" {
		return cause
	}
	return fmt.Errorf("%w: %s", cause, fmt.Sprintf(format, args...))
}
