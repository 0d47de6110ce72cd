package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in an arena's life the error occurred
type Phase string

const (
	PhaseDeclare Phase = "declare" // schema and field declaration
	PhaseLayout  Phase = "layout"  // offset and size computation
	PhaseAlloc   Phase = "alloc"   // buffer allocation
	PhaseAccess  Phase = "access"  // field and raw views
	PhaseRelease Phase = "release" // buffer release
)

// Kind categorizes the error
type Kind string

const (
	KindInvalidFieldSpec Kind = "invalid_field_spec"
	KindOverflow         Kind = "overflow"
	KindAllocation       Kind = "allocation"
	KindOutOfBounds      Kind = "out_of_bounds"
	KindTypeMismatch     Kind = "type_mismatch"
	KindUnsupported      Kind = "unsupported"
	KindFieldUnknown     Kind = "field_unknown"
	KindNotFound         Kind = "not_found"
	KindInvalidInput     Kind = "invalid_input"
	KindReleased         Kind = "released"
	KindAliased          Kind = "aliased"
	KindDetached         Kind = "detached"
)

// Targets for errors.Is. Only phase and kind take part in the match.
var (
	ErrInvalidFieldSpec  = &Error{Phase: PhaseDeclare, Kind: KindInvalidFieldSpec}
	ErrLayoutOverflow    = &Error{Phase: PhaseLayout, Kind: KindOverflow}
	ErrAllocationFailure = &Error{Phase: PhaseAlloc, Kind: KindAllocation}
	ErrOutOfBounds       = &Error{Phase: PhaseAccess, Kind: KindOutOfBounds}
)

// Error is the structured error type used throughout the module
type Error struct {
	Value   any
	Cause   error
	Phase   Phase
	Kind    Kind
	GoType  string
	WitType string
	Detail  string
	Path    []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.GoType != "" || e.WitType != "" {
		b.WriteString(": ")
		switch {
		case e.GoType != "" && e.WitType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
			b.WriteString(", WIT type ")
			b.WriteString(e.WitType)
		case e.GoType != "":
			b.WriteString("Go type ")
			b.WriteString(e.GoType)
		default:
			b.WriteString("WIT type ")
			b.WriteString(e.WitType)
		}
	}

	if e.Detail != "" {
		if e.GoType != "" || e.WitType != "" {
			b.WriteString(" - ")
		} else {
			b.WriteString(": ")
		}
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// GoType sets the Go type name
func (b *Builder) GoType(t string) *Builder {
	b.err.GoType = t
	return b
}

// WitType sets the WIT type name
func (b *Builder) WitType(t string) *Builder {
	b.err.WitType = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InvalidFieldSpec creates a field declaration error
func InvalidFieldSpec(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindInvalidFieldSpec,
		Path:   path,
		Detail: detail,
	}
}

// LayoutOverflow creates an overflow error for offset or size arithmetic
func LayoutOverflow(path []string, detail string) *Error {
	return &Error{
		Phase:  PhaseLayout,
		Kind:   KindOverflow,
		Path:   path,
		Detail: detail,
	}
}

// AllocationFailed creates an allocation failure error
func AllocationFailed(size, align int, cause error) *Error {
	return &Error{
		Phase:  PhaseAlloc,
		Kind:   KindAllocation,
		Detail: fmt.Sprintf("failed to allocate %d bytes (align %d)", size, align),
		Cause:  cause,
	}
}

// OutOfBounds creates an out of bounds error
func OutOfBounds(path []string, index, length int) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindOutOfBounds,
		Path:   path,
		Detail: fmt.Sprintf("index %d out of bounds (length %d)", index, length),
		Value:  index,
	}
}

// TypeMismatch creates an element type mismatch error
func TypeMismatch(path []string, goType, declared string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindTypeMismatch,
		Path:   path,
		GoType: goType,
		Detail: fmt.Sprintf("field declared as %s", declared),
	}
}

// Unsupported creates an unsupported declaration error
func Unsupported(path []string, witType, what string) *Error {
	return &Error{
		Phase:   PhaseDeclare,
		Kind:    KindUnsupported,
		Path:    path,
		WitType: witType,
		Detail:  what,
	}
}

// FieldUnknown creates an unknown field error
func FieldUnknown(path []string, fieldName string) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindFieldUnknown,
		Path:   path,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// NotFound creates a not-found error
func NotFound(what, name string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindNotFound,
		Detail: fmt.Sprintf("%s %q not found", what, name),
	}
}

// InvalidInput creates an invalid input error
func InvalidInput(phase Phase, detail string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindInvalidInput,
		Detail: detail,
	}
}

// Released creates an error for operations on a released buffer
func Released(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindReleased,
		Detail: fmt.Sprintf("%s already released", what),
	}
}

// Aliased creates an error for a second mutable borrow of the same field
func Aliased(path []string) *Error {
	return &Error{
		Phase:  PhaseAccess,
		Kind:   KindAliased,
		Path:   path,
		Detail: "field already mutably borrowed",
	}
}

// Detached creates an error for a block whose memory moved after allocation
func Detached(phase Phase, what string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindDetached,
		Detail: fmt.Sprintf("%s no longer aliases its memory", what),
	}
}
