// Package diag is the compiler's ambient error-handling and logging layer:
// structured diagnostics with exit-code mapping (spec.md §7), and the one
// logrus.Logger instance the driver configures from -v.
package diag

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
)

// Kind classifies a diagnostic the way spec.md §7 taxonomizes failures.
type Kind int

const (
	// Internal marks an invariant violation — a compiler bug, not a user error.
	Internal Kind = iota
	InputFailure
	ParseFailure
	ValidationFailure
	Unsupported
)

func (k Kind) String() string {
	switch k {
	case InputFailure:
		return "input error"
	case ParseFailure:
		return "parse error"
	case ValidationFailure:
		return "validation error"
	case Unsupported:
		return "unsupported"
	default:
		return "internal error"
	}
}

// ExitCode maps a Kind to the process exit code spec.md §6/§7 specifies:
// every failure kind exits 1; only a clean run exits 0.
func (k Kind) ExitCode() int { return 1 }

// Pos is a source position, used by the CG-IR textual parser.
type Pos struct {
	Line, Col int
}

func (p Pos) String() string {
	if p.Line == 0 {
		return ""
	}
	return fmt.Sprintf("%d:%d", p.Line, p.Col)
}

// Error is a structured compiler diagnostic. It wraps an underlying error so
// errors.Is/errors.As compose across package boundaries the way the rest of
// the corpus composes errors (fmt.Errorf("...: %w", err)).
type Error struct {
	Kind Kind
	Pos  Pos
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Pos.Line != 0 {
		return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds a diag.Error of the given kind.
func New(kind Kind, msg string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...)}
}

// At attaches a source position to a diagnostic (for parse errors).
func At(kind Kind, pos Pos, msg string, args ...any) *Error {
	return &Error{Kind: kind, Pos: pos, Msg: fmt.Sprintf(msg, args...)}
}

// Wrap builds a diag.Error of the given kind around an existing error.
func Wrap(kind Kind, err error, msg string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(msg, args...), Err: err}
}

// KindOf extracts the Kind from err if it (or something it wraps) is a
// *Error, defaulting to Internal — an un-annotated error reaching the
// driver is itself a bug in the error-handling discipline.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return Internal
}

// Bug is panicked by internal invariant checks (spec.md §7: "abort with a
// descriptive message — these indicate bugs, not user errors"). main()
// recovers exactly this type at the top level; any other panic propagates
// as a genuine crash.
type Bug struct {
	Msg string
}

func (b Bug) String() string { return b.Msg }

// Bugf panics with a Bug, formatted like fmt.Sprintf. Use for invariant
// violations detected deep in a pass (dominance, SSA, RA post-conditions)
// where threading an error return through every call site would obscure the
// pipeline's otherwise-pure control flow.
func Bugf(format string, args ...any) {
	panic(Bug{Msg: fmt.Sprintf(format, args...)})
}

// Log is the package-level logger every pass traces through. It is silent
// (level Warn) until ConfigureLogging raises it.
var Log = logrus.New()

func init() {
	Log.SetLevel(logrus.WarnLevel)
	Log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
}

// ConfigureLogging raises Log to Debug level when verbose is set — the
// driver's -v/--verbose flag.
func ConfigureLogging(verbose bool) {
	if verbose {
		Log.SetLevel(logrus.DebugLevel)
	}
}

// Pass logs a pass boundary at debug level with structured fields, the
// verbose-tracing idiom every pass in pkg/cg uses instead of ad hoc
// fmt.Printf (see SPEC_FULL.md §4.0).
func Pass(name, fn string, fields logrus.Fields) {
	if fields == nil {
		fields = logrus.Fields{}
	}
	fields["pass"] = name
	fields["func"] = fn
	Log.WithFields(fields).Debug("pass start")
}
