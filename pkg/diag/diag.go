// Package diag carries source locations, compile errors and warnings.
//
// Every user-facing failure of the compiler is a *Error with a Location.
// Lower layers (registry, template engine) return plain errors; the parser and
// the passes attach the location of the node that triggered them with At.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Location is a point in a source file. Line and Col are 1-based; a zero Line
// means the location is unknown (inbuilt symbols, synthesized nodes).
type Location struct {
	File string
	Line int
	Col  int
}

func (l Location) IsValid() bool { return l.Line > 0 }

func (l Location) String() string {
	switch {
	case l.Line == 0 && l.File == "":
		return "<inbuilt>"
	case l.Col == 0:
		return fmt.Sprintf("%s:%d", l.File, l.Line)
	}
	return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Col)
}

// Error is a compile error tied to a source location.
type Error struct {
	Loc Location
	Msg string
}

func (e *Error) Error() string {
	if !e.Loc.IsValid() {
		return e.Msg
	}
	return e.Loc.String() + ": " + e.Msg
}

// Errorf creates a located compile error.
func Errorf(loc Location, format string, args ...any) error {
	return &Error{Loc: loc, Msg: fmt.Sprintf(format, args...)}
}

// At attaches loc to err. Errors that already carry a location keep it, so the
// innermost failure point wins.
func At(loc Location, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := AsError(err); ok {
		return err
	}
	return &Error{Loc: loc, Msg: err.Error()}
}

// AsError digs a *Error out of a (possibly wrapped) error chain.
func AsError(err error) (*Error, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de, true
	}
	return nil, false
}

// Message is the text of err without its location.
func Message(err error) string {
	if de, ok := AsError(err); ok {
		return de.Msg
	}
	return err.Error()
}

// Warning is a non-fatal diagnostic, e.g. unchecked indexing in safe mode.
type Warning struct {
	Loc Location
	Msg string
}

func (w Warning) String() string {
	return w.Loc.String() + ": warning: " + w.Msg
}

// Unreachable reports a broken internal invariant. It never returns.
func Unreachable(format string, args ...any) {
	panic(fmt.Sprintf("internal compiler error: "+format, args...))
}
