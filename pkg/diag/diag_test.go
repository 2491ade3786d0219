package diag

import (
	"testing"

	"github.com/nalgeon/be"
	"github.com/pkg/errors"
)

func TestLocation_String(t *testing.T) {
	tests := []struct {
		loc  Location
		want string
	}{
		{Location{}, "<inbuilt>"},
		{Location{File: "main.dsp", Line: 3}, "main.dsp:3"},
		{Location{File: "main.dsp", Line: 3, Col: 7}, "main.dsp:3:7"},
	}
	for _, tt := range tests {
		be.Equal(t, tt.loc.String(), tt.want)
	}
}

func TestAt(t *testing.T) {
	loc := Location{File: "main.dsp", Line: 4, Col: 2}
	be.Equal(t, At(loc, nil), nil)

	err := At(loc, errors.New("can't resolve x"))
	be.Equal(t, err.Error(), "main.dsp:4:2: can't resolve x")
	be.Equal(t, Message(err), "can't resolve x")

	// the innermost location wins, even through wrapping
	inner := Errorf(Location{File: "lib.h", Line: 1}, "bad")
	wrapped := errors.Wrap(inner, "compiling Main")
	got := At(loc, wrapped)
	de, ok := AsError(got)
	be.True(t, ok)
	be.Equal(t, de.Loc.File, "lib.h")

	_, ok = AsError(errors.New("plain"))
	be.True(t, !ok)
	be.Equal(t, Message(errors.New("plain")), "plain")
	be.Equal(t, (&Error{Msg: "no location"}).Error(), "no location")
}

func TestWarning(t *testing.T) {
	w := Warning{Loc: Location{File: "main.dsp", Line: 9}, Msg: "unchecked index into span<float, 4>"}
	be.Equal(t, w.String(), "main.dsp:9: warning: unchecked index into span<float, 4>")
}

func TestUnreachable(t *testing.T) {
	defer func() {
		be.Equal(t, recover(), any("internal compiler error: stack underflow at 3"))
	}()
	Unreachable("stack underflow at %d", 3)
}
