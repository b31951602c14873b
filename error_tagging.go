package merge

import (
	"errors"
	"fmt"
)

// UnitError carries the batch index of the unit that produced err.
type UnitError struct {
	err   error
	index int
}

func newUnitError(err error, index int) error {
	if err == nil {
		return nil
	}
	return &UnitError{err: err, index: index}
}

func (e *UnitError) Error() string { return e.err.Error() }
func (e *UnitError) Unwrap() error { return e.err }

// UnitIndex returns the position of the failed unit in its batch.
func (e *UnitError) UnitIndex() int { return e.index }

func (e *UnitError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "unit(index=%d): %+v", e.index, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractUnitIndex returns the index of the unit that caused err, if err carries one.
func ExtractUnitIndex(err error) (int, bool) {
	var ue *UnitError
	if errors.As(err, &ue) {
		return ue.index, true
	}
	return 0, false
}
