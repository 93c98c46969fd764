package board

import (
	"errors"
	"fmt"
)

// Size is the number of positions on the board (7 columns of 7 rows).
const Size = Columns * Rows

var (
	// ErrLengthChanged is returned when an update carries a board of a different length.
	ErrLengthChanged = errors.New("board length changed")
	// ErrAbsentRevived is returned when an update assigns a value to an absent cell.
	ErrAbsentRevived = errors.New("absent cell acquired a value")
	// ErrInvalidValue is returned when a board holds an undefined cell value.
	ErrInvalidValue = errors.New("invalid cell value")
)

// Board is the ordered, index-addressed sequence of cell values. Boards are
// replaced wholesale on every authoritative update and never edited in place.
type Board []CellValue

// initialAbsent lists the positions that are outside the playable area
// of the placeholder board shown before the first snapshot arrives.
var initialAbsent = map[int]bool{
	0: true, 5: true, 6: true,
	7: true, 13: true,
	20: true,
	34: true,
	35: true, 41: true,
	42: true, 47: true, 48: true,
}

// Initial returns the placeholder board used until the authority sends a snapshot.
func Initial() Board {
	b := make(Board, Size)
	for i := range b {
		if initialAbsent[i] {
			b[i] = Absent
		}
	}
	return b
}

// Clone returns a copy that shares no storage with b.
func (b Board) Clone() Board {
	if b == nil {
		return nil
	}
	out := make(Board, len(b))
	copy(out, b)
	return out
}

// InRange reports whether index addresses a position of b.
func (b Board) InRange(index int) bool {
	return index >= 0 && index < len(b)
}

// Playable reports whether index addresses a non-absent cell.
func (b Board) Playable(index int) bool {
	return b.InRange(index) && !b[index].IsAbsent()
}

// Validate checks that every cell holds a defined value.
func (b Board) Validate() error {
	for i, v := range b {
		if !v.Valid() {
			return fmt.Errorf("%w at index %d: %d", ErrInvalidValue, i, int8(v))
		}
	}
	return nil
}

// Equal reports whether two boards hold the same values.
func (b Board) Equal(other Board) bool {
	if len(b) != len(other) {
		return false
	}
	for i := range b {
		if b[i] != other[i] {
			return false
		}
	}
	return true
}

// CheckSuccessor verifies that next may replace prev: the length is unchanged
// and every position absent in prev is still absent in next.
func CheckSuccessor(prev, next Board) error {
	if len(prev) != len(next) {
		return fmt.Errorf("%w: have %d, got %d", ErrLengthChanged, len(prev), len(next))
	}
	if err := next.Validate(); err != nil {
		return err
	}
	for i, v := range prev {
		if v.IsAbsent() && !next[i].IsAbsent() {
			return fmt.Errorf("%w: index %d", ErrAbsentRevived, i)
		}
	}
	return nil
}
