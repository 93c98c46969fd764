package board

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// CellValue is the committed content of one hex. The sign encodes the owner
// and the magnitude encodes the fortification level.
type CellValue int8

const (
	OpponentFortified CellValue = -2
	OpponentClaimed   CellValue = -1
	Unclaimed         CellValue = 0
	HostClaimed       CellValue = 1
	HostFortified     CellValue = 2

	// Absent marks a position that is not part of the playable board.
	Absent CellValue = math.MinInt8
)

// Valid reports whether v is one of the six defined cell values.
func (v CellValue) Valid() bool {
	return v == Absent || (v >= OpponentFortified && v <= HostFortified)
}

// IsAbsent reports whether the cell is outside the playable board.
func (v CellValue) IsAbsent() bool {
	return v == Absent
}

// Owner returns +1 for host-held cells, -1 for opponent-held cells and 0 otherwise.
func (v CellValue) Owner() int {
	switch {
	case v == Absent || v == Unclaimed:
		return 0
	case v > 0:
		return 1
	default:
		return -1
	}
}

// Level returns the fortification level: 0 unclaimed, 1 claimed, 2 fortified.
func (v CellValue) Level() int {
	if v == Absent {
		return 0
	}
	if v < 0 {
		return int(-v)
	}
	return int(v)
}

func (v CellValue) String() string {
	if v == Absent {
		return "absent"
	}
	return strconv.Itoa(int(v))
}

// MarshalJSON encodes absent cells as null.
func (v CellValue) MarshalJSON() ([]byte, error) {
	if v == Absent {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(int(v))), nil
}

// UnmarshalJSON decodes null as Absent and rejects values outside [-2, 2].
func (v *CellValue) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*v = Absent
		return nil
	}

	var n int
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("cell value: %w", err)
	}
	if n < int(OpponentFortified) || n > int(HostFortified) {
		return fmt.Errorf("cell value %d out of range", n)
	}
	*v = CellValue(n)
	return nil
}
