package board

import "fmt"

// Grid dimensions of the logical layout.
const (
	Columns = 7
	Rows    = 7
)

// Hex geometry in pixels. HexHeight keeps the regular-hexagon aspect ratio.
const (
	HexSize   = 50.0
	HexWidth  = HexSize * 2
	HexHeight = HexSize * 1.7320508075688772 // sqrt(3)
)

// Point is a pixel coordinate.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// LayoutOf returns the logical (column, row) of a cell index. The layout is
// column-major: indices 0..6 are column 0, 7..13 column 1, and so on.
// An index outside the board is a programming error.
func LayoutOf(index int) (col, row int) {
	if index < 0 || index >= Size {
		panic(fmt.Sprintf("board: index %d outside layout", index))
	}
	return index / Rows, index % Rows
}

// PixelPositionOf returns the top-left corner of a cell's bounding box.
// Columns advance by three quarters of a hex width; even columns drop by half
// a hex height so adjacent columns interlock.
func PixelPositionOf(col, row int) (x, y float64) {
	x = float64(col) * (HexWidth * 0.75)
	y = float64(row) * HexHeight
	if col%2 == 0 {
		y += HexHeight / 2
	}
	return x, y
}

// Outline returns the six corners of the flat-topped hexagon whose bounding
// box starts at (x, y), clockwise from the upper-left corner.
func Outline(x, y float64) [6]Point {
	return [6]Point{
		{X: x + HexWidth*0.25, Y: y},
		{X: x + HexWidth*0.75, Y: y},
		{X: x + HexWidth, Y: y + HexHeight*0.5},
		{X: x + HexWidth*0.75, Y: y + HexHeight},
		{X: x + HexWidth*0.25, Y: y + HexHeight},
		{X: x, Y: y + HexHeight*0.5},
	}
}

// Extent returns the pixel width and height needed to draw the full grid.
func Extent() (width, height float64) {
	width = float64(Columns-1)*HexWidth*0.75 + HexWidth
	height = float64(Rows)*HexHeight + HexHeight/2
	return width, height
}
