package fluence

import (
	"fmt"
	"math"

	"github.com/ironsheep/fluence-tools-mcp/internal/imaging"
	"gonum.org/v1/gonum/mat"
)

// ErrInvalidInput is returned when a stage receives an absent or malformed
// image or matrix. It is the same value as imaging.ErrInvalidInput so callers
// can test for either with errors.Is.
var ErrInvalidInput = imaging.ErrInvalidInput

// DefaultResolutionMm is the physical size of one matrix cell.
const DefaultResolutionMm = 2.5

// Origin locates a matrix relative to the treatment frame, in millimeters.
type Origin struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ComputeOrigin places the geometric center of a cols x rows matrix at the
// frame reference point: X runs left to right, Y runs upward.
//
//	originX = -((cols-1)/2) * resolution
//	originY = +((rows-1)/2) * resolution
func ComputeOrigin(cols, rows int, resolutionMm float64) Origin {
	x := -(float64(cols-1) / 2) * resolutionMm
	y := (float64(rows-1) / 2) * resolutionMm
	// -0 would serialize as "-0.0000".
	if x == 0 {
		x = 0
	}
	if y == 0 {
		y = 0
	}
	return Origin{X: x, Y: y}
}

// Matrix is a normalized fluence grid. Every cell lies in [0,1].
//
// A Matrix is immutable once constructed; accessors return copies, so it can
// be shared between the display layer, the file writer and the delivery
// system without locking.
type Matrix struct {
	data       *mat.Dense
	resolution float64
	origin     Origin
}

// NewMatrix builds a Matrix from row-major values. Rows must be non-empty and
// of equal length. Values are clamped to [0,1]; no renormalization is done.
func NewMatrix(values [][]float64, resolutionMm float64, origin Origin) (*Matrix, error) {
	if len(values) == 0 || len(values[0]) == 0 {
		return nil, fmt.Errorf("%w: matrix has no cells", ErrInvalidInput)
	}
	if resolutionMm <= 0 {
		return nil, fmt.Errorf("%w: resolution must be positive, got %v", ErrInvalidInput, resolutionMm)
	}

	rows, cols := len(values), len(values[0])
	flat := make([]float64, 0, rows*cols)
	for r, row := range values {
		if len(row) != cols {
			return nil, fmt.Errorf("%w: row %d has %d values, want %d", ErrInvalidInput, r, len(row), cols)
		}
		for _, v := range row {
			flat = append(flat, clampUnit(v))
		}
	}

	return &Matrix{
		data:       mat.NewDense(rows, cols, flat),
		resolution: resolutionMm,
		origin:     origin,
	}, nil
}

// newMatrixFromFlat takes ownership of a clamped, row-major slice.
func newMatrixFromFlat(rows, cols int, flat []float64, resolutionMm float64) *Matrix {
	return &Matrix{
		data:       mat.NewDense(rows, cols, flat),
		resolution: resolutionMm,
		origin:     ComputeOrigin(cols, rows, resolutionMm),
	}
}

// Dims returns the number of rows and columns.
func (m *Matrix) Dims() (rows, cols int) {
	return m.data.Dims()
}

// At returns the value at row r, column c. It panics if the indices are out
// of range, like mat.Dense.
func (m *Matrix) At(r, c int) float64 {
	return m.data.At(r, c)
}

// Resolution returns the cell size in millimeters.
func (m *Matrix) Resolution() float64 {
	return m.resolution
}

// Origin returns the matrix origin in millimeters.
func (m *Matrix) Origin() Origin {
	return m.origin
}

// Max returns the largest cell value: 1 for any normalized matrix with signal,
// 0 for an all-zero one.
func (m *Matrix) Max() float64 {
	return mat.Max(m.data)
}

// Values returns a row-major copy of the cells.
func (m *Matrix) Values() [][]float64 {
	rows, cols := m.Dims()
	out := make([][]float64, rows)
	for r := range out {
		out[r] = mat.Row(make([]float64, cols), r, m.data)
	}
	return out
}

// CellInfo describes a single matrix cell.
type CellInfo struct {
	Row   int     `json:"row"`
	Col   int     `json:"col"`
	Value float64 `json:"value"`
	Color string  `json:"color"`
	XMm   float64 `json:"x_mm"`
	YMm   float64 `json:"y_mm"`
}

// Cell returns the value, heat-map color and physical position of the cell at
// (row, col). Positions follow the origin convention: X grows with the column,
// Y shrinks with the row.
func (m *Matrix) Cell(row, col int) (*CellInfo, error) {
	rows, cols := m.Dims()
	if row < 0 || row >= rows || col < 0 || col >= cols {
		return nil, fmt.Errorf("cell (%d,%d) outside matrix %dx%d", row, col, rows, cols)
	}

	v := m.At(row, col)
	c := HeatColor(v)
	return &CellInfo{
		Row:   row,
		Col:   col,
		Value: v,
		Color: fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B),
		XMm:   m.origin.X + float64(col)*m.resolution,
		YMm:   m.origin.Y - float64(row)*m.resolution,
	}, nil
}

func clampUnit(v float64) float64 {
	if v < 0 || math.IsNaN(v) {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
