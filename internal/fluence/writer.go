package fluence

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Extension is the file extension of optimal fluence exports.
const Extension = ".optimal_fluence"

// DefaultSpacingMm is the cell spacing written when none is given.
const DefaultSpacingMm = 2.5

// WriteOptions controls the header of an exported file.
type WriteOptions struct {
	// SpacingX and SpacingY are the cell spacings written to the header.
	// Zero selects DefaultSpacingMm.
	SpacingX float64
	SpacingY float64

	// Origin overrides the matrix origin when non-nil.
	Origin *Origin
}

// Encode writes m in the optimal fluence text layout:
//
//	# Field 1 - Fluence
//	optimalfluence
//	sizex	<cols>
//	sizey	<rows>
//	spacingx	<spacingX>
//	spacingy	<spacingY>
//	originx	<origin.X, 4 decimals>
//	originy	<origin.Y, 4 decimals>
//	values
//	<row 0, tab separated, 6 significant digits>
//	...
//
// Fields are tab separated and every line, including the last, ends in "\n".
// Rows are written top to bottom in matrix order.
func Encode(w io.Writer, m *Matrix, opts WriteOptions) error {
	if m == nil {
		return fmt.Errorf("%w: matrix is nil", ErrInvalidInput)
	}

	spacingX, spacingY := opts.SpacingX, opts.SpacingY
	if spacingX == 0 {
		spacingX = DefaultSpacingMm
	}
	if spacingY == 0 {
		spacingY = DefaultSpacingMm
	}
	origin := m.Origin()
	if opts.Origin != nil {
		origin = *opts.Origin
	}

	rows, cols := m.Dims()
	bw := bufio.NewWriter(w)

	fmt.Fprintln(bw, "# Field 1 - Fluence")
	fmt.Fprintln(bw, "optimalfluence")
	fmt.Fprintf(bw, "sizex\t%d\n", cols)
	fmt.Fprintf(bw, "sizey\t%d\n", rows)
	fmt.Fprintf(bw, "spacingx\t%s\n", formatSpacing(spacingX))
	fmt.Fprintf(bw, "spacingy\t%s\n", formatSpacing(spacingY))
	fmt.Fprintf(bw, "originx\t%s\n", formatOrigin(origin.X))
	fmt.Fprintf(bw, "originy\t%s\n", formatOrigin(origin.Y))
	fmt.Fprintln(bw, "values")

	fields := make([]string, cols)
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			fields[c] = formatValue(m.At(r, c))
		}
		bw.WriteString(strings.Join(fields, "\t"))
		bw.WriteByte('\n')
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("failed to write fluence values: %w", err)
	}
	return nil
}

// WriteFile exports m to path. The file is written to a temporary sibling
// and renamed into place, so path either holds the complete export or is left
// as it was.
func WriteFile(path string, m *Matrix, opts WriteOptions) error {
	if m == nil {
		return fmt.Errorf("%w: matrix is nil", ErrInvalidInput)
	}
	if path == "" {
		return fmt.Errorf("%w: output path is empty", ErrInvalidInput)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create fluence file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			os.Remove(tmpName)
		}
	}()

	if err := Encode(tmp, m, opts); err != nil {
		return err
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("failed to sync fluence file: %w", err)
	}
	if err := tmp.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set fluence file mode: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close fluence file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to move fluence file into place: %w", err)
	}
	committed = true
	return nil
}

// EnsureExtension appends Extension to path unless it already ends with it.
func EnsureExtension(path string) string {
	if strings.EqualFold(filepath.Ext(path), Extension) {
		return path
	}
	return path + Extension
}

// formatSpacing writes the shortest decimal that round-trips.
func formatSpacing(v float64) string {
	return strings.ToUpper(strconv.FormatFloat(v, 'g', -1, 64))
}

func formatOrigin(v float64) string {
	if v == 0 {
		v = 0
	}
	return strconv.FormatFloat(v, 'f', 4, 64)
}

// formatValue writes six significant digits without trailing zeros, switching
// to exponent form below 1E-04 ("3.92157E-05").
func formatValue(v float64) string {
	return strings.ToUpper(strconv.FormatFloat(v, 'g', 6, 64))
}
