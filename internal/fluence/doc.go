// Package fluence turns intensity samples into normalized fluence matrices,
// renders them as heat maps and exports them in the optimal fluence text
// format.
//
// # Pipeline
//
// Convert runs the full chain for one import action:
//
//  1. imaging.DownsampleWith halves images wider than the physical limit
//  2. imaging.Grayscale reduces them to 8-bit intensity samples
//  3. a Builder normalizes the samples into a Matrix and computes its Origin
//
// The Matrix then feeds RenderHeatMap for display, WriteFile for export, and
// the delivery package for beam programming.
//
// # Matrix Strategies
//
// PixelStrategy maps one sample to one cell. CellAverageStrategy averages the
// samples inside each resolution-sized physical cell, for images whose
// physical size is known independently of their pixel density. Both divide by
// the matrix-wide maximum, treating an all-zero image as maximum 1.
//
// # Coordinate System
//
// Row 0 is the top of the image. The origin places the matrix center at the
// frame reference point with X increasing to the right and Y increasing
// upward:
//
//	originX = -((cols-1)/2) * resolution
//	originY = +((rows-1)/2) * resolution
//
// # Immutability
//
// A Matrix never changes after construction and every artifact derived from
// it is freshly allocated, so matrices and heat maps may be shared across
// goroutines without locking.
package fluence
