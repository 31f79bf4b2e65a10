// Package imaging provides the source-image side of the fluence pipeline.
//
// It loads operator-supplied bitmaps, decides whether they are physically too
// wide for the delivery field and halves them if so, and reduces them to
// single-channel intensity samples for the matrix builder.
// All operations work with standard Go image.Image types and use a coordinate
// system where (0,0) is at the top-left corner, X increases rightward, and Y
// increases downward.
//
// # Physical Size
//
// Every source pixel is assumed to cover a fixed sampling resolution (2.5 mm by
// default). An image whose width times that resolution exceeds the maximum
// physical width (200 mm by default) is downsampled by a factor of two in both
// axes before conversion:
//
//	width  81 -> 202.5 mm -> 41 x round(h/2)
//	width  79 -> 197.5 mm -> unchanged
//
// # Regions
//
// Crop restricts a conversion to a pixel rectangle and NamedRegion resolves
// names such as "top-left" or "center" to one. DrawGrid outlines cells on an
// enlarged preview.
//
// # Supported Formats
//
// PNG, JPEG and GIF use the standard library decoders; BMP, TIFF and WEBP are
// registered from golang.org/x/image.
//
// # Thread Safety
//
// The ImageCache type is safe for concurrent use. Downsample and Grayscale
// never modify their input and allocate a fresh image when they change
// anything, so results may be shared with a display layer without locking.
//
// # Error Handling
//
// Nil or empty images are rejected with ErrInvalidInput. File errors from
// Load are wrapped and returned unchanged otherwise.
package imaging
