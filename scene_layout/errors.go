package scenelayout

import "errors"

var (
	// ErrEmptyFrame is returned when a frame has no points or its point and
	// validity buffers do not match the stated dimensions.
	ErrEmptyFrame = errors.New("frame input is empty or misshapen")

	// ErrMaskShape is returned when an object mask does not match the
	// frame's pixel grid.
	ErrMaskShape = errors.New("object mask does not match frame dimensions")

	// ErrTooFewObjects is returned when fewer than three objects are
	// requested for reconstruction.
	ErrTooFewObjects = errors.New("need at least 3 objects to reconstruct")

	// ErrInsufficientData is returned when no anchor-pair permutation
	// yields triplet coverage of every requested object.
	ErrInsufficientData = errors.New("relation table cannot cover requested objects")

	// ErrEmptyTable is returned when a relation table has no entries.
	ErrEmptyTable = errors.New("triplet table is empty")

	// ErrDegenerateTriplet is returned when a triplet's observed distances
	// and angles admit no consistent 3D placement.
	ErrDegenerateTriplet = errors.New("triplet geometry is degenerate")
)
