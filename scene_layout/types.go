package scenelayout

import (
	"strings"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
)

// AggregationMode selects how per-frame triplet observations are merged
// into a corpus-wide relation table.
type AggregationMode int

const (
	// Averaging takes the arithmetic mean over every observation of a
	// triplet key. Deterministic for a fixed corpus.
	Averaging AggregationMode = iota
	// Sampling keeps a single randomly chosen observation per triplet key.
	// Reproducible only under a fixed random seed.
	Sampling
)

func (m AggregationMode) String() string {
	switch m {
	case Averaging:
		return "averaging"
	case Sampling:
		return "sampling"
	default:
		return "unknown"
	}
}

// Pseudo-entry names used alongside object names in reconstructed layouts.
const (
	CameraKey = "CAMERA"
	ScaleKey  = "SCALE"
)

// FrameInput is the boundary type handed over by the ingestion layer: one
// sensor capture's back-projected point grid. Points are row-major with the
// sensor at the origin, in meters; Valid marks pixels with usable depth.
type FrameInput struct {
	Width  int
	Height int
	Points []r3.Vector
	Valid  []bool
}

// FrameObservation holds everything extracted from one frame: per-object
// 2D label placement, 3D centroid, and the full 3D point set.
type FrameObservation struct {
	Labels    map[string]r2.Point
	Centroids map[string]r3.Vector
	Clouds    map[string]pointcloud.PointCloud

	// Missing lists labeled objects that had no valid 3D data in this
	// frame. They are skipped for triplet generation, not fatal.
	Missing []string
}

// TripletRecord is one geometric observation of an ordered triplet of
// objects (A,B,C) within a single frame. O is the sensor origin in the
// frame's local coordinates. Ordering matters: (A,B) is the anchor pair
// during reconstruction, so (A,B,C) and (B,A,C) are distinct keys.
type TripletRecord struct {
	ObjectA string
	ObjectB string
	ObjectC string

	DistAB float64
	DistAC float64
	DistAO float64

	// Angles in degrees, in [0, 180].
	AngleBAC float64
	AngleOAB float64
	AngleOAC float64
}

// Key returns the canonical relation-table key for this record.
func (t TripletRecord) Key() string {
	return CanonicalKey(t.ObjectA, t.ObjectB, t.ObjectC)
}

// SkippedTriplet describes a triplet dropped during extraction, e.g. due
// to a zero-length vector making an angle undefined.
type SkippedTriplet struct {
	ObjectA string
	ObjectB string
	ObjectC string
	Reason  string
}

// AggregatedTriplet is a TripletRecord merged across the corpus, with the
// number of observations that produced it.
type AggregatedTriplet struct {
	TripletRecord
	Count int
}

// TripletTable maps canonical "objA,objB,objC" keys to merged observations.
type TripletTable map[string]AggregatedTriplet

// SizeEstimate is a per-object size row: trimmed-median diameter, number
// of contributing point observations, and a confidence score relative to
// the most frequently observed / largest object in the corpus.
type SizeEstimate struct {
	Diameter   float64
	Count      int
	Confidence float64
}

// LocalTriplet is the closed-form 3D placement of one aggregated triplet,
// computed independently of all others: A at the origin, B on the +X axis,
// C in the XY plane, and the camera wherever the observed angles put it.
type LocalTriplet struct {
	ObjectA string
	ObjectB string
	ObjectC string

	A      r3.Vector
	B      r3.Vector
	C      r3.Vector
	Camera r3.Vector

	// Scale is the smallest of the six pairwise distances among
	// {A, B, C, Camera}.
	Scale float64
}

// Layout is a globally consistent coordinate assignment for a requested
// object set, built by stitching local triplet frames into the first
// triplet's coordinate system.
type Layout struct {
	Positions map[string]r3.Vector
	Camera    r3.Vector
	Scale     float64
}

// CanonicalName strips a trailing numeric disambiguator ("chair_2" ->
// "chair") so that renumbered sightings of the same object share a key.
// Underscores followed by anything non-numeric are part of the name.
func CanonicalName(name string) string {
	i := strings.LastIndexByte(name, '_')
	if i <= 0 || i == len(name)-1 {
		return name
	}
	for _, c := range name[i+1:] {
		if c < '0' || c > '9' {
			return name
		}
	}
	return name[:i]
}

// CanonicalKey builds the relation-table key for three object names.
func CanonicalKey(a, b, c string) string {
	return CanonicalName(a) + "," + CanonicalName(b) + "," + CanonicalName(c)
}
