package scenelayout

import (
	"sort"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
)

// SizeAccumulator folds per-object point-to-centroid distances across
// every scene in the corpus. Object names are canonicalized on the way in
// so renumbered sightings pool their samples.
type SizeAccumulator struct {
	cfg   SizeConfig
	dists map[string][]float64
}

// NewSizeAccumulator creates an empty accumulator.
func NewSizeAccumulator(cfg SizeConfig) *SizeAccumulator {
	if cfg.TrimFraction <= 0 || cfg.TrimFraction >= 1 {
		cfg.TrimFraction = DefaultConfig().Sizes.TrimFraction
	}
	return &SizeAccumulator{
		cfg:   cfg,
		dists: make(map[string][]float64),
	}
}

// Add records point-to-centroid distances for one object.
func (s *SizeAccumulator) Add(object string, distances ...float64) {
	name := CanonicalName(object)
	s.dists[name] = append(s.dists[name], distances...)
}

// AddCloud records the distance of every point in cloud to the given
// centroid for one object.
func (s *SizeAccumulator) AddCloud(object string, cloud pointcloud.PointCloud, centroid r3.Vector) {
	if cloud == nil {
		return
	}
	name := CanonicalName(object)
	cloud.Iterate(0, 0, func(pt r3.Vector, _ pointcloud.Data) bool {
		s.dists[name] = append(s.dists[name], pt.Sub(centroid).Norm())
		return true
	})
}

// AddPoints records the distance of each point to the centroid for one
// object, for callers holding raw point slices.
func (s *SizeAccumulator) AddPoints(object string, points []r3.Vector, centroid r3.Vector) {
	name := CanonicalName(object)
	for _, pt := range points {
		s.dists[name] = append(s.dists[name], pt.Sub(centroid).Norm())
	}
}

// Estimate computes the size table. Per object: distances are sorted
// ascending, the top trim fraction is discarded as outliers, and the
// median of the remainder is the diameter estimate. A non-positive
// diameter (single-point degenerate case) falls back to the corpus-wide
// median diameter. Confidence scales observation frequency by relative
// diameter: (count / maxCount) * (maxDiameter / diameter). Objects with no
// samples never appear.
func (s *SizeAccumulator) Estimate() map[string]SizeEstimate {
	if len(s.dists) == 0 {
		return nil
	}

	diameters := make(map[string]float64, len(s.dists))
	counts := make(map[string]int, len(s.dists))
	maxCount := 0
	maxDiameter := 0.0
	var all []float64

	for name, dist := range s.dists {
		if len(dist) == 0 {
			continue
		}
		vals := make([]float64, len(dist))
		copy(vals, dist)
		sort.Float64s(vals)
		keep := len(vals) - int(float64(len(vals))*s.cfg.TrimFraction)
		d := median(vals[:keep])

		diameters[name] = d
		counts[name] = len(dist)
		all = append(all, d)
		if len(dist) > maxCount {
			maxCount = len(dist)
		}
		if d > maxDiameter {
			maxDiameter = d
		}
	}
	if len(diameters) == 0 {
		return nil
	}

	sort.Float64s(all)
	corpusMedian := median(all)

	out := make(map[string]SizeEstimate, len(diameters))
	for name, d := range diameters {
		if d <= 0 {
			d = corpusMedian
		}
		confidence := 0.0
		if d > 0 && maxCount > 0 {
			confidence = (float64(counts[name]) / float64(maxCount)) * (maxDiameter / d)
		}
		out[name] = SizeEstimate{
			Diameter:   d,
			Count:      counts[name],
			Confidence: confidence,
		}
	}
	return out
}

// median of a sorted slice; the mean of the two middle values when even.
func median(sorted []float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}
