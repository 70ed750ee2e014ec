package scenelayout

import (
	"sort"

	"go.viam.com/rdk/spatialmath"
)

// Geometries renders a layout as sized sphere geometries, one per placed
// object, using the size table for diameters. Objects without a positive
// diameter fall back to the table's median diameter. Sizing is cosmetic:
// positions come from the solver and are never adjusted here.
func (l *Layout) Geometries(sizes map[string]SizeEstimate) []spatialmath.Geometry {
	if len(l.Positions) == 0 {
		return nil
	}

	fallback := 0.0
	if len(sizes) > 0 {
		diameters := make([]float64, 0, len(sizes))
		for _, est := range sizes {
			if est.Diameter > 0 {
				diameters = append(diameters, est.Diameter)
			}
		}
		if len(diameters) > 0 {
			fallback = medianOf(diameters)
		}
	}

	names := make([]string, 0, len(l.Positions))
	for name := range l.Positions {
		names = append(names, name)
	}
	sort.Strings(names)

	var geoms []spatialmath.Geometry
	for _, name := range names {
		diameter := fallback
		if est, ok := sizes[name]; ok && est.Diameter > 0 {
			diameter = est.Diameter
		}
		if diameter <= 0 {
			continue
		}
		sphere, err := spatialmath.NewSphere(
			spatialmath.NewPoseFromPoint(l.Positions[name]),
			diameter/2,
			name,
		)
		if err != nil {
			continue
		}
		geoms = append(geoms, sphere)
	}
	return geoms
}
