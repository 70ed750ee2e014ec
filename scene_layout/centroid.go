package scenelayout

import (
	"sort"

	"github.com/golang/geo/r2"
	"github.com/golang/geo/r3"
	"go.viam.com/rdk/pointcloud"
)

// ExtractObjects computes, for every labeled object in a frame, its 2D
// label placement (mean mask pixel), its 3D centroid (mean of valid cloud
// points under the mask), and its full 3D point set. Objects whose mask
// covers no valid depth are listed in Missing and excluded from the
// centroid map.
func ExtractObjects(frame FrameInput, masks map[string][]bool) (*FrameObservation, error) {
	n := frame.Width * frame.Height
	if n == 0 || len(frame.Points) != n || len(frame.Valid) != n {
		return nil, ErrEmptyFrame
	}

	obs := &FrameObservation{
		Labels:    make(map[string]r2.Point, len(masks)),
		Centroids: make(map[string]r3.Vector, len(masks)),
		Clouds:    make(map[string]pointcloud.PointCloud, len(masks)),
	}

	names := make([]string, 0, len(masks))
	for name := range masks {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		mask := masks[name]
		if len(mask) != n {
			return nil, ErrMaskShape
		}

		var sumX, sumY float64
		var pixels, valid int
		var sum3 r3.Vector
		cloud := pointcloud.New()

		for i, in := range mask {
			if !in {
				continue
			}
			pixels++
			sumX += float64(i % frame.Width)
			sumY += float64(i / frame.Width)
			if !frame.Valid[i] {
				continue
			}
			pt := frame.Points[i]
			valid++
			sum3 = sum3.Add(pt)
			//nolint:errcheck
			cloud.Set(pt, nil)
		}

		if pixels == 0 {
			continue
		}
		obs.Labels[name] = r2.Point{X: sumX / float64(pixels), Y: sumY / float64(pixels)}

		if valid == 0 {
			obs.Missing = append(obs.Missing, name)
			continue
		}
		obs.Centroids[name] = sum3.Mul(1.0 / float64(valid))
		obs.Clouds[name] = cloud
	}

	return obs, nil
}
