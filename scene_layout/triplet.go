package scenelayout

import (
	"math"
	"sort"

	"github.com/golang/geo/r3"
)

// minVectorNorm is the smallest vector length for which an angle is
// considered defined.
const minVectorNorm = 1e-12

// Triplets computes a TripletRecord for every ordered triplet of distinct
// objects with a known centroid in the frame. The sensor origin O is
// (0,0,0) in the frame's local coordinates. Triplets with a zero-length
// vector (coincident centroids, or a centroid at the origin) are skipped
// and reported, never fatal. Output order is deterministic.
func Triplets(centroids map[string]r3.Vector) ([]TripletRecord, []SkippedTriplet) {
	names := make([]string, 0, len(centroids))
	for name := range centroids {
		names = append(names, name)
	}
	sort.Strings(names)

	var records []TripletRecord
	var skipped []SkippedTriplet

	for _, nameA := range names {
		for _, nameB := range names {
			if nameB == nameA {
				continue
			}
			for _, nameC := range names {
				if nameC == nameA || nameC == nameB {
					continue
				}
				a := centroids[nameA]
				b := centroids[nameB]
				c := centroids[nameC]

				ba := b.Sub(a)
				ca := c.Sub(a)
				oa := a.Mul(-1) // O - A with O at the origin

				angleBAC, ok1 := angleBetweenDeg(ba, ca)
				angleOAB, ok2 := angleBetweenDeg(oa, ba)
				angleOAC, ok3 := angleBetweenDeg(oa, ca)
				if !ok1 || !ok2 || !ok3 {
					skipped = append(skipped, SkippedTriplet{
						ObjectA: nameA,
						ObjectB: nameB,
						ObjectC: nameC,
						Reason:  "zero-length vector",
					})
					continue
				}

				records = append(records, TripletRecord{
					ObjectA:  nameA,
					ObjectB:  nameB,
					ObjectC:  nameC,
					DistAB:   ba.Norm(),
					DistAC:   ca.Norm(),
					DistAO:   oa.Norm(),
					AngleBAC: angleBAC,
					AngleOAB: angleOAB,
					AngleOAC: angleOAC,
				})
			}
		}
	}

	return records, skipped
}

// angleBetweenDeg returns the angle between two vectors in degrees.
// Reports false when either vector is too short for the angle to be
// defined. The cosine is clamped so floating-point drift can't push
// arccos out of domain.
func angleBetweenDeg(u, v r3.Vector) (float64, bool) {
	nu := u.Norm()
	nv := v.Norm()
	if nu < minVectorNorm || nv < minVectorNorm {
		return 0, false
	}
	cos := u.Dot(v) / (nu * nv)
	if cos > 1 {
		cos = 1
	} else if cos < -1 {
		cos = -1
	}
	return math.Acos(cos) * 180 / math.Pi, true
}
