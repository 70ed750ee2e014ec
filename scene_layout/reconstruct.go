package scenelayout

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/golang/geo/r3"
	"gonum.org/v1/gonum/mat"

	"go.viam.com/rdk/logging"
)

// Solver reconstructs a globally consistent 3D layout for a requested set
// of objects from an aggregated relation table. The table and size table
// are treated as read-only, so one Solver may serve many Reconstruct
// calls.
type Solver struct {
	table  TripletTable
	sizes  map[string]SizeEstimate
	cfg    SolverConfig
	rng    *rand.Rand
	logger logging.Logger
}

// NewSolver creates a Solver over a relation table. sizes may be nil when
// no size table is available; it is consulted for scale sanity only and
// never alters solved positions.
func NewSolver(table TripletTable, sizes map[string]SizeEstimate, cfg SolverConfig, logger logging.Logger) *Solver {
	def := DefaultConfig().Solver
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.Epsilon <= 0 {
		cfg.Epsilon = def.Epsilon
	}
	if logger == nil {
		logger = logging.NewLogger("layout-solver")
	}
	return &Solver{
		table:  table,
		sizes:  sizes,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec
		logger: logger,
	}
}

// Reconstruct finds a covering set of triplets sharing one anchor pair,
// solves each triplet's local placement in closed form, and aligns all
// local frames into the first triplet's coordinate system. It retries
// with fresh random anchor-pair permutations up to the configured attempt
// cap; running out of attempts is ErrInsufficientData.
func (s *Solver) Reconstruct(objects []string) (*Layout, error) {
	if len(s.table) == 0 {
		return nil, ErrEmptyTable
	}
	if len(objects) < 3 {
		return nil, ErrTooFewObjects
	}

	names := make([]string, len(objects))
	for i, o := range objects {
		names[i] = CanonicalName(o)
	}

	for attempt := 1; attempt <= s.cfg.MaxAttempts; attempt++ {
		perm := make([]string, len(names))
		copy(perm, names)
		s.rng.Shuffle(len(perm), func(i, j int) {
			perm[i], perm[j] = perm[j], perm[i]
		})

		locals, ok := s.tryPermutation(perm)
		if !ok {
			s.logger.Debugf("attempt %d: anchor pair (%s,%s) does not cover all objects, retrying",
				attempt, perm[0], perm[1])
			continue
		}

		layout, err := s.stitch(locals)
		if err != nil {
			s.logger.Warnf("attempt %d: %v", attempt, err)
			continue
		}
		if missing := missingFrom(layout, names); len(missing) > 0 {
			s.logger.Warnf("attempt %d: stitching left objects unplaced: %v", attempt, missing)
			continue
		}
		s.checkScaleSanity(layout)
		return layout, nil
	}

	return nil, fmt.Errorf("exhausted %d permutation attempts: %w", s.cfg.MaxAttempts, ErrInsufficientData)
}

// tryPermutation builds and locally solves the candidate triplet set
// {(A,B,x)} for one permutation. Reports false when any requested object
// ends up uncovered.
func (s *Solver) tryPermutation(perm []string) ([]LocalTriplet, bool) {
	anchorA, anchorB := perm[0], perm[1]

	var entries []AggregatedTriplet
	for _, third := range perm[2:] {
		key := CanonicalKey(anchorA, anchorB, third)
		entry, ok := s.table[key]
		if !ok {
			s.logger.Warnf("triplet not found in relation table: %s", key)
			continue
		}
		entries = append(entries, entry)
	}
	if len(entries) == 0 {
		return nil, false
	}

	// Reconcile slightly differing per-triplet estimates of the anchor
	// distance: every local frame uses the maximum observed AB.
	anchorDist := 0.0
	for _, e := range entries {
		if e.DistAB > anchorDist {
			anchorDist = e.DistAB
		}
	}

	var locals []LocalTriplet
	covered := map[string]bool{}
	for _, e := range entries {
		local, err := SolveLocalTriplet(e, anchorDist)
		if err != nil {
			s.logger.Warnf("dropping triplet %s: %v", e.Key(), err)
			continue
		}
		locals = append(locals, local)
		covered[local.ObjectA] = true
		covered[local.ObjectB] = true
		covered[local.ObjectC] = true
	}

	for _, name := range perm {
		if !covered[name] {
			return nil, false
		}
	}
	return locals, true
}

// SolveLocalTriplet computes the closed-form local placement for one
// aggregated triplet: A at the origin, B at (anchorDist,0,0), C in the XY
// plane from angle BAC, and the camera located by the two origin angles.
// Returns ErrDegenerateTriplet when the observed values admit no
// consistent placement (collinear A,B,C or a camera distance that cannot
// reach the implied offsets).
func SolveLocalTriplet(t AggregatedTriplet, anchorDist float64) (LocalTriplet, error) {
	bac := t.AngleBAC * math.Pi / 180
	oab := t.AngleOAB * math.Pi / 180
	oac := t.AngleOAC * math.Pi / 180

	cx := t.DistAC * math.Cos(bac)
	cy := t.DistAC * math.Sin(bac)
	if math.Abs(cy) < 1e-12 {
		return LocalTriplet{}, fmt.Errorf("%w: A, B, C are collinear (angleBAC=%.3f)", ErrDegenerateTriplet, t.AngleBAC)
	}

	x := t.DistAO * math.Cos(oab)
	y := (t.DistAC*t.DistAO*math.Cos(oac) - cx*x) / cy
	zz := t.DistAO*t.DistAO - x*x - y*y
	if zz < 0 {
		if zz < -1e-9 {
			return LocalTriplet{}, fmt.Errorf("%w: camera offsets exceed distAO (discriminant=%g)", ErrDegenerateTriplet, zz)
		}
		zz = 0
	}

	a := r3.Vector{}
	b := r3.Vector{X: anchorDist}
	c := r3.Vector{X: cx, Y: cy}
	o := r3.Vector{X: x, Y: y, Z: math.Sqrt(zz)}

	scale := math.Min(anchorDist, t.DistAC)
	scale = math.Min(scale, t.DistAO)
	scale = math.Min(scale, b.Sub(c).Norm())
	scale = math.Min(scale, b.Sub(o).Norm())
	scale = math.Min(scale, c.Sub(o).Norm())

	return LocalTriplet{
		ObjectA: t.ObjectA,
		ObjectB: t.ObjectB,
		ObjectC: t.ObjectC,
		A:       a,
		B:       b,
		C:       c,
		Camera:  o,
		Scale:   scale,
	}, nil
}

// stitch merges locally solved triplets into one frame. The first
// triplet's {A, B, camera, centroid(A,B,camera)} is the base reference;
// every other triplet is mapped onto it by a least-squares affine
// transform of the same four points, and the transformed C is identified
// as the one point that corresponds to no base point.
func (s *Solver) stitch(locals []LocalTriplet) (*Layout, error) {
	base := locals[0]
	basePts := referenceFrame(base)

	layout := &Layout{
		Positions: map[string]r3.Vector{
			base.ObjectA: base.A,
			base.ObjectB: base.B,
			base.ObjectC: base.C,
		},
		Camera: base.Camera,
		Scale:  base.Scale,
	}

	for _, local := range locals[1:] {
		currPts := referenceFrame(local)

		transform, err := affineLeastSquares(currPts, basePts)
		if err != nil {
			return nil, fmt.Errorf("aligning triplet (%s,%s,%s): %w", local.ObjectA, local.ObjectB, local.ObjectC, err)
		}

		// Transform the frame points plus C, then find the one transformed
		// point that matches no base point: that residual is C in the base
		// frame. Zero or several residuals means the correspondence test is
		// ambiguous (e.g. near-collinear A, B, camera) and the result would
		// be a guess, so reject instead.
		candidates := append(currPts[:], local.C)
		var residuals []r3.Vector
		for _, pt := range candidates {
			mapped := applyAffine(transform, pt)
			if !nearAny(mapped, basePts[:], s.cfg.Epsilon) {
				residuals = append(residuals, mapped)
			}
		}
		if len(residuals) != 1 {
			return nil, fmt.Errorf("ambiguous residual point for triplet (%s,%s,%s): %d unmatched points",
				local.ObjectA, local.ObjectB, local.ObjectC, len(residuals))
		}

		layout.Positions[local.ObjectC] = residuals[0]
		if local.Scale < layout.Scale {
			layout.Scale = local.Scale
		}
	}

	return layout, nil
}

// referenceFrame returns a triplet's 4-point alignment frame: A, B, the
// camera, and their centroid.
func referenceFrame(t LocalTriplet) [4]r3.Vector {
	centroid := t.A.Add(t.B).Add(t.Camera).Mul(1.0 / 3.0)
	return [4]r3.Vector{t.A, t.B, t.Camera, centroid}
}

// affineLeastSquares solves src * M = dst in the least-squares sense for
// the 4x4 affine matrix M over homogeneous rows [x y z 1]. The four frame
// points are coplanar by construction, so the system is rank deficient;
// the SVD-based minimum-norm solution pins the in-plane mapping and is
// exactly what the correspondence step downstream relies on.
func affineLeastSquares(src, dst [4]r3.Vector) (*mat.Dense, error) {
	a := mat.NewDense(4, 4, nil)
	b := mat.NewDense(4, 4, nil)
	for i := 0; i < 4; i++ {
		a.SetRow(i, []float64{src[i].X, src[i].Y, src[i].Z, 1})
		b.SetRow(i, []float64{dst[i].X, dst[i].Y, dst[i].Z, 1})
	}

	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThin) {
		return nil, fmt.Errorf("SVD factorization failed")
	}
	values := svd.Values(nil)
	rank := 0
	tol := 1e-10 * values[0]
	for _, v := range values {
		if v > tol {
			rank++
		}
	}
	if rank == 0 {
		return nil, fmt.Errorf("degenerate reference frame")
	}

	var m mat.Dense
	svd.SolveTo(&m, b, rank)
	return &m, nil
}

// applyAffine maps a point through a 4x4 homogeneous transform.
func applyAffine(m *mat.Dense, p r3.Vector) r3.Vector {
	row := mat.NewDense(1, 4, []float64{p.X, p.Y, p.Z, 1})
	var out mat.Dense
	out.Mul(row, m)
	return r3.Vector{X: out.At(0, 0), Y: out.At(0, 1), Z: out.At(0, 2)}
}

// nearAny reports whether p lies within the squared-distance epsilon of
// any of the given points.
func nearAny(p r3.Vector, pts []r3.Vector, epsilon float64) bool {
	for _, q := range pts {
		d := p.Sub(q)
		if d.X*d.X+d.Y*d.Y+d.Z*d.Z < epsilon {
			return true
		}
	}
	return false
}

// missingFrom lists requested objects absent from the layout.
func missingFrom(layout *Layout, names []string) []string {
	var missing []string
	for _, name := range names {
		if _, ok := layout.Positions[name]; !ok {
			missing = append(missing, name)
		}
	}
	return missing
}

// checkScaleSanity compares the solved scale against the size table and
// logs when the layout's smallest separation is smaller than the median
// object diameter, which usually means the relation table mixed
// incompatible observations. Diagnostic only.
func (s *Solver) checkScaleSanity(layout *Layout) {
	if len(s.sizes) == 0 {
		return
	}
	diameters := make([]float64, 0, len(s.sizes))
	for _, est := range s.sizes {
		if est.Diameter > 0 {
			diameters = append(diameters, est.Diameter)
		}
	}
	if len(diameters) == 0 {
		return
	}
	med := medianOf(diameters)
	if layout.Scale < med {
		s.logger.Warnf("layout scale %.4f is below median object diameter %.4f; placements may overlap",
			layout.Scale, med)
	}
}

func medianOf(vals []float64) float64 {
	sorted := make([]float64, len(vals))
	copy(sorted, vals)
	sort.Float64s(sorted)
	return median(sorted)
}
