package scenelayout

import (
	"math"
	"math/rand"
	"testing"

	"github.com/golang/geo/r3"
)

func syntheticRecords(seed int64, n int) []TripletRecord {
	rng := rand.New(rand.NewSource(seed))
	names := []string{"cup", "cup_2", "plate", "plate_17", "knife"}
	var records []TripletRecord
	for i := 0; i < n; i++ {
		centroids := map[string]r3.Vector{}
		for _, name := range names {
			centroids[name] = r3.Vector{
				X: rng.Float64()*3 - 1.5,
				Y: rng.Float64()*3 - 1.5,
				Z: rng.Float64()*2 + 0.5,
			}
		}
		recs, _ := Triplets(centroids)
		records = append(records, recs...)
	}
	return records
}

func TestAverageTriplets_Canonicalization(t *testing.T) {
	// Observations of cup_1 and cup_2 pool under the canonical cup key.
	records := []TripletRecord{
		{ObjectA: "cup_1", ObjectB: "plate", ObjectC: "knife", DistAB: 1, DistAC: 1, DistAO: 1, AngleBAC: 40, AngleOAB: 40, AngleOAC: 40},
		{ObjectA: "cup_2", ObjectB: "plate", ObjectC: "knife", DistAB: 3, DistAC: 3, DistAO: 3, AngleBAC: 80, AngleOAB: 80, AngleOAC: 80},
	}
	table := AverageTriplets(records)
	if len(table) != 1 {
		t.Fatalf("expected 1 pooled key, got %d", len(table))
	}
	agg, ok := table["cup,plate,knife"]
	if !ok {
		t.Fatalf("missing canonical key; table = %v", table)
	}
	if agg.ObjectA != "cup" {
		t.Errorf("ObjectA = %q, want canonical cup", agg.ObjectA)
	}
	if agg.Count != 2 || agg.DistAB != 2 || agg.AngleBAC != 60 {
		t.Errorf("pooled entry = %+v", agg)
	}
	// Both cup instances in one frame still yield a valid repeated-name
	// key rather than collapsing or erroring.
	records = append(records, TripletRecord{ObjectA: "cup_1", ObjectB: "cup_2", ObjectC: "plate", DistAB: 0.5, DistAC: 1, DistAO: 1, AngleBAC: 10, AngleOAB: 10, AngleOAC: 10})
	table = AverageTriplets(records)
	if _, ok := table["cup,cup,plate"]; !ok {
		t.Errorf("repeated-name key missing; table keys = %d", len(table))
	}
}

func TestAverageTriplets_OrderIndependent(t *testing.T) {
	records := syntheticRecords(2, 4)
	table1 := AverageTriplets(records)

	shuffled := make([]TripletRecord, len(records))
	copy(shuffled, records)
	rng := rand.New(rand.NewSource(99))
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})
	table2 := AverageTriplets(shuffled)

	if len(table1) != len(table2) {
		t.Fatalf("table sizes differ: %d vs %d", len(table1), len(table2))
	}
	for key, a := range table1 {
		b, ok := table2[key]
		if !ok {
			t.Fatalf("key %s missing from shuffled table", key)
		}
		if a.Count != b.Count {
			t.Errorf("key %s: counts differ %d vs %d", key, a.Count, b.Count)
		}
		pairs := [][2]float64{
			{a.DistAB, b.DistAB}, {a.DistAC, b.DistAC}, {a.DistAO, b.DistAO},
			{a.AngleBAC, b.AngleBAC}, {a.AngleOAB, b.AngleOAB}, {a.AngleOAC, b.AngleOAC},
		}
		for i, p := range pairs {
			if math.Abs(p[0]-p[1]) > 1e-9 {
				t.Errorf("key %s field %d: %.12f vs %.12f", key, i, p[0], p[1])
			}
		}
	}
}

func TestAverageTriplets_MeanValues(t *testing.T) {
	records := []TripletRecord{
		{ObjectA: "a", ObjectB: "b", ObjectC: "c", DistAB: 1, DistAC: 2, DistAO: 3, AngleBAC: 30, AngleOAB: 60, AngleOAC: 90},
		{ObjectA: "a", ObjectB: "b", ObjectC: "c", DistAB: 3, DistAC: 4, DistAO: 5, AngleBAC: 90, AngleOAB: 120, AngleOAC: 30},
	}
	table := AverageTriplets(records)
	agg, ok := table["a,b,c"]
	if !ok {
		t.Fatalf("missing key a,b,c; table has %d entries", len(table))
	}
	if agg.Count != 2 {
		t.Errorf("count = %d, want 2", agg.Count)
	}
	if agg.DistAB != 2 || agg.DistAC != 3 || agg.DistAO != 4 {
		t.Errorf("distances = (%.1f, %.1f, %.1f), want (2, 3, 4)", agg.DistAB, agg.DistAC, agg.DistAO)
	}
	if agg.AngleBAC != 60 || agg.AngleOAB != 90 || agg.AngleOAC != 60 {
		t.Errorf("angles = (%.1f, %.1f, %.1f), want (60, 90, 60)", agg.AngleBAC, agg.AngleOAB, agg.AngleOAC)
	}
}

func TestSampleTriplets_Reproducible(t *testing.T) {
	records := syntheticRecords(3, 5)

	table1 := SampleTriplets(records, rand.New(rand.NewSource(11)))
	table2 := SampleTriplets(records, rand.New(rand.NewSource(11)))

	if len(table1) != len(table2) {
		t.Fatalf("table sizes differ: %d vs %d", len(table1), len(table2))
	}
	for key, a := range table1 {
		b, ok := table2[key]
		if !ok {
			t.Fatalf("key %s missing under identical seed", key)
		}
		if a != b {
			t.Errorf("key %s: entries differ under identical seed", key)
		}
		if a.Count != 1 {
			t.Errorf("key %s: sampled count %d, want 1", key, a.Count)
		}
	}
}

func TestSampleTriplets_PicksObservedValues(t *testing.T) {
	records := syntheticRecords(4, 3)
	table := SampleTriplets(records, rand.New(rand.NewSource(5)))

	for key, agg := range table {
		found := false
		for _, rec := range records {
			if rec.Key() == key && rec.DistAB == agg.DistAB && rec.AngleBAC == agg.AngleBAC {
				found = true
				break
			}
		}
		if !found {
			t.Errorf("key %s: sampled entry matches no input record", key)
		}
	}
}
