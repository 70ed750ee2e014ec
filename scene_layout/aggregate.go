package scenelayout

import (
	"math/rand"

	"gonum.org/v1/gonum/stat"
)

// tripletSamples accumulates the per-field observations for one key.
type tripletSamples struct {
	objA, objB, objC string
	fields           [6][]float64
}

// AverageTriplets merges triplet records from the whole corpus into one
// relation table by arithmetic mean, keyed by the canonicalized
// (objA,objB,objC) triple. The mean is commutative, so the result is
// independent of input order.
func AverageTriplets(records []TripletRecord) TripletTable {
	groups := make(map[string]*tripletSamples)
	for _, rec := range records {
		key := rec.Key()
		g, ok := groups[key]
		if !ok {
			g = &tripletSamples{
				objA: CanonicalName(rec.ObjectA),
				objB: CanonicalName(rec.ObjectB),
				objC: CanonicalName(rec.ObjectC),
			}
			groups[key] = g
		}
		g.fields[0] = append(g.fields[0], rec.DistAB)
		g.fields[1] = append(g.fields[1], rec.DistAC)
		g.fields[2] = append(g.fields[2], rec.DistAO)
		g.fields[3] = append(g.fields[3], rec.AngleBAC)
		g.fields[4] = append(g.fields[4], rec.AngleOAB)
		g.fields[5] = append(g.fields[5], rec.AngleOAC)
	}

	table := make(TripletTable, len(groups))
	for key, g := range groups {
		table[key] = AggregatedTriplet{
			TripletRecord: TripletRecord{
				ObjectA:  g.objA,
				ObjectB:  g.objB,
				ObjectC:  g.objC,
				DistAB:   stat.Mean(g.fields[0], nil),
				DistAC:   stat.Mean(g.fields[1], nil),
				DistAO:   stat.Mean(g.fields[2], nil),
				AngleBAC: stat.Mean(g.fields[3], nil),
				AngleOAB: stat.Mean(g.fields[4], nil),
				AngleOAC: stat.Mean(g.fields[5], nil),
			},
			Count: len(g.fields[0]),
		}
	}
	return table
}

// SampleTriplets builds a relation table by random single-sample
// deduplication: all records are shuffled with rng and the first
// occurrence per canonical key wins, with a count of 1. Identical seeds
// select identical records.
func SampleTriplets(records []TripletRecord, rng *rand.Rand) TripletTable {
	shuffled := make([]TripletRecord, len(records))
	copy(shuffled, records)
	rng.Shuffle(len(shuffled), func(i, j int) {
		shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
	})

	table := make(TripletTable)
	for _, rec := range shuffled {
		key := rec.Key()
		if _, ok := table[key]; ok {
			continue
		}
		canon := rec
		canon.ObjectA = CanonicalName(rec.ObjectA)
		canon.ObjectB = CanonicalName(rec.ObjectB)
		canon.ObjectC = CanonicalName(rec.ObjectC)
		table[key] = AggregatedTriplet{TripletRecord: canon, Count: 1}
	}
	return table
}
