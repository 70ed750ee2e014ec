package soilie

import (
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"sort"

	"github.com/golang/geo/r3"

	scenelayout "github.com/mikeCplus/SOILIE-3D/scene_layout"
	"go.viam.com/rdk/logging"
)

// Standard corpus artifact names under the data directory.
const (
	TripletsFile    = "triplets.csv"
	AveragedCSVFile = "triplets_avg.csv"
	SnapshotFile    = "triplets_avg.json"
	SizesFile       = "object_sizes.csv"
	LayoutFile      = "layout.json"
	ObjectsLogFile  = "objects.log"
)

// GatherTriplets merges per-frame triplet files into a single corpus
// file with canonicalized object names, sorted for stable output. The
// merged records are returned for further aggregation.
func GatherTriplets(csvPaths []string, outPath string) ([]scenelayout.TripletRecord, error) {
	var merged []scenelayout.TripletRecord
	for _, path := range csvPaths {
		records, err := ReadTripletCSV(path)
		if err != nil {
			return nil, err
		}
		for _, rec := range records {
			rec.ObjectA = scenelayout.CanonicalName(rec.ObjectA)
			rec.ObjectB = scenelayout.CanonicalName(rec.ObjectB)
			rec.ObjectC = scenelayout.CanonicalName(rec.ObjectC)
			merged = append(merged, rec)
		}
	}

	sort.Slice(merged, func(i, j int) bool {
		a, b := merged[i], merged[j]
		if a.ObjectA != b.ObjectA {
			return a.ObjectA < b.ObjectA
		}
		if a.ObjectB != b.ObjectB {
			return a.ObjectB < b.ObjectB
		}
		if a.ObjectC != b.ObjectC {
			return a.ObjectC < b.ObjectC
		}
		if a.DistAB != b.DistAB {
			return a.DistAB < b.DistAB
		}
		if a.DistAC != b.DistAC {
			return a.DistAC < b.DistAC
		}
		if a.DistAO != b.DistAO {
			return a.DistAO < b.DistAO
		}
		if a.AngleOAB != b.AngleOAB {
			return a.AngleOAB < b.AngleOAB
		}
		if a.AngleOAC != b.AngleOAC {
			return a.AngleOAC < b.AngleOAC
		}
		return a.AngleBAC < b.AngleBAC
	})

	if err := WriteTripletCSV(outPath, merged); err != nil {
		return nil, err
	}
	return merged, nil
}

// AverageCorpus aggregates merged records into the relation table and
// writes both the CSV table and its JSON snapshot under outDir.
func AverageCorpus(records []scenelayout.TripletRecord, outDir string) (scenelayout.TripletTable, error) {
	table := scenelayout.AverageTriplets(records)
	if err := WriteAveragedCSV(filepath.Join(outDir, AveragedCSVFile), table); err != nil {
		return nil, err
	}
	if err := SaveTableSnapshot(filepath.Join(outDir, SnapshotFile), table); err != nil {
		return nil, err
	}
	return table, nil
}

// ApproximateSizes rebuilds per-object size estimates from raw 3D point
// dumps. Each object's centroid is recomputed as the mean of its dumped
// points, then every point feeds a centroid distance into the
// accumulator.
func ApproximateSizes(threeDPaths []string, outPath string, cfg scenelayout.SizeConfig) (map[string]scenelayout.SizeEstimate, error) {
	acc := scenelayout.NewSizeAccumulator(cfg)
	for _, path := range threeDPaths {
		objects, err := Read3D(path)
		if err != nil {
			return nil, err
		}
		for name, points := range objects {
			if len(points) == 0 {
				continue
			}
			var sum r3.Vector
			for _, pt := range points {
				sum = sum.Add(pt)
			}
			centroid := sum.Mul(1 / float64(len(points)))
			acc.AddPoints(scenelayout.CanonicalName(name), points, centroid)
		}
	}

	sizes := acc.Estimate()
	if err := WriteSizesCSV(outPath, sizes); err != nil {
		return nil, err
	}
	return sizes, nil
}

// LoadTripletTable loads the relation table from a data directory in the
// requested aggregation mode. Averaging prefers the JSON snapshot and
// falls back to the CSV table; sampling re-reads the merged corpus file
// and draws one observation per relation using rng.
func LoadTripletTable(dir string, mode scenelayout.AggregationMode, rng *rand.Rand, logger logging.Logger) (scenelayout.TripletTable, error) {
	switch mode {
	case scenelayout.Averaging:
		table, err := LoadTableSnapshot(filepath.Join(dir, SnapshotFile))
		if err == nil {
			return table, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			logger.Warnf("table snapshot unusable, falling back to CSV: %v", err)
		}
		return ReadAveragedCSV(filepath.Join(dir, AveragedCSVFile))
	case scenelayout.Sampling:
		records, err := ReadTripletCSV(filepath.Join(dir, TripletsFile))
		if err != nil {
			return nil, err
		}
		return scenelayout.SampleTriplets(records, rng), nil
	default:
		return nil, fmt.Errorf("unknown aggregation mode %v", mode)
	}
}
