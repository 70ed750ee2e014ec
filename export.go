package soilie

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/golang/geo/r3"

	scenelayout "github.com/mikeCplus/SOILIE-3D/scene_layout"
	"go.viam.com/rdk/pointcloud"
)

// Artifact headers. Downstream tooling consumes these files, so the
// header lines and row shapes are fixed.
const (
	tripletHeader  = "objectA,objectB,objectC,distanceAB,distanceAC,distanceAO,angleOAB,angleOAC,angleBAC"
	averagedHeader = tripletHeader + ",count"
	sizesHeader    = "object,diameter,count,confidence"
)

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteTripletCSV writes per-frame triplet records in the fixed column
// order.
func WriteTripletCSV(path string, records []scenelayout.TripletRecord) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create triplet file: %w", err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, tripletHeader)
	for _, rec := range records {
		fmt.Fprintln(w, strings.Join([]string{
			rec.ObjectA, rec.ObjectB, rec.ObjectC,
			formatFloat(rec.DistAB), formatFloat(rec.DistAC), formatFloat(rec.DistAO),
			formatFloat(rec.AngleOAB), formatFloat(rec.AngleOAC), formatFloat(rec.AngleBAC),
		}, ","))
	}
	return w.Flush()
}

// ReadTripletCSV parses a per-frame or corpus triplet file. Column names
// in the header may carry stray spaces (older files do); fields are
// trimmed before parsing.
func ReadTripletCSV(path string) ([]scenelayout.TripletRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open triplet file: %w", err)
	}
	defer f.Close()

	var records []scenelayout.TripletRecord
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.ReplaceAll(line, " ", "") != tripletHeader {
				return nil, fmt.Errorf("%s: unexpected header %q", path, line)
			}
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 9 {
			return nil, fmt.Errorf("%s: expected 9 columns, got %d", path, len(fields))
		}
		vals := make([]float64, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[3+i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: column %d: %w", path, 4+i, err)
			}
			vals[i] = v
		}
		records = append(records, scenelayout.TripletRecord{
			ObjectA:  strings.TrimSpace(fields[0]),
			ObjectB:  strings.TrimSpace(fields[1]),
			ObjectC:  strings.TrimSpace(fields[2]),
			DistAB:   vals[0],
			DistAC:   vals[1],
			DistAO:   vals[2],
			AngleOAB: vals[3],
			AngleOAC: vals[4],
			AngleBAC: vals[5],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// WriteAveragedCSV writes the corpus relation table with observation
// counts, rows sorted by key for stable diffs.
func WriteAveragedCSV(path string, table scenelayout.TripletTable) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create averaged file: %w", err)
	}
	defer f.Close()

	keys := make([]string, 0, len(table))
	for key := range table {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, averagedHeader)
	for _, key := range keys {
		t := table[key]
		fmt.Fprintln(w, strings.Join([]string{
			t.ObjectA, t.ObjectB, t.ObjectC,
			formatFloat(t.DistAB), formatFloat(t.DistAC), formatFloat(t.DistAO),
			formatFloat(t.AngleOAB), formatFloat(t.AngleOAC), formatFloat(t.AngleBAC),
			strconv.Itoa(t.Count),
		}, ","))
	}
	return w.Flush()
}

// ReadAveragedCSV parses a relation table written by WriteAveragedCSV.
func ReadAveragedCSV(path string) (scenelayout.TripletTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open averaged file: %w", err)
	}
	defer f.Close()

	table := make(scenelayout.TripletTable)
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.ReplaceAll(line, " ", "") != averagedHeader {
				return nil, fmt.Errorf("%s: unexpected header %q", path, line)
			}
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 10 {
			return nil, fmt.Errorf("%s: expected 10 columns, got %d", path, len(fields))
		}
		vals := make([]float64, 6)
		for i := 0; i < 6; i++ {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[3+i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: column %d: %w", path, 4+i, err)
			}
			vals[i] = v
		}
		count, err := strconv.Atoi(strings.TrimSpace(fields[9]))
		if err != nil {
			return nil, fmt.Errorf("%s: count column: %w", path, err)
		}
		t := scenelayout.AggregatedTriplet{
			TripletRecord: scenelayout.TripletRecord{
				ObjectA:  strings.TrimSpace(fields[0]),
				ObjectB:  strings.TrimSpace(fields[1]),
				ObjectC:  strings.TrimSpace(fields[2]),
				DistAB:   vals[0],
				DistAC:   vals[1],
				DistAO:   vals[2],
				AngleOAB: vals[3],
				AngleOAC: vals[4],
				AngleBAC: vals[5],
			},
			Count: count,
		}
		table[t.Key()] = t
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return table, nil
}

// WriteCentroids writes the per-frame centroid file, one `name [X,Y,Z]`
// line per object.
func WriteCentroids(path string, centroids map[string]r3.Vector) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create centroid file: %w", err)
	}
	defer f.Close()

	names := make([]string, 0, len(centroids))
	for name := range centroids {
		names = append(names, name)
	}
	sort.Strings(names)

	w := bufio.NewWriter(f)
	for _, name := range names {
		c := centroids[name]
		fmt.Fprintf(w, "%s [%s,%s,%s]\n", name, formatFloat(c.X), formatFloat(c.Y), formatFloat(c.Z))
	}
	return w.Flush()
}

// Write3D writes the raw 3D points dump: an object name line followed by
// one `(x,y,z)` tuple per point.
func Write3D(path string, clouds map[string]pointcloud.PointCloud) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create 3d file: %w", err)
	}
	defer f.Close()

	names := make([]string, 0, len(clouds))
	for name := range clouds {
		names = append(names, name)
	}
	sort.Strings(names)

	w := bufio.NewWriter(f)
	for _, name := range names {
		fmt.Fprintln(w, name)
		clouds[name].Iterate(0, 0, func(pt r3.Vector, _ pointcloud.Data) bool {
			fmt.Fprintf(w, "(%s,%s,%s)\n", formatFloat(pt.X), formatFloat(pt.Y), formatFloat(pt.Z))
			return true
		})
	}
	return w.Flush()
}

// Read3D parses a raw 3D points dump back into per-object point slices.
// Any line not shaped like a tuple starts a new object.
func Read3D(path string) (map[string][]r3.Vector, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open 3d file: %w", err)
	}
	defer f.Close()

	points := make(map[string][]r3.Vector)
	var current string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "(") || !strings.HasSuffix(line, ")") {
			current = line
			if _, ok := points[current]; !ok {
				points[current] = nil
			}
			continue
		}
		if current == "" {
			return nil, fmt.Errorf("%s: point tuple before any object name", path)
		}
		fields := strings.Split(line[1:len(line)-1], ",")
		if len(fields) != 3 {
			return nil, fmt.Errorf("%s: malformed tuple %q", path, line)
		}
		var pt r3.Vector
		for i, dst := range []*float64{&pt.X, &pt.Y, &pt.Z} {
			v, err := strconv.ParseFloat(strings.TrimSpace(fields[i]), 64)
			if err != nil {
				return nil, fmt.Errorf("%s: tuple %q: %w", path, line, err)
			}
			*dst = v
		}
		points[current] = append(points[current], pt)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return points, nil
}

// WriteSizesCSV writes the object size table.
func WriteSizesCSV(path string, sizes map[string]scenelayout.SizeEstimate) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create sizes file: %w", err)
	}
	defer f.Close()

	names := make([]string, 0, len(sizes))
	for name := range sizes {
		names = append(names, name)
	}
	sort.Strings(names)

	w := bufio.NewWriter(f)
	fmt.Fprintln(w, sizesHeader)
	for _, name := range names {
		est := sizes[name]
		fmt.Fprintf(w, "%s,%s,%d,%s\n", name, formatFloat(est.Diameter), est.Count, formatFloat(est.Confidence))
	}
	return w.Flush()
}

// ReadSizesCSV parses an object size table.
func ReadSizesCSV(path string) (map[string]scenelayout.SizeEstimate, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open sizes file: %w", err)
	}
	defer f.Close()

	sizes := make(map[string]scenelayout.SizeEstimate)
	sc := bufio.NewScanner(f)
	first := true
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if first {
			first = false
			if strings.ReplaceAll(line, " ", "") != sizesHeader {
				return nil, fmt.Errorf("%s: unexpected header %q", path, line)
			}
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) != 4 {
			return nil, fmt.Errorf("%s: expected 4 columns, got %d", path, len(fields))
		}
		diameter, err := strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: diameter: %w", path, err)
		}
		count, err := strconv.Atoi(strings.TrimSpace(fields[2]))
		if err != nil {
			return nil, fmt.Errorf("%s: count: %w", path, err)
		}
		confidence, err := strconv.ParseFloat(strings.TrimSpace(fields[3]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s: confidence: %w", path, err)
		}
		sizes[strings.TrimSpace(fields[0])] = scenelayout.SizeEstimate{
			Diameter:   diameter,
			Count:      count,
			Confidence: confidence,
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return sizes, nil
}

// SaveTableSnapshot serializes the relation table for fast reload,
// bypassing CSV parsing on subsequent runs.
func SaveTableSnapshot(path string, table scenelayout.TripletTable) error {
	data, err := json.Marshal(table)
	if err != nil {
		return fmt.Errorf("serialize table snapshot: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write table snapshot: %w", err)
	}
	return nil
}

// LoadTableSnapshot restores a relation table written by
// SaveTableSnapshot.
func LoadTableSnapshot(path string) (scenelayout.TripletTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var table scenelayout.TripletTable
	if err := json.Unmarshal(data, &table); err != nil {
		return nil, fmt.Errorf("parse table snapshot %s: %w", path, err)
	}
	return table, nil
}

// WriteLayoutJSON writes a reconstructed layout as a name -> [x,y,z]
// mapping, with CAMERA and SCALE pseudo-entries alongside the objects.
func WriteLayoutJSON(path string, layout *scenelayout.Layout) error {
	out := make(map[string]interface{}, len(layout.Positions)+2)
	for name, pos := range layout.Positions {
		out[name] = [3]float64{pos.X, pos.Y, pos.Z}
	}
	out[scenelayout.CameraKey] = [3]float64{layout.Camera.X, layout.Camera.Y, layout.Camera.Z}
	out[scenelayout.ScaleKey] = layout.Scale

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("serialize layout: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write layout: %w", err)
	}
	return nil
}
