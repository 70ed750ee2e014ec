package relstore

import (
	"database/sql"
	"fmt"

	scenelayout "github.com/mikeCplus/SOILIE-3D/scene_layout"
	_ "modernc.org/sqlite"
)

// Store persists aggregated relation tables and size estimates in a
// sqlite database, so repeated reconstruction runs skip the corpus
// aggregation pass.
type Store struct {
	*sql.DB
}

// Open opens (creating if needed) the relation database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS triplets (
			object_a          TEXT,
			object_b          TEXT,
			object_c          TEXT,
			dist_ab           DOUBLE,
			dist_ac           DOUBLE,
			dist_ao           DOUBLE,
			angle_oab         DOUBLE,
			angle_oac         DOUBLE,
			angle_bac         DOUBLE,
			count             BIGINT,
			PRIMARY KEY(object_a, object_b, object_c)
		);
		CREATE TABLE IF NOT EXISTS sizes (
			object            TEXT PRIMARY KEY,
			diameter          DOUBLE,
			count             BIGINT,
			confidence        DOUBLE
		);
	`)
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db}, nil
}

// SaveTable replaces the stored relation table with the given one in a
// single transaction.
func (s *Store) SaveTable(table scenelayout.TripletTable) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM triplets`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO triplets (object_a, object_b, object_c, dist_ab, dist_ac, dist_ao, angle_oab, angle_oac, angle_bac, count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, t := range table {
		_, err := stmt.Exec(
			t.ObjectA, t.ObjectB, t.ObjectC,
			t.DistAB, t.DistAC, t.DistAO,
			t.AngleOAB, t.AngleOAC, t.AngleBAC,
			t.Count,
		)
		if err != nil {
			return fmt.Errorf("insert triplet (%s,%s,%s): %w", t.ObjectA, t.ObjectB, t.ObjectC, err)
		}
	}

	return tx.Commit()
}

// LoadTable reads the stored relation table.
func (s *Store) LoadTable() (scenelayout.TripletTable, error) {
	rows, err := s.Query(`
		SELECT object_a, object_b, object_c, dist_ab, dist_ac, dist_ao, angle_oab, angle_oac, angle_bac, count
		FROM triplets
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	table := make(scenelayout.TripletTable)
	for rows.Next() {
		var t scenelayout.AggregatedTriplet
		err := rows.Scan(
			&t.ObjectA, &t.ObjectB, &t.ObjectC,
			&t.DistAB, &t.DistAC, &t.DistAO,
			&t.AngleOAB, &t.AngleOAC, &t.AngleBAC,
			&t.Count,
		)
		if err != nil {
			return nil, err
		}
		table[t.Key()] = t
	}
	return table, rows.Err()
}

// SaveSizes replaces the stored size estimates.
func (s *Store) SaveSizes(sizes map[string]scenelayout.SizeEstimate) error {
	tx, err := s.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`DELETE FROM sizes`); err != nil {
		return err
	}
	stmt, err := tx.Prepare(`
		INSERT INTO sizes (object, diameter, count, confidence)
		VALUES (?, ?, ?, ?)
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for name, est := range sizes {
		if _, err := stmt.Exec(name, est.Diameter, est.Count, est.Confidence); err != nil {
			return fmt.Errorf("insert size for %s: %w", name, err)
		}
	}

	return tx.Commit()
}

// LoadSizes reads the stored size estimates.
func (s *Store) LoadSizes() (map[string]scenelayout.SizeEstimate, error) {
	rows, err := s.Query(`SELECT object, diameter, count, confidence FROM sizes`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sizes := make(map[string]scenelayout.SizeEstimate)
	for rows.Next() {
		var name string
		var est scenelayout.SizeEstimate
		if err := rows.Scan(&name, &est.Diameter, &est.Count, &est.Confidence); err != nil {
			return nil, err
		}
		sizes[name] = est
	}
	return sizes, rows.Err()
}
