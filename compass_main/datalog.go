/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	datalog.go: Log fused compass samples to SQLite as they are read.

*/

package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"

	"github.com/b3nn0/dmpcompass/sensors"
)

const createSamples = `CREATE TABLE IF NOT EXISTS samples (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	t INTEGER NOT NULL,
	roll REAL, pitch REAL, heading REAL, dmp_yaw REAL,
	accel_x INTEGER, accel_y INTEGER, accel_z INTEGER,
	mag_x INTEGER, mag_y INTEGER, mag_z INTEGER,
	has_mag INTEGER,
	backlog INTEGER
)`

const insertSample = `INSERT INTO samples
	(t, roll, pitch, heading, dmp_yaw, accel_x, accel_y, accel_z, mag_x, mag_y, mag_z, has_mag, backlog)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// Samples are buffered and written in one transaction per flush.
const dataLogFlushSize = 50

type dataLog struct {
	db      *sql.DB
	pending []*sensors.Sample
}

func openDataLog(path string) (*dataLog, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "sql.Open(%s)", path)
	}
	if _, err := db.Exec(createSamples); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "creating samples table")
	}
	return &dataLog{db: db}, nil
}

func (d *dataLog) Record(s *sensors.Sample) error {
	d.pending = append(d.pending, s)
	if len(d.pending) < dataLogFlushSize {
		return nil
	}
	return d.Flush()
}

func (d *dataLog) Flush() error {
	if len(d.pending) == 0 {
		return nil
	}
	tx, err := d.db.Begin()
	if err != nil {
		return errors.Wrap(err, "datalog begin")
	}
	stmt, err := tx.Prepare(insertSample)
	if err != nil {
		tx.Rollback()
		return errors.Wrap(err, "datalog prepare")
	}
	defer stmt.Close()
	for _, s := range d.pending {
		hasMag := 0
		if s.HasMag {
			hasMag = 1
		}
		_, err := stmt.Exec(s.T.UnixNano(),
			s.FusedEuler.Roll/deg, s.FusedEuler.Pitch/deg, s.Heading(), s.DMPEuler.Yaw/deg,
			s.CalibratedAccel[0], s.CalibratedAccel[1], s.CalibratedAccel[2],
			s.CalibratedMag[0], s.CalibratedMag[1], s.CalibratedMag[2],
			hasMag, s.Backlog)
		if err != nil {
			tx.Rollback()
			return errors.Wrap(err, "datalog insert")
		}
	}
	d.pending = d.pending[:0]
	return errors.Wrap(tx.Commit(), "datalog commit")
}

// Count returns the number of samples on disk.
func (d *dataLog) Count() (int, error) {
	var n int
	err := d.db.QueryRow("SELECT COUNT(*) FROM samples").Scan(&n)
	return n, err
}

// Since returns the headings logged at or after t, oldest first.
func (d *dataLog) Since(t time.Time) ([]float64, error) {
	rows, err := d.db.Query("SELECT heading FROM samples WHERE t >= ? ORDER BY t", t.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []float64
	for rows.Next() {
		var h float64
		if err := rows.Scan(&h); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

func (d *dataLog) Close() error {
	ferr := d.Flush()
	if err := d.db.Close(); err != nil {
		return err
	}
	return ferr
}
