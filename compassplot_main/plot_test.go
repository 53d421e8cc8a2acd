/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	plot_test.go: sample log plotting tests.
*/

package main

import (
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleDB(t *testing.T, t0 time.Time) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", filepath.Join(t.TempDir(), "samples.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	_, err = db.Exec(`CREATE TABLE samples (t INTEGER, heading REAL, mag_x INTEGER, mag_y INTEGER, has_mag INTEGER)`)
	require.NoError(t, err)
	for ii, row := range []struct {
		dt      time.Duration
		heading float64
		x, y    int
		hasMag  int
	}{
		{0, 10, 100, 0, 1},
		{time.Minute, 20, 0, 100, 1},
		{2 * time.Minute, 30, 0, 0, 0},
		{10 * time.Minute, 40, -100, 0, 1},
	} {
		_, err := db.Exec("INSERT INTO samples VALUES (?, ?, ?, ?, ?)", t0.Add(row.dt).UnixNano(), row.heading, row.x, row.y, row.hasMag)
		require.NoError(t, err, ii)
	}
	return db
}

func TestLoadTrack(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	db := sampleDB(t, t0)

	tr, err := loadTrack(db, 0, t0)
	require.NoError(t, err)
	require.Len(t, tr.heading, 4)
	require.Len(t, tr.mag, 3)
	assert.Equal(t, 60.0, tr.heading[1].X)
	assert.Equal(t, 20.0, tr.heading[1].Y)
	assert.Equal(t, -100.0, tr.mag[2].X)

	tr, err = loadTrack(db, 9*time.Minute, t0.Add(10*time.Minute))
	require.NoError(t, err)
	require.Len(t, tr.heading, 3)
	assert.Equal(t, 0.0, tr.heading[0].X)
	assert.Equal(t, 20.0, tr.heading[0].Y)
}

func TestRender(t *testing.T) {
	t0 := time.Unix(1700000000, 0)
	tr, err := loadTrack(sampleDB(t, t0), 0, t0)
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, tr.render(dir))
	for _, name := range []string{"heading.png", "mag.png"} {
		st, err := os.Stat(filepath.Join(dir, name))
		require.NoError(t, err)
		assert.NotZero(t, st.Size())
	}
}
