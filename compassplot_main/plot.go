/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	plot.go: heading and magnetometer plots from the sample log.
*/

// compassplot renders the compass daemon's SQLite sample log as PNGs:
// heading over time and the calibrated magnetometer X/Y scatter, which
// should be a circle centred on the origin when hard-iron calibration is good.
package main

import (
	"database/sql"
	"flag"
	"net/http"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

type track struct {
	heading plotter.XYs // seconds since first sample, degrees
	mag     plotter.XYs // calibrated X, Y
}

// loadTrack reads the samples logged in the last window. A zero window
// reads everything.
func loadTrack(db *sql.DB, window time.Duration, now time.Time) (*track, error) {
	var since int64
	if window > 0 {
		since = now.Add(-window).UnixNano()
	}
	rows, err := db.Query("SELECT t, heading, mag_x, mag_y, has_mag FROM samples WHERE t >= ? ORDER BY t", since)
	if err != nil {
		return nil, errors.Wrap(err, "querying samples")
	}
	defer rows.Close()

	tr := &track{}
	var t0 int64
	for rows.Next() {
		var (
			t       int64
			heading float64
			mx, my  int64
			hasMag  int
		)
		if err := rows.Scan(&t, &heading, &mx, &my, &hasMag); err != nil {
			return nil, err
		}
		if len(tr.heading) == 0 {
			t0 = t
		}
		tr.heading = append(tr.heading, plotter.XY{X: float64(t-t0) / 1e9, Y: heading})
		if hasMag != 0 {
			tr.mag = append(tr.mag, plotter.XY{X: float64(mx), Y: float64(my)})
		}
	}
	return tr, rows.Err()
}

func (tr *track) render(dir string) error {
	p := plot.New()
	p.Title.Text = "Heading"
	p.X.Label.Text = "Seconds"
	p.Y.Label.Text = "Degrees"
	p.Y.Min, p.Y.Max = 0, 360
	if err := plotutil.AddLines(p, "Fused", tr.heading); err != nil {
		return err
	}
	if err := p.Save(10*vg.Inch, 4*vg.Inch, filepath.Join(dir, "heading.png")); err != nil {
		return err
	}

	p = plot.New()
	p.Title.Text = "Magnetometer"
	p.X.Label.Text = "X"
	p.Y.Label.Text = "Y"
	if err := plotutil.AddScatters(p, "Calibrated", tr.mag); err != nil {
		return err
	}
	return p.Save(8*vg.Inch, 8*vg.Inch, filepath.Join(dir, "mag.png"))
}

func imageWriter(db *sql.DB, dir string, window time.Duration, log logrus.FieldLogger) {
	for {
		tr, err := loadTrack(db, window, time.Now())
		if err == nil {
			err = tr.render(dir)
		}
		if err != nil {
			log.WithError(err).Warn("plot failed")
		}
		time.Sleep(1000 * time.Millisecond)
	}
}

func main() {
	dbFile := flag.String("db", "/var/log/compass/samples.db", "compass sample log")
	dir := flag.String("out", ".", "output directory, also served over HTTP")
	window := flag.Duration("window", 5*time.Minute, "plot the most recent samples only, 0 for all")
	addr := flag.String("listen", ":8080", "HTTP listen address")
	flag.Parse()

	log := logrus.New()
	db, err := sql.Open("sqlite3", "file:"+*dbFile+"?mode=ro")
	if err != nil {
		log.WithError(err).Fatal("sql.Open")
	}
	defer db.Close()

	go imageWriter(db, *dir, *window, log)
	http.Handle("/", http.FileServer(http.Dir(*dir)))
	if err := http.ListenAndServe(*addr, nil); err != nil {
		log.WithError(err).Fatal("ListenAndServe")
	}
}
