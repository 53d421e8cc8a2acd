/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	file.go: calibration file format, six decimal lines (offsets, then ranges).
*/

package calibration

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// Read parses a calibration file. Values missing from a short file keep the
// value from def.
func Read(r io.Reader, def Data) (Data, error) {
	d := def
	sc := bufio.NewScanner(r)
	for ii := 0; ii < 6 && sc.Scan(); ii++ {
		line := strings.TrimSpace(sc.Text())
		v, err := strconv.ParseInt(line, 10, 32)
		if err != nil {
			return def, errors.Wrapf(err, "calibration line %d", ii+1)
		}
		if ii < 3 {
			d.Offset[ii] = int32(v)
			continue
		}
		if v < -32768 || v > 32767 {
			return def, errors.Errorf("calibration line %d: range %d out of bounds", ii+1, v)
		}
		d.Range[ii-3] = int16(v)
	}
	if err := sc.Err(); err != nil {
		return def, errors.Wrap(err, "reading calibration")
	}
	return d, nil
}

// Write emits d in the format Read parses.
func Write(w io.Writer, d Data) error {
	for _, o := range d.Offset {
		if _, err := fmt.Fprintf(w, "%d\n", o); err != nil {
			return err
		}
	}
	for _, r := range d.Range {
		if _, err := fmt.Fprintf(w, "%d\n", r); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the calibration file at path. On any error def is returned along
// with the error.
func Load(path string, def Data) (Data, error) {
	f, err := os.Open(path)
	if err != nil {
		return def, errors.Wrap(err, "opening calibration")
	}
	defer f.Close()
	return Read(f, def)
}

// Save writes d to path, replacing any existing file.
func Save(path string, d Data) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating calibration")
	}
	if err := Write(f, d); err != nil {
		f.Close()
		return errors.Wrap(err, "writing calibration")
	}
	return f.Close()
}
