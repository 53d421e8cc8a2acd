/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	compass.go: MPU-9150 DMP compass facade.
*/

package sensors

import (
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/b3nn0/dmpcompass/calibration"
	"github.com/b3nn0/dmpcompass/dmp"
	"github.com/b3nn0/dmpcompass/fusion"
	"github.com/b3nn0/dmpcompass/mpu"
)

// ErrNoData means the motion processor signalled no new packet within PollTimeout.
var ErrNoData = errors.New("sensors: no DMP data ready")

// dmpReady is the interrupt status the DMP raises once per FIFO packet.
const dmpReady = mpu.IntStatusDataReady | mpu.IntStatusDMP | mpu.IntStatusDMP0

// Config selects rates, calibration and fusion strength.
type Config struct {
	SampleRate   int // chip sampling rate before the DMP takes over, Hz
	CompassRate  int // Hz
	YawMixFactor int
	UseMag       bool
	AccelCal     *calibration.Data
	MagCal       *calibration.Data
	PollInterval time.Duration
	PollTimeout  time.Duration

	Now   func() time.Time
	Sleep func(time.Duration)
}

// DefaultConfig returns a 50Hz, 10Hz compass configuration with moderate magnetic correction.
func DefaultConfig() Config {
	return Config{
		SampleRate:   50,
		CompassRate:  10,
		YawMixFactor: 4,
		UseMag:       true,
		PollInterval: 2 * time.Millisecond,
		PollTimeout:  500 * time.Millisecond,
	}
}

// Compass is an MPU9150 with its DMP running, attached to the I2C bus, and
// satisfies the IMUReader interface.
type Compass struct {
	dev   *mpu.MPU9150
	md    dmp.MotionDriver
	eng   *fusion.Engine
	state fusion.State
	cfg   Config
	log   logrus.FieldLogger
}

// Open initializes dev, loads the motion driver and starts the DMP.
func Open(dev *mpu.MPU9150, md dmp.MotionDriver, cfg Config, log logrus.FieldLogger) (*Compass, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Sleep == nil {
		cfg.Sleep = time.Sleep
	}
	c := &Compass{
		dev: dev,
		md:  md,
		eng: fusion.NewEngine(cfg.YawMixFactor, cfg.MagCal, cfg.AccelCal),
		cfg: cfg,
		log: log,
	}

	log.Info("AHRS Info: initializing MPU9150")
	if err := dev.Init(cfg.UseMag); err != nil {
		return nil, errors.Wrap(err, "mpu init")
	}

	mask := mpu.XYZGyro | mpu.XYZAccel
	if cfg.UseMag {
		mask |= mpu.XYZCompass
	}
	if err := dev.SetSensors(mask); err != nil {
		return nil, errors.Wrap(err, "enabling sensors")
	}
	res, err := dev.ConfigureFIFO(mpu.XYZGyro | mpu.XYZAccel)
	if err != nil {
		return nil, errors.Wrap(err, "configuring FIFO")
	}
	if res.Partial {
		return nil, errors.Errorf("FIFO enabled for %v only", res.Applied)
	}
	if err := dev.SetSampleRate(cfg.SampleRate); err != nil {
		return nil, errors.Wrap(err, "setting sample rate")
	}
	if cfg.UseMag {
		if err := dev.SetCompassSampleRate(cfg.CompassRate); err != nil {
			return nil, errors.Wrap(err, "setting compass rate")
		}
	}

	log.Info("AHRS Info: loading DMP firmware")
	if err := md.Load(dev); err != nil {
		return nil, errors.Wrap(err, "loading DMP")
	}
	if err := dev.SetDMPState(true); err != nil {
		return nil, errors.Wrap(err, "starting DMP")
	}

	if cfg.AccelCal != nil {
		if err := dev.SetAccelBias(cfg.AccelCal.AccelBias()); err != nil {
			return nil, errors.Wrap(err, "writing accel bias")
		}
	}

	log.WithField("yaw_mix", c.eng.YawMixFactor).WithField("mag", cfg.UseMag).Info("AHRS Info: monitoring IMU")
	return c, nil
}

// Read waits for the DMP, drains the FIFO to the newest packet, reads the
// compass and fuses. Data-integrity failures return an error and leave the
// fused state untouched; the caller may simply read again.
func (c *Compass) Read() (*Sample, error) {
	if err := c.waitReady(); err != nil {
		return nil, err
	}

	var (
		pkt     dmp.Packet
		backlog int
	)
	for {
		p, err := dmp.ReadPacket(c.dev, c.md, c.cfg.Now())
		if err != nil {
			if errors.Is(err, dmp.ErrBadQuaternion) {
				if rerr := c.dev.ResetFIFO(); rerr != nil {
					return nil, rerr
				}
			}
			return nil, c.drop(err)
		}
		pkt = p
		if p.More <= 0 {
			break
		}
		backlog++
	}
	fifoBacklog.Set(float64(backlog))

	s := &Sample{
		T:       pkt.Timestamp,
		Quat:    pkt.Quat,
		Gyro:    pkt.Gyro,
		Accel:   pkt.Accel,
		Backlog: backlog,
	}
	in := fusion.Input{Quat: fusion.FromQ30(pkt.Quat), Accel: pkt.Accel}

	if c.cfg.UseMag {
		mag, t, err := c.dev.CompassReg()
		if err != nil {
			return nil, c.drop(err)
		}
		s.Mag, s.MagT, s.HasMag = mag, t, true
		in.Mag, in.HasMag = mag, true
	}

	st, err := c.eng.Fuse(in, c.state)
	if err != nil {
		return nil, c.drop(err)
	}
	c.state = st
	s.State = st

	fusedSamples.Inc()
	fusedYaw.Set(st.FusedEuler.Yaw)
	return s, nil
}

func (c *Compass) waitReady() error {
	deadline := c.cfg.Now().Add(c.cfg.PollTimeout)
	for {
		st, err := c.dev.IntStatus()
		if err != nil {
			return err
		}
		if st&dmpReady == dmpReady {
			return nil
		}
		if !c.cfg.Now().Before(deadline) {
			return c.drop(ErrNoData)
		}
		c.cfg.Sleep(c.cfg.PollInterval)
	}
}

func (c *Compass) drop(err error) error {
	reason := "other"
	switch {
	case errors.Is(err, ErrNoData):
		reason = "no_data"
	case errors.Is(err, mpu.ErrFIFOOverflow):
		reason = "fifo_overflow"
	case errors.Is(err, mpu.ErrFIFOEmpty):
		reason = "fifo_empty"
	case errors.Is(err, dmp.ErrBadQuaternion), errors.Is(err, dmp.ErrTruncatedPacket):
		reason = "bad_packet"
	case errors.Is(err, mpu.ErrCompassNotReady), errors.Is(err, mpu.ErrCompassOverflow):
		reason = "compass"
	case errors.Is(err, fusion.ErrNaNHeading):
		reason = "nan_heading"
	}
	droppedSamples.WithLabelValues(reason).Inc()
	c.log.WithError(err).WithField("reason", reason).Debug("AHRS Info: sample dropped")
	return err
}

// State returns the persistent fused state.
func (c *Compass) State() fusion.State { return c.state }

// SetYawMixFactor changes the magnetic correction strength, clamped to [0, 100].
func (c *Compass) SetYawMixFactor(f int) {
	c.eng = fusion.NewEngine(f, c.eng.MagCal, c.eng.AccelCal)
	c.log.WithField("yaw_mix", c.eng.YawMixFactor).Info("AHRS Info: yaw mix factor changed")
}

// YawMixFactor returns the active magnetic correction strength.
func (c *Compass) YawMixFactor() int { return c.eng.YawMixFactor }

// Temperature returns the chip temperature in degrees C.
func (c *Compass) Temperature() (float64, error) { return c.dev.Temperature() }

// Capture reads samples for d and folds their raw accel and magnetometer
// values into the extremes. Samples lost to data-integrity errors are skipped.
func (c *Compass) Capture(d time.Duration, accel, mag *calibration.Extremes) error {
	end := c.cfg.Now().Add(d)
	for c.cfg.Now().Before(end) {
		s, err := c.Read()
		if err != nil {
			if mpu.IsBusError(err) {
				return err
			}
			continue
		}
		if accel != nil {
			accel.Add(s.Accel)
		}
		if mag != nil && s.HasMag {
			mag.Add(s.Mag)
		}
	}
	return nil
}

// Close stops the DMP and powers the sensors down.
func (c *Compass) Close() {
	if err := c.dev.PowerDown(); err != nil {
		c.log.WithError(err).Warn("AHRS Info: power down failed")
		return
	}
	c.log.Info("AHRS Info: MPU9150 powered down")
}
