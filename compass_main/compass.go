/*
	Copyright (c) 2015-2016 Christopher Young
	Distributable under the terms of The "BSD New" License
	that can be found in the LICENSE file, herein included
	as part of this header.

	compass.go: DMP compass daemon. Reads fused heading from an MPU-9150 and
	publishes it over HTTP, websocket, SQLite and CSV.
*/

package main

import (
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/kidoman/embd"
	_ "github.com/kidoman/embd/host/all"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/takama/daemon"
	"golang.org/x/net/websocket"

	"github.com/b3nn0/dmpcompass/calibration"
	"github.com/b3nn0/dmpcompass/common"
	"github.com/b3nn0/dmpcompass/dmp"
	"github.com/b3nn0/dmpcompass/mpu"
	"github.com/b3nn0/dmpcompass/sensors"
)

const (
	// name of the service
	name        = "compass"
	description = "MPU-9150 DMP compass with magnetic yaw correction"

	defaultCalibrateSeconds = 60
)

var log = logrus.New()

// Service has embedded daemon
type Service struct {
	daemon.Daemon
}

// Manage by daemon commands or run the daemon
func (service *Service) Manage() (string, error) {
	config := flag.String("config", configLocation, "settings file")
	debug := flag.Bool("debug", false, "debug logging")
	flag.Parse()

	usage := "Usage: " + name + " install | remove | start | stop | status | calibrate [seconds]"
	// if received any kind of command, do it
	if flag.NArg() > 0 {
		switch command := flag.Arg(0); command {
		case "install":
			return service.Install("-config", *config)
		case "remove":
			return service.Remove()
		case "start":
			return service.Start()
		case "stop":
			return service.Stop()
		case "status":
			return service.Status()
		case "calibrate":
			secs := defaultCalibrateSeconds
			if flag.NArg() > 1 {
				n, err := strconv.Atoi(flag.Arg(1))
				if err != nil || n <= 0 {
					return usage, nil
				}
				secs = n
			}
			return calibrate(*config, time.Duration(secs)*time.Second)
		default:
			return usage, nil
		}
	}

	settings := defaultSettings()
	if err := readSettings(*config, &settings); err != nil {
		return "", err
	}
	settings.DEBUG = settings.DEBUG || *debug

	stop := make(chan struct{})
	var stopOnce sync.Once
	shutdown := func() { stopOnce.Do(func() { close(stop) }) }
	defer shutdown()

	logFiles, err := initLogging(settings.LogDir, settings.DEBUG, log, stop)
	if err != nil {
		log.WithError(err).Warn("logging to stdout only")
	} else {
		defer logFiles.Close()
	}

	c, img, err := openCompass(&settings)
	if err != nil {
		return "", err
	}
	defer c.Close()

	reg := prometheus.NewRegistry()
	for _, register := range []func(prometheus.Registerer) error{mpu.RegisterMetrics, sensors.RegisterMetrics} {
		if err := register(reg); err != nil {
			return "", err
		}
	}

	b := newBroadcaster(log)
	sinks := []sink{b}
	if settings.DataLogFile != "" {
		dl, err := openDataLog(settings.DataLogFile)
		if err != nil {
			log.WithError(err).Warn("sample log disabled")
		} else {
			defer dl.Close()
			sinks = append(sinks, dl)
		}
	}
	if settings.AHRSLog {
		al := newAnalysisLog(analysisFilename(settings.LogDir, time.Now()))
		defer al.Close()
		sinks = append(sinks, al)
	}

	if settings.XATTAddr != "" {
		x, err := dialXATT(settings.XATTAddr, name)
		if err != nil {
			log.WithError(err).Warn("XATT output disabled")
		} else {
			defer x.Close()
			sinks = append(sinks, x)
		}
	}

	smp := newSampler(c, log, sinks...)
	ss := &statusServer{s: smp, b: b, started: time.Now(), firmware: uint64(len(img.Firmware)), now: time.Now}
	go common.CPUTempMonitor(common.ThermalZone, time.Second, stop, ss.setCPUTemp)

	sampling := make(chan struct{})
	go func() {
		smp.run(stop)
		close(sampling)
	}()

	// Set up channel on which to send signal notifications.
	// We must use a buffered channel or risk missing the signal
	// if we're not ready to receive when the signal is sent.
	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)

	mux := http.NewServeMux()
	mux.HandleFunc("/", ss.handleStatusRequest)
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/attitude", websocket.Server{Handler: b.handler(func(msg SettingMessage) {
		if msg.Setting == "YawMixFactor" {
			smp.setYawMixFactor(msg.Value)
		}
	})})
	srv := &http.Server{Addr: settings.ListenAddr, Handler: mux}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Error("http server")
		}
	}()
	defer srv.Close()

	// interrupt by system signal
	for {
		killSignal := <-interrupt
		log.WithField("signal", killSignal).Info("Got signal")
		switch killSignal {
		case syscall.SIGUSR1:
			next := settings
			if err := readSettings(*config, &next); err != nil {
				log.WithError(err).Warn("settings not reloaded")
				continue
			}
			settings.YawMixFactor = next.YawMixFactor
			smp.setYawMixFactor(settings.YawMixFactor)
			log.WithField("yaw_mix", settings.YawMixFactor).Info("read in settings")
		case syscall.SIGINT:
			shutdown()
			<-sampling
			return "Daemon was interrupted by system signal", nil
		default:
			shutdown()
			<-sampling
			return "Daemon was killed", nil
		}
	}
}

// openCompass opens the I2C bus and brings the DMP up.
func openCompass(settings *Settings) (*sensors.Compass, *dmp.Image, error) {
	img, err := dmp.FromFile(settings.FirmwarePath, settings.FirmwareStart, settings.FirmwareRate)
	if err != nil {
		return nil, nil, err
	}

	cfg, warnings := settings.sensorConfig()
	for _, w := range warnings {
		log.WithError(w).Warn("calibration not loaded, using identity")
	}

	bus := embd.NewI2CBus(settings.I2CBus)
	dev := mpu.New(bus, mpu.WithAddress(settings.Address), mpu.WithLogger(log))
	c, err := sensors.Open(dev, img, cfg, log)
	if err != nil {
		bus.Close()
		return nil, nil, errors.Wrap(err, "opening compass")
	}
	return c, img, nil
}

// calibrate captures raw extremes for d while the user rotates the unit
// through every orientation, then writes both calibration files.
func calibrate(config string, d time.Duration) (string, error) {
	settings := defaultSettings()
	if err := readSettings(config, &settings); err != nil {
		return "", err
	}
	accelFile, magFile := settings.AccelCalFile, settings.MagCalFile
	// Capture raw values: identity calibration, no bias written.
	settings.AccelCalFile, settings.MagCalFile = "", ""

	c, _, err := openCompass(&settings)
	if err != nil {
		return "", err
	}
	defer c.Close()

	log.WithField("duration", d).Info("AHRS Info: rotate the unit slowly through all orientations")
	var accel, mag calibration.Extremes
	if err := c.Capture(d, &accel, &mag); err != nil {
		return "", err
	}
	if accel.Count() == 0 {
		return "", errors.New("no samples captured")
	}

	if err := calibration.Save(accelFile, accel.Data().ForAccel()); err != nil {
		return "", err
	}
	if mag.Count() == 0 {
		return fmt.Sprintf("accel calibrated from %d samples, no magnetometer data", accel.Count()), nil
	}
	if err := calibration.Save(magFile, mag.Data().ForMag()); err != nil {
		return "", err
	}
	return fmt.Sprintf("calibrated from %d accel and %d mag samples", accel.Count(), mag.Count()), nil
}

func main() {
	kind := daemon.SystemDaemon
	srv, err := daemon.New(name, description, kind)
	if err != nil {
		log.WithError(err).Error("Error")
		os.Exit(1)
	}
	if !common.IsRunningAsRoot() {
		log.Warn("not running as root, I2C access may fail")
	}
	service := &Service{srv}
	msg, err := service.Manage()
	if err != nil {
		log.WithError(err).Error(msg)
		os.Exit(1)
	}
	fmt.Println(msg)
}
