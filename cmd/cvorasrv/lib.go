package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.jpl.nasa.gov/bdube/golab-vme/cvora"
	"github.jpl.nasa.gov/bdube/golab-vme/generichttp"
	"github.jpl.nasa.gov/bdube/golab-vme/generichttp/counter"
	"github.jpl.nasa.gov/bdube/golab-vme/server/middleware/locker"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio/sim"
)

// Unit describes one CVORA to open and serve
type Unit struct {
	// LUN is the logical unit number, the N in /dev/cvora.N
	LUN int `koanf:"LUN" yaml:"LUN"`

	// Endpoint is the URL the unit's routes are served under,
	// e.g. "cvora0" produces /cvora0/mode, etc.
	Endpoint string `koanf:"Endpoint" yaml:"Endpoint"`

	// DMA routes register access through the DMA path
	DMA bool `koanf:"DMA" yaml:"DMA"`

	// Swap corrects DMA transferred words to host byte order
	Swap bool `koanf:"Swap" yaml:"Swap"`

	// Offset is the block offset of the module's registers in its window
	Offset int `koanf:"Offset" yaml:"Offset"`

	// Timeout is the driver event timeout in ms, 0 keeps the driver's
	Timeout int `koanf:"Timeout" yaml:"Timeout"`

	// ReadOnlyLock lets GET requests through while the unit is locked
	ReadOnlyLock bool `koanf:"ReadOnlyLock" yaml:"ReadOnlyLock"`
}

// Config is the server configuration
type Config struct {
	// Addr is the address to listen at
	Addr string `koanf:"Addr" yaml:"Addr"`

	// Driver is the name of the kernel driver's device nodes
	Driver string `koanf:"Driver" yaml:"Driver"`

	// DevDir is the directory holding the device nodes
	DevDir string `koanf:"DevDir" yaml:"DevDir"`

	// FallbackWidth, if 1, 2 or 4, is used as the data width of both
	// windows when the driver cannot describe them.  0 makes that an error.
	FallbackWidth int `koanf:"FallbackWidth" yaml:"FallbackWidth"`

	// Mock serves simulated units instead of hardware
	Mock bool `koanf:"Mock" yaml:"Mock"`

	// SampleIntervalMs is the minimum time between sample memory reads
	SampleIntervalMs int `koanf:"SampleIntervalMs" yaml:"SampleIntervalMs"`

	// OpenRetrySec bounds how long to retry opening a unit whose
	// device node is not there yet
	OpenRetrySec int `koanf:"OpenRetrySec" yaml:"OpenRetrySec"`

	// Units is the list of modules to serve
	Units []Unit `koanf:"Units" yaml:"Units"`
}

func defaultConfig() Config {
	return Config{
		Addr:             ":8000",
		Driver:           cvora.DriverName,
		DevDir:           vmeio.DefaultDevDir,
		SampleIntervalMs: 100,
		OpenRetrySec:     10,
		Units:            []Unit{{LUN: 0, Endpoint: "cvora0", Swap: true}},
	}
}

// metrics holds the prometheus collectors of one unit
type metrics struct {
	events   prometheus.Counter
	timeouts prometheus.Counter
}

func newMetrics(reg prometheus.Registerer, m *cvora.Module) (*metrics, error) {
	labels := prometheus.Labels{"lun": strconv.Itoa(m.LUN())}
	collectors := []prometheus.Collector{
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem:   "cvora",
			Name:        "sample_size_bytes",
			Help:        "Bytes of sample memory filled.",
			ConstLabels: labels,
		}, func() float64 {
			n, err := m.SampleSize()
			if err != nil {
				return -1
			}
			return float64(n)
		}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Subsystem:   "cvora",
			Name:        "clock_frequency",
			Help:        "Clock frequency register.",
			ConstLabels: labels,
		}, func() float64 {
			f, err := m.ClockFrequency()
			if err != nil {
				return -1
			}
			return float64(f)
		}),
	}
	mt := &metrics{
		events: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem:   "cvora",
			Name:        "events_total",
			Help:        "Interrupt events served by /wait.",
			ConstLabels: labels,
		}),
		timeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Subsystem:   "cvora",
			Name:        "event_timeouts_total",
			Help:        "Waits that ended in the driver timeout.",
			ConstLabels: labels,
		}),
	}
	collectors = append(collectors, mt.events, mt.timeouts)
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return mt, nil
}

func (mt *metrics) observe(ev vmeio.Event) {
	if ev.TimedOut {
		mt.timeouts.Inc()
		return
	}
	mt.events.Inc()
}

// openUnit opens one unit, retrying while its device node is missing.
// Bad arguments are not retried.
func openUnit(c Config, u Unit) (*cvora.Module, error) {
	cfg := vmeio.DefaultConfig(c.Driver)
	cfg.DevDir = c.DevDir
	cfg.FallbackWidth = c.FallbackWidth
	if c.Mock {
		cfg.Dialer = sim.Standard(u.LUN)
	}
	opts := cvora.Options{DMA: u.DMA, Swap: u.Swap, Offset: u.Offset, Timeout: u.Timeout}
	var m *cvora.Module
	op := func() error {
		var err error
		m, err = cvora.Open(cfg, u.LUN, opts)
		if err != nil && vmeio.KindOf(err) != vmeio.OpenFailure {
			return backoff.Permanent(err)
		}
		return err
	}
	var b backoff.BackOff = &backoff.StopBackOff{}
	if c.OpenRetrySec > 0 {
		b = &backoff.ExponentialBackOff{
			InitialInterval:     50 * time.Millisecond,
			RandomizationFactor: 0.,
			Multiplier:          2.,
			MaxInterval:         2 * time.Second,
			MaxElapsedTime:      time.Duration(c.OpenRetrySec) * time.Second,
			Clock:               backoff.SystemClock}
	}
	err := backoff.Retry(op, b)
	if err != nil {
		return nil, fmt.Errorf("lun %d: %w", u.LUN, err)
	}
	return m, nil
}

// openUnits opens every unit concurrently, so one unit waiting on a late
// device node does not hold up the rest.  On error, units already open are
// closed.
func openUnits(c Config) ([]*cvora.Module, error) {
	mods := make([]*cvora.Module, len(c.Units))
	var grp errgroup.Group
	for i := range c.Units {
		ii := i
		grp.Go(func() error {
			m, err := openUnit(c, c.Units[ii])
			if err != nil {
				return err
			}
			mods[ii] = m
			return nil
		})
	}
	if err := grp.Wait(); err != nil {
		closeAll(mods)
		return nil, err
	}
	return mods, nil
}

func closeAll(mods []*cvora.Module) {
	for _, m := range mods {
		if m != nil {
			m.Close()
		}
	}
}

// BuildMux opens every unit in c and constructs a chi router serving each
// under its endpoint, with a lock, plus /metrics and /endpoints.
// The opened modules are returned so the caller can close them.
func BuildMux(c Config, reg *prometheus.Registry) (chi.Router, []*cvora.Module, error) {
	supergraph := map[string][]string{}
	for _, u := range c.Units {
		hndlS := generichttp.SubMuxSanitize(u.Endpoint)
		if _, dup := supergraph[hndlS]; dup {
			return nil, nil, fmt.Errorf("endpoint %s used by more than one unit", hndlS)
		}
		supergraph[hndlS] = nil
	}
	mods, err := openUnits(c)
	if err != nil {
		return nil, nil, err
	}

	root := chi.NewRouter()
	root.Use(middleware.Logger)
	interval := time.Duration(c.SampleIntervalMs) * time.Millisecond
	for i, u := range c.Units {
		m := mods[i]
		hndlS := generichttp.SubMuxSanitize(u.Endpoint)
		mt, err := newMetrics(reg, m)
		if err != nil {
			closeAll(mods)
			return nil, nil, err
		}
		httper := counter.NewHTTPCounter(m, interval)
		httper.OnEvent = mt.observe

		lock := locker.New()
		lock.ReadOnly = u.ReadOnlyLock
		locker.Inject(httper, lock)

		supergraph[hndlS] = httper.RT().Endpoints()
		r := chi.NewRouter()
		r.Use(lock.Check)
		httper.RT().Bind(r)
		root.Mount(hndlS, r)
		w := m.Window()
		log.Printf("cvora lun %d at VME 0x%x, vector 0x%x, served at %s\n", m.LUN(), w.VME[0], w.Vector, hndlS)
	}
	root.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	root.Get("/endpoints", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		err := json.NewEncoder(w).Encode(supergraph)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})
	return root, mods, nil
}
