// Package counter exposes a CVORA module over HTTP
package counter

import (
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/astrogo/fitsio"
	"github.com/go-chi/chi"
	"golang.org/x/time/rate"

	"github.jpl.nasa.gov/bdube/golab-vme/cvora"
	"github.jpl.nasa.gov/bdube/golab-vme/generichttp"
	"github.jpl.nasa.gov/bdube/golab-vme/server"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
)

// DefaultSampleInterval is the minimum time between sample memory reads
const DefaultSampleInterval = 100 * time.Millisecond

// HTTPCounter wraps a CVORA module in an HTTP route table
type HTTPCounter struct {
	// M is the underlying module
	M *cvora.Module

	// RouteTable maps methods and paths to functions
	RouteTable generichttp.RouteTable2

	// OnEvent, if not nil, is called with every event served by /wait
	OnEvent func(vmeio.Event)

	limiter *rate.Limiter
}

// NewHTTPCounter returns a new HTTP wrapper around an open module.
// Sample reads are limited to one per interval; zero uses DefaultSampleInterval.
func NewHTTPCounter(m *cvora.Module, interval time.Duration) *HTTPCounter {
	if interval <= 0 {
		interval = DefaultSampleInterval
	}
	h := &HTTPCounter{M: m, limiter: rate.NewLimiter(rate.Every(interval), 1)}
	h.RouteTable = generichttp.RouteTable2{
		{Method: http.MethodGet, Path: "/status"}:  h.status,
		{Method: http.MethodGet, Path: "/version"}: h.version,

		{Method: http.MethodGet, Path: "/mode"}:      generichttp.GetString(h.mode),
		{Method: http.MethodPost, Path: "/mode"}:     generichttp.SetString(h.setMode),
		{Method: http.MethodGet, Path: "/module-id"}: generichttp.GetUint(m.ModuleID),

		{Method: http.MethodGet, Path: "/polarity"}:     generichttp.GetInt(m.Polarity),
		{Method: http.MethodPost, Path: "/polarity"}:    generichttp.SetInt(m.SetPolarity),
		{Method: http.MethodGet, Path: "/enabled"}:      generichttp.GetBool(m.ModuleEnabled),
		{Method: http.MethodPost, Path: "/enabled"}:     generichttp.SetBool(m.SetModuleEnabled),
		{Method: http.MethodGet, Path: "/irq-enabled"}:  generichttp.GetBool(m.IRQEnabled),
		{Method: http.MethodPost, Path: "/irq-enabled"}: generichttp.SetBool(m.SetIRQEnabled),
		{Method: http.MethodGet, Path: "/irq-vector"}:   generichttp.GetInt(m.IRQVector),
		{Method: http.MethodPost, Path: "/irq-vector"}:  generichttp.SetInt(m.SetIRQVector),

		{Method: http.MethodGet, Path: "/dac"}:       generichttp.GetUint(m.DAC),
		{Method: http.MethodGet, Path: "/frequency"}: generichttp.GetUint(m.ClockFrequency),
		{Method: http.MethodPost, Path: "/plot"}:     generichttp.SetInt(m.SetPlotInput),
		{Method: http.MethodGet, Path: "/channels"}:  generichttp.GetUint(m.ChannelsMask),
		{Method: http.MethodPost, Path: "/channels"}: generichttp.SetUint(m.SetChannelsMask),

		{Method: http.MethodGet, Path: "/mem-pointer"}:  generichttp.GetUint(m.MemPointer),
		{Method: http.MethodGet, Path: "/sample-size"}:  generichttp.GetInt(m.SampleSize),
		{Method: http.MethodGet, Path: "/samples"}:      h.samples,
		{Method: http.MethodGet, Path: "/samples.fits"}: h.samplesFits,

		{Method: http.MethodPost, Path: "/start"}:     generichttp.Do(m.SoftStart),
		{Method: http.MethodPost, Path: "/stop"}:      generichttp.Do(m.SoftStop),
		{Method: http.MethodGet, Path: "/wait"}:       h.wait,
		{Method: http.MethodPost, Path: "/interrupt"}: generichttp.SetUint(m.Interrupt),

		{Method: http.MethodGet, Path: "/offset"}:   generichttp.GetInt(h.offset),
		{Method: http.MethodPost, Path: "/offset"}:  generichttp.SetInt(h.setOffset),
		{Method: http.MethodGet, Path: "/timeout"}:  generichttp.GetInt(m.Timeout),
		{Method: http.MethodPost, Path: "/timeout"}: generichttp.SetInt(m.SetTimeout),
		{Method: http.MethodGet, Path: "/debug"}:    generichttp.GetInt(m.Debug),
		{Method: http.MethodPost, Path: "/debug"}:   generichttp.SetInt(m.SetDebug),

		{Method: http.MethodGet, Path: "/registers"}:       h.registers,
		{Method: http.MethodGet, Path: "/register/{name}"}:  h.register,
		{Method: http.MethodPost, Path: "/register/{name}"}: h.setRegister,
	}
	return h
}

// RT satisfies the generichttp.HTTPer interface
func (h *HTTPCounter) RT() generichttp.RouteTable2 {
	return h.RouteTable
}

func (h *HTTPCounter) mode() (string, error) {
	m, err := h.M.Mode()
	return m.String(), err
}

func (h *HTTPCounter) setMode(s string) error {
	m, err := cvora.ParseMode(s)
	if err != nil {
		return err
	}
	return h.M.SetMode(m)
}

func (h *HTTPCounter) offset() (int, error) {
	return h.M.Offset(), nil
}

func (h *HTTPCounter) setOffset(off int) error {
	h.M.SetOffset(off)
	return nil
}

func (h *HTTPCounter) status(w http.ResponseWriter, r *http.Request) {
	st, err := h.M.HardwareStatus()
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	server.EncodeJSON(w, st)
}

type versions struct {
	Firmware int   `json:"firmware"`
	Driver   int64 `json:"driver"`
	Library  int64 `json:"library"`
}

func (h *HTTPCounter) version(w http.ResponseWriter, r *http.Request) {
	fw, err := h.M.Version()
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	v, err := h.M.DriverVersion()
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	server.EncodeJSON(w, versions{Firmware: fw, Driver: v.Driver, Library: v.Library})
}

type event struct {
	LUN      int    `json:"lun"`
	Mask     uint32 `json:"mask"`
	TimedOut bool   `json:"timedOut"`
}

func (h *HTTPCounter) wait(w http.ResponseWriter, r *http.Request) {
	ev, err := h.M.Wait()
	if err != nil {
		generichttp.Error(w, err)
		return
	}
	if h.OnEvent != nil {
		h.OnEvent(ev)
	}
	server.EncodeJSON(w, event{LUN: ev.LUN, Mask: ev.Mask, TimedOut: ev.TimedOut})
}

type register struct {
	Name   string `json:"name"`
	Offset int    `json:"offset"`
	Width  int    `json:"width"`
	Access string `json:"access"`
}

func (h *HTTPCounter) registers(w http.ResponseWriter, r *http.Request) {
	out := make([]register, 0, len(cvora.Registers.Registers))
	for _, name := range cvora.Registers.Names() {
		reg, _ := cvora.Registers.Lookup(name)
		out = append(out, register{Name: reg.Name, Offset: reg.Offset, Width: reg.Width, Access: reg.Access.String()})
	}
	server.EncodeJSON(w, out)
}

func (h *HTTPCounter) register(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	generichttp.GetUint(func() (uint32, error) { return h.M.Register(name) })(w, r)
}

func (h *HTTPCounter) setRegister(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	generichttp.SetUint(func(v uint32) error { return h.M.SetRegister(name, v) })(w, r)
}

// readSamples parses the optional max query parameter, applies the rate
// limit, and reads sample memory.  It writes the error reply itself and
// returns ok=false on failure.
func (h *HTTPCounter) readSamples(w http.ResponseWriter, r *http.Request) ([]uint32, bool) {
	max := cvora.MemSize
	if s := r.URL.Query().Get("max"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, fmt.Sprintf("max %q is not a non-negative integer", s), http.StatusBadRequest)
			return nil, false
		}
		max = n
	}
	if !h.limiter.Allow() {
		http.Error(w, "sample memory read too soon after the last", http.StatusTooManyRequests)
		return nil, false
	}
	samples, err := h.M.ReadSamples(max)
	if err != nil {
		generichttp.Error(w, err)
		return nil, false
	}
	return samples, true
}

type samplePayload struct {
	LUN      int      `json:"lun"`
	Samples  []uint32 `json:"samples"`
	Checksum uint16   `json:"crc"`
}

func (h *HTTPCounter) samples(w http.ResponseWriter, r *http.Request) {
	samples, ok := h.readSamples(w, r)
	if !ok {
		return
	}
	server.EncodeJSON(w, samplePayload{LUN: h.M.LUN(), Samples: samples, Checksum: cvora.Checksum(samples)})
}

func (h *HTTPCounter) samplesFits(w http.ResponseWriter, r *http.Request) {
	samples, ok := h.readSamples(w, r)
	if !ok {
		return
	}
	if len(samples) == 0 {
		http.Error(w, "sample memory is empty", http.StatusNotFound)
		return
	}
	meta := []fitsio.Card{
		{Name: "LUN", Value: h.M.LUN(), Comment: "logical unit number"},
		{Name: "DATE", Value: time.Now().UTC().Format(time.RFC3339), Comment: "time of readout"},
	}
	if mode, err := h.M.Mode(); err == nil {
		meta = append(meta, fitsio.Card{Name: "CVMODE", Value: mode.String(), Comment: "input mode"})
	}
	if f, err := h.M.ClockFrequency(); err == nil {
		meta = append(meta, fitsio.Card{Name: "CVCLOCK", Value: int(f), Comment: "clock frequency register"})
	}
	w.Header().Set("Content-Type", "image/fits")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=cvora%d.fits", h.M.LUN()))
	if err := cvora.WriteFits(w, meta, samples); err != nil {
		log.Printf("cvora %d: writing FITS: %v", h.M.LUN(), err)
	}
}
