package counter_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi"
	"github.com/google/go-cmp/cmp"

	"github.jpl.nasa.gov/bdube/golab-vme/cvora"
	"github.jpl.nasa.gov/bdube/golab-vme/generichttp/counter"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio"
	"github.jpl.nasa.gov/bdube/golab-vme/vmeio/sim"
)

func setup(t *testing.T) (*counter.HTTPCounter, chi.Router, *sim.Device) {
	t.Helper()
	dev := sim.Standard(2)
	cfg := vmeio.DefaultConfig(cvora.DriverName)
	cfg.Dialer = dev
	m, err := cvora.Open(cfg, 2, cvora.Options{Timeout: 5})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { m.Close() })
	h := counter.NewHTTPCounter(m, time.Hour)
	r := chi.NewRouter()
	h.RT().Bind(r)
	return h, r, dev
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestModeRoundTrip(t *testing.T) {
	_, r, _ := setup(t)
	w := do(r, http.MethodPost, "/mode", `{"str": "parallel"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set mode: %d %s", w.Code, w.Body)
	}
	w = do(r, http.MethodGet, "/mode", "")
	if got := strings.TrimSpace(w.Body.String()); got != `{"str":"parallel"}` {
		t.Errorf("expected parallel, got %s", got)
	}
}

func TestBadArgumentIs400(t *testing.T) {
	_, r, _ := setup(t)
	cases := []struct{ path, body string }{
		{"/mode", `{"str": "analog"}`},
		{"/plot", `{"int": 0}`},
		{"/irq-vector", `{"int": 300}`},
		{"/register/dac", `{"uint": 1}`},
		{"/register/nope", `{"uint": 1}`},
		{"/polarity", `not json`},
	}
	for _, c := range cases {
		w := do(r, http.MethodPost, c.path, c.body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("POST %s %s: expected 400, got %d", c.path, c.body, w.Code)
		}
	}
}

func TestRegisterRoutes(t *testing.T) {
	_, r, dev := setup(t)
	w := do(r, http.MethodPost, "/register/channels", `{"uint": 61680}`)
	if w.Code != http.StatusOK {
		t.Fatalf("set register: %d %s", w.Code, w.Body)
	}
	got := make([]byte, 4)
	vmeio.HostOrder().PutUint32(got, 61680)
	if !bytes.Equal(dev.Peek(1, 0xC, 4), got) {
		t.Errorf("channels register not written")
	}
	w = do(r, http.MethodGet, "/register/channels", "")
	if s := strings.TrimSpace(w.Body.String()); s != `{"uint":61680}` {
		t.Errorf("expected 61680, got %s", s)
	}
}

func TestStatus(t *testing.T) {
	_, r, _ := setup(t)
	do(r, http.MethodPost, "/enabled", `{"bool": true}`)
	w := do(r, http.MethodGet, "/status", "")
	var st cvora.Status
	if err := json.NewDecoder(w.Body).Decode(&st); err != nil {
		t.Fatal(err)
	}
	if !st.Enabled || st.Raw != 2 {
		t.Errorf("expected enabled with raw 2, got %+v", st)
	}
}

func TestInterruptAndWait(t *testing.T) {
	h, r, _ := setup(t)
	var seen []vmeio.Event
	h.OnEvent = func(ev vmeio.Event) { seen = append(seen, ev) }
	if w := do(r, http.MethodPost, "/interrupt", `{"uint": 5}`); w.Code != http.StatusOK {
		t.Fatalf("interrupt: %d %s", w.Code, w.Body)
	}
	w := do(r, http.MethodGet, "/wait", "")
	if s := strings.TrimSpace(w.Body.String()); s != `{"lun":2,"mask":5,"timedOut":false}` {
		t.Errorf("unexpected event %s", s)
	}
	w = do(r, http.MethodGet, "/wait", "")
	if s := strings.TrimSpace(w.Body.String()); s != `{"lun":2,"mask":0,"timedOut":true}` {
		t.Errorf("expected a timeout, got %s", s)
	}
	expected := []vmeio.Event{{LUN: 2, Mask: 5}, {LUN: 2, TimedOut: true}}
	if diff := cmp.Diff(expected, seen); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestSamplesAreRateLimited(t *testing.T) {
	_, r, dev := setup(t)
	ptr := make([]byte, 4)
	vmeio.HostOrder().PutUint32(ptr, cvora.MemMin+8)
	dev.Poke(1, 0x4, ptr)
	w := do(r, http.MethodGet, "/samples?max=8", "")
	if w.Code != http.StatusOK {
		t.Fatalf("samples: %d %s", w.Code, w.Body)
	}
	var payload struct {
		LUN     int      `json:"lun"`
		Samples []uint32 `json:"samples"`
	}
	if err := json.NewDecoder(w.Body).Decode(&payload); err != nil {
		t.Fatal(err)
	}
	if payload.LUN != 2 || len(payload.Samples) != 2 {
		t.Errorf("expected 2 samples from lun 2, got %+v", payload)
	}
	w = do(r, http.MethodGet, "/samples", "")
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429 for a second read within the interval, got %d", w.Code)
	}
}

func TestSamplesBadMax(t *testing.T) {
	_, r, _ := setup(t)
	if w := do(r, http.MethodGet, "/samples?max=-1", ""); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", w.Code)
	}
}

func TestEndpoints(t *testing.T) {
	_, r, _ := setup(t)
	w := do(r, http.MethodGet, "/endpoints", "")
	var eps []string
	if err := json.NewDecoder(w.Body).Decode(&eps); err != nil {
		t.Fatal(err)
	}
	want := map[string]bool{"/samples.fits": false, "/register/{name}": false, "/wait": false}
	for _, ep := range eps {
		if _, ok := want[ep]; ok {
			want[ep] = true
		}
	}
	for ep, found := range want {
		if !found {
			t.Errorf("endpoint %s missing from %v", ep, eps)
		}
	}
}
