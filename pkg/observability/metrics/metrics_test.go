package metrics

import (
	"strings"
	"sync"
	"testing"
)

func TestCounter(t *testing.T) {
	c := NewCounter("test_counter", "Test counter")

	if c.Name() != "test_counter" {
		t.Errorf("expected name test_counter, got %s", c.Name())
	}
	if c.Type() != TypeCounter {
		t.Errorf("expected type counter, got %s", c.Type())
	}

	c.Inc()
	c.Add(5)
	c.Add(-3)
	if c.Get() != 6 {
		t.Errorf("expected value 6, got %g", c.Get())
	}
}

func TestCounterConcurrent(t *testing.T) {
	c := NewCounter("concurrent", "help")
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 100 {
				c.Inc()
			}
		}()
	}
	wg.Wait()
	if c.Get() != 5000 {
		t.Errorf("expected 5000, got %g", c.Get())
	}
}

func TestGauge(t *testing.T) {
	g := NewGauge("test_gauge", "Test gauge")
	g.Set(10)
	g.Add(-4)
	if g.Get() != 6 {
		t.Errorf("expected value 6, got %g", g.Get())
	}
}

func TestHistogram(t *testing.T) {
	h := NewHistogram("test_histogram", "Test histogram", []float64{10, 1, 5})

	h.Observe(2)
	h.Observe(7)
	h.Observe(12)

	desc := h.Describe()
	for _, want := range []string{
		`test_histogram_bucket{le="1"} 0`,
		`test_histogram_bucket{le="5"} 1`,
		`test_histogram_bucket{le="10"} 2`,
		`test_histogram_bucket{le="+Inf"} 3`,
		"test_histogram_sum 21",
		"test_histogram_count 3",
	} {
		if !strings.Contains(desc, want) {
			t.Errorf("expected %q in\n%s", want, desc)
		}
	}
	if h.Count() != 3 {
		t.Errorf("expected count 3, got %d", h.Count())
	}
}

func TestVectors(t *testing.T) {
	cv := NewCounterVec("phase_total", "Phase runs")
	cv.With(map[string]string{"phase": "validate", "outcome": "ok"}).Inc()
	cv.With(map[string]string{"outcome": "ok", "phase": "validate"}).Inc()
	cv.With(map[string]string{"phase": "connect", "outcome": "error"}).Add(2)

	out := cv.Describe()
	if !strings.Contains(out, `phase_total{outcome="ok",phase="validate"} 2`) {
		t.Errorf("label order should not split series:\n%s", out)
	}
	if !strings.Contains(out, `phase_total{outcome="error",phase="connect"} 2`) {
		t.Errorf("missing connect series:\n%s", out)
	}

	hv := NewHistogramVec("phase_seconds", "Phase durations", []float64{1})
	hv.With(map[string]string{"phase": "init"}).Observe(0.5)
	out = hv.Describe()
	if !strings.Contains(out, `phase_seconds_bucket{phase="init",le="1"} 1`) {
		t.Errorf("histogram vec should merge labels:\n%s", out)
	}
	if !strings.Contains(out, `phase_seconds_count{phase="init"} 1`) {
		t.Errorf("histogram vec count:\n%s", out)
	}

	gv := NewGaugeVec("ready", "Ready")
	gv.With(map[string]string{"subsystem": "db"}).Set(1)
	if !strings.Contains(gv.Describe(), `ready{subsystem="db"} 1`) {
		t.Errorf("gauge vec:\n%s", gv.Describe())
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	c := NewCounter("test_counter", "help")
	if got := r.Register(c); got != c {
		t.Fatal("first Register should store the metric")
	}
	if got := r.Register(NewCounter("test_counter", "other")); got != c {
		t.Fatal("second Register should return the existing metric")
	}

	c.Inc()
	out := r.Export()
	if !strings.Contains(out, "# HELP test_counter help") {
		t.Errorf("expected help text in output")
	}
	if !strings.Contains(out, "test_counter 1") {
		t.Errorf("expected value in output")
	}

	r.Reset()
	if r.Export() != "" {
		t.Errorf("expected empty output after reset")
	}
}

func TestRegistryTypeCollision(t *testing.T) {
	r := NewRegistry()
	r.Register(NewCounter("runs", "help"))
	r.Register(NewGaugeVec("ready", "help"))
	if got := r.Names(); len(got) != 2 || got[0] != "ready" || got[1] != "runs" {
		t.Errorf("Names() = %v", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("registering a gauge under a counter name should panic")
		}
	}()
	r.Register(NewGauge("runs", "help"))
}
