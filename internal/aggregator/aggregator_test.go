package aggregator

import "testing"

func TestCounterIncAndSnapshot(t *testing.T) {
	a := New(10, nil)
	a.RegisterCounter("reqs_total", []string{"device"})

	a.Inc("reqs_total", map[string]string{"device": "sda"}, 3)
	a.Inc("reqs_total", map[string]string{"device": "sda"}, 2)
	a.Inc("reqs_total", map[string]string{"device": "sdb"}, 1)

	points := a.Snapshot()
	if len(points) != 2 {
		t.Fatalf("Snapshot() returned %d points, want 2", len(points))
	}

	byDevice := map[string]float64{}
	for _, p := range points {
		byDevice[p.Labels["device"]] = p.Value
	}
	if byDevice["sda"] != 5 {
		t.Errorf("sda = %v, want 5", byDevice["sda"])
	}
	if byDevice["sdb"] != 1 {
		t.Errorf("sdb = %v, want 1", byDevice["sdb"])
	}
}

func TestGaugeSet(t *testing.T) {
	a := New(10, nil)
	a.RegisterGauge("active_probes", nil)
	a.Set("active_probes", nil, 3)
	a.Set("active_probes", nil, 5)

	points := a.Snapshot()
	if len(points) != 1 || points[0].Value != 5 {
		t.Fatalf("Snapshot() = %+v, want single point with value 5", points)
	}
}

func TestHistogramObserve(t *testing.T) {
	a := New(10, nil)
	a.RegisterHistogram("latency_ns", []string{"op"}, []float64{10, 100, 1000})

	a.Observe("latency_ns", map[string]string{"op": "read"}, 5)
	a.Observe("latency_ns", map[string]string{"op": "read"}, 50)
	a.Observe("latency_ns", map[string]string{"op": "read"}, 500)

	points := a.Snapshot()
	if len(points) != 1 {
		t.Fatalf("Snapshot() returned %d points, want 1", len(points))
	}
	p := points[0]
	if p.Count != 3 {
		t.Errorf("Count = %d, want 3", p.Count)
	}
	if p.Value != 555 {
		t.Errorf("sum = %v, want 555", p.Value)
	}
	if p.Buckets[10] != 1 {
		t.Errorf("bucket<=10 = %d, want 1", p.Buckets[10])
	}
	if p.Buckets[100] != 2 {
		t.Errorf("bucket<=100 = %d, want 2 (cumulative)", p.Buckets[100])
	}
	if p.Buckets[1000] != 3 {
		t.Errorf("bucket<=1000 = %d, want 3 (cumulative)", p.Buckets[1000])
	}
}

func TestMissingLabelFillsUnknown(t *testing.T) {
	a := New(10, nil)
	a.RegisterCounter("events_total", []string{"device", "op"})

	a.Inc("events_total", map[string]string{"device": "sda"}, 1)

	points := a.Snapshot()
	if len(points) != 1 {
		t.Fatalf("Snapshot() returned %d points, want 1", len(points))
	}
	if points[0].Labels["op"] != "unknown" {
		t.Errorf("missing label op = %q, want %q", points[0].Labels["op"], "unknown")
	}
}

func TestUnknownLabelKeyDropsObservation(t *testing.T) {
	a := New(10, nil)
	a.RegisterCounter("events_total", []string{"device"})

	a.Inc("events_total", map[string]string{"bogus": "x"}, 1)

	if got := a.Snapshot(); len(got) != 0 {
		t.Errorf("Snapshot() = %+v, want no series created for an unknown label key", got)
	}
	if a.HandlerErrors() != 1 {
		t.Errorf("HandlerErrors() = %d, want 1", a.HandlerErrors())
	}
}

func TestCardinalityCapDropsNewSeries(t *testing.T) {
	a := New(2, nil)
	a.RegisterCounter("events_total", []string{"device"})

	a.Inc("events_total", map[string]string{"device": "d1"}, 1)
	a.Inc("events_total", map[string]string{"device": "d2"}, 1)
	a.Inc("events_total", map[string]string{"device": "d3"}, 1) // exceeds cap

	points := a.Snapshot()
	if len(points) != 2 {
		t.Fatalf("Snapshot() returned %d series, want 2 (cap enforced)", len(points))
	}
	if a.CardinalityDropped() != 1 {
		t.Errorf("CardinalityDropped() = %d, want 1", a.CardinalityDropped())
	}
}

func TestObserveOnUnregisteredInstrument(t *testing.T) {
	a := New(10, nil)
	a.Observe("nonexistent", nil, 1)
	if a.HandlerErrors() != 1 {
		t.Errorf("HandlerErrors() = %d, want 1", a.HandlerErrors())
	}
}
