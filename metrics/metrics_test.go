package metrics

import (
	"testing"
	"time"
)

// captureReporter keeps every reported record for inspection.
type captureReporter struct {
	records []Record
}

func (c *captureReporter) Report(r Record) {
	c.records = append(c.records, r)
}

func withCapture(t *testing.T) *captureReporter {
	t.Helper()
	c := &captureReporter{}
	SetMetricsReporters([]Reporter{c})
	t.Cleanup(func() { SetMetricsReporters(nil) })
	return c
}

func (c *captureReporter) last(t *testing.T) Record {
	t.Helper()
	if len(c.records) == 0 {
		t.Fatal("no records reported")
	}
	return c.records[len(c.records)-1]
}

func TestCounterReporting(t *testing.T) {
	c := withCapture(t)

	IncrCounterWithGroup("frames_total", GroupNet, 1)
	IncrCounterWithDimGroup("frames_total", GroupNet, 2, Dimension{DimMsgName: "point"})

	if len(c.records) != 2 {
		t.Fatalf("reported %d records, want 2", len(c.records))
	}
	r := c.last(t)
	if r.Metrics().Name() != "frames_total" || r.Metrics().Group() != GroupNet {
		t.Errorf("identity = %s/%s", r.Metrics().Group(), r.Metrics().Name())
	}
	if r.Metrics().Policy() != Policy_Sum {
		t.Errorf("policy = %v, want Policy_Sum", r.Metrics().Policy())
	}
	if r.Value() != 2 {
		t.Errorf("value = %v, want 2", r.Value())
	}
	if r.Dimensions()[DimMsgName] != "point" {
		t.Errorf("dimensions = %v", r.Dimensions())
	}
}

func TestGaugePolicies(t *testing.T) {
	c := withCapture(t)

	tests := []struct {
		name   string
		update func()
		policy Policy
	}{
		{"set", func() { UpdateGaugeWithGroup("g_set", GroupNet, 5) }, Policy_Set},
		{"avg", func() { UpdateAvgGaugeWithGroup("g_avg", GroupNet, 5) }, Policy_Avg},
		{"max", func() { UpdateMaxGaugeWithGroup("g_max", GroupNet, 5) }, Policy_Max},
		{"min", func() { UpdateMinGaugeWithGroup("g_min", GroupNet, 5) }, Policy_Min},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.update()
			r := c.last(t)
			if r.Metrics().Policy() != tt.policy {
				t.Errorf("policy = %v, want %v", r.Metrics().Policy(), tt.policy)
			}
			if r.Value() != 5 {
				t.Errorf("value = %v, want 5", r.Value())
			}
		})
	}
}

func TestSameNameDifferentPolicy(t *testing.T) {
	c := withCapture(t)

	UpdateGaugeWithGroup("shared", GroupNet, 1)
	UpdateAvgGaugeWithGroup("shared", GroupNet, 2)

	if len(c.records) != 2 {
		t.Fatalf("reported %d records, want 2", len(c.records))
	}
	if c.records[0].Metrics().Policy() == c.records[1].Metrics().Policy() {
		t.Error("set and avg gauges with the same name must stay distinct instruments")
	}
}

func TestStopwatchReporting(t *testing.T) {
	c := withCapture(t)

	start := time.Now().Add(-10 * time.Millisecond)
	d := RecordStopwatchWithGroup("op_duration", GroupNet, start)
	if d < 10*time.Millisecond {
		t.Errorf("duration = %v, want at least 10ms", d)
	}

	r := c.last(t)
	if r.Metrics().Policy() != Policy_Stopwatch {
		t.Errorf("policy = %v, want Policy_Stopwatch", r.Metrics().Policy())
	}
	v, cnt := r.RawData()
	if cnt != 1 {
		t.Errorf("cnt = %d, want 1", cnt)
	}
	if v < 10 {
		t.Errorf("value = %v ms, want at least 10", v)
	}
}

func TestRecordMerge(t *testing.T) {
	cr := withCapture(t)

	IncrCounterWithGroup("merge_sum", GroupNet, 3)
	IncrCounterWithGroup("merge_sum", GroupNet, 4)
	sum := cr.records[0]
	if err := sum.Merge(cr.records[1]); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if sum.Value() != 7 {
		t.Errorf("sum = %v, want 7", sum.Value())
	}

	UpdateAvgGaugeWithGroup("merge_avg", GroupNet, 10)
	UpdateAvgGaugeWithGroup("merge_avg", GroupNet, 20)
	avg := cr.records[2]
	if err := avg.Merge(cr.records[3]); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if avg.Value() != 15 {
		t.Errorf("avg = %v, want 15", avg.Value())
	}

	UpdateMaxGaugeWithGroup("merge_max", GroupNet, 4)
	UpdateMaxGaugeWithGroup("merge_max", GroupNet, 9)
	peak := cr.records[4]
	if err := peak.Merge(cr.records[5]); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if peak.Value() != 9 {
		t.Errorf("max = %v, want 9", peak.Value())
	}
}

func TestRecordMergeRejections(t *testing.T) {
	c := withCapture(t)

	IncrCounterWithGroup("reject_a", GroupNet, 1)
	IncrCounterWithGroup("reject_b", GroupNet, 1)
	UpdateGaugeWithGroup("reject_a", GroupNet, 1)
	IncrCounterWithDimGroup("reject_a", GroupNet, 1, Dimension{DimMsgName: "point"})

	a := c.records[0]
	if err := a.Merge(c.records[1]); err == nil {
		t.Error("merging different names must fail")
	}
	if err := a.Merge(c.records[2]); err == nil {
		t.Error("merging different policies must fail")
	}
	if err := a.Merge(c.records[3]); err == nil {
		t.Error("merging different dimensions must fail")
	}
}

func TestRecordClone(t *testing.T) {
	c := withCapture(t)

	IncrCounterWithDimGroup("clone_total", GroupNet, 5, Dimension{DimMsgName: "point"})
	orig := c.last(t)
	cp := orig.Clone()
	cp.SetValue(99)
	cp.Dimensions()[DimMsgName] = "vector"

	if orig.Value() != 5 {
		t.Errorf("original value changed to %v", orig.Value())
	}
	if orig.Dimensions()[DimMsgName] != "point" {
		t.Errorf("original dimensions changed to %v", orig.Dimensions())
	}
}
