package metrics

import (
	"sync"
	"time"
)

// instKey identifies one metric instance. The policy participates so a
// plain gauge and an average gauge may share a name without colliding.
type instKey struct {
	policy Policy
	name   string
}

var (
	_instruments = map[instKey]Metrics{}
	_lock        = sync.RWMutex{}
)

// SetMetricsReporters sets the global list of metric reporters.
// All metrics will be reported to these reporters when updated.
func SetMetricsReporters(reports []Reporter) {
	_Reporters = reports
}

// IncrCounterWithGroup increases a counter metric with specified group and value.
// Counters track cumulative values that only increase over time.
func IncrCounterWithGroup(key string, group string, value Value) {
	if c := getCounter(key, group); c != nil {
		c.Incr(value)
	}
}

// IncrCounterWithDimGroup increases a counter metric with specified group, value, and dimensions.
func IncrCounterWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	if c := getCounter(key, group); c != nil {
		c.IncrWithDim(value, dimensions)
	}
}

// UpdateGaugeWithGroup updates a gauge metric with specified group and value.
// Gauges track point-in-time values that can go up or down.
func UpdateGaugeWithGroup(key string, group string, value Value) {
	if g := getGauge(key, group, Policy_Set); g != nil {
		g.Update(value)
	}
}

// UpdateGaugeWithDimGroup updates a gauge metric with specified group, value, and dimensions.
func UpdateGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	if g := getGauge(key, group, Policy_Set); g != nil {
		g.UpdateWithDim(value, dimensions)
	}
}

// UpdateAvgGaugeWithGroup updates an average gauge with specified group and value.
// Average gauges track the mean value of observations over time.
func UpdateAvgGaugeWithGroup(key string, group string, value Value) {
	if g := getGauge(key, group, Policy_Avg); g != nil {
		g.Update(value)
	}
}

// UpdateAvgGaugeWithDimGroup updates an average gauge with specified group, value, and dimensions.
func UpdateAvgGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	if g := getGauge(key, group, Policy_Avg); g != nil {
		g.UpdateWithDim(value, dimensions)
	}
}

// UpdateMaxGaugeWithGroup updates a max gauge with specified group and value.
// Max gauges track the highest value observed.
func UpdateMaxGaugeWithGroup(key string, group string, value Value) {
	if g := getGauge(key, group, Policy_Max); g != nil {
		g.Update(value)
	}
}

// UpdateMaxGaugeWithDimGroup updates a max gauge with specified group, value, and dimensions.
func UpdateMaxGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	if g := getGauge(key, group, Policy_Max); g != nil {
		g.UpdateWithDim(value, dimensions)
	}
}

// UpdateMinGaugeWithGroup updates a min gauge with specified group and value.
// Min gauges track the lowest value observed.
func UpdateMinGaugeWithGroup(key string, group string, value Value) {
	if g := getGauge(key, group, Policy_Min); g != nil {
		g.Update(value)
	}
}

// UpdateMinGaugeWithDimGroup updates a min gauge with specified group, value, and dimensions.
func UpdateMinGaugeWithDimGroup(key string, group string, value Value, dimensions Dimension) {
	if g := getGauge(key, group, Policy_Min); g != nil {
		g.UpdateWithDim(value, dimensions)
	}
}

// RecordStopwatch records a stopwatch duration without dimensions.
// Stopwatches measure the time taken for operations in milliseconds.
func RecordStopwatch(key string, startTime time.Time) time.Duration {
	if s := getStopWatch(key, ""); s != nil {
		return s.RecordWithDim(nil, startTime)
	}
	return 0
}

// RecordStopwatchWithGroup records a stopwatch duration with specified group.
func RecordStopwatchWithGroup(key string, group string, startTime time.Time) time.Duration {
	if s := getStopWatch(key, group); s != nil {
		return s.RecordWithDim(nil, startTime)
	}
	return 0
}

// RecordStopwatchWithDimGroup records a stopwatch duration with specified group and dimensions.
func RecordStopwatchWithDimGroup(key string, group string, startTime time.Time, dimensions Dimension) time.Duration {
	if s := getStopWatch(key, group); s != nil {
		return s.RecordWithDim(dimensions, startTime)
	}
	return 0
}

// getInstrument gets or creates the metric identified by policy and name.
// build runs under the write lock on a miss.
func getInstrument(name string, policy Policy, build func() Metrics) Metrics {
	key := instKey{policy: policy, name: name}

	_lock.RLock()
	m, ok := _instruments[key]
	_lock.RUnlock()
	if ok && m != nil {
		return m
	}

	_lock.Lock()
	defer _lock.Unlock()
	m, ok = _instruments[key]
	if ok && m != nil {
		return m
	}
	m = build()
	_instruments[key] = m
	return m
}

func getCounter(name string, group string) Counter {
	m := getInstrument(name, Policy_Sum, func() Metrics {
		return &counter{instrument{name: name, group: group, policy: Policy_Sum}}
	})
	c, _ := m.(Counter)
	return c
}

func getGauge(name string, group string, policy Policy) Gauge {
	m := getInstrument(name, policy, func() Metrics {
		return &gauge{instrument{name: name, group: group, policy: policy}}
	})
	g, _ := m.(Gauge)
	return g
}

func getStopWatch(name string, group string) StopWatch {
	m := getInstrument(name, Policy_Stopwatch, func() Metrics {
		return &stopwatch{instrument{name: name, group: group, policy: Policy_Stopwatch}}
	})
	s, _ := m.(StopWatch)
	return s
}
