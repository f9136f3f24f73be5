package metrics

import "time"

// Metrics is the base interface for all metric types.
type Metrics interface {
	// Name returns the metric name
	Name() string
	// Group returns the metric group for categorization
	Group() string
	// Policy returns the aggregation policy for this metric
	Policy() Policy
}

// Counter interface for counter metrics that accumulate values over time.
// Counters are typically used to track cumulative metrics like frame counts,
// error counts, or total bytes processed.
type Counter interface {
	Metrics
	// IncrWithDim increments the counter by delta with specified dimensions.
	IncrWithDim(delta Value, dimensions Dimension)
	// Incr increments the counter by delta without dimensions.
	Incr(delta Value)
}

// Gauge interface for metrics that represent a point-in-time value.
// Gauges are typically used for measurements that can go up or down,
// such as queue depth or number of active connections.
type Gauge interface {
	Metrics
	// Update sets the gauge's absolute value.
	Update(value Value)
	// UpdateWithDim sets the gauge's absolute value with specified dimensions.
	UpdateWithDim(value Value, dimensions Dimension)
}

// StopWatch interface for timing metrics that measure duration.
type StopWatch interface {
	Metrics
	// RecordWithDim records the duration since startTime with specified dimensions.
	RecordWithDim(dimensions Dimension, startTime time.Time) time.Duration
}

// instrument carries the identity shared by every concrete metric and
// fans measurements out to the registered reporters.
type instrument struct {
	name   string
	group  string
	policy Policy
}

func (i *instrument) Name() string   { return i.name }
func (i *instrument) Group() string  { return i.group }
func (i *instrument) Policy() Policy { return i.policy }

func (i *instrument) report(m Metrics, v Value, cnt int, dimensions Dimension) {
	r := Record{
		metrics:    m,
		value:      v,
		cnt:        cnt,
		dimensions: dimensions,
	}
	for _, reporter := range _Reporters {
		reporter.Report(r)
	}
}

// counter accumulates values under Policy_Sum.
type counter struct {
	instrument
}

func (c *counter) Incr(v Value) {
	c.IncrWithDim(v, nil)
}

func (c *counter) IncrWithDim(v Value, dimensions Dimension) {
	c.report(c, v, 0, dimensions)
}

// gauge reports point-in-time values. The aggregation policy decides how
// the reporting side combines them: last-wins, average, max or min.
type gauge struct {
	instrument
}

func (g *gauge) Update(v Value) {
	g.UpdateWithDim(v, nil)
}

func (g *gauge) UpdateWithDim(v Value, dimensions Dimension) {
	cnt := 0
	if g.policy == Policy_Avg {
		cnt = 1
	}
	g.report(g, v, cnt, dimensions)
}

// stopwatch measures durations in milliseconds under Policy_Stopwatch.
type stopwatch struct {
	instrument
}

// RecordWithDim records the duration since startTime with specified dimensions
// and returns the duration it measured.
func (s *stopwatch) RecordWithDim(dimensions Dimension, startTime time.Time) time.Duration {
	duration := time.Since(startTime)
	s.report(s, Value(float64(duration.Microseconds())/1000), 1, dimensions)
	return duration
}
