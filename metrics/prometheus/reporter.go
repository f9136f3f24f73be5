// Package prometheus implements a metrics reporter that converts framelib
// metrics to Prometheus format and exposes them over HTTP or a push gateway.
package prometheus

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/dvellum/framelib/log"
	"github.com/dvellum/framelib/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

const _metricsChanSize = 100000

// metricType defines the type of Prometheus metric backing a record.
type metricType int

const (
	_metricTypeCounter metricType = iota
	_metricTypeGauge
)

// metricOpt contains the sanitized identity for a Prometheus metric.
type metricOpt struct {
	subsystem   string
	name        string
	constLabels map[string]string
}

// newMetricOpt builds metric options from a record and external labels.
// Dots are illegal in Prometheus names and label values, so they are
// rewritten to underscores.
func newMetricOpt(rc *metrics.Record, extLabels map[string]string) *metricOpt {
	opts := &metricOpt{
		subsystem:   strings.ReplaceAll(rc.Metrics().Group(), ".", "_"),
		name:        strings.ReplaceAll(rc.Metrics().Name(), ".", "_"),
		constLabels: make(map[string]string, len(rc.Dimensions())+len(extLabels)),
	}
	for k, v := range extLabels {
		opts.constLabels[k] = strings.ReplaceAll(v, ".", "_")
	}
	for k, v := range rc.Dimensions() {
		opts.constLabels[k] = strings.ReplaceAll(v, ".", "_")
	}
	return opts
}

// promGauge wraps a Prometheus gauge with value tracking for averaging and
// for the running maximum or minimum.
type promGauge struct {
	prometheus.Gauge
	value float64
	cnt   int
}

// merge folds a record into the gauge according to its aggregation policy.
func (p *promGauge) merge(rc *metrics.Record) error {
	switch rc.Metrics().Policy() {
	case metrics.Policy_Set:
		p.Set(float64(rc.Value()))
	case metrics.Policy_Max, metrics.Policy_Min:
		v := float64(rc.Value())
		isMax := rc.Metrics().Policy() == metrics.Policy_Max
		if p.cnt == 0 || (isMax && v > p.value) || (!isMax && v < p.value) {
			p.value = v
			p.Set(v)
		}
		p.cnt = 1
	case metrics.Policy_Sum:
		p.Add(float64(rc.Value()))
	case metrics.Policy_Avg, metrics.Policy_Stopwatch:
		v, c := rc.RawData()
		p.value += float64(v)
		p.cnt += c
		if p.cnt <= 0 {
			return fmt.Errorf("metrics(%s) count invalid", rc.Metrics().Name())
		}
		p.Set(p.value / float64(p.cnt))
	default:
		return fmt.Errorf("metrics(%s) policy invalid", rc.Metrics().Name())
	}
	return nil
}

// metricWrapper stores one registered Prometheus metric and its type.
type metricWrapper struct {
	m  prometheus.Metric
	mt metricType
}

// merge updates the wrapped metric with new record data.
func (m *metricWrapper) merge(rc *metrics.Record) {
	switch m.mt {
	case _metricTypeGauge:
		if g, ok := m.m.(*promGauge); ok && g != nil {
			if err := g.merge(rc); err != nil {
				log.Error().Err(err).Msg("prometheus merge")
			}
			return
		}
	case _metricTypeCounter:
		if c, ok := m.m.(prometheus.Counter); ok && c != nil {
			c.Add(float64(rc.Value()))
			return
		}
	}
	log.Error().Str("promtype", fmt.Sprintf("%T", m.m)).
		Int("metrictype", int(m.mt)).Msg("prometheus merge failed")
}

// ReporterConfig contains configuration for the Prometheus reporter.
type ReporterConfig struct {
	Tag             string            `mapstructure:"tag"`             // Plugin instance tag.
	ListenAddr      string            `mapstructure:"listenAddr"`      // HTTP listen address for the scrape endpoint.
	MetricPath      string            `mapstructure:"metricPath"`      // Metrics HTTP path.
	ExtLabels       map[string]string `mapstructure:"extLabels"`       // Labels attached to every metric.
	UsePush         bool              `mapstructure:"usePush"`         // Enable push gateway mode.
	PushAddr        string            `mapstructure:"pushAddr"`        // Push gateway address.
	PushJobName     string            `mapstructure:"pushJobName"`     // Push job name.
	PushIntervalSec int               `mapstructure:"pushIntervalSec"` // Push interval in seconds.
}

// GetName returns the configuration key for ReporterConfig.
func (c *ReporterConfig) GetName() string {
	return "prometheus"
}

// Validate checks the ReporterConfig parameters.
func (c *ReporterConfig) Validate() error {
	if c.UsePush {
		if c.PushAddr == "" {
			return fmt.Errorf("PushAddr cannot be empty in push mode")
		}
		if c.PushJobName == "" {
			return fmt.Errorf("PushJobName cannot be empty in push mode")
		}
		if c.PushIntervalSec <= 0 {
			return fmt.Errorf("PushIntervalSec must be positive in push mode")
		}
	}
	return nil
}

func (c *ReporterConfig) withDefaults() {
	if c.ListenAddr == "" {
		c.ListenAddr = "127.0.0.1:0"
	}
	if c.MetricPath == "" {
		c.MetricPath = "/metrics"
	}
}

// Reporter aggregates records off a channel and serves them through a
// dedicated Prometheus registry. It implements metrics.Reporter.
type Reporter struct {
	cfg         *ReporterConfig
	reg         *prometheus.Registry
	promSvr     *http.Server
	pusher      *push.Pusher
	metricsChan chan metrics.Record
	metrics     map[string]*metricWrapper
	listenAddr  net.Addr
	extLabelStr string
	ctx         context.Context
	cancel      context.CancelFunc
}

// NewReporter creates and starts a reporter with the given configuration.
func NewReporter(cfg *ReporterConfig) (*Reporter, error) {
	if cfg == nil {
		cfg = &ReporterConfig{}
	}
	cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid ReporterConfig: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Reporter{
		cfg:         cfg,
		reg:         prometheus.NewRegistry(),
		metricsChan: make(chan metrics.Record, _metricsChanSize),
		metrics:     map[string]*metricWrapper{},
		extLabelStr: labelString(cfg.ExtLabels),
		ctx:         ctx,
		cancel:      cancel,
	}
	if err := r.start(); err != nil {
		cancel()
		return nil, err
	}
	return r, nil
}

// FactoryName returns the plugin factory name.
func (x *Reporter) FactoryName() string {
	return "prometheus"
}

// Report queues one record for aggregation. A full channel drops the
// record rather than blocking the caller.
func (x *Reporter) Report(r metrics.Record) {
	select {
	case x.metricsChan <- r:
	default:
		log.Error().Msg("metrics chan full")
	}
}

// ListenAddr returns the bound scrape address.
func (x *Reporter) ListenAddr() net.Addr {
	return x.listenAddr
}

func (x *Reporter) start() error {
	x.startAggregate()
	if x.cfg.UsePush {
		x.startPusher()
	}
	return x.startHTTPSvr()
}

// Stop shuts the reporter down. Queued records not yet aggregated are lost.
func (x *Reporter) Stop() {
	if x.cancel != nil {
		x.cancel()
		x.cancel = nil
	}
	if x.promSvr != nil {
		if err := x.promSvr.Close(); err != nil {
			log.Error().Err(err).Msg("prometheus http server stop")
		}
		x.promSvr = nil
	}
}

func (x *Reporter) startPusher() {
	x.pusher = push.New(x.cfg.PushAddr, x.cfg.PushJobName).Gatherer(x.reg)
	go func() {
		log.Info().Str("addr", x.cfg.PushAddr).Msg("prometheus pusher started")
		t := time.NewTicker(time.Second * time.Duration(x.cfg.PushIntervalSec))
		defer t.Stop()
		for {
			select {
			case <-x.ctx.Done():
				log.Info().Msg("prometheus pusher end")
				return
			case <-t.C:
				newCtx, cancel := context.WithTimeout(x.ctx, time.Second*5)
				if err := x.pusher.PushContext(newCtx); err != nil {
					log.Error().Err(err).Msg("prometheus push")
				}
				cancel()
			}
		}
	}()
}

// startHTTPSvr starts the HTTP server exposing the scrape endpoint.
func (x *Reporter) startHTTPSvr() error {
	l, err := net.Listen("tcp", x.cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %q: %w", x.cfg.ListenAddr, err)
	}
	x.listenAddr = l.Addr()

	mux := http.NewServeMux()
	mux.Handle(x.cfg.MetricPath, promhttp.HandlerFor(x.reg, promhttp.HandlerOpts{}))
	x.promSvr = &http.Server{Handler: mux}
	go func() { _ = x.promSvr.Serve(l) }()
	log.Info().Str("addr", x.listenAddr.String()).Str("path", x.cfg.MetricPath).
		Msg("prometheus http listening")
	return nil
}

// startAggregate launches the goroutine that drains the record channel
// into the registry until the context is cancelled.
func (x *Reporter) startAggregate() {
	go func() {
		for {
			select {
			case rc := <-x.metricsChan:
				x.merge(&rc)
			case <-x.ctx.Done():
				log.Info().Msg("prometheus collector shutdown")
				return
			}
		}
	}()
}

// merge folds one record into the registry, creating the backing
// Prometheus metric on first sight.
func (x *Reporter) merge(rc *metrics.Record) {
	key := x.getFullName(rc)
	if m, exist := x.metrics[key]; exist {
		m.merge(rc)
		return
	}
	switch m := rc.Metrics().(type) {
	case metrics.Counter:
		x.metrics[key] = x.newCounter(rc)
	case metrics.StopWatch, metrics.Gauge:
		x.metrics[key] = x.newGauge(rc)
	default:
		log.Error().Str("metrictype", fmt.Sprintf("%T", m)).Msg("prometheus merge unknown")
	}
}

func (x *Reporter) newCounter(rc *metrics.Record) *metricWrapper {
	o := newMetricOpt(rc, x.cfg.ExtLabels)
	c := prometheus.NewCounter(prometheus.CounterOpts{
		Subsystem:   o.subsystem,
		Name:        o.name,
		ConstLabels: o.constLabels,
	})
	x.reg.MustRegister(c)
	c.Add(float64(rc.Value()))
	return &metricWrapper{m: c, mt: _metricTypeCounter}
}

func (x *Reporter) newGauge(rc *metrics.Record) *metricWrapper {
	o := newMetricOpt(rc, x.cfg.ExtLabels)
	g := &promGauge{
		Gauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Subsystem:   o.subsystem,
			Name:        o.name,
			ConstLabels: o.constLabels,
		}),
	}
	x.reg.MustRegister(g)
	if err := g.merge(rc); err != nil {
		log.Error().Err(err).Msg("prometheus merge")
	}
	return &metricWrapper{m: g, mt: _metricTypeGauge}
}

// getFullName generates a unique storage key for a record: group, name,
// external labels and the sorted dimensions.
func (x *Reporter) getFullName(rc *metrics.Record) string {
	var sb strings.Builder
	sb.Grow(256)
	sb.WriteString(rc.Metrics().Group())
	sb.WriteString("*")
	sb.WriteString(rc.Metrics().Name())
	sb.WriteString("*")
	sb.WriteString(x.extLabelStr)
	keys := make([]string, 0, len(rc.Dimensions()))
	for k := range rc.Dimensions() {
		if _, ok := x.cfg.ExtLabels[k]; ok {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString(":")
		sb.WriteString(rc.Dimensions()[k])
		sb.WriteString(",")
	}
	return sb.String()
}

func labelString(labels map[string]string) string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var sb strings.Builder
	for _, k := range keys {
		sb.WriteString(k)
		sb.WriteString("=")
		sb.WriteString(labels[k])
		sb.WriteString(";")
	}
	return sb.String()
}
