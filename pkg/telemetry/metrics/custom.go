package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/model"
)

type customKind int

const (
	kindCounter customKind = iota
	kindGauge
	kindTiming
)

// customSeries is one custom metric with a fixed label set.
type customSeries struct {
	kind   customKind
	name   string
	tags   map[string]string
	value  float64
	timing TimingStats
}

// seriesKey renders name and tags as name{k=v,...} with sorted keys.
func seriesKey(name string, tags map[string]string) string {
	if len(tags) == 0 {
		return name
	}
	keys := sortedKeys(tags)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(tags[k])
	}
	b.WriteByte('}')
	return b.String()
}

func sortedKeys(tags map[string]string) []string {
	keys := make([]string, 0, len(tags))
	for k := range tags {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func copyTags(tags map[string]string) map[string]string {
	if len(tags) == 0 {
		return nil
	}
	out := make(map[string]string, len(tags))
	for k, v := range tags {
		out[k] = v
	}
	return out
}

// customCollector exports custom counters, gauges and timings as Prometheus
// const metrics. It is an unchecked collector: label sets are only known at
// collection time.
type customCollector struct {
	namespace string
	subsystem string

	mu     sync.Mutex
	series map[string]*customSeries

	// labelKeys pins each metric name to the tag keys it was first seen with.
	labelKeys map[string]string

	limiter *CardinalityLimiter
}

func newCustomCollector(cfg Config) *customCollector {
	return &customCollector{
		namespace: cfg.Namespace,
		subsystem: cfg.Subsystem,
		series:    make(map[string]*customSeries),
		labelKeys: make(map[string]string),
		limiter:   NewCardinalityLimiter(cfg.MaxCardinality),
	}
}

// lookup returns the series for name and tags, creating it when allowed.
// Must hold mu.
func (cc *customCollector) lookup(kind customKind, name string, tags map[string]string) *customSeries {
	key := seriesKey(name, tags)
	if s, ok := cc.series[key]; ok {
		if s.kind != kind {
			return nil
		}
		return s
	}

	keys := strings.Join(sortedKeys(tags), ",")
	if pinned, ok := cc.labelKeys[name]; ok && pinned != keys {
		return nil
	}
	if !cc.limiter.Allow(key) {
		return nil
	}

	cc.labelKeys[name] = keys
	s := &customSeries{kind: kind, name: name, tags: copyTags(tags)}
	cc.series[key] = s
	return s
}

func (cc *customCollector) add(name string, delta float64, tags map[string]string) (float64, bool) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	s := cc.lookup(kindCounter, name, tags)
	if s == nil {
		return 0, false
	}
	s.value += delta
	return s.value, true
}

func (cc *customCollector) set(name string, value float64, tags map[string]string) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	s := cc.lookup(kindGauge, name, tags)
	if s == nil {
		return false
	}
	s.value = value
	return true
}

func (cc *customCollector) observe(name string, d time.Duration, tags map[string]string) bool {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	s := cc.lookup(kindTiming, name, tags)
	if s == nil {
		return false
	}
	t := &s.timing
	if t.Count == 0 || d < t.Min {
		t.Min = d
	}
	if d > t.Max {
		t.Max = d
	}
	t.Count++
	t.Total += d
	t.Average = t.Total / time.Duration(t.Count)
	return true
}

// snapshot returns copies of all series keyed by seriesKey.
func (cc *customCollector) snapshot() (counters, gauges map[string]float64, timings map[string]TimingStats) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	counters = make(map[string]float64)
	gauges = make(map[string]float64)
	timings = make(map[string]TimingStats)
	for key, s := range cc.series {
		switch s.kind {
		case kindCounter:
			counters[key] = s.value
		case kindGauge:
			gauges[key] = s.value
		case kindTiming:
			timings[key] = s.timing
		}
	}
	return counters, gauges, timings
}

func (cc *customCollector) reset() {
	cc.mu.Lock()
	defer cc.mu.Unlock()
	cc.series = make(map[string]*customSeries)
	cc.labelKeys = make(map[string]string)
	cc.limiter.Reset()
}

// Describe sends nothing, which makes this an unchecked collector.
func (cc *customCollector) Describe(chan<- *prometheus.Desc) {}

// Collect emits every custom series as a const metric.
func (cc *customCollector) Collect(ch chan<- prometheus.Metric) {
	cc.mu.Lock()
	defer cc.mu.Unlock()

	for _, s := range cc.series {
		keys := sortedKeys(s.tags)
		labelNames := make([]string, len(keys))
		labelValues := make([]string, len(keys))
		for i, k := range keys {
			labelNames[i] = model.EscapeName(k, model.UnderscoreEscaping)
			labelValues[i] = s.tags[k]
		}

		base := "custom_" + model.EscapeName(s.name, model.UnderscoreEscaping)
		switch s.kind {
		case kindCounter:
			desc := prometheus.NewDesc(
				prometheus.BuildFQName(cc.namespace, cc.subsystem, base+"_total"),
				"Custom counter "+s.name, labelNames, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.CounterValue, s.value, labelValues...)

		case kindGauge:
			desc := prometheus.NewDesc(
				prometheus.BuildFQName(cc.namespace, cc.subsystem, base),
				"Custom gauge "+s.name, labelNames, nil)
			ch <- prometheus.MustNewConstMetric(desc, prometheus.GaugeValue, s.value, labelValues...)

		case kindTiming:
			desc := prometheus.NewDesc(
				prometheus.BuildFQName(cc.namespace, cc.subsystem, base+"_seconds"),
				"Custom timing "+s.name, labelNames, nil)
			ch <- prometheus.MustNewConstSummary(desc, s.timing.Count, s.timing.Total.Seconds(), nil, labelValues...)
		}
	}
}

// CardinalityLimiter prevents metric cardinality explosion by limiting
// the number of unique label combinations.
type CardinalityLimiter struct {
	maxCardinality int
	current        map[string]struct{}
	mu             sync.RWMutex
}

// NewCardinalityLimiter creates a new cardinality limiter with the specified
// maximum cardinality.
func NewCardinalityLimiter(maxCardinality int) *CardinalityLimiter {
	return &CardinalityLimiter{
		maxCardinality: maxCardinality,
		current:        make(map[string]struct{}),
	}
}

// Allow checks if a label set is allowed. Returns true if the label set
// already exists or if we haven't reached the cardinality limit yet.
func (cl *CardinalityLimiter) Allow(labelSet string) bool {
	cl.mu.RLock()
	if _, exists := cl.current[labelSet]; exists {
		cl.mu.RUnlock()
		return true
	}
	cl.mu.RUnlock()

	cl.mu.Lock()
	defer cl.mu.Unlock()

	// Double-check after acquiring write lock
	if _, exists := cl.current[labelSet]; exists {
		return true
	}

	if len(cl.current) >= cl.maxCardinality {
		return false
	}

	cl.current[labelSet] = struct{}{}
	return true
}

// Count returns the current cardinality.
func (cl *CardinalityLimiter) Count() int {
	cl.mu.RLock()
	defer cl.mu.RUnlock()
	return len(cl.current)
}

// Reset forgets every label set.
func (cl *CardinalityLimiter) Reset() {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	cl.current = make(map[string]struct{})
}
