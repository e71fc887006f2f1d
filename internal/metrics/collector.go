// Package metrics provides a lightweight registry that renders counters,
// gauges and histograms in the Prometheus text exposition format.
package metrics

import (
	"fmt"
	"io"
	"math"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Collector is the process-wide registry.
var Collector = NewRegistry("transcripthost")

// Registry holds named metrics. Series are rendered sorted by name and labels.
type Registry struct {
	namespace string
	started   time.Time

	mu         sync.Mutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry(namespace string) *Registry {
	return &Registry{
		namespace:  namespace,
		started:    time.Now(),
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

// Uptime returns how long the registry has existed.
func (r *Registry) Uptime() time.Duration {
	return time.Since(r.started)
}

type series struct {
	name   string
	help   string
	labels string
}

func (s series) key() string { return s.name + "{" + s.labels + "}" }

// Counter is a monotonically increasing value.
type Counter struct {
	series
	value atomic.Int64
}

func (c *Counter) Inc()         { c.value.Add(1) }
func (c *Counter) Add(n int64)  { c.value.Add(n) }
func (c *Counter) Value() int64 { return c.value.Load() }

// Gauge is a value that can go up and down.
type Gauge struct {
	series
	value atomic.Int64
}

func (g *Gauge) Set(v int64)  { g.value.Store(v) }
func (g *Gauge) Inc()         { g.value.Add(1) }
func (g *Gauge) Dec()         { g.value.Add(-1) }
func (g *Gauge) Value() int64 { return g.value.Load() }

// Histogram counts observations into cumulative buckets.
type Histogram struct {
	series
	mu     sync.Mutex
	bounds []float64
	counts []int64
	count  int64
	sum    float64
}

// Observe records v.
func (h *Histogram) Observe(v float64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.count++
	h.sum += v
	for i, le := range h.bounds {
		if v <= le {
			h.counts[i]++
		}
	}
}

// Count returns the number of observations.
func (h *Histogram) Count() int64 {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.count
}

func (r *Registry) Counter(name, help, labels string) *Counter {
	s := series{name: name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[s.key()]; ok {
		return c
	}
	c := &Counter{series: s}
	r.counters[s.key()] = c
	return c
}

func (r *Registry) Gauge(name, help, labels string) *Gauge {
	s := series{name: name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[s.key()]; ok {
		return g
	}
	g := &Gauge{series: s}
	r.gauges[s.key()] = g
	return g
}

// Histogram returns the named histogram. A +Inf bucket is always present.
func (r *Registry) Histogram(name, help, labels string, buckets []float64) *Histogram {
	s := series{name: name, help: help, labels: labels}
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[s.key()]; ok {
		return h
	}
	bounds := append([]float64(nil), buckets...)
	sort.Float64s(bounds)
	if len(bounds) == 0 || !math.IsInf(bounds[len(bounds)-1], 1) {
		bounds = append(bounds, math.Inf(1))
	}
	h := &Histogram{series: s, bounds: bounds, counts: make([]int64, len(bounds))}
	r.histograms[s.key()] = h
	return h
}

// Handler serves the exposition text.
func (r *Registry) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		r.WriteTo(w)
	}
}

// WriteTo renders every series to w.
func (r *Registry) WriteTo(w io.Writer) (int64, error) {
	var sb strings.Builder

	uptime := r.namespace + "_uptime_seconds"
	fmt.Fprintf(&sb, "# HELP %s Time since start in seconds\n# TYPE %s gauge\n%s %d\n", uptime, uptime, uptime, int64(r.Uptime().Seconds()))

	r.mu.Lock()
	counters := sortedValues(r.counters)
	gauges := sortedValues(r.gauges)
	histograms := sortedValues(r.histograms)
	r.mu.Unlock()

	last := ""
	for _, c := range counters {
		if c.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s counter\n", c.name, c.help, c.name)
			last = c.name
		}
		fmt.Fprintf(&sb, "%s %d\n", c.seriesName(c.name), c.Value())
	}
	last = ""
	for _, g := range gauges {
		if g.name != last {
			fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s gauge\n", g.name, g.help, g.name)
			last = g.name
		}
		fmt.Fprintf(&sb, "%s %d\n", g.seriesName(g.name), g.Value())
	}
	for _, h := range histograms {
		h.mu.Lock()
		fmt.Fprintf(&sb, "# HELP %s %s\n# TYPE %s histogram\n", h.name, h.help, h.name)
		for i, le := range h.bounds {
			bound := "+Inf"
			if !math.IsInf(le, 1) {
				bound = fmt.Sprintf("%g", le)
			}
			lbl := `le="` + bound + `"`
			if h.labels != "" {
				lbl = h.labels + "," + lbl
			}
			fmt.Fprintf(&sb, "%s_bucket{%s} %d\n", h.name, lbl, h.counts[i])
		}
		fmt.Fprintf(&sb, "%s %d\n", h.seriesName(h.name+"_count"), h.count)
		fmt.Fprintf(&sb, "%s %f\n", h.seriesName(h.name+"_sum"), h.sum)
		h.mu.Unlock()
	}

	n, err := io.WriteString(w, sb.String())
	return int64(n), err
}

func (s series) seriesName(name string) string {
	if s.labels == "" {
		return name
	}
	return name + "{" + s.labels + "}"
}

func sortedValues[T any](m map[string]T) []T {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]T, 0, len(keys))
	for _, k := range keys {
		out = append(out, m[k])
	}
	return out
}

// --- Metrics recorded by the service ---

var (
	HTTPRequests         = Collector.Counter("transcripthost_http_requests_total", "Total HTTP requests served", "")
	HTTPErrors           = Collector.Counter("transcripthost_http_errors_total", "HTTP responses with status >= 500", "")
	UploadsTotal         = Collector.Counter("transcripthost_uploads_total", "Files accepted by the upload endpoints", "")
	UploadBytes          = Collector.Counter("transcripthost_upload_bytes_total", "Bytes written to storage", "")
	TranscriptsGenerated = Collector.Counter("transcripthost_transcripts_generated_total", "Transcripts generated from upstream history", "")
	TranscriptsUploaded  = Collector.Counter("transcripthost_transcripts_uploaded_total", "Pre-rendered transcripts uploaded", "")
	UpstreamErrors       = Collector.Counter("transcripthost_upstream_errors_total", "Failed calls to the chat platform API", "")
	NotifyFailures       = Collector.Counter("transcripthost_notify_failures_total", "Failed transcript notifications", "")
	StoredFiles          = Collector.Gauge("transcripthost_stored_files", "Files in storage at last listing", "")
	LiveClients          = Collector.Gauge("transcripthost_live_clients", "Connected live event websocket clients", "")

	FetchLatency = Collector.Histogram("transcripthost_fetch_latency_seconds", "Upstream history fetch latency in seconds", "",
		[]float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30})
	RenderLatency = Collector.Histogram("transcripthost_render_latency_seconds", "Transcript render latency in seconds", "",
		[]float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1})
)
