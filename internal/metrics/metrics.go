// Package metrics exports camera controller and recorder measurements to Prometheus.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smazurov/camops/internal/camera"
)

const namespace = "camops"

// Collector owns a registry with the controller and recorder metrics. It
// implements camera.Metrics.
type Collector struct {
	registry *prometheus.Registry

	operations *prometheus.CounterVec
	durations  *prometheus.HistogramVec
	status     prometheus.Gauge
	recording  prometheus.Gauge

	frames      *prometheus.CounterVec
	encodeFPS   prometheus.Gauge
	encodeSpeed prometheus.Gauge

	mu   sync.RWMutex
	snap Snapshot
}

// Snapshot is a copy of the latest values, for status endpoints.
type Snapshot struct {
	Status        string         `json:"status"`
	Recording     bool           `json:"recording"`
	Operations    map[string]int `json:"operations"`
	Failures      map[string]int `json:"failures"`
	FramesWritten int            `json:"frames_written"`
	FramesDropped int            `json:"frames_dropped"`
	EncodeFPS     float64        `json:"encode_fps"`
	EncodeSpeed   float64        `json:"encode_speed"`
}

// New creates a collector with its own registry. Go runtime and process
// collectors are registered alongside.
func New() *Collector {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Collector{
		registry: reg,
		operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "operations_total",
			Help:      "Controller operations by name and result kind",
		}, []string{"op", "result"}),
		durations: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "operation_duration_seconds",
			Help:      "Time spent running controller operations on the worker",
			Buckets:   []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5},
		}, []string{"op"}),
		status: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "status",
			Help:      "Controller status: 0 error, 1 uninitialized, 2 ok",
		}),
		recording: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "camera",
			Name:      "recording",
			Help:      "1 while a recording is running",
		}),
		frames: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "frames_total",
			Help:      "Frames handed to the encoder by outcome",
		}, []string{"result"}),
		encodeFPS: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "fps",
			Help:      "Encoding FPS reported by ffmpeg",
		}),
		encodeSpeed: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "recorder",
			Name:      "processing_speed",
			Help:      "ffmpeg processing speed multiplier",
		}),
		snap: Snapshot{
			Status:     camera.StatusUninitialized.String(),
			Operations: make(map[string]int),
			Failures:   make(map[string]int),
		},
	}
}

// ObserveOperation records one controller operation. An empty kind is success.
func (c *Collector) ObserveOperation(op string, kind camera.Kind, duration time.Duration) {
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	c.operations.WithLabelValues(op, result).Inc()
	c.durations.WithLabelValues(op).Observe(duration.Seconds())

	c.mu.Lock()
	c.snap.Operations[op]++
	if kind != "" {
		c.snap.Failures[op]++
	}
	c.mu.Unlock()
}

// SetStatus records the controller status.
func (c *Collector) SetStatus(status camera.Status) {
	c.status.Set(float64(status))
	c.mu.Lock()
	c.snap.Status = status.String()
	c.mu.Unlock()
}

// SetRecording records whether a recording is running.
func (c *Collector) SetRecording(running bool) {
	v := 0.0
	if running {
		v = 1
	}
	c.recording.Set(v)
	c.mu.Lock()
	c.snap.Recording = running
	c.mu.Unlock()
}

// ObserveFrame counts one frame offered to the encoder.
func (c *Collector) ObserveFrame(dropped bool) {
	result := "written"
	if dropped {
		result = "dropped"
	}
	c.frames.WithLabelValues(result).Inc()

	c.mu.Lock()
	if dropped {
		c.snap.FramesDropped++
	} else {
		c.snap.FramesWritten++
	}
	c.mu.Unlock()
}

// SetEncodeProgress records the latest ffmpeg progress figures.
func (c *Collector) SetEncodeProgress(fps, speed float64) {
	c.encodeFPS.Set(fps)
	c.encodeSpeed.Set(speed)
	c.mu.Lock()
	c.snap.EncodeFPS = fps
	c.snap.EncodeSpeed = speed
	c.mu.Unlock()
}

// Snapshot returns a copy of the latest values.
func (c *Collector) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()

	s := c.snap
	s.Operations = make(map[string]int, len(c.snap.Operations))
	for k, v := range c.snap.Operations {
		s.Operations[k] = v
	}
	s.Failures = make(map[string]int, len(c.snap.Failures))
	for k, v := range c.snap.Failures {
		s.Failures[k] = v
	}
	return s
}

// Registry exposes the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}
