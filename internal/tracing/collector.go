package tracing

import "sync"

// Stats summarises one metric series.
type Stats struct {
	Count int     `json:"count"`
	Sum   float64 `json:"sum"`
	Mean  float64 `json:"mean"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

// MetricsCollector accumulates named samples and summarises them. Safe for
// concurrent use.
type MetricsCollector struct {
	mu      sync.Mutex
	samples map[string][]float64
}

// NewMetricsCollector returns an empty collector.
func NewMetricsCollector() *MetricsCollector {
	return &MetricsCollector{samples: make(map[string][]float64)}
}

// Record appends a sample to the named series.
func (c *MetricsCollector) Record(name string, value float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.samples[name] = append(c.samples[name], value)
}

// Summary returns per-series statistics. Empty series are omitted.
func (c *MetricsCollector) Summary() map[string]Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[string]Stats, len(c.samples))
	for name, values := range c.samples {
		if len(values) == 0 {
			continue
		}
		s := Stats{Count: len(values), Min: values[0], Max: values[0]}
		for _, v := range values {
			s.Sum += v
			if v < s.Min {
				s.Min = v
			}
			if v > s.Max {
				s.Max = v
			}
		}
		s.Mean = s.Sum / float64(s.Count)
		out[name] = s
	}
	return out
}
