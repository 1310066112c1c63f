package archive

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts the work done by one archive run. A nil *Metrics is valid
// and records nothing.
//
// An archive run is a batch job, so the registry is not scraped; the CLI
// writes it in the text exposition format with prometheus.WriteToTextfile
// for node_exporter's textfile collector.
type Metrics struct {
	Registry *prometheus.Registry

	pages          prometheus.Counter
	messages       prometheus.Counter
	sourceFaults   prometheus.Counter
	people         prometheus.Gauge
	assetsFetched  *prometheus.CounterVec
	assetsSkipped  *prometheus.CounterVec
	assetsFailed   *prometheus.CounterVec
	assetBytes     prometheus.Counter
	lastSuccessful prometheus.Gauge
}

// NewMetrics registers the archive metrics on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Metrics{
		Registry: reg,
		pages: f.NewCounter(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "pages_fetched_total",
			Help:      "Message pages retrieved from the source.",
		}),
		messages: f.NewCounter(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "messages_fetched_total",
			Help:      "Messages retrieved from the source, before dedup.",
		}),
		sourceFaults: f.NewCounter(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "source_faults_total",
			Help:      "Page requests that failed and aborted the run.",
		}),
		people: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "grouparchive",
			Name:      "people",
			Help:      "People in the resolved registry.",
		}),
		assetsFetched: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "assets_downloaded_total",
			Help:      "Assets downloaded, by kind.",
		}, []string{"kind"}),
		assetsSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "assets_skipped_total",
			Help:      "Assets already present on disk, by kind.",
		}, []string{"kind"}),
		assetsFailed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "assets_failed_total",
			Help:      "Asset downloads that failed, by kind.",
		}, []string{"kind"}),
		assetBytes: f.NewCounter(prometheus.CounterOpts{
			Namespace: "grouparchive",
			Name:      "asset_bytes_total",
			Help:      "Bytes written for downloaded assets.",
		}),
		lastSuccessful: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "grouparchive",
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the last run that persisted an archive.",
		}),
	}
}

// WriteTextfile writes the registry to path in the text exposition format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.Registry)
}

func (m *Metrics) pageFetched(n int) {
	if m == nil {
		return
	}
	m.pages.Inc()
	m.messages.Add(float64(n))
}

func (m *Metrics) sourceFault() {
	if m == nil {
		return
	}
	m.sourceFaults.Inc()
}

func (m *Metrics) setPeople(n int) {
	if m == nil {
		return
	}
	m.people.Set(float64(n))
}

func (m *Metrics) succeeded() {
	if m == nil {
		return
	}
	m.lastSuccessful.SetToCurrentTime()
}

// AssetFetched implements assets.Observer.
func (m *Metrics) AssetFetched(kind string, bytes int64) {
	if m == nil {
		return
	}
	m.assetsFetched.WithLabelValues(kind).Inc()
	m.assetBytes.Add(float64(bytes))
}

// AssetSkipped implements assets.Observer.
func (m *Metrics) AssetSkipped(kind string) {
	if m == nil {
		return
	}
	m.assetsSkipped.WithLabelValues(kind).Inc()
}

// AssetFailed implements assets.Observer.
func (m *Metrics) AssetFailed(kind string) {
	if m == nil {
		return
	}
	m.assetsFailed.WithLabelValues(kind).Inc()
}
