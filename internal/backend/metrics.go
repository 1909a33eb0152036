package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics exposed by the extraction service.
type Metrics struct {
	ScrapesTotal *prometheus.CounterVec
	ErrorsTotal  *prometheus.CounterVec
	ImagesFound  prometheus.Counter
}

// NewMetrics registers the service metrics with the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScrapesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imgscan_scrapes_total",
			Help: "The total number of extraction requests served",
		}, []string{"mode"}), // 'static', 'deep', 'stream'
		ErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "imgscan_scrape_errors_total",
			Help: "The total number of failed extractions",
		}, []string{"type"}),
		ImagesFound: factory.NewCounter(prometheus.CounterOpts{
			Name: "imgscan_images_found_total",
			Help: "The total number of images discovered across all scrapes",
		}),
	}
}
