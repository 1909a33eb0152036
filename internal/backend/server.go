package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	errs "imgscan/pkg/errors"
	"imgscan/pkg/images"
	"imgscan/pkg/logger"
	"imgscan/pkg/scrape"
	"imgscan/pkg/urlutil"
)

// Server is the extraction backend HTTP service.
type Server struct {
	extractor *Extractor
	metrics   *Metrics
	registry  *prometheus.Registry
	logger    logger.Logger
}

// NewServer creates the backend service around an extractor.
func NewServer(extractor *Extractor, log logger.Logger) *Server {
	if log == nil {
		log = logger.GetLogger()
	}
	registry := prometheus.NewRegistry()
	return &Server{
		extractor: extractor,
		metrics:   NewMetrics(registry),
		registry:  registry,
		logger:    log,
	}
}

// Routes builds the service mux.
func (s *Server) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/scrape", s.handleScrape)
	mux.HandleFunc("/api/scrape/stream", s.handleStream)
	mux.Handle("/metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintln(w, "ok")
	})
	return mux
}

// ListenAndServe runs the service until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Routes(),
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	s.logger.InfoWithFields("extraction backend listening", map[string]interface{}{
		"addr": addr,
	})
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// extract runs the extraction appropriate for the requested mode.
func (s *Server) extract(ctx context.Context, target string, deep bool) ([]images.Record, error) {
	if deep {
		return s.extractor.ExtractDeep(ctx, target)
	}
	return s.extractor.Extract(ctx, target)
}

// handleScrape is the request/response extraction endpoint used by batch
// scans: {url, deepScrape} in, {success, images} or {success, error} out.
func (s *Server) handleScrape(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req scrape.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, scrape.Response{Success: false, Error: "invalid request body"})
		return
	}
	if !urlutil.IsValid(req.URL) {
		writeJSON(w, http.StatusOK, scrape.Response{Success: false, Error: "invalid URL"})
		return
	}

	mode := "static"
	if req.DeepScrape {
		mode = "deep"
	}
	s.metrics.ScrapesTotal.WithLabelValues(mode).Inc()

	recs, err := s.extract(r.Context(), req.URL, req.DeepScrape)
	if err != nil {
		s.countError(err)
		s.logger.WarnWithFields("extraction failed", map[string]interface{}{
			"url":   req.URL,
			"error": err.Error(),
		})
		writeJSON(w, http.StatusOK, scrape.Response{Success: false, Error: err.Error()})
		return
	}

	s.metrics.ImagesFound.Add(float64(len(recs)))
	writeJSON(w, http.StatusOK, scrape.Response{Success: true, Images: recs})
}

// handleStream is the streaming extraction endpoint used by single
// scans: progress events followed by exactly one terminal event.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	deep := r.URL.Query().Get("deep") == "true"

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	send := func(payload interface{}) {
		data, err := json.Marshal(payload)
		if err != nil {
			return
		}
		fmt.Fprintf(w, "data: %s\n\n", data)
		flusher.Flush()
	}

	if !urlutil.IsValid(target) {
		send(map[string]interface{}{"status": "error", "message": "invalid URL"})
		return
	}

	s.metrics.ScrapesTotal.WithLabelValues("stream").Inc()

	send(map[string]interface{}{"status": "starting", "progress": 5, "message": "starting scan"})

	mode := "fetching page"
	if deep {
		mode = "rendering page"
	}
	send(map[string]interface{}{"status": "fetching", "progress": 25, "message": mode})

	recs, err := s.extract(r.Context(), target, deep)
	if err != nil {
		s.countError(err)
		// Terminal error event; message passed through verbatim
		send(map[string]interface{}{"status": "error", "message": err.Error()})
		return
	}

	send(map[string]interface{}{"status": "processing", "progress": 80, "message": "collecting images"})

	s.metrics.ImagesFound.Add(float64(len(recs)))
	send(map[string]interface{}{
		"status": "complete",
		"result": scrape.Result{
			Status: "complete",
			URL:    target,
			Total:  len(recs),
			Images: recs,
		},
	})
}

// countError increments the error counter labeled by taxonomy type.
func (s *Server) countError(err error) {
	var typed *errs.Error
	if errors.As(err, &typed) {
		s.metrics.ErrorsTotal.WithLabelValues(string(typed.Type)).Inc()
		return
	}
	s.metrics.ErrorsTotal.WithLabelValues(string(errs.ErrorTypeUnknown)).Inc()
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
