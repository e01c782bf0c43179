package rest

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/oshokin/fire-watch/internal/domain/alert"
	"github.com/oshokin/fire-watch/internal/domain/fire"
	"github.com/oshokin/fire-watch/internal/service/orchestrator"
)

// DefaultMaxUploadBytes limits the image accepted by /predict.
const DefaultMaxUploadBytes = 10 << 20

// Service is the orchestrator surface used by the handlers.
type Service interface {
	IngestReading(ctx context.Context, reading fire.SensorReading) (*orchestrator.IngestResult, error)
	LatestReading(ctx context.Context) (fire.SensorReading, error)
	ReadingHistory(ctx context.Context, limit int) ([]fire.SensorReading, error)

	HandleImage(ctx context.Context, filename string, image []byte) (*fire.Prediction, error)
	DetectionHistory(ctx context.Context, limit int) ([]fire.DetectionEvent, error)
	LatestPhotoURL(ctx context.Context) (*string, error)

	Status(ctx context.Context) (fire.Status, error)
	Dashboard(ctx context.Context) (*orchestrator.Dashboard, error)
	StatusHistory(ctx context.Context, limit int) ([]fire.StatusLogEntry, error)

	Thresholds(ctx context.Context) (fire.Thresholds, error)
	UpdateThresholds(ctx context.Context, patch fire.ThresholdsPatch, actor string) (fire.Thresholds, error)

	FireState() fire.Snapshot
	ResetFireState(ctx context.Context, actor string) (bool, error)
}

// Subscriptions serves one websocket subscriber.
type Subscriptions interface {
	Serve(w http.ResponseWriter, r *http.Request, group alert.Group)
}

// Options configures the router.
type Options struct {
	// Service handles every API call.
	Service Service
	// Subscriptions serves /ws/{client_type}. The route is absent when nil.
	Subscriptions Subscriptions
	// StaticDir is served under /static/ when set.
	StaticDir string
	// MaxUploadBytes limits /predict uploads. Zero means DefaultMaxUploadBytes.
	MaxUploadBytes int64
	// RequestTimeout bounds plain API calls. Websocket and upload routes are exempt.
	RequestTimeout time.Duration
}

// handler holds the dependencies of the route handlers.
type handler struct {
	service        Service
	subscriptions  Subscriptions
	maxUploadBytes int64
}

// NewRouter builds the HTTP handler. ctx provides the base logger.
func NewRouter(ctx context.Context, opts Options) http.Handler {
	h := &handler{
		service:        opts.Service,
		subscriptions:  opts.Subscriptions,
		maxUploadBytes: opts.MaxUploadBytes,
	}

	if h.maxUploadBytes <= 0 {
		h.maxUploadBytes = DefaultMaxUploadBytes
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(ctx))
	r.Use(middleware.Recoverer)
	r.Use(allowCORS)

	r.Get("/", h.root)

	if h.subscriptions != nil {
		r.Get("/ws/{client_type}", h.subscribe)
	}

	r.Post("/predict", h.predict)

	if opts.StaticDir != "" {
		r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir))))
	}

	r.Group(func(r chi.Router) {
		if opts.RequestTimeout > 0 {
			r.Use(middleware.Timeout(opts.RequestTimeout))
		}

		r.Post("/sensors", h.ingestReading)
		r.Get("/sensors", h.latestReading)
		r.Get("/history/sensors", h.readingHistory)
		r.Get("/history/detections", h.detectionHistory)
		r.Get("/history/status", h.statusHistory)
		r.Get("/status", h.status)
		r.Get("/dashboard", h.dashboard)
		r.Get("/thresholds", h.thresholds)
		r.Post("/thresholds", h.updateThresholds)
		r.Get("/media/latest", h.latestMedia)
		r.Get("/fire-state", h.fireState)
		r.Delete("/fire-state", h.resetFireState)
	})

	return r
}
