package api

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"StoreMirror/internal/catalog"
	"StoreMirror/internal/remote"
	"StoreMirror/pkg/kit"
)

// Sync is the mirror surface the UI consumes.
type Sync interface {
	Snapshot() []catalog.Product
	AddProduct(ctx context.Context, p catalog.NewProduct) (catalog.Product, error)
	RemoveProduct(ctx context.Context, id int64) error
	Notifications() <-chan catalog.Notification
}

const (
	maxUploadBytes = 8 << 20
	maxImageBytes  = 5 << 20
)

type Server struct {
	Sync Sync
	Log  *zap.Logger

	// Ready reports whether the cache backend is reachable. May be nil.
	Ready func(ctx context.Context) error

	preview previewSlot
}

type HTTPDeps struct {
	Log      *zap.Logger
	Service  string
	Registry *prometheus.Registry

	MetricsEnabled bool
	MetricsToken   string
}

func NewHandler(s *Server, deps HTTPDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(kit.Recoverer)
	r.Use(kit.Logging(deps.Log))

	if deps.Registry != nil {
		metrics := kit.NewMetrics(deps.Registry)
		r.Use(metrics.Middleware(deps.Service, kit.ChiRoutePatternOrPath))

		if deps.MetricsEnabled {
			r.With(kit.MetricsAuth(deps.MetricsToken)).Handle(
				"/metrics",
				promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}),
			)
		}
	}

	r.Mount("/", s.Routes())
	return r
}

func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	r.Get("/readyz", s.handleReady)

	r.Route("/api", func(rr chi.Router) {
		rr.Get("/products", s.listProducts)
		rr.Post("/products", s.createProduct)
		rr.Delete("/products/{id}", s.deleteProduct)

		rr.Get("/notifications", s.streamNotifications)

		rr.Get("/preview", s.getPreview)
		rr.Put("/preview", s.putPreview)
	})

	return r
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			if s.Log != nil {
				s.Log.Warn("readyz failed", zap.Error(err))
			}
			kit.WriteError(w, r, http.StatusServiceUnavailable, "not ready", nil)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
}

// listProducts never blocks and never errors: it is the cache-first render
// path, serving whatever the mirror currently holds.
func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	kit.WriteJSON(w, http.StatusOK, s.Sync.Snapshot())
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	p, err := decodeCreateForm(w, r)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
		return
	}

	created, err := s.Sync.AddProduct(r.Context(), p)
	if err != nil {
		s.writeMutationError(w, r, err)
		return
	}

	kit.WriteJSON(w, http.StatusCreated, created)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		kit.WriteError(w, r, http.StatusBadRequest, "bad id", nil)
		return
	}

	if err := s.Sync.RemoveProduct(r.Context(), id); err != nil {
		s.writeMutationError(w, r, err)
		return
	}

	kit.NoContent(w)
}

func (s *Server) writeMutationError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, remote.ErrValidation):
		kit.WriteError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, remote.ErrNotFound):
		kit.WriteError(w, r, http.StatusNotFound, "not found", nil)
	case errors.Is(err, remote.ErrUnavailable):
		kit.WriteError(w, r, http.StatusBadGateway, "product service unavailable", nil)
	default:
		if s.Log != nil {
			s.Log.Error("mutation failed", zap.Error(err))
		}
		kit.WriteError(w, r, http.StatusInternalServerError, "server error", nil)
	}
}

var (
	errNameRequired  = errors.New("name required")
	errPriceRequired = errors.New("price required")
	errBadPrice      = errors.New("bad price")
	errImageTooBig   = errors.New("image too large")
)

// decodeCreateForm enforces the form's required fields before any network
// round trip; everything richer stays server-side validation.
func decodeCreateForm(w http.ResponseWriter, r *http.Request) (catalog.NewProduct, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return catalog.NewProduct{}, errors.New("bad form")
	}

	name := strings.TrimSpace(r.FormValue("name"))
	if name == "" {
		return catalog.NewProduct{}, errNameRequired
	}

	rawPrice := strings.TrimSpace(r.FormValue("price"))
	if rawPrice == "" {
		return catalog.NewProduct{}, errPriceRequired
	}
	price, err := strconv.ParseFloat(rawPrice, 64)
	if err != nil || price < 0 {
		return catalog.NewProduct{}, errBadPrice
	}

	p := catalog.NewProduct{
		Name:        name,
		Price:       price,
		Description: strings.TrimSpace(r.FormValue("description")),
	}

	file, header, err := r.FormFile("imageFile")
	if err == nil {
		defer file.Close()
		img, err := io.ReadAll(io.LimitReader(file, maxImageBytes+1))
		if err != nil {
			return catalog.NewProduct{}, errors.New("bad image upload")
		}
		if len(img) > maxImageBytes {
			return catalog.NewProduct{}, errImageTooBig
		}
		p.Image = img
		p.ImageName = header.Filename
	} else if err != http.ErrMissingFile {
		return catalog.NewProduct{}, errors.New("bad image upload")
	}

	return p, nil
}
