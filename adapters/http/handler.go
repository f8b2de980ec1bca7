// Package http provides the HTTP surface of the data layer.
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/artpar/datalayer/adapters/metrics"
	"github.com/artpar/datalayer/core/graph"
	"github.com/artpar/datalayer/core/object"
	"github.com/artpar/datalayer/core/openapi"
	"github.com/artpar/datalayer/core/schema"
	"github.com/artpar/datalayer/core/storage"
	"github.com/artpar/datalayer/pkg/jsonapi"
	"github.com/artpar/datalayer/ports"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"
)

// MaxBodyBytes bounds the size of object bodies accepted by POST.
const MaxBodyBytes = 4 << 20

// Handler serves objects and schemas of a storage layer.
type Handler struct {
	layer  *storage.Layer
	logger zerolog.Logger
}

// NewHandler creates a handler over layer.
func NewHandler(layer *storage.Layer, logger zerolog.Logger) *Handler {
	return &Handler{layer: layer, logger: logger}
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}

// VersionResponse is the body of the version endpoint.
type VersionResponse struct {
	Version string `json:"version"`
	Service string `json:"service"`
}

// Health returns a simple liveness check.
func Health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(HealthResponse{Status: "ok"})
}

// VersionHandler returns a handler reporting version.
func VersionHandler(version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(VersionResponse{Version: version, Service: "datalayer"})
	}
}

// RouterConfig holds optional configuration for the router.
type RouterConfig struct {
	Metrics        *metrics.Collector
	MetricsHandler http.Handler // serves MetricsPath; defaults to promhttp.Handler()
	MetricsPath    string       // default "/metrics"
	Version        string
	Timeout        time.Duration // per request; default 60s

	// OpenAPI serves the generated document and the Swagger UI.
	OpenAPI bool
	Schemas openapi.Lister // schemas to describe; defaults to the loaded ones
}

// NewRouter creates the main HTTP router.
func NewRouter(h *Handler, logger zerolog.Logger) chi.Router {
	return NewRouterWithConfig(h, logger, RouterConfig{})
}

// NewRouterWithConfig creates the main HTTP router with optional config.
func NewRouterWithConfig(h *Handler, logger zerolog.Logger, cfg RouterConfig) chi.Router {
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.Version == "" {
		cfg.Version = "dev"
	}

	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(NewLoggingMiddleware(logger, cfg.MetricsPath))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(cfg.Timeout))

	if cfg.Metrics != nil {
		r.Use(NewMetricsMiddleware(cfg.Metrics, cfg.MetricsPath))

		if cfg.MetricsHandler != nil {
			r.Handle(cfg.MetricsPath, cfg.MetricsHandler)
		} else {
			r.Handle(cfg.MetricsPath, promhttp.Handler())
		}
	}

	r.Get("/health", Health)
	r.Get("/version", VersionHandler(cfg.Version))

	if cfg.OpenAPI {
		r.Get("/.well-known/openapi.json", h.OpenAPI(cfg.Schemas, cfg.Version))

		r.Get("/swagger/*", httpSwagger.Handler(
			httpSwagger.URL("/.well-known/openapi.json"),
		))
	}

	r.Get("/schemas/{name}", h.GetSchema)

	r.Route("/objects/{schema}", func(r chi.Router) {
		r.Post("/", h.CreateObject)
		r.Get("/", h.FindObjects)
		r.Get("/{id}", h.GetObject)
		r.Delete("/{id}", h.DeleteObject)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, jsonapi.ErrNotFound("no route for "+r.URL.Path))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusMethodNotAllowed, "method_not_allowed", "Method Not Allowed").
			Detailf("%s is not allowed on %s", r.Method, r.URL.Path).Build())
	})

	return r
}

// OpenAPI returns a handler serving the OpenAPI document of the object
// routes, generated from the schemas on every request.
func (h *Handler) OpenAPI(schemas openapi.Lister, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		gen := openapi.NewGenerator(h.layer.Registry(), schemas)
		gen.SetInfo(openapi.Info{
			Title:       "Data Layer API",
			Version:     version,
			Description: "Object routes generated from the loaded schemas",
		})

		spec, err := gen.Generate()
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		data, err := spec.ToJSON()
		if err != nil {
			h.writeError(w, r, err)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Write(data)
	}
}

// GetSchema returns the capability table of a schema path.
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	name := strings.ToLower(chi.URLParam(r, "name"))

	caps, err := h.layer.Registry().Capabilities(name)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	jsonapi.WriteResource(w, http.StatusOK, jsonapi.NewResource("schema", caps.Path).
		Attr("identity", caps.Identity).
		Attr("version", caps.Version).
		Attr("attributes", caps.Attributes).
		Build())
}

// CreateObject constructs an object from the JSON body and stores its graph.
// The "ref" query parameter is the fallback identity of roots without _id.
func (h *Handler) CreateObject(w http.ResponseWriter, r *http.Request) {
	path := strings.ToLower(chi.URLParam(r, "schema"))

	var fields map[string]any
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err := dec.Decode(&fields); err != nil {
		jsonapi.WriteBadRequest(w, "invalid JSON body: "+err.Error())
		return
	}

	obj, err := object.New(h.layer.Registry(), path, fields)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	ids, err := h.layer.Store(r.Context(), h.layer.Models().Wrap(obj), r.URL.Query().Get("ref"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	if id := obj.Identity(); id != "" {
		w.Header().Set("Location", "/objects/"+path+"/"+id)
	}
	jsonapi.WriteMeta(w, http.StatusCreated, jsonapi.Meta{"ids": ids})
}

// GetObject returns the object stored under its identity.
func (h *Handler) GetObject(w http.ResponseWriter, r *http.Request) {
	path := strings.ToLower(chi.URLParam(r, "schema"))
	id := chi.URLParam(r, "id")

	m, err := h.layer.FindByRef(r.Context(), path, id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	if m == nil {
		jsonapi.WriteError(w, jsonapi.ErrValidation("", fmt.Sprintf("schema %s declares no identity", path)))
		return
	}

	jsonapi.WriteResource(w, http.StatusOK, resourceOf(path, id, m.Base()))
}

// FindObjects returns the objects whose indexed attribute equals a value.
func (h *Handler) FindObjects(w http.ResponseWriter, r *http.Request) {
	path := strings.ToLower(chi.URLParam(r, "schema"))
	q := r.URL.Query()

	attr := q.Get("attr")
	if attr == "" {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
			Detail("query parameter attr is required").Parameter("attr").Build())
		return
	}
	if !q.Has("value") {
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusBadRequest, "bad_request", "Bad Request").
			Detail("query parameter value is required").Parameter("value").Build())
		return
	}

	ms, err := h.layer.FindAllBy(r.Context(), path, attr, q.Get("value"), q.Get("version"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resources := make([]jsonapi.Resource, 0, len(ms))
	for _, m := range ms {
		obj := m.Base()
		resources = append(resources, resourceOf(path, obj.Identity(), obj))
	}
	jsonapi.WriteCollection(w, http.StatusOK, resources)
}

// DeleteObject removes the document stored under an identity.
func (h *Handler) DeleteObject(w http.ResponseWriter, r *http.Request) {
	path := strings.ToLower(chi.URLParam(r, "schema"))

	if _, err := h.layer.Registry().Definition(path); err != nil {
		h.writeError(w, r, err)
		return
	}
	if err := h.layer.Delete(r.Context(), path, chi.URLParam(r, "id")); err != nil {
		h.writeError(w, r, err)
		return
	}
	jsonapi.WriteNoContent(w)
}

// resourceOf renders obj as a resource. Attributes holding stored
// documents are also listed as relationships.
func resourceOf(path, id string, obj *object.Object) jsonapi.Resource {
	b := jsonapi.NewResource(path, id).
		Attrs(obj.Plain()).
		Link("/objects/" + path + "/" + id)

	for _, name := range obj.Names() {
		switch v := obj.MustGet(name).(type) {
		case *object.Object:
			if v != nil && v.Identity() != "" {
				b.References(name, identifierOf(v))
			}
		case *object.Array:
			var ids []jsonapi.ResourceIdentifier
			for _, item := range v.All() {
				if o, ok := item.(*object.Object); ok && o.Identity() != "" {
					ids = append(ids, identifierOf(o))
				}
			}
			b.References(name, ids...)
		}
	}
	return b.Build()
}

func identifierOf(o *object.Object) jsonapi.ResourceIdentifier {
	return jsonapi.ResourceIdentifier{Type: o.Path(), ID: o.Identity()}
}

// writeError maps err to a JSON:API error response.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		uerr *ports.UniqueViolationError
		verr *schema.ValueError
	)

	switch {
	case errors.Is(err, ports.ErrNotFound), errors.Is(err, schema.ErrSchemaNotFound):
		jsonapi.WriteError(w, jsonapi.ErrNotFound(err.Error()))
	case errors.As(err, &uerr):
		jsonapi.WriteError(w, jsonapi.NewError(http.StatusConflict, "conflict", "Conflict").
			Detail(uerr.Error()).
			Pointer("/data/attributes/"+uerr.Attr).
			Meta("owner", uerr.Owner).
			Build())
	case errors.As(err, &verr):
		jsonapi.WriteError(w, jsonapi.ErrValidation(verr.Attr, err.Error()))
	case errors.Is(err, schema.ErrUnknownAttribute),
		errors.Is(err, schema.ErrUnknownProperty),
		errors.Is(err, schema.ErrInvalidValue),
		errors.Is(err, schema.ErrNestedArrayUnsupported),
		errors.Is(err, schema.ErrIndexOutOfBounds),
		errors.Is(err, schema.ErrUnsupportedOperation),
		errors.Is(err, storage.ErrMissingIdentity),
		errors.Is(err, ports.ErrIndexValueEmpty):
		jsonapi.WriteError(w, jsonapi.ErrValidation("", err.Error()))
	default:
		level := zerolog.ErrorLevel
		if errors.Is(err, graph.ErrReferenceCycle) || errors.Is(err, graph.ErrMaxDepth) {
			level = zerolog.WarnLevel
		}
		h.logger.WithLevel(level).
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Msg("request failed")
		jsonapi.WriteError(w, jsonapi.ErrInternal(err.Error()))
	}
}

// NewMetricsMiddleware creates middleware that records request metrics.
func NewMetricsMiddleware(m *metrics.Collector, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip metrics for internal endpoints
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				next.ServeHTTP(w, r)
				return
			}

			m.RequestsInFlight.Inc()
			defer m.RequestsInFlight.Dec()

			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			route := "unmatched"
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}

			m.RequestsTotal.WithLabelValues(r.Method, route, statusLabel(ww.Status())).Inc()
			m.RequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// statusLabel returns a string label for the status code.
func statusLabel(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "other"
	}
}

// NewLoggingMiddleware creates middleware that logs HTTP requests.
func NewLoggingMiddleware(logger zerolog.Logger, metricsPath string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			// Skip logging for health checks and metrics
			if strings.HasPrefix(r.URL.Path, "/health") || r.URL.Path == metricsPath {
				return
			}

			logger.Debug().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("duration", time.Since(start)).
				Str("request_id", middleware.GetReqID(r.Context())).
				Msg("http request")
		})
	}
}
