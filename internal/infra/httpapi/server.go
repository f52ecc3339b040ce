// Package httpapi exposes the reminder services over a small JSON API built with huma on chi.
package httpapi

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"order_reminder_service/internal/app"
	"order_reminder_service/internal/domain/apperr"
	"order_reminder_service/internal/i18n"
)

// Services are the application services behind the API.
type Services struct {
	Orders    *app.OrderService
	Holders   *app.HolderService
	Scheduler *app.ReminderScheduler
	Lifecycle *app.LifecycleManager
	Sweep     *app.DispatchSweep
	Catalog   *app.IntervalCatalog
	Templates *app.TemplateService
	Languages *i18n.Catalog
}

// Config for the HTTP API handler.
type Config struct {
	Services Services
	BasePath string
	Auth     AuthConfig
	Logger   *logrus.Entry
	// Health reports whether the backing store is reachable.
	Health func(ctx context.Context) error
}

type server struct {
	svc    Services
	log    *logrus.Entry
	health func(ctx context.Context) error
}

// response wraps an operation's JSON body.
type response[T any] struct {
	Body T
}

func respond[T any](v T) *response[T] { return &response[T]{Body: v} }

type idPath struct {
	ID int64 `path:"id"`
}

var humaDefaults sync.Once

// configureHuma installs the error envelope and array handling. Both are huma package globals.
func configureHuma() {
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		var details map[string]any
		if len(errs) > 0 {
			msgs := make([]string, 0, len(errs))
			for _, e := range errs {
				msgs = append(msgs, e.Error())
			}
			details = map[string]any{"errors": msgs}
		}
		return newAPIError(status, "", msg, details)
	}
}

// New returns an HTTP handler exposing the reminder API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/api/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	log := cfg.Logger.WithField("component", "http")

	humaDefaults.Do(configureHuma)

	router := chi.NewRouter()
	router.Use(middleware.Recoverer)
	router.Use(requestLogger(log))
	router.Use(newAuthMiddleware(basePath, cfg.Auth))

	hcfg := huma.DefaultConfig("Order Reminder API", "1.0.0")
	hcfg.OpenAPIPath = basePath + "/openapi"
	hcfg.DocsPath = basePath + "/docs"
	hcfg.SchemasPath = basePath + "/schemas"
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	s := &server{svc: cfg.Services, log: log, health: cfg.Health}
	s.registerHealth(group)
	s.registerHolders(group)
	s.registerOrderTypes(group)
	s.registerOrders(group)
	s.registerReminders(group)
	s.registerIntervals(group)
	s.registerTemplates(group)
	return router, nil
}

func (s *server) fail(ctx context.Context, err error) error {
	return handleError(ctx, s.log, err)
}

type requestIDKey struct{}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// requestLogger tags each request with an X-Request-Id and logs its outcome.
func requestLogger(log *logrus.Entry) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimSpace(r.Header.Get("X-Request-Id"))
			if id == "" {
				id = uuid.NewString()
			}
			w.Header().Set("X-Request-Id", id)
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			ctx := context.WithValue(r.Context(), requestIDKey{}, id)
			next.ServeHTTP(ww, r.WithContext(ctx))

			log.WithFields(logrus.Fields{
				"request_id": id,
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"duration":   time.Since(start).String(),
			}).Debug("HTTP request")
		})
	}
}

func (s *server) registerHealth(api huma.API) {
	type healthBody struct {
		Status string `json:"status" example:"ok"`
	}
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
		Errors:      []int{http.StatusServiceUnavailable},
	}, func(ctx context.Context, _ *struct{}) (*response[healthBody], error) {
		if s.health != nil {
			if err := s.health(ctx); err != nil {
				s.log.WithError(err).Warn("Health check failed")
				return nil, newAPIError(http.StatusServiceUnavailable, "unavailable", "database unavailable", nil)
			}
		}
		return respond(healthBody{Status: "ok"}), nil
	})
}

func parseDate(field, value string) (time.Time, error) {
	t, err := time.ParseInLocation(dateLayout, strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, apperr.Validation(field, "expected a YYYY-MM-DD date, got %q", value)
	}
	return t, nil
}
