package main

import (
	"crypto/subtle"
	"net/http"
	"net/http/pprof"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/noah-isme/order-financials/internal/common"
	"github.com/noah-isme/order-financials/internal/config"
	"github.com/noah-isme/order-financials/internal/gst"
	"github.com/noah-isme/order-financials/internal/health"
	"github.com/noah-isme/order-financials/internal/obs"
	"github.com/noah-isme/order-financials/internal/order"
	"github.com/noah-isme/order-financials/internal/ratelimit"
	"github.com/noah-isme/order-financials/internal/security"
)

type routerDeps struct {
	Config      *config.Config
	Logger      zerolog.Logger
	Tracing     bool
	HTTPMetrics *obs.HTTPMetrics
	RateLimit   ratelimit.Handler
	Idem        common.Idem
	Health      health.Handler
	GST         gst.Handler
	Orders      *order.Handler
}

func newRouter(d routerDeps) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if d.Tracing {
		r.Use(obs.TracingMiddleware)
	}
	if d.HTTPMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: d.HTTPMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: d.Logger}.Middleware)
	r.Use(security.Headers{EnableHSTS: d.Config != nil && d.Config.EnableHSTS}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(d.Config),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		ExposedHeaders:   []string{"X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if d.HTTPMetrics != nil {
		r.Handle("/metrics", promhttp.Handler())
	}
	if d.Config != nil && d.Config.PprofEnabled {
		if strings.TrimSpace(d.Config.PprofUser) == "" || strings.TrimSpace(d.Config.PprofPass) == "" {
			d.Logger.Warn().Msg("pprof enabled without PPROF_USER/PPROF_PASS; not mounting /debug/pprof")
		} else {
			r.Mount("/debug/pprof", protectPprof(newPprofMux(), d.Config.PprofUser, d.Config.PprofPass))
		}
	}

	r.Get("/health/live", d.Health.Live)
	r.Get("/health/ready", d.Health.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(d.RateLimit.Middleware)
		v.Use(security.BodyLimit{Max: bodyLimit(d.Config)}.Middleware)

		v.Post("/gst/regime", d.GST.Regime)
		v.Post("/gst/calculate", d.GST.Calculate)
		v.Post("/line-items/calculate", d.Orders.CalculateLines)

		v.Route("/orders/drafts", func(o chi.Router) {
			o.With(d.Idem.Middleware).Post("/", d.Orders.CreateDraft)
			o.Route("/{id}", func(child chi.Router) {
				child.Get("/", d.Orders.GetDraft)
				child.Delete("/", d.Orders.DeleteDraft)
				child.Put("/jurisdiction", d.Orders.ChangeJurisdiction)
				child.Post("/recalculate", d.Orders.Recalculate)
				child.With(d.Idem.Middleware).Post("/items", d.Orders.AddItem)
				child.Patch("/items/{rowId}", d.Orders.UpdateItem)
				child.Delete("/items/{rowId}", d.Orders.RemoveItem)
			})
		})
	})

	return r
}

func allowedOrigins(cfg *config.Config) []string {
	if cfg == nil || len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func bodyLimit(cfg *config.Config) int64 {
	if cfg == nil || cfg.BodyLimitBytes <= 0 {
		return security.DefaultBodyLimit
	}
	return cfg.BodyLimitBytes
}

// newPprofMux registers full paths because chi's Mount leaves the prefix on r.URL.Path.
func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || user == "" || pass == "" || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
