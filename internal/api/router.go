// Package api implements the HTTP introspection/control surface: the
// process status, the per-module snapshot, cluster membership control,
// test-only injection hooks, the Byzantine test-mode switch, the ABD
// application operations, the inbound dispatch endpoint transport posts
// to, and a live snapshot websocket (spec.md §6.4).
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/vitaliisemenov/recsa-core/internal/api/middleware"
	"github.com/vitaliisemenov/recsa-core/internal/resolver"
	"github.com/vitaliisemenov/recsa-core/internal/transport"
)

// controlRateLimit bounds the mutating control routes to a modest steady
// rate with a small burst, generous enough for a test harness driving
// scenarios but tight enough to catch a runaway retry loop.
const (
	controlRateLimit = rate.Limit(20)
	controlBurst     = 10
)

// Handler bundles the resolver facade with the shared validator instance
// every route handler consults.
type Handler struct {
	res      *resolver.Resolver
	log      *slog.Logger
	validate *validator.Validate
}

// NewRouter builds the full mux.Router for the introspection/control
// surface, with the middleware stack applied to every route and a
// tighter rate limit layered onto the mutating control routes.
func NewRouter(res *resolver.Resolver, logger *slog.Logger) *mux.Router {
	h := &Handler{res: res, log: logger.With("component", "api"), validate: validator.New()}

	r := mux.NewRouter()
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.RequestID())
	r.Use(middleware.Logging(logger))
	if met := res.Metrics(); met != nil {
		r.Use(middleware.Metrics(met.HTTPRequestDuration))
	}

	r.HandleFunc("/", h.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/data", h.handleData).Methods(http.MethodGet)
	r.HandleFunc("/nodes", h.handleNodes).Methods(http.MethodGet)
	r.HandleFunc("/view/{module}", h.handleView).Methods(http.MethodGet)
	r.HandleFunc("/byz-behaviors", h.handleListByzBehaviors).Methods(http.MethodGet)
	r.HandleFunc("/abd/read", h.handleABDRead).Methods(http.MethodGet)
	r.HandleFunc(transport.DispatchPath, h.handleDispatch).Methods(http.MethodPost)
	r.HandleFunc("/ws/data", h.handleWebsocketData)
	r.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	control := r.NewRoute().Subrouter()
	control.Use(middleware.RateLimit(controlRateLimit, controlBurst))
	control.HandleFunc("/publish_node", h.handlePublishNode).Methods(http.MethodPost)
	control.HandleFunc("/inject_conf", h.handleInjectConf).Methods(http.MethodPost)
	control.HandleFunc("/inject_prp", h.handleInjectPrp).Methods(http.MethodPost)
	control.HandleFunc("/kill", h.handleKill).Methods(http.MethodPost)
	control.HandleFunc("/set-byz-behavior", h.handleSetByzBehavior).Methods(http.MethodPost)
	control.HandleFunc("/abd/write", h.handleABDWrite).Methods(http.MethodPost)

	return r
}

// NewServer wraps an http.Server around the router, bound to addr
// ("host:port" or ":port").
func NewServer(addr string, res *resolver.Resolver, logger *slog.Logger) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      NewRouter(res, logger),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}
