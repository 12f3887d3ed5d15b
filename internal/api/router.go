// Askloop - Realtime Follow-Up Relay and Clarifying-Question Broadcast
// Copyright 2026 Askloop Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/askloop/askloop

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Permissive limit for health probes: monitoring polls frequently, but
// unbounded probing is still abuse.
const healthRateLimit = 1000

// Router wires the HTTP endpoints onto a Chi mux.
type Router struct {
	handler *Handler
}

// NewRouter creates a Router around the given handler.
func NewRouter(handler *Handler) *Router {
	return &Router{handler: handler}
}

// Setup configures all routes and the global middleware stack.
func (router *Router) Setup() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: router.corsOrigins(),
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type"},
		MaxAge:         86400,
	}))

	r.Route("/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(healthRateLimit, time.Minute))
		r.Get("/", router.handler.Health)
		r.Get("/ready", router.handler.HealthReady)
	})

	// Upgrade requests are limited per client IP; established sessions
	// are unaffected.
	r.With(httprate.LimitByIP(router.wsRateLimit(), time.Minute)).
		Get("/ws", router.handler.WebSocket)

	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (router *Router) corsOrigins() []string {
	if router.handler.cfg == nil {
		return []string{"*"}
	}
	return router.handler.cfg.Security.CORSOrigins
}

func (router *Router) wsRateLimit() int {
	if router.handler.cfg == nil || router.handler.cfg.Security.WSRateLimit <= 0 {
		return 60
	}
	return router.handler.cfg.Security.WSRateLimit
}
