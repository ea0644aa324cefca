// Package api is the HTTP/RPC front door: spec.md §6 treats it as a
// non-goal external collaborator ("request parsing, pagination, streaming
// event feed" — interface only, no design), so this package stays a thin
// handler set wired directly onto internal/queue, internal/wsv and
// internal/kiso rather than growing its own request-modeling layer. It
// supersedes the teacher's internal/rpc/rpc.go, which was an empty stub.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/hyperledger/iroha-sub010/internal/kiso"
	"github.com/hyperledger/iroha-sub010/internal/queue"
	"github.com/hyperledger/iroha-sub010/internal/telemetry"
	"github.com/hyperledger/iroha-sub010/internal/wsv"
)

// Server holds every dependency the handlers need and builds the chi
// router wiring them to the four endpoints spec.md §6 names.
type Server struct {
	queue  *queue.Queue
	world  *wsv.WSV
	config *kiso.Handle
	logger *logrus.Entry
	hub    *eventHub
}

// NewServer wires queue, world, config and metrics into a router. metrics
// may be nil, in which case /metrics is not registered.
func NewServer(q *queue.Queue, world *wsv.WSV, config *kiso.Handle, logger *logrus.Entry, metrics *telemetry.Metrics) http.Handler {
	s := &Server{
		queue:  q,
		world:  world,
		config: config,
		logger: logger.WithField("component", "api"),
		hub:    newEventHub(world, logger),
	}
	go s.hub.pump()

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Post("/transaction", s.handleSubmitTransaction)
	r.Post("/query", s.handleQuery)
	r.Get("/configuration", s.handleGetConfiguration)
	r.Post("/configuration", s.handleUpdateConfiguration)
	r.Get("/events", s.handleEvents)
	if metrics != nil {
		r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}

const requestTimeout = 5 * time.Second
