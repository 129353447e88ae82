package main

import (
	"net/http"

	"github.com/pkarvelis/routeproxy/internal/dispatch"
	"github.com/pkarvelis/routeproxy/internal/metrics"
)

func setupRouter(dispatcher *dispatch.Dispatcher, collector *metrics.Collector) *http.ServeMux {
	mux := http.NewServeMux()

	mux.Handle("/", dispatcher)
	mux.HandleFunc("/metrics", collector.Handler())

	return mux
}
