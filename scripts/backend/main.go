// Command backend runs a dummy upstream HTTP server for exercising the
// proxy locally. It answers every path with a JSON envelope identifying
// the serving instance, so distribution across upstreams is visible.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Response is the reply body each backend instance returns.
type Response struct {
	Instance string `json:"instance"`
	Method   string `json:"method"`
	Path     string `json:"path"`
	Body     string `json:"body,omitempty"`
	ServedAt string `json:"served_at"`
}

func main() {
	port := flag.Int("port", 8081, "port to listen on")
	name := flag.String("name", "", "instance name reported in responses (defaults to the port)")
	delay := flag.Duration("delay", 0, "artificial delay before responding")
	flag.Parse()

	instance := *name
	if instance == "" {
		instance = fmt.Sprintf("backend-%d", *port)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		log.Printf("request: method=%s path=%s from=%s", r.Method, r.URL.Path, r.RemoteAddr)
		if *delay > 0 {
			time.Sleep(*delay)
		}
		resp := Response{
			Instance: instance,
			Method:   r.Method,
			Path:     r.URL.Path,
			Body:     string(body),
			ServedAt: time.Now().UTC().Format(time.RFC3339Nano),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Backend-Instance", instance)
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			log.Printf("encode response: %v", err)
		}
	})

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("backend %s listening on %s", instance, addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("backend server failed: %v", err)
	}
}
