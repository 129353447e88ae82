package forwarder_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pkarvelis/routeproxy/internal/circuitbreaker"
	"github.com/pkarvelis/routeproxy/internal/forwarder"
	"github.com/pkarvelis/routeproxy/internal/routing"
)

func TestForwarder(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Forwarder Suite")
}

var _ = Describe("Forwarder", func() {
	var (
		fwd     *forwarder.Forwarder
		backend *httptest.Server
		log     *slog.Logger
	)

	BeforeEach(func() {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))

		backend = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/hello":
				w.WriteHeader(http.StatusOK)
				w.Write([]byte("hello from backend"))
			case "/echo-method":
				w.Write([]byte(r.Method))
			case "/echo-header":
				w.Write([]byte(r.Header.Get("X-Test")))
			case "/echo-body":
				body, _ := io.ReadAll(r.Body)
				w.Write(body)
			case "/boom":
				w.WriteHeader(http.StatusInternalServerError)
			default:
				w.WriteHeader(http.StatusNotFound)
				w.Write([]byte("not here"))
			}
		}))

		fwd = forwarder.New(log, nil, 5*time.Second, 0)
	})

	AfterEach(func() {
		backend.Close()
	})

	upstream := func() routing.Upstream {
		return routing.Upstream{ID: "dummy", Address: backend.URL}
	}

	Describe("Forward", func() {
		It("should return the full response body", func() {
			body, err := fwd.Forward(context.Background(), upstream(), http.MethodGet, "/hello", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("hello from backend"))
		})

		It("should forward the inbound method", func() {
			body, err := fwd.Forward(context.Background(), upstream(), http.MethodPost, "/echo-method", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("POST"))
		})

		It("should forward headers", func() {
			headers := map[string]string{"X-Test": "present"}
			body, err := fwd.Forward(context.Background(), upstream(), http.MethodGet, "/echo-header", headers, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("present"))
		})

		It("should forward the request body", func() {
			body, err := fwd.Forward(context.Background(), upstream(), http.MethodPost, "/echo-body", nil, []byte("payload"))
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("payload"))
		})

		It("should pass non-5xx error statuses through as bodies", func() {
			body, err := fwd.Forward(context.Background(), upstream(), http.MethodGet, "/missing", nil, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(Equal("not here"))
		})

		It("should return a forward error for 5xx upstream statuses", func() {
			_, err := fwd.Forward(context.Background(), upstream(), http.MethodGet, "/boom", nil, nil)
			var fwdErr *forwarder.Error
			Expect(errors.As(err, &fwdErr)).To(BeTrue())
			Expect(fwdErr.UpstreamID).To(Equal("dummy"))
		})

		Context("when the upstream is unreachable", func() {
			It("should return a forward error", func() {
				dead := routing.Upstream{ID: "dead", Address: "http://127.0.0.1:1"}
				_, err := fwd.Forward(context.Background(), dead, http.MethodGet, "/", nil, nil)

				var fwdErr *forwarder.Error
				Expect(errors.As(err, &fwdErr)).To(BeTrue())
				Expect(fwdErr.UpstreamID).To(Equal("dead"))
			})
		})

		Context("with a circuit breaker registry", func() {
			var registry *circuitbreaker.Registry

			BeforeEach(func() {
				registry = circuitbreaker.NewRegistry(2, time.Minute)
				fwd = forwarder.New(log, registry, time.Second, 0)
			})

			It("should open the breaker after repeated failures", func() {
				dead := routing.Upstream{ID: "dead", Address: "http://127.0.0.1:1"}

				for i := 0; i < 2; i++ {
					_, err := fwd.Forward(context.Background(), dead, http.MethodGet, "/", nil, nil)
					Expect(err).To(HaveOccurred())
				}

				Expect(registry.States()["dead"]).To(Equal(circuitbreaker.StateOpen))

				_, err := fwd.Forward(context.Background(), dead, http.MethodGet, "/", nil, nil)
				var fwdErr *forwarder.Error
				Expect(errors.As(err, &fwdErr)).To(BeTrue())
				Expect(fwdErr.Reason).To(ContainSubstring("circuit breaker open"))
			})

			It("should keep the breaker closed on success", func() {
				_, err := fwd.Forward(context.Background(), upstream(), http.MethodGet, "/hello", nil, nil)
				Expect(err).NotTo(HaveOccurred())
				Expect(registry.States()["dummy"]).To(Equal(circuitbreaker.StateClosed))
			})
		})
	})
})
