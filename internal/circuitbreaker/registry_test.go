package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pkarvelis/routeproxy/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(5, 30*time.Second)
	})

	Describe("Breaker", func() {
		It("should create a new breaker for an unknown upstream", func() {
			cb := registry.Breaker("dummy")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same upstream", func() {
			cb1 := registry.Breaker("dummy")
			cb2 := registry.Breaker("dummy")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different upstreams", func() {
			cb1 := registry.Breaker("dummy")
			cb2 := registry.Breaker("jsonplaceholder")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should use registry threshold for new breakers", func() {
			registry = circuitbreaker.NewRegistry(2, 100*time.Millisecond)
			cb := registry.Breaker("dummy")

			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should use registry timeout for new breakers", func() {
			registry = circuitbreaker.NewRegistry(2, 50*time.Millisecond)
			cb := registry.Breaker("dummy")

			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			time.Sleep(60 * time.Millisecond)
			Expect(cb.Allow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent Breaker calls safely", func() {
			const goroutines = 100

			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb := registry.Breaker("dummy")
					Expect(cb).NotTo(BeNil())
				}()
			}

			wg.Wait()

			// Only one breaker should exist for the upstream
			Expect(registry.States()).To(HaveLen(1))
		})
	})

	Describe("Reset", func() {
		It("should clear all breakers", func() {
			registry.Breaker("a")
			registry.Breaker("b")
			registry.Breaker("c")
			Expect(registry.States()).To(HaveLen(3))

			registry.Reset()
			Expect(registry.States()).To(HaveLen(0))
		})
	})

	Describe("States", func() {
		It("should report the state of every breaker", func() {
			registry.Breaker("healthy")
			tripped := registry.Breaker("failing")

			for i := 0; i < 5; i++ {
				tripped.RecordFailure()
			}

			states := registry.States()
			Expect(states).To(HaveLen(2))
			Expect(states["healthy"]).To(Equal(circuitbreaker.StateClosed))
			Expect(states["failing"]).To(Equal(circuitbreaker.StateOpen))
		})
	})
})
