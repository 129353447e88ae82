package config_test

import (
	"os"
	"path/filepath"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/pkarvelis/routeproxy/config"
)

func TestConfig(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Config Suite")
}

func validConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Address:     ":8080",
			Environment: config.EnvDev,
		},
		Workers: config.WorkersConfig{
			Count:         4,
			WatchInterval: "2s",
			ReplyTimeout:  "10s",
		},
		Logging: config.LoggingConfig{
			Level: config.LogLevelInfo,
		},
		CircuitBreaker: config.CircuitBreakerConfig{
			Threshold:    5,
			ResetTimeout: "30s",
		},
		Upstreams: []config.UpstreamConfig{
			{ID: "dummy", Address: "http://localhost:9001"},
			{ID: "jsonplaceholder", Address: "https://jsonplaceholder.typicode.com"},
		},
		Rules: []config.RuleConfig{
			{PathPrefix: "/test", UpstreamIDs: []string{"dummy"}},
			{PathPrefix: "/", UpstreamIDs: []string{"jsonplaceholder"}},
		},
	}
}

var _ = Describe("Config", func() {
	Describe("Validate", func() {
		It("should accept a complete configuration", func() {
			Expect(validConfig().Validate()).To(Succeed())
		})

		It("should reject a missing listen address", func() {
			cfg := validConfig()
			cfg.Server.Address = ""
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject an unknown environment", func() {
			cfg := validConfig()
			cfg.Server.Environment = "production"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject a worker count below one", func() {
			cfg := validConfig()
			cfg.Workers.Count = 0
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject an unparseable reply timeout", func() {
			cfg := validConfig()
			cfg.Workers.ReplyTimeout = "soon"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject an empty upstream list", func() {
			cfg := validConfig()
			cfg.Upstreams = nil
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject upstream addresses without http scheme", func() {
			cfg := validConfig()
			cfg.Upstreams[0].Address = "ftp://localhost:9001"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject duplicate upstream ids", func() {
			cfg := validConfig()
			cfg.Upstreams[1].ID = "dummy"
			Expect(cfg.Validate()).To(MatchError(ContainSubstring("duplicate upstream id")))
		})

		It("should reject rules referencing undefined upstreams", func() {
			cfg := validConfig()
			cfg.Rules[0].UpstreamIDs = []string{"ghost"}
			Expect(cfg.Validate()).To(MatchError(ContainSubstring(`unknown upstream id "ghost"`)))
		})

		It("should reject path prefixes not starting with a slash", func() {
			cfg := validConfig()
			cfg.Rules[0].PathPrefix = "test"
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		It("should reject rules without upstream ids", func() {
			cfg := validConfig()
			cfg.Rules[0].UpstreamIDs = nil
			Expect(cfg.Validate()).To(HaveOccurred())
		})

		Context("with rate limiting enabled", func() {
			It("should reject a non-positive request rate", func() {
				cfg := validConfig()
				cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 0, Burst: 10}
				Expect(cfg.Validate()).To(HaveOccurred())
			})

			It("should accept a sane limit", func() {
				cfg := validConfig()
				cfg.RateLimit = config.RateLimitConfig{Enabled: true, RequestsPerSecond: 100, Burst: 200}
				Expect(cfg.Validate()).To(Succeed())
			})
		})
	})

	Describe("duration accessors", func() {
		It("should parse the validated duration strings", func() {
			cfg := validConfig()
			Expect(cfg.WatchInterval().String()).To(Equal("2s"))
			Expect(cfg.ReplyTimeout().String()).To(Equal("10s"))
			Expect(cfg.BreakerResetTimeout().String()).To(Equal("30s"))
		})
	})

	Describe("Load", func() {
		var (
			tempDir string
			prevDir string
		)

		BeforeEach(func() {
			var err error
			tempDir, err = os.MkdirTemp("", "config-test-*")
			Expect(err).NotTo(HaveOccurred())

			prevDir, err = os.Getwd()
			Expect(err).NotTo(HaveOccurred())
		})

		AfterEach(func() {
			os.Chdir(prevDir)
			os.RemoveAll(tempDir)
		})

		Context("with a valid config file", func() {
			BeforeEach(func() {
				configContent := `
server:
  address: ":8080"
  environment: "dev"

workers:
  count: 2
  respawn: true
  reply_timeout: "5s"

upstreams:
  - id: "dummy"
    address: "http://localhost:9001"

rules:
  - path_prefix: "/test"
    upstream_ids: ["dummy"]
  - path_prefix: "/"
    upstream_ids: ["dummy"]

logging:
  level: "info"
`
				configPath := filepath.Join(tempDir, "config.yaml")
				err := os.WriteFile(configPath, []byte(configContent), 0644)
				Expect(err).NotTo(HaveOccurred())

				err = os.Chdir(tempDir)
				Expect(err).NotTo(HaveOccurred())
			})

			It("should load configuration successfully", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg).NotTo(BeNil())
			})

			It("should parse the worker pool settings", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Workers.Count).To(Equal(2))
				Expect(cfg.Workers.Respawn).To(BeTrue())
				Expect(cfg.Workers.ReplyTimeout).To(Equal("5s"))
			})

			It("should parse upstreams and rules in order", func() {
				cfg, err := config.Load()
				Expect(err).NotTo(HaveOccurred())
				Expect(cfg.Upstreams).To(HaveLen(1))
				Expect(cfg.Rules).To(HaveLen(2))
				Expect(cfg.Rules[0].PathPrefix).To(Equal("/test"))
				Expect(cfg.Rules[1].PathPrefix).To(Equal("/"))
			})
		})
	})
})
