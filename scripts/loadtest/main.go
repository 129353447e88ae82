// Command loadtest fires concurrent requests at the proxy and reports
// status-code and per-instance distribution. Point -paths at a few rule
// prefixes to see how requests spread across workers and upstreams.
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

type instanceStats struct {
	count     int32
	success   int32
	failure   int32
	latencies []time.Duration
}

func main() {
	var (
		base        = flag.String("base", "http://localhost:8080", "Proxy base URL")
		pathList    = flag.String("paths", "/test,/other", "Comma-separated request paths")
		concurrency = flag.Int("concurrency", 10, "Number of concurrent senders")
		requests    = flag.Int("requests", 100, "Total number of requests to send")
		method      = flag.String("method", "GET", "HTTP method")
		body        = flag.String("body", "", "Request body")
		timeoutSec  = flag.Int("timeout", 10, "Per-request timeout in seconds")
		verbose     = flag.Bool("v", false, "Verbose per-request logging")
	)
	flag.Parse()

	paths := strings.Split(*pathList, ",")
	client := &http.Client{Timeout: time.Duration(*timeoutSec) * time.Second}

	var total, success, failure int32

	statusCodes := make(map[int]int32)
	var statusMu sync.Mutex

	instances := make(map[string]*instanceStats)
	var instMu sync.Mutex

	jobs := make(chan int)
	var wg sync.WaitGroup

	testStart := time.Now()

	for i := 0; i < *concurrency; i++ {
		wg.Add(1)
		go func(senderID int) {
			defer wg.Done()
			for idx := range jobs {
				atomic.AddInt32(&total, 1)
				path := paths[idx%len(paths)]
				start := time.Now()

				req, err := http.NewRequest(*method, *base+path, bytes.NewBufferString(*body))
				if err != nil {
					atomic.AddInt32(&failure, 1)
					continue
				}
				// spread rate-limit keys across fake client addresses
				req.Header.Set("X-Forwarded-For", fmt.Sprintf("192.168.1.%d", (idx%50)+1))

				resp, err := client.Do(req)
				dur := time.Since(start)
				if err != nil {
					atomic.AddInt32(&failure, 1)
					if *verbose {
						fmt.Printf("[%d] idx=%d path=%s error=%v\n", senderID, idx, path, err)
					}
					continue
				}

				statusMu.Lock()
				statusCodes[resp.StatusCode]++
				statusMu.Unlock()

				ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
				if ok {
					atomic.AddInt32(&success, 1)
				} else {
					atomic.AddInt32(&failure, 1)
				}

				instance := resp.Header.Get("X-Backend-Instance")
				if instance == "" {
					instance = "(unknown)"
				}
				instMu.Lock()
				st, found := instances[instance]
				if !found {
					st = &instanceStats{}
					instances[instance] = st
				}
				st.count++
				if ok {
					st.success++
				} else {
					st.failure++
				}
				st.latencies = append(st.latencies, dur)
				instMu.Unlock()

				if *verbose {
					fmt.Printf("[%d] idx=%d path=%s instance=%s status=%d dur=%v\n",
						senderID, idx, path, instance, resp.StatusCode, dur)
				}

				io.Copy(io.Discard, resp.Body)
				resp.Body.Close()
			}
		}(i)
	}

	go func() {
		for i := 0; i < *requests; i++ {
			jobs <- i
		}
		close(jobs)
	}()

	wg.Wait()
	totalDuration := time.Since(testStart)

	fmt.Println("--- Load Test Summary ---")
	fmt.Printf("Base: %s  Paths: %s\n", *base, *pathList)
	fmt.Printf("Requests: %d  Concurrency: %d\n", *requests, *concurrency)
	fmt.Printf("Total sent: %d  Success: %d  Failure: %d\n", total, success, failure)
	fmt.Printf("Duration: %v  Throughput: %.2f req/s\n", totalDuration, float64(total)/totalDuration.Seconds())

	fmt.Println("\nStatus codes:")
	var codes []int
	for code := range statusCodes {
		codes = append(codes, code)
	}
	sort.Ints(codes)
	for _, code := range codes {
		fmt.Printf("  %d -> %d\n", code, statusCodes[code])
	}

	fmt.Println("\nInstance distribution:")
	var names []string
	for name := range instances {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		st := instances[name]
		fmt.Printf("  %s -> total=%d success=%d failure=%d\n", name, st.count, st.success, st.failure)
		if len(st.latencies) > 0 {
			tmp := make([]time.Duration, len(st.latencies))
			copy(tmp, st.latencies)
			sort.Slice(tmp, func(i, j int) bool { return tmp[i] < tmp[j] })
			var sum time.Duration
			for _, d := range tmp {
				sum += d
			}
			pct := func(p float64) time.Duration {
				return tmp[int(p*float64(len(tmp)-1))]
			}
			fmt.Printf("    latencies: samples=%d min=%v avg=%v max=%v p50=%v p95=%v p99=%v\n",
				len(tmp), tmp[0], sum/time.Duration(len(tmp)), tmp[len(tmp)-1], pct(0.50), pct(0.95), pct(0.99))
		}
	}
}
