package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex         sync.RWMutex
	totalRequests int64
	selections    map[int]int64
	responseTimes map[string][]time.Duration
	upstreamReqs  map[string]int64
	statusCodes   map[int]int64
	workerStates  map[int]string
	startTime     time.Time
}

type Snapshot struct {
	TotalRequests int64                      `json:"total_requests"`
	Uptime        time.Duration              `json:"uptime"`
	Workers       map[int]WorkerMetrics      `json:"workers"`
	Upstreams     map[string]UpstreamMetrics `json:"upstreams"`
	StatusCodes   map[int]int64              `json:"status_codes"`
}

type WorkerMetrics struct {
	Selections int64  `json:"selections"`
	State      string `json:"state"`
}

type UpstreamMetrics struct {
	Requests    int64         `json:"requests"`
	AvgResponse time.Duration `json:"avg_response"`
	P50Response time.Duration `json:"p50_response"`
	P95Response time.Duration `json:"p95_response"`
	P99Response time.Duration `json:"p99_response"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		selections:    make(map[int]int64),
		responseTimes: make(map[string][]time.Duration),
		upstreamReqs:  make(map[string]int64),
		statusCodes:   make(map[int]int64),
		workerStates:  make(map[int]string),
		startTime:     time.Now(),
	}
}

func (m *Metrics) IncrementRequests() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.totalRequests++
}

func (m *Metrics) RecordWorkerSelection(worker int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.selections[worker]++
}

func (m *Metrics) RecordReply(upstream string, duration time.Duration, statusCode int) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if upstream != "" {
		m.upstreamReqs[upstream]++
		m.responseTimes[upstream] = append(m.responseTimes[upstream], duration)

		if len(m.responseTimes[upstream]) > 1000 {
			m.responseTimes[upstream] = m.responseTimes[upstream][1:]
		}
	}

	m.statusCodes[statusCode]++
}

func (m *Metrics) UpdateWorkerState(worker int, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.workerStates[worker] = state
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalRequests: m.totalRequests,
		Uptime:        time.Since(m.startTime),
		Workers:       make(map[int]WorkerMetrics),
		Upstreams:     make(map[string]UpstreamMetrics),
		StatusCodes:   make(map[int]int64, len(m.statusCodes)),
	}

	for code, count := range m.statusCodes {
		snap.StatusCodes[code] = count
	}

	// Collect all known worker IDs
	workers := make(map[int]bool)
	for w := range m.selections {
		workers[w] = true
	}
	for w := range m.workerStates {
		workers[w] = true
	}

	for w := range workers {
		snap.Workers[w] = WorkerMetrics{
			Selections: m.selections[w],
			State:      m.workerStates[w],
		}
	}

	for upstream, count := range m.upstreamReqs {
		um := UpstreamMetrics{Requests: count}

		durations := m.responseTimes[upstream]
		if len(durations) > 0 {
			sorted := make([]time.Duration, len(durations))
			copy(sorted, durations)
			sort.Slice(sorted, func(i, j int) bool {
				return sorted[i] < sorted[j]
			})

			um.AvgResponse = average(sorted)
			um.P50Response = percentile(sorted, 0.50)
			um.P95Response = percentile(sorted, 0.95)
			um.P99Response = percentile(sorted, 0.99)
		}

		snap.Upstreams[upstream] = um
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
