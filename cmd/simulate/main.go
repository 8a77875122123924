// Command simulate drives concurrent operators against a running
// api-server to exercise the booking race: many workers fight over the
// slots of a single week, and the report shows exactly one winner per
// slot/office pair with every loser turned away as a slot conflict.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"os"
	"sort"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dermaluz/agenda/internal/agenda"
	"github.com/dermaluz/agenda/internal/logging"
)

type SimConfig struct {
	APIBaseURL string
	Duration   time.Duration
	Workers    int
	Offices    []string
	Patients   []string
	Treatments []string
}

type OperationMetrics struct {
	Total     int64
	Success   int64
	Conflict  int64
	Error     int64
	mu        sync.Mutex
	latencies []time.Duration
}

func (om *OperationMetrics) Record(latency time.Duration, success, conflict bool) {
	atomic.AddInt64(&om.Total, 1)
	switch {
	case success:
		atomic.AddInt64(&om.Success, 1)
	case conflict:
		atomic.AddInt64(&om.Conflict, 1)
	default:
		atomic.AddInt64(&om.Error, 1)
	}

	om.mu.Lock()
	om.latencies = append(om.latencies, latency)
	om.mu.Unlock()
}

func (om *OperationMetrics) Percentile(p int) time.Duration {
	om.mu.Lock()
	defer om.mu.Unlock()

	if len(om.latencies) == 0 {
		return 0
	}
	sorted := make([]time.Duration, len(om.latencies))
	copy(sorted, om.latencies)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	idx := len(sorted) * p / 100
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

type Simulator struct {
	config  SimConfig
	client  *http.Client
	booking OperationMetrics
}

func main() {
	logging.Setup("simulate", "dev")

	cfg := loadConfig()
	log.Info().
		Dur("duration", cfg.Duration).
		Int("workers", cfg.Workers).
		Str("api", cfg.APIBaseURL).
		Msg("simulator starting")

	sim := &Simulator{
		config: cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}

	sim.loadDirectories()
	sim.Run()
	sim.PrintReport()
}

func loadConfig() SimConfig {
	return SimConfig{
		APIBaseURL: getEnv("SIM_API_BASE_URL", "http://localhost:8080"),
		Duration:   getDuration("SIM_DURATION", 30*time.Second),
		Workers:    getInt("SIM_WORKERS", 10),
	}
}

func (s *Simulator) loadDirectories() {
	s.config.Offices = s.directoryNames("offices")
	s.config.Patients = s.directoryNames("patients")
	s.config.Treatments = s.directoryNames("treatments")

	if len(s.config.Offices) == 0 || len(s.config.Patients) == 0 || len(s.config.Treatments) == 0 {
		log.Fatal().Msg("directories are empty, run cmd/seed first")
	}
	log.Info().
		Int("offices", len(s.config.Offices)).
		Int("patients", len(s.config.Patients)).
		Int("treatments", len(s.config.Treatments)).
		Msg("directories loaded")
}

func (s *Simulator) directoryNames(kind string) []string {
	resp, err := s.client.Get(s.config.APIBaseURL + "/directory/" + kind)
	if err != nil {
		log.Fatal().Err(err).Str("directory", kind).Msg("load directory")
	}
	defer resp.Body.Close()

	var entries []struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		log.Fatal().Err(err).Str("directory", kind).Msg("decode directory")
	}

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}
	wg.Wait()
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	days := agenda.WeekDays(time.Now())
	slots := agenda.TimeSlots()
	operator := fmt.Sprintf("sim-worker-%d", workerID)

	for ctx.Err() == nil {
		req := map[string]string{
			"date":      days[rng.Intn(len(days))].Format(agenda.DateLayout),
			"time":      slots[rng.Intn(len(slots))],
			"office":    s.config.Offices[rng.Intn(len(s.config.Offices))],
			"patient":   s.config.Patients[rng.Intn(len(s.config.Patients))],
			"treatment": s.config.Treatments[rng.Intn(len(s.config.Treatments))],
		}
		s.book(ctx, operator, req)
	}
}

func (s *Simulator) book(ctx context.Context, operator string, payload map[string]string) {
	body, _ := json.Marshal(payload)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		s.config.APIBaseURL+"/appointments", bytes.NewReader(body))
	if err != nil {
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Operator", operator)

	start := time.Now()
	resp, err := s.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		if ctx.Err() == nil {
			s.booking.Record(latency, false, false)
		}
		return
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		resp.Body.Close()
	}()

	switch resp.StatusCode {
	case http.StatusCreated:
		s.booking.Record(latency, true, false)
	case http.StatusConflict:
		s.booking.Record(latency, false, true)
	default:
		s.booking.Record(latency, false, false)
	}
}

func (s *Simulator) PrintReport() {
	total := atomic.LoadInt64(&s.booking.Total)
	success := atomic.LoadInt64(&s.booking.Success)
	conflict := atomic.LoadInt64(&s.booking.Conflict)
	errs := atomic.LoadInt64(&s.booking.Error)

	fmt.Println("=== booking race report ===")
	fmt.Printf("requests:  %d\n", total)
	fmt.Printf("created:   %d\n", success)
	fmt.Printf("conflicts: %d\n", conflict)
	fmt.Printf("errors:    %d\n", errs)
	fmt.Printf("p50:       %s\n", s.booking.Percentile(50))
	fmt.Printf("p95:       %s\n", s.booking.Percentile(95))

	// The grid this run fought over has 6 days x 22 slots x len(offices)
	// cells; created can never exceed that.
	capacity := 6 * 22 * len(s.config.Offices)
	fmt.Printf("week capacity: %d cells, fill %.1f%%\n",
		capacity, float64(success)*100/float64(capacity))
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
