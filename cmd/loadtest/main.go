package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage/postgres"
)

type config struct {
	dsn         string
	total       int
	concurrency int
	customerID  string
	outputPath  string
}

type latencySummary struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
	Avg float64 `json:"avg"`
	P50 float64 `json:"p50"`
	P95 float64 `json:"p95"`
	P99 float64 `json:"p99"`
}

type report struct {
	StartedAt        time.Time      `json:"started_at"`
	DurationSeconds  float64        `json:"duration_seconds"`
	TotalScenarios   int64          `json:"total_scenarios"`
	SuccessScenarios int64          `json:"success_scenarios"`
	FailedScenarios  int64          `json:"failed_scenarios"`
	ErrorRate        float64        `json:"error_rate"`
	RPS              float64        `json:"rps"`
	LatencyMs        latencySummary `json:"latency_ms"`
}

func main() {
	cfg := readConfig()
	if cfg.dsn == "" {
		fail("NORTHWIND_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	store, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.dsn))
	cancel()
	if err != nil {
		fail("open postgres store: %v", err)
	}
	defer store.Close()

	repo := postgres.NewOrdersRepository(store)

	var (
		success   atomic.Int64
		failed    atomic.Int64
		latencyMu sync.Mutex
		latencies []float64
	)

	startedAt := time.Now()
	jobs := make(chan int)
	var wg sync.WaitGroup

	for w := 0; w < cfg.concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				begin := time.Now()
				err := runScenario(repo, cfg.customerID)
				elapsed := float64(time.Since(begin).Microseconds()) / 1000.0

				if err != nil {
					failed.Add(1)
					continue
				}
				success.Add(1)
				latencyMu.Lock()
				latencies = append(latencies, elapsed)
				latencyMu.Unlock()
			}
		}()
	}

	for i := 0; i < cfg.total; i++ {
		jobs <- i
	}
	close(jobs)
	wg.Wait()

	duration := time.Since(startedAt)
	total := success.Load() + failed.Load()

	rep := report{
		StartedAt:        startedAt,
		DurationSeconds:  duration.Seconds(),
		TotalScenarios:   total,
		SuccessScenarios: success.Load(),
		FailedScenarios:  failed.Load(),
		LatencyMs:        summarize(latencies),
	}
	if total > 0 {
		rep.ErrorRate = float64(failed.Load()) / float64(total)
	}
	if duration > 0 {
		rep.RPS = float64(total) / duration.Seconds()
	}

	writeReport(cfg.outputPath, rep)
}

// runScenario повторяет типовой цикл вызывающего кода: вставка,
// чтение последнего идентификатора, выборка агрегата.
func runScenario(repo domain.OrdersRepository, customerID string) error {
	order := domain.NewOrder(customerID)
	name := "loadtest-" + uuid.NewString()
	order.ShipName = &name

	if err := repo.AddOrder(order); err != nil {
		return err
	}
	id, err := repo.GetLastOrderId()
	if err != nil {
		return err
	}
	if id == nil {
		return fmt.Errorf("no last order id after insert")
	}
	got, err := repo.GetOrderWithDetailsById(*id)
	if err != nil {
		return err
	}
	if got == nil {
		// идентификатор гоночный: под конкурентными вставками промах допустим
		return nil
	}
	return nil
}

func summarize(latencies []float64) latencySummary {
	if len(latencies) == 0 {
		return latencySummary{}
	}

	sorted := append([]float64(nil), latencies...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, v := range sorted {
		sum += v
	}

	return latencySummary{
		Min: sorted[0],
		Max: sorted[len(sorted)-1],
		Avg: sum / float64(len(sorted)),
		P50: percentile(sorted, 50),
		P95: percentile(sorted, 95),
		P99: percentile(sorted, 99),
	}
}

func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(math.Ceil(p/100.0*float64(len(sorted)))) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}

func writeReport(path string, rep report) {
	payload, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		fail("marshal report: %v", err)
	}

	if path == "" {
		fmt.Println(string(payload))
		return
	}
	if err := os.WriteFile(path, append(payload, '\n'), 0o644); err != nil {
		fail("write report: %v", err)
	}
	fmt.Printf("report written to %s\n", path)
}

func readConfig() config {
	var cfg config
	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: NORTHWIND_POSTGRES_DSN)")
	flag.IntVar(&cfg.total, "total", 100, "total scenarios to run")
	flag.IntVar(&cfg.concurrency, "concurrency", 4, "number of concurrent workers")
	flag.StringVar(&cfg.customerID, "customer", "ALFKI", "customer id used for inserted orders")
	flag.StringVar(&cfg.outputPath, "output", "", "path for the JSON report (default: stdout)")
	flag.Parse()

	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("NORTHWIND_POSTGRES_DSN"))
	}
	if cfg.total <= 0 {
		cfg.total = 1
	}
	if cfg.concurrency <= 0 {
		cfg.concurrency = 1
	}
	return cfg
}

func fail(format string, args ...any) {
	_, _ = fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
