package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/metrics"
	"github.com/vladislavdragonenkov/northwind/internal/storage/postgres"
	"github.com/vladislavdragonenkov/northwind/internal/version"
)

const openTimeout = 10 * time.Second

type config struct {
	dsn        string
	customerID string
	orderID    int
	collectAll bool
}

// setupLogger настраивает формат и уровень логирования.
func setupLogger() {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	log.SetLevel(log.InfoLevel)
}

// readConfig собирает конфигурацию из флагов с fallback на окружение.
func readConfig() config {
	var cfg config
	flag.StringVar(&cfg.dsn, "dsn", "", "PostgreSQL DSN (fallback: NORTHWIND_POSTGRES_DSN)")
	flag.StringVar(&cfg.customerID, "customer", "", "customer id for the CustOrderHist report")
	flag.IntVar(&cfg.orderID, "order", 0, "order id for the CustOrdersDetail report")
	flag.BoolVar(&cfg.collectAll, "collect-all", false, "accumulate all aggregate rows instead of the legacy last-row policy")
	flag.Parse()

	if strings.TrimSpace(cfg.dsn) == "" {
		cfg.dsn = strings.TrimSpace(os.Getenv("NORTHWIND_POSTGRES_DSN"))
	}
	return cfg
}

func main() {
	setupLogger()
	cfg := readConfig()

	logger := log.WithField("component", "orders-report")
	logger.Infof("запускаем orders-report, %s", version.String())

	if cfg.dsn == "" {
		logger.Fatal("NORTHWIND_POSTGRES_DSN (or -dsn) is required")
	}

	ctx, cancel := context.WithTimeout(context.Background(), openTimeout)
	defer cancel()

	store, err := postgres.Open(ctx, postgres.DefaultConfig(cfg.dsn))
	if err != nil {
		logger.WithError(err).Fatal("не удалось открыть подключение к базе")
	}
	defer store.Close()

	opts := []postgres.Option{postgres.WithMetrics(metrics.NewRepositoryMetrics())}
	if cfg.collectAll {
		opts = append(opts, postgres.WithCollectMode(domain.CollectAll))
	}
	repo := postgres.NewOrdersRepository(store, opts...)

	orders, err := repo.GetOrders()
	if err != nil {
		logger.WithError(err).Fatal("не удалось прочитать заказы")
	}
	logger.WithField("count", len(orders)).Info("заказы прочитаны")
	printOrders(orders)

	if cfg.customerID != "" {
		history, err := repo.CallCustOrderHist(cfg.customerID)
		if err != nil {
			logger.WithError(err).Fatal("отчёт CustOrderHist не выполнился")
		}
		printHistory(cfg.customerID, history)
	}

	if cfg.orderID > 0 {
		details, err := repo.CallCustOrdersDetail(cfg.orderID)
		if err != nil {
			logger.WithError(err).Fatal("отчёт CustOrdersDetail не выполнился")
		}
		printDetails(cfg.orderID, details)
	}
}

func printOrders(orders []*domain.Order) {
	for _, o := range orders {
		fmt.Printf("order %d  customer=%s  status=%s\n", o.OrderID(), o.CustomerID, o.Status())
	}
}

func printHistory(customerID string, history []domain.OrderHistory) {
	fmt.Printf("CustOrderHist(%s): %d rows\n", customerID, len(history))
	for _, row := range history {
		fmt.Printf("  %-40s %d\n", row.ProductName, row.Total)
	}
}

func printDetails(orderID int, details []domain.CustomerOrdersDetail) {
	fmt.Printf("CustOrdersDetail(%d): %d rows\n", orderID, len(details))
	for _, row := range details {
		fmt.Printf("  %-40s price=%s qty=%s discount=%s extended=%s\n",
			row.ProductName,
			fmtFloat(row.UnitPrice),
			fmtInt(row.Quantity),
			fmtFloat(row.Discount),
			fmtFloat(row.ExtendedPrice),
		)
	}
}

func fmtFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%.2f", *v)
}

func fmtInt(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%d", *v)
}
