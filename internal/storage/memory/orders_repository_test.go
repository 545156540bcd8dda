package memory_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/storage/memory"
)

func strPtr(v string) *string { return &v }

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func sampleOrder() *domain.Order {
	order := domain.NewOrder("ALFKI")
	order.EmployeeID = intPtr(1)
	order.ShipVia = intPtr(3)
	order.ShipName = strPtr("Vins et alcools Chevalier")
	return order
}

func mustAdd(t *testing.T, repo *memory.OrdersRepository, order *domain.Order) int {
	t.Helper()

	if err := repo.AddOrder(order); err != nil {
		t.Fatalf("add order: %v", err)
	}
	id, err := repo.GetLastOrderId()
	if err != nil || id == nil {
		t.Fatalf("get last order id: id=%v err=%v", id, err)
	}
	return *id
}

func TestOrdersRepository_AddAndFetch(t *testing.T) {
	repo := memory.NewOrdersRepository()
	order := sampleOrder()

	id := mustAdd(t, repo, order)

	if order.OrderID() != 0 {
		t.Fatalf("add order must not assign identity to the passed entity, got %d", order.OrderID())
	}

	got, err := repo.GetOrderWithDetailsById(id)
	if err != nil {
		t.Fatalf("fetch order: %v", err)
	}
	if got == nil {
		t.Fatal("expected stored order")
	}
	if got.OrderID() != id || got.CustomerID != "ALFKI" {
		t.Fatalf("unexpected order: id=%d customer=%s", got.OrderID(), got.CustomerID)
	}
	if got.Status() != domain.OrderStatusNew {
		t.Fatalf("expected status new, got %s", got.Status())
	}
}

func TestOrdersRepository_GetLastOrderId_Empty(t *testing.T) {
	repo := memory.NewOrdersRepository()

	id, err := repo.GetLastOrderId()
	if err != nil {
		t.Fatalf("get last order id: %v", err)
	}
	if id != nil {
		t.Fatalf("expected nil before any insert, got %d", *id)
	}
}

func TestOrdersRepository_MissingOrderIsNotAnError(t *testing.T) {
	repo := memory.NewOrdersRepository()

	got, err := repo.GetOrderWithDetailsById(404)
	if err != nil {
		t.Fatalf("missing order must not be an error, got %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestOrdersRepository_DateSetterInversion(t *testing.T) {
	repo := memory.NewOrdersRepository()
	id := mustAdd(t, repo, sampleOrder())

	order, _ := repo.GetOrderWithDetailsById(id)
	d := time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)

	// SetShippedDate пишет OrderDate.
	if err := repo.SetShippedDate(order, timePtr(d)); err != nil {
		t.Fatalf("set shipped date: %v", err)
	}
	after, _ := repo.GetOrderWithDetailsById(id)
	if after.OrderDate() == nil || !after.OrderDate().Equal(d) {
		t.Fatalf("expected order date %v, got %v", d, after.OrderDate())
	}
	if after.ShippedDate() != nil {
		t.Fatal("shipped date must stay empty")
	}

	// SetOrderDate пишет ShippedDate.
	shipped := d.AddDate(0, 0, 12)
	if err := repo.SetOrderDate(order, timePtr(shipped)); err != nil {
		t.Fatalf("set order date: %v", err)
	}
	after, _ = repo.GetOrderWithDetailsById(id)
	if after.ShippedDate() == nil || !after.ShippedDate().Equal(shipped) {
		t.Fatalf("expected shipped date %v, got %v", shipped, after.ShippedDate())
	}
	if after.Status() != domain.OrderStatusCompleted {
		t.Fatalf("expected completed, got %s", after.Status())
	}
}

func TestOrdersRepository_UpdateOrderGuard(t *testing.T) {
	repo := memory.NewOrdersRepository()
	id := mustAdd(t, repo, sampleOrder())

	order, _ := repo.GetOrderWithDetailsById(id)
	d := time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)
	if err := repo.SetShippedDate(order, timePtr(d)); err != nil {
		t.Fatalf("set shipped date: %v", err)
	}

	order.ShipName = strPtr("Should not land")
	err := repo.UpdateOrder(order)
	if !errors.Is(err, domain.ErrOrderNotNew) {
		t.Fatalf("expected ErrOrderNotNew, got %v", err)
	}
	if err.Error() != "order should be in status new" {
		t.Fatalf("unexpected guard message: %q", err.Error())
	}

	after, _ := repo.GetOrderWithDetailsById(id)
	if after.ShipName != nil && *after.ShipName == "Should not land" {
		t.Fatal("rejected update must not change stored state")
	}
}

func TestOrdersRepository_UpdateOrderWhenNew(t *testing.T) {
	repo := memory.NewOrdersRepository()
	id := mustAdd(t, repo, sampleOrder())

	order, _ := repo.GetOrderWithDetailsById(id)
	order.CustomerID = "ANATR"
	order.ShipCity = strPtr("Reims")
	if err := repo.UpdateOrder(order); err != nil {
		t.Fatalf("update order in status new: %v", err)
	}

	after, _ := repo.GetOrderWithDetailsById(id)
	if after.CustomerID != "ANATR" {
		t.Fatalf("customer not updated: %s", after.CustomerID)
	}
	if after.ShipCity == nil || *after.ShipCity != "Reims" {
		t.Fatalf("ship city not updated: %v", after.ShipCity)
	}
}

func TestOrdersRepository_RemoveSweep(t *testing.T) {
	repo := memory.NewOrdersRepository()
	d := time.Date(1996, 7, 4, 0, 0, 0, 0, time.UTC)

	mustAdd(t, repo, sampleOrder()) // new, будет удалён

	inProgressID := mustAdd(t, repo, sampleOrder())
	inProgress, _ := repo.GetOrderWithDetailsById(inProgressID)
	_ = repo.SetShippedDate(inProgress, timePtr(d))

	completedID := mustAdd(t, repo, sampleOrder())
	completed, _ := repo.GetOrderWithDetailsById(completedID)
	_ = repo.SetShippedDate(completed, timePtr(d))
	_ = repo.SetOrderDate(completed, timePtr(d.AddDate(0, 0, 12)))

	if err := repo.RemoveInProggressAndNewOrders(); err != nil {
		t.Fatalf("remove sweep: %v", err)
	}

	orders, _ := repo.GetOrders()
	if len(orders) != 1 || orders[0].OrderID() != completedID {
		t.Fatalf("expected only completed order to survive, got %d rows", len(orders))
	}
	for _, o := range orders {
		if o.OrderDate() == nil || o.ShippedDate() == nil {
			t.Fatalf("order %d survived without dates", o.OrderID())
		}
	}
}

func TestOrdersRepository_RemoveSweepForeignKeyConflict(t *testing.T) {
	repo := memory.NewOrdersRepository()
	id := mustAdd(t, repo, sampleOrder())

	repo.SeedProduct(domain.Product{ProductID: 1, ProductName: "Chai"})
	repo.SeedDetail(domain.OrderDetails{
		OrderID:   intPtr(id),
		ProductID: intPtr(1),
		UnitPrice: floatPtr(18),
		Quantity:  intPtr(10),
		Discount:  floatPtr(0),
	})

	err := repo.RemoveInProggressAndNewOrders()
	if !domain.IsForeignKeyConflict(err) {
		t.Fatalf("expected foreign key conflict, got %v", err)
	}
	if !strings.Contains(err.Error(), "conflict with foreign key") {
		t.Fatalf("diagnostic must name the conflict: %q", err.Error())
	}

	// Вызов без частичного результата: заказ остался на месте.
	if got, _ := repo.GetOrderWithDetailsById(id); got == nil {
		t.Fatal("order must survive a failed sweep")
	}
}

func TestOrdersRepository_AggregateCollectModes(t *testing.T) {
	seed := func(repo *memory.OrdersRepository) int {
		id := mustAdd(t, repo, sampleOrder())
		repo.SeedProduct(domain.Product{ProductID: 1, ProductName: "Chai"})
		repo.SeedProduct(domain.Product{ProductID: 2, ProductName: "Chang"})
		repo.SeedDetail(domain.OrderDetails{OrderID: intPtr(id), ProductID: intPtr(1), Quantity: intPtr(10)})
		repo.SeedDetail(domain.OrderDetails{OrderID: intPtr(id), ProductID: intPtr(2), Quantity: intPtr(4)})
		return id
	}

	legacy := memory.NewOrdersRepository()
	id := seed(legacy)
	order, err := legacy.GetOrderWithDetailsById(id)
	if err != nil || order == nil {
		t.Fatalf("fetch aggregate: %v", err)
	}
	// Унаследованный режим: выживает только последняя строка.
	if len(order.Details) != 1 || *order.Details[0].ProductID != 2 {
		t.Fatalf("legacy mode must keep the last detail row, got %+v", order.Details)
	}
	if len(order.Products) != 1 || order.Products[0].ProductName != "Chang" {
		t.Fatalf("legacy mode must keep the last product row, got %+v", order.Products)
	}

	accumulating := memory.NewOrdersRepository(memory.WithCollectMode(domain.CollectAll))
	id = seed(accumulating)
	order, err = accumulating.GetOrderWithDetailsById(id)
	if err != nil || order == nil {
		t.Fatalf("fetch aggregate: %v", err)
	}
	if len(order.Details) != 2 || len(order.Products) != 2 {
		t.Fatalf("expected full accumulation, got %d details, %d products",
			len(order.Details), len(order.Products))
	}
}

func TestOrdersRepository_Reports(t *testing.T) {
	repo := memory.NewOrdersRepository()
	id := mustAdd(t, repo, sampleOrder())

	repo.SeedProduct(domain.Product{ProductID: 1, ProductName: "Chai"})
	repo.SeedProduct(domain.Product{ProductID: 2, ProductName: "Chang"})
	repo.SeedDetail(domain.OrderDetails{
		OrderID: intPtr(id), ProductID: intPtr(1),
		UnitPrice: floatPtr(18), Quantity: intPtr(10), Discount: floatPtr(0),
	})
	repo.SeedDetail(domain.OrderDetails{
		OrderID: intPtr(id), ProductID: intPtr(2),
		UnitPrice: floatPtr(19), Quantity: intPtr(4), Discount: floatPtr(0.25),
	})

	history, err := repo.CallCustOrderHist("ALFKI")
	if err != nil {
		t.Fatalf("cust order hist: %v", err)
	}
	if len(history) != 2 {
		t.Fatalf("expected 2 history rows, got %d", len(history))
	}
	// строки идут в порядке имён товаров
	if history[0].ProductName != "Chai" || history[0].Total != 10 {
		t.Fatalf("unexpected first history row: %+v", history[0])
	}
	if history[1].ProductName != "Chang" || history[1].Total != 4 {
		t.Fatalf("unexpected second history row: %+v", history[1])
	}

	details, err := repo.CallCustOrdersDetail(id)
	if err != nil {
		t.Fatalf("cust orders detail: %v", err)
	}
	if len(details) != 2 {
		t.Fatalf("expected 2 detail rows, got %d", len(details))
	}
	for _, row := range details {
		if row.ProductName != "Chang" {
			continue
		}
		if row.Discount == nil || *row.Discount != 25 {
			t.Fatalf("expected discount 25, got %v", row.Discount)
		}
		if row.ExtendedPrice == nil || *row.ExtendedPrice != 57 {
			t.Fatalf("expected extended price 57, got %v", row.ExtendedPrice)
		}
	}

	if history, _ := repo.CallCustOrderHist("ANATR"); len(history) != 0 {
		t.Fatalf("expected empty history for customer without orders, got %d", len(history))
	}
}
