package memory

import (
	"fmt"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/vladislavdragonenkov/northwind/internal/domain"
)

// OrdersRepository — in-memory реализация хранилища заказов для локальной
// разработки и тестов. Зеркалит семантику PostgreSQL-реализации: выдачу
// идентификаторов, инверсию сеттеров дат, guard у UpdateOrder и отчёты.
type OrdersRepository struct {
	mu      sync.RWMutex
	collect domain.CollectMode

	orders   map[int]*domain.Order
	details  map[int][]domain.OrderDetails
	products map[int]domain.Product

	nextID int
	lastID *int
}

// Option настраивает in-memory репозиторий.
type Option func(*OrdersRepository)

// WithCollectMode выбирает политику накопления деталей/товаров агрегата.
func WithCollectMode(mode domain.CollectMode) Option {
	return func(r *OrdersRepository) { r.collect = mode }
}

// NewOrdersRepository возвращает пустой репозиторий с политикой
// CollectLastRowOnly по умолчанию.
func NewOrdersRepository(opts ...Option) *OrdersRepository {
	r := &OrdersRepository{
		collect:  domain.CollectLastRowOnly,
		orders:   make(map[int]*domain.Order),
		details:  make(map[int][]domain.OrderDetails),
		products: make(map[int]domain.Product),
		nextID:   1,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SeedProduct добавляет товар в справочник.
func (r *OrdersRepository) SeedProduct(p domain.Product) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.products[p.ProductID] = p
}

// SeedDetail добавляет строку деталей заказа; публичный контракт
// репозитория детали не пишет, поэтому наполнение идёт мимо него.
func (r *OrdersRepository) SeedDetail(d domain.OrderDetails) {
	if d.OrderID == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.details[*d.OrderID] = append(r.details[*d.OrderID], d)
}

func (r *OrdersRepository) GetOrders() ([]*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]int, 0, len(r.orders))
	for id := range r.orders {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	result := make([]*domain.Order, 0, len(ids))
	for _, id := range ids {
		result = append(result, cloneOrder(r.orders[id]))
	}
	return result, nil
}

func (r *OrdersRepository) CallCustOrderHist(customerID string) ([]domain.OrderHistory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	totals := make(map[string]int)
	for id, order := range r.orders {
		if order.CustomerID != customerID {
			continue
		}
		for _, d := range r.details[id] {
			if d.ProductID == nil || d.Quantity == nil {
				continue
			}
			product, ok := r.products[*d.ProductID]
			if !ok {
				continue
			}
			totals[product.ProductName] += *d.Quantity
		}
	}

	names := make([]string, 0, len(totals))
	for name := range totals {
		names = append(names, name)
	}
	sort.Strings(names)

	history := make([]domain.OrderHistory, 0, len(names))
	for _, name := range names {
		history = append(history, domain.OrderHistory{ProductName: name, Total: totals[name]})
	}
	return history, nil
}

func (r *OrdersRepository) CallCustOrdersDetail(orderID int) ([]domain.CustomerOrdersDetail, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := make([]domain.CustomerOrdersDetail, 0)
	for _, d := range r.details[orderID] {
		if d.ProductID == nil {
			continue
		}
		product, ok := r.products[*d.ProductID]
		if !ok {
			continue
		}

		row := domain.CustomerOrdersDetail{ProductName: product.ProductName}
		row.UnitPrice = copyFloat(d.UnitPrice)
		row.Quantity = copyInt(d.Quantity)
		if d.Discount != nil {
			// скидка в процентах, как в исходной процедуре
			pct := math.Round(*d.Discount * 100)
			row.Discount = &pct
		}
		if d.UnitPrice != nil && d.Quantity != nil && d.Discount != nil {
			extended := math.Round(float64(*d.Quantity)*(1-*d.Discount)**d.UnitPrice*100) / 100
			row.ExtendedPrice = &extended
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (r *OrdersRepository) RemoveInProggressAndNewOrders() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Сначала проверяем целостность: либо удаляются все подходящие строки,
	// либо весь вызов отказывает без частичного результата.
	victims := make([]int, 0)
	for id, order := range r.orders {
		if order.OrderDate() != nil && order.ShippedDate() != nil {
			continue
		}
		if len(r.details[id]) > 0 {
			return fmt.Errorf("%w, see inner details: order %d is referenced by order_details",
				domain.ErrForeignKeyConflict, id)
		}
		victims = append(victims, id)
	}

	for _, id := range victims {
		delete(r.orders, id)
	}
	return nil
}

// SetShippedDate, вопреки имени, назначает OrderDate — инверсия сохранена.
func (r *OrdersRepository) SetShippedDate(order *domain.Order, orderDate *time.Time) error {
	order.SetOrderDate(orderDate)

	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.orders[order.OrderID()]; ok {
		stored.SetOrderDate(copyTime(orderDate))
	}
	return nil
}

// SetOrderDate — зеркальная инверсия: назначает ShippedDate.
func (r *OrdersRepository) SetOrderDate(order *domain.Order, shippedDate *time.Time) error {
	order.SetShippedDate(shippedDate)

	r.mu.Lock()
	defer r.mu.Unlock()
	if stored, ok := r.orders[order.OrderID()]; ok {
		stored.SetShippedDate(copyTime(shippedDate))
	}
	return nil
}

func (r *OrdersRepository) AddOrder(order *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := r.nextID
	r.nextID++
	// Идентификатор остаётся только на сохранённой копии:
	// переданная сущность его не получает.
	r.orders[id] = cloneOrderWithID(order, id)
	r.lastID = &id
	return nil
}

func (r *OrdersRepository) GetLastOrderId() (*int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return copyInt(r.lastID), nil
}

func (r *OrdersRepository) GetOrderWithDetailsById(orderID int) (*domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stored, ok := r.orders[orderID]
	if !ok {
		return nil, nil
	}

	builder := domain.NewAggregateBuilder(r.collect)
	builder.SetPrimary(cloneOrder(stored))

	for _, d := range r.details[orderID] {
		builder.AddDetail(d)
		if d.ProductID != nil {
			if product, ok := r.products[*d.ProductID]; ok {
				builder.AddProduct(product)
			}
		}
	}

	return builder.Order(), nil
}

func (r *OrdersRepository) UpdateOrder(order *domain.Order) error {
	if order.Status() != domain.OrderStatusNew {
		return domain.ErrOrderNotNew
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	// Как и UPDATE без совпавших строк, обновление несуществующего
	// заказа проходит молча.
	if _, ok := r.orders[order.OrderID()]; ok {
		r.orders[order.OrderID()] = cloneOrderWithID(order, order.OrderID())
	}
	return nil
}

// cloneOrderWithID копирует заказ с назначением идентификатора.
// Копия глубокая: хранимое состояние не делит указатели с вызывающим.
func cloneOrderWithID(order *domain.Order, id int) *domain.Order {
	cp := domain.ReconstructOrder(id)
	cp.CustomerID = order.CustomerID
	cp.EmployeeID = copyInt(order.EmployeeID)
	cp.RequiredDate = copyTime(order.RequiredDate)
	cp.ShipVia = copyInt(order.ShipVia)
	cp.Freight = copyFloat(order.Freight)
	cp.ShipName = copyString(order.ShipName)
	cp.ShipAddress = copyString(order.ShipAddress)
	cp.ShipCity = copyString(order.ShipCity)
	cp.ShipRegion = copyString(order.ShipRegion)
	cp.ShipPostalCode = copyString(order.ShipPostalCode)
	cp.ShipCountry = copyString(order.ShipCountry)
	cp.SetOrderDate(copyTime(order.OrderDate()))
	cp.SetShippedDate(copyTime(order.ShippedDate()))
	return cp
}

func cloneOrder(order *domain.Order) *domain.Order {
	return cloneOrderWithID(order, order.OrderID())
}

func copyInt(v *int) *int {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func copyFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func copyString(v *string) *string {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

func copyTime(v *time.Time) *time.Time {
	if v == nil {
		return nil
	}
	cp := *v
	return &cp
}

var _ domain.OrdersRepository = (*OrdersRepository)(nil)
