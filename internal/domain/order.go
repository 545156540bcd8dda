package domain

import "time"

// OrderStatus описывает жизненный цикл заказа Northwind.
// Статус никогда не хранится в базе: он всегда выводится из дат заказа.
type OrderStatus string

const (
	// OrderStatusNew — заказ создан, дата размещения ещё не назначена.
	OrderStatusNew OrderStatus = "new"
	// OrderStatusInProgress — заказ размещён, но ещё не отгружен.
	OrderStatusInProgress OrderStatus = "in_progress"
	// OrderStatusCompleted — заказ размещён и отгружен.
	OrderStatusCompleted OrderStatus = "completed"
)

// Order агрегирует строку заказа, его позиции и связанные товары.
// Идентификатор и обе даты защищены от прямого присваивания: OrderID
// назначается базой либо восстанавливается из строки, а даты меняются
// только через SetOrderDate/SetShippedDate, чтобы переходы статуса
// оставались преднамеренными и проходили через репозиторий.
type Order struct {
	orderID     int
	orderDate   *time.Time
	shippedDate *time.Time

	CustomerID     string
	EmployeeID     *int
	RequiredDate   *time.Time
	ShipVia        *int
	Freight        *float64
	ShipName       *string
	ShipAddress    *string
	ShipCity       *string
	ShipRegion     *string
	ShipPostalCode *string
	ShipCountry    *string

	Details  []OrderDetails
	Products []Product
}

// NewOrder создаёт заказ без идентификатора и без дат — всегда в статусе new.
func NewOrder(customerID string) *Order {
	return &Order{CustomerID: customerID}
}

// ReconstructOrder восстанавливает заказ с известным идентификатором.
// Используется только читающим путём репозитория.
func ReconstructOrder(orderID int) *Order {
	return &Order{orderID: orderID}
}

// OrderID возвращает идентификатор заказа; 0 у ещё не сохранённого заказа.
func (o *Order) OrderID() int { return o.orderID }

// OrderDate возвращает дату размещения заказа (nil, если не назначена).
func (o *Order) OrderDate() *time.Time { return o.orderDate }

// ShippedDate возвращает дату отгрузки (nil, если не назначена).
func (o *Order) ShippedDate() *time.Time { return o.shippedDate }

// SetOrderDate — единственный легальный способ изменить дату размещения.
// Меняет только состояние в памяти; персистентность — отдельный шаг репозитория.
func (o *Order) SetOrderDate(d *time.Time) { o.orderDate = d }

// SetShippedDate — единственный легальный способ изменить дату отгрузки.
func (o *Order) SetShippedDate(d *time.Time) { o.shippedDate = d }

// Status вычисляет статус из двух дат. Не хранится и не кэшируется.
func (o *Order) Status() OrderStatus {
	if o.orderDate == nil {
		return OrderStatusNew
	}
	if o.shippedDate == nil {
		return OrderStatusInProgress
	}
	return OrderStatusCompleted
}

// OrderDetails представляет одну позицию заказа. Ссылочные поля допускают
// отсутствие значения: читающий путь оборонительный и не падает на
// частично заполненных строках.
type OrderDetails struct {
	OrderID   *int
	ProductID *int
	UnitPrice *float64
	Quantity  *int
	Discount  *float64
}

// Product — товар, привязанный к заказу только для отображения,
// а не как отношение владения.
type Product struct {
	ProductID   int
	ProductName string
}
