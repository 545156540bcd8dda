package domain

import "time"

// OrdersRepository описывает требования к хранилищу заказов Northwind.
// Каждая операция открывает одно соединение, исполняет один statement
// (или хранимую процедуру) и гарантированно освобождает соединение.
type OrdersRepository interface {
	// GetOrders возвращает все заказы без фильтра; даты на сущности
	// устанавливаются через санкционированные мутаторы.
	GetOrders() ([]*Order, error)
	// CallCustOrderHist вызывает отчётную процедуру CustOrderHist по клиенту.
	CallCustOrderHist(customerID string) ([]OrderHistory, error)
	// CallCustOrdersDetail вызывает отчётную процедуру CustOrdersDetail по заказу.
	CallCustOrdersDetail(orderID int) ([]CustomerOrdersDetail, error)
	// RemoveInProggressAndNewOrders удаляет все заказы, у которых отсутствует
	// OrderDate или ShippedDate. При нарушении внешнего ключа возвращает
	// ошибку, оборачивающую ErrForeignKeyConflict с деталями движка.
	RemoveInProggressAndNewOrders() error
	// SetShippedDate, вопреки имени, назначает заказу OrderDate: сначала
	// в памяти через мутатор сущности, затем персистит одну колонку по OrderID.
	// Инверсия имени и поведения сохранена намеренно.
	SetShippedDate(order *Order, orderDate *time.Time) error
	// SetOrderDate — зеркальная инверсия: назначает ShippedDate.
	SetOrderDate(order *Order, shippedDate *time.Time) error
	// AddOrder вставляет новую строку; сгенерированный идентификатор
	// не возвращается и не проставляется на переданной сущности.
	AddOrder(order *Order) error
	// GetLastOrderId возвращает последний выданный идентификатор заказа.
	// Значение гоночное при конкурентных вставках; nil, если недоступно.
	GetLastOrderId() (*int, error)
	// GetOrderWithDetailsById возвращает агрегат заказа с деталями и товарами;
	// nil без ошибки, если первичной строки нет.
	GetOrderWithDetailsById(orderID int) (*Order, error)
	// UpdateOrder обновляет все поля заказа и допустим только для заказа
	// в статусе new; иначе возвращает ErrOrderNotNew.
	UpdateOrder(order *Order) error
}
