package domain

// OrderHistory — строка отчёта CustOrderHist: товар и суммарное количество
// по клиенту. Проекция без идентичности, живёт не дольше вызова.
type OrderHistory struct {
	ProductName string
	Total       int
}

// CustomerOrdersDetail — строка отчёта CustOrdersDetail по одному заказу.
// Числовые поля проходят через безопасную конвертацию и могут отсутствовать.
type CustomerOrdersDetail struct {
	ProductName   string
	UnitPrice     *float64
	Quantity      *int
	Discount      *float64
	ExtendedPrice *float64
}
