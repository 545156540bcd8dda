package domain

// CollectMode задаёт политику накопления строк деталей и товаров
// при сборке агрегата. Выбор фиксируется при конструировании репозитория
// и не меняется на лету.
type CollectMode int

const (
	// CollectLastRowOnly — унаследованное поведение: каждая строка результата
	// замещает одноэлементный срез, на агрегате выживает только последняя
	// строка деталей/товаров.
	CollectLastRowOnly CollectMode = iota
	// CollectAll — настоящая аккумуляция всех строк в порядке результата.
	CollectAll
)

// AggregateBuilder собирает один заказ из первичной строки, строк деталей
// и строк товаров, относящихся к одному OrderID.
type AggregateBuilder struct {
	mode  CollectMode
	order *Order
}

// NewAggregateBuilder создаёт сборщик с заданной политикой накопления.
func NewAggregateBuilder(mode CollectMode) *AggregateBuilder {
	return &AggregateBuilder{mode: mode}
}

// SetPrimary фиксирует первичную строку заказа. Без неё Order() вернёт nil.
func (b *AggregateBuilder) SetPrimary(order *Order) {
	b.order = order
}

// AddDetail добавляет строку деталей согласно политике накопления.
func (b *AggregateBuilder) AddDetail(d OrderDetails) {
	if b.order == nil {
		return
	}
	if b.mode == CollectLastRowOnly {
		b.order.Details = []OrderDetails{d}
		return
	}
	b.order.Details = append(b.order.Details, d)
}

// AddProduct добавляет строку товара согласно политике накопления.
func (b *AggregateBuilder) AddProduct(p Product) {
	if b.order == nil {
		return
	}
	if b.mode == CollectLastRowOnly {
		b.order.Products = []Product{p}
		return
	}
	b.order.Products = append(b.order.Products, p)
}

// Order возвращает собранный агрегат; nil, если первичной строки не было.
func (b *AggregateBuilder) Order() *Order {
	return b.order
}
