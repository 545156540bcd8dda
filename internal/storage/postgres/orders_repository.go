package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/vladislavdragonenkov/northwind/internal/convert"
	"github.com/vladislavdragonenkov/northwind/internal/domain"
	"github.com/vladislavdragonenkov/northwind/internal/metrics"
)

const (
	opTimeout = 5 * time.Second

	// Контракт порядковых индексов первичной строки заказа фиксирован:
	// 0=order_id .. 13=ship_country. Привязка по именам колонок не используется.
	orderColumns = `order_id, customer_id, employee_id, order_date, required_date,
		shipped_date, ship_via, freight, ship_name, ship_address, ship_city,
		ship_region, ship_postal_code, ship_country`
	orderColumnCount = 14
)

type ordersRepository struct {
	db      *sql.DB
	collect domain.CollectMode
	metrics *metrics.RepositoryMetrics
}

// Option настраивает репозиторий при конструировании.
type Option func(*ordersRepository)

// WithCollectMode выбирает политику накопления деталей/товаров агрегата.
// По умолчанию действует унаследованный CollectLastRowOnly.
func WithCollectMode(mode domain.CollectMode) Option {
	return func(r *ordersRepository) { r.collect = mode }
}

// WithMetrics подключает Prometheus-инструментацию операций.
func WithMetrics(m *metrics.RepositoryMetrics) Option {
	return func(r *ordersRepository) { r.metrics = m }
}

// NewOrdersRepository создаёт PostgreSQL-реализацию OrdersRepository.
func NewOrdersRepository(store *Store, opts ...Option) domain.OrdersRepository {
	r := &ordersRepository{db: store.DB(), collect: domain.CollectLastRowOnly}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *ordersRepository) GetOrders() (orders []*domain.Order, err error) {
	defer r.track("get_orders", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT `+orderColumns+` FROM orders`)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders = make([]*domain.Order, 0)
	for rows.Next() {
		order, err := scanOrderRow(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate order rows: %w", err)
	}

	return orders, nil
}

func (r *ordersRepository) CallCustOrderHist(customerID string) (history []domain.OrderHistory, err error) {
	defer r.track("cust_order_hist", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `SELECT product_name, total FROM cust_order_hist($1)`, customerID)
	if err != nil {
		return nil, fmt.Errorf("call cust_order_hist: %w", err)
	}
	defer rows.Close()

	history = make([]domain.OrderHistory, 0)
	for rows.Next() {
		var row domain.OrderHistory
		if err := rows.Scan(&row.ProductName, &row.Total); err != nil {
			return nil, fmt.Errorf("scan cust_order_hist row: %w", err)
		}
		history = append(history, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cust_order_hist rows: %w", err)
	}

	return history, nil
}

func (r *ordersRepository) CallCustOrdersDetail(orderID int) (details []domain.CustomerOrdersDetail, err error) {
	defer r.track("cust_orders_detail", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, `
		SELECT product_name, unit_price, quantity, discount, extended_price
		FROM cust_orders_detail($1)
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("call cust_orders_detail: %w", err)
	}
	defer rows.Close()

	details = make([]domain.CustomerOrdersDetail, 0)
	for rows.Next() {
		raw := rawScanTargets(5)
		if err := rows.Scan(raw.ptrs...); err != nil {
			return nil, fmt.Errorf("scan cust_orders_detail row: %w", err)
		}

		row := domain.CustomerOrdersDetail{
			UnitPrice:     convert.ToFloat(raw.vals[1]),
			Quantity:      convert.ToInt(raw.vals[2]),
			Discount:      convert.ToFloat(raw.vals[3]),
			ExtendedPrice: convert.ToFloat(raw.vals[4]),
		}
		if name := convert.ToString(raw.vals[0]); name != nil {
			row.ProductName = *name
		}
		details = append(details, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cust_orders_detail rows: %w", err)
	}

	return details, nil
}

func (r *ordersRepository) RemoveInProggressAndNewOrders() (err error) {
	defer r.track("remove_in_progress_and_new", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	_, err = conn.ExecContext(ctx, `
		DELETE FROM orders
		WHERE order_date IS NULL OR shipped_date IS NULL
	`)
	if err != nil {
		if pgErr := foreignKeyViolation(err); pgErr != nil {
			return fmt.Errorf("%w, see inner details: %s", domain.ErrForeignKeyConflict, pgErr.Message)
		}
		return fmt.Errorf("delete new and in-progress orders: %w", err)
	}

	return nil
}

// SetShippedDate, вопреки имени, назначает и персистит OrderDate.
// Инверсия унаследована и сохранена: вызывающие зависят от неё.
func (r *ordersRepository) SetShippedDate(order *domain.Order, orderDate *time.Time) (err error) {
	defer r.track("set_shipped_date", time.Now(), &err)

	order.SetOrderDate(orderDate)
	return r.updateDateByOrderID(order.OrderID(), "order_date", order.OrderDate())
}

// SetOrderDate — зеркальная инверсия: назначает и персистит ShippedDate.
func (r *ordersRepository) SetOrderDate(order *domain.Order, shippedDate *time.Time) (err error) {
	defer r.track("set_order_date", time.Now(), &err)

	order.SetShippedDate(shippedDate)
	return r.updateDateByOrderID(order.OrderID(), "shipped_date", order.ShippedDate())
}

func (r *ordersRepository) AddOrder(order *domain.Order) (err error) {
	defer r.track("add_order", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	// Сгенерированный идентификатор намеренно не возвращается:
	// вызывающий читает его отдельно через GetLastOrderId.
	_, err = conn.ExecContext(ctx, `
		INSERT INTO orders (
			customer_id, employee_id, order_date, required_date, shipped_date,
			ship_via, freight, ship_name, ship_address, ship_city, ship_region,
			ship_postal_code, ship_country
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
	`, orderParams(order)...)
	if err != nil {
		return fmt.Errorf("insert order: %w", err)
	}

	return nil
}

func (r *ordersRepository) GetLastOrderId() (id *int, err error) {
	defer r.track("get_last_order_id", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	// Чтение идентификаторной последовательности best-effort: значение
	// устаревает сразу же при конкурентных вставках из других сессий.
	var raw any
	if err := conn.QueryRowContext(ctx, `SELECT last_value FROM orders_order_id_seq`).Scan(&raw); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("read orders identity sequence: %w", err)
	}

	return convert.ToInt(raw), nil
}

func (r *ordersRepository) GetOrderWithDetailsById(orderID int) (order *domain.Order, err error) {
	defer r.track("get_order_with_details", time.Now(), &err)

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	// Составная выборка идёт по одному закреплённому соединению;
	// освобождение гарантировано на всех путях выхода, включая отсутствие
	// первичной строки.
	conn, err := r.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	builder := domain.NewAggregateBuilder(r.collect)

	primary, err := r.queryPrimaryRow(ctx, conn, orderID)
	if err != nil {
		return nil, err
	}
	if primary == nil {
		// Отсутствие заказа — не ошибка: решение остаётся за вызывающим.
		return nil, nil
	}
	builder.SetPrimary(primary)

	if err := r.queryDetails(ctx, conn, orderID, builder); err != nil {
		return nil, err
	}
	if err := r.queryProducts(ctx, conn, orderID, builder); err != nil {
		return nil, err
	}

	return builder.Order(), nil
}

func (r *ordersRepository) UpdateOrder(order *domain.Order) (err error) {
	defer r.track("update_order", time.Now(), &err)

	// Массовое обновление полей допустимо только до входа заказа
	// в цикл исполнения.
	if order.Status() != domain.OrderStatusNew {
		return domain.ErrOrderNotNew
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	args := append(orderParams(order), order.OrderID())
	_, err = conn.ExecContext(ctx, `
		UPDATE orders SET
			customer_id = $1,
			employee_id = $2,
			order_date = $3,
			required_date = $4,
			shipped_date = $5,
			ship_via = $6,
			freight = $7,
			ship_name = $8,
			ship_address = $9,
			ship_city = $10,
			ship_region = $11,
			ship_postal_code = $12,
			ship_country = $13
		WHERE order_id = $14
	`, args...)
	if err != nil {
		return fmt.Errorf("update order: %w", err)
	}

	return nil
}

func (r *ordersRepository) queryPrimaryRow(ctx context.Context, conn *sql.Conn, orderID int) (*domain.Order, error) {
	rows, err := conn.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("select order by id: %w", err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("iterate order by id: %w", err)
		}
		return nil, nil
	}

	return scanOrderRow(rows)
}

func (r *ordersRepository) queryDetails(ctx context.Context, conn *sql.Conn, orderID int, builder *domain.AggregateBuilder) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT order_id, product_id, unit_price, quantity, discount
		FROM order_details
		WHERE order_id = $1
	`, orderID)
	if err != nil {
		return fmt.Errorf("select order details: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		raw := rawScanTargets(5)
		if err := rows.Scan(raw.ptrs...); err != nil {
			return fmt.Errorf("scan order details row: %w", err)
		}
		builder.AddDetail(domain.OrderDetails{
			OrderID:   convert.ToInt(raw.vals[0]),
			ProductID: convert.ToInt(raw.vals[1]),
			UnitPrice: convert.ToFloat(raw.vals[2]),
			Quantity:  convert.ToInt(raw.vals[3]),
			Discount:  convert.ToFloat(raw.vals[4]),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order details rows: %w", err)
	}

	return nil
}

func (r *ordersRepository) queryProducts(ctx context.Context, conn *sql.Conn, orderID int, builder *domain.AggregateBuilder) error {
	rows, err := conn.QueryContext(ctx, `
		SELECT products.product_id, products.product_name
		FROM orders
		JOIN order_details ON orders.order_id = order_details.order_id
		JOIN products ON order_details.product_id = products.product_id
		WHERE orders.order_id = $1
	`, orderID)
	if err != nil {
		return fmt.Errorf("select order products: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var product domain.Product
		if err := rows.Scan(&product.ProductID, &product.ProductName); err != nil {
			return fmt.Errorf("scan order product row: %w", err)
		}
		builder.AddProduct(product)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate order product rows: %w", err)
	}

	return nil
}

func (r *ordersRepository) updateDateByOrderID(orderID int, column string, value *time.Time) error {
	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	conn, err := r.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrNoConnection, err)
	}
	defer conn.Close()

	// column приходит только из фиксированного набора вызовов выше.
	// Отсутствующая дата уходит в базу явным NULL.
	_, err = conn.ExecContext(ctx,
		fmt.Sprintf(`UPDATE orders SET %s = $1 WHERE order_id = $2`, column),
		value, orderID,
	)
	if err != nil {
		return fmt.Errorf("update %s by order id: %w", column, err)
	}

	return nil
}

// scanTargets держит пары "значение + указатель" для порядкового скана строки.
type scanTargets struct {
	vals []any
	ptrs []any
}

func rawScanTargets(n int) scanTargets {
	t := scanTargets{vals: make([]any, n), ptrs: make([]any, n)}
	for i := range t.vals {
		t.ptrs[i] = &t.vals[i]
	}
	return t
}

// scanOrderRow восстанавливает заказ из первичной строки по порядковому
// контракту колонок. Все скаляры проходят безопасную конвертацию: кривое
// значение даёт отсутствующее поле, а не ошибку.
func scanOrderRow(rows *sql.Rows) (*domain.Order, error) {
	raw := rawScanTargets(orderColumnCount)
	if err := rows.Scan(raw.ptrs...); err != nil {
		return nil, fmt.Errorf("scan order row: %w", err)
	}

	id := convert.ToInt(raw.vals[0])
	if id == nil {
		return nil, fmt.Errorf("scan order row: order id is not an integer")
	}

	order := domain.ReconstructOrder(*id)
	if customer := convert.ToString(raw.vals[1]); customer != nil {
		order.CustomerID = *customer
	}
	order.EmployeeID = convert.ToInt(raw.vals[2])
	// Даты идут только через санкционированные мутаторы сущности.
	order.SetOrderDate(convert.ToTime(raw.vals[3]))
	order.RequiredDate = convert.ToTime(raw.vals[4])
	order.SetShippedDate(convert.ToTime(raw.vals[5]))
	order.ShipVia = convert.ToInt(raw.vals[6])
	order.Freight = convert.ToFloat(raw.vals[7])
	order.ShipName = convert.ToString(raw.vals[8])
	order.ShipAddress = convert.ToString(raw.vals[9])
	order.ShipCity = convert.ToString(raw.vals[10])
	order.ShipRegion = convert.ToString(raw.vals[11])
	order.ShipPostalCode = convert.ToString(raw.vals[12])
	order.ShipCountry = convert.ToString(raw.vals[13])

	return order, nil
}

// orderParams собирает полный набор позиционных параметров заказа.
// Унаследованная особенность этого пути: отсутствующее текстовое значение
// кодируется пустой строкой; числа и даты уходят явным NULL.
func orderParams(order *domain.Order) []any {
	return []any{
		order.CustomerID,
		order.EmployeeID,
		order.OrderDate(),
		order.RequiredDate,
		order.ShippedDate(),
		order.ShipVia,
		order.Freight,
		textParam(order.ShipName),
		textParam(order.ShipAddress),
		textParam(order.ShipCity),
		textParam(order.ShipRegion),
		textParam(order.ShipPostalCode),
		textParam(order.ShipCountry),
	}
}

func textParam(v *string) any {
	if v == nil {
		return ""
	}
	return *v
}

func foreignKeyViolation(err error) *pgconn.PgError {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23503" {
		return pgErr
	}
	return nil
}

func (r *ordersRepository) track(op string, start time.Time, err *error) {
	r.metrics.ObserveOp(op, time.Since(start), *err)
}

var _ domain.OrdersRepository = (*ordersRepository)(nil)
