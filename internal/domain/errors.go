package domain

import "errors"

var (
	// ErrOrderNotNew возвращается, когда UpdateOrder вызван для заказа,
	// уже вошедшего в цикл исполнения. Текст фиксирован: по нему матчатся вызывающие.
	ErrOrderNotNew = errors.New("order should be in status new")
	// ErrForeignKeyConflict — массовое удаление нарушило ссылочную целостность
	// по строкам order_details.
	ErrForeignKeyConflict = errors.New("conflict with foreign key")
	// ErrUnknownDriver — сконфигурирован неизвестный драйвер базы данных.
	ErrUnknownDriver = errors.New("unknown database driver")
	// ErrNoConnection — фабрика соединений не смогла открыть подключение.
	// Отсутствие заказа по id ошибкой не является: читающий путь
	// возвращает nil-результат.
	ErrNoConnection = errors.New("connection can't be opened")
)

// IsForeignKeyConflict проверяет, является ли ошибка конфликтом внешнего ключа.
func IsForeignKeyConflict(err error) bool {
	return errors.Is(err, ErrForeignKeyConflict)
}
