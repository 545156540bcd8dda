// Package convert содержит безопасные преобразования скаляров, пришедших
// извне (строки результатов, параметры). Неудачное преобразование никогда
// не является ошибкой: вместо неё возвращается nil.
package convert

import (
	"time"

	"github.com/spf13/cast"
)

// normalize приводит сырое значение драйвера к виду, понятному cast.
// database/sql отдаёт текстовые и numeric-колонки как []byte.
func normalize(value any) any {
	if b, ok := value.([]byte); ok {
		return string(b)
	}
	return value
}

// ToInt возвращает значение как int либо nil.
func ToInt(value any) *int {
	if value == nil {
		return nil
	}
	v, err := cast.ToIntE(normalize(value))
	if err != nil {
		return nil
	}
	return &v
}

// ToInt64 возвращает значение как int64 либо nil.
func ToInt64(value any) *int64 {
	if value == nil {
		return nil
	}
	v, err := cast.ToInt64E(normalize(value))
	if err != nil {
		return nil
	}
	return &v
}

// ToFloat возвращает значение как float64 либо nil.
// Покрывает и decimal-, и double-колонки схемы.
func ToFloat(value any) *float64 {
	if value == nil {
		return nil
	}
	v, err := cast.ToFloat64E(normalize(value))
	if err != nil {
		return nil
	}
	return &v
}

// ToTime возвращает значение как time.Time либо nil.
func ToTime(value any) *time.Time {
	if value == nil {
		return nil
	}
	v, err := cast.ToTimeE(normalize(value))
	if err != nil {
		return nil
	}
	return &v
}

// ToString возвращает значение как string либо nil.
func ToString(value any) *string {
	if value == nil {
		return nil
	}
	v, err := cast.ToStringE(normalize(value))
	if err != nil {
		return nil
	}
	return &v
}
