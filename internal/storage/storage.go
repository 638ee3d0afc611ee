// Package storage - хранилище записей для локального сервиса данных,
// совместимого с json-server.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/google/uuid"
)

// Record - JSON-объект коллекции. Поле id всегда присутствует.
type Record map[string]any

var ErrNotFound = errors.New("record not found")

var Collections = []string{"posts", "comments", "users"}

type Storage interface {
	List(ctx context.Context, collection string, filter map[string]string) ([]Record, error)
	Get(ctx context.Context, collection, id string) (Record, error)
	Create(ctx context.Context, collection string, rec Record) (Record, error)
	Patch(ctx context.Context, collection, id string, patch Record) (Record, error)
	Replace(ctx context.Context, collection, id string, rec Record) (Record, error)
	Delete(ctx context.Context, collection, id string) error
	Close() error
}

func ValidCollection(name string) bool {
	for _, c := range Collections {
		if c == name {
			return true
		}
	}
	return false
}

// RecordID возвращает id записи строкой; числовые id приводятся к десятичной записи
func RecordID(rec Record) string {
	return FieldString(rec["id"])
}

// FieldString приводит значение поля к строке для сравнения с параметром запроса
func FieldString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	default:
		return fmt.Sprint(x)
	}
}

// Matches проверяет равенство полей записи параметрам фильтра
func Matches(rec Record, filter map[string]string) bool {
	for k, want := range filter {
		v, ok := rec[k]
		if !ok || FieldString(v) != want {
			return false
		}
	}
	return true
}

// Prepare копирует запись и назначает id, если его нет
func Prepare(rec Record) Record {
	out := make(Record, len(rec)+1)
	for k, v := range rec {
		out[k] = v
	}
	if RecordID(out) == "" {
		out["id"] = uuid.New().String()
	}
	return out
}

// Merge - поверхностное слияние; id записи не меняется
func Merge(rec, patch Record) Record {
	out := make(Record, len(rec)+len(patch))
	for k, v := range rec {
		out[k] = v
	}
	for k, v := range patch {
		if k == "id" {
			continue
		}
		out[k] = v
	}
	return out
}
