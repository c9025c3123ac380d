package steps

import (
	"context"
	"errors"
	"math"
)

// Ошибки шагов.
var (
	// ErrStepNotFound — тип шага не найден в реестре.
	ErrStepNotFound = errors.New("step type not found")

	// ErrInvalidConfig — невалидная конфигурация шага.
	ErrInvalidConfig = errors.New("invalid step config")

	// ErrStepCancelled — выполнение шага отменено.
	ErrStepCancelled = errors.New("step execution cancelled")

	// ErrInjectedFailure — намеренная ошибка шага fail.
	ErrInjectedFailure = errors.New("injected step failure")
)

// Descriptor — описание шага плана.
//
// Движок не интерпретирует Descriptor: его разбирает Step,
// зарегистрированный под Descriptor.Type.
type Descriptor struct {
	// ID — уникальный в плане идентификатор шага.
	ID string `json:"id"`

	// Type — тип шага (add, mul, delay, fail, http).
	Type string `json:"type"`

	// Config — параметры шага, зависят от типа.
	Config map[string]any `json:"config,omitempty"`
}

// Step — интерфейс для типов шагов.
//
// Шаг получает результат предыдущего шага и возвращает новый.
// Долгие шаги должны проверять ctx.Done().
type Step interface {
	// Type возвращает тип шага.
	Type() string

	// Execute выполняет шаг.
	Execute(ctx context.Context, prev float64, d Descriptor) (float64, error)
}

// Validator — опциональный интерфейс шага для проверки конфигурации
// до запуска плана.
type Validator interface {
	ValidateConfig(config map[string]any) error
}

// GetConfigString извлекает строковое значение из конфига.
func GetConfigString(config map[string]any, key string) string {
	if v, ok := config[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

// GetConfigFloat извлекает число из конфига.
// Второе значение — false, если ключа нет или значение не число.
func GetConfigFloat(config map[string]any, key string) (float64, bool) {
	v, ok := config[key]
	if !ok {
		return 0, false
	}

	switch n := v.(type) {
	case float64:
		return n, !math.IsNaN(n)
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

// GetConfigInt извлекает целое значение из конфига.
func GetConfigInt(config map[string]any, key string) int {
	n, _ := GetConfigFloat(config, key)
	return int(n)
}

// GetConfigMapString извлекает map[string]string из конфига.
func GetConfigMapString(config map[string]any, key string) map[string]string {
	if v, ok := config[key]; ok {
		switch m := v.(type) {
		case map[string]string:
			return m
		case map[string]any:
			result := make(map[string]string)
			for k, val := range m {
				if s, ok := val.(string); ok {
					result[k] = s
				}
			}
			return result
		}
	}
	return nil
}
