package contextkeys

import (
	"context"
)

// Тип для ключа контекста
type cycleIDKeyType struct{}

var cycleIDKey = cycleIDKeyType{}

// ContextWithCycleID помещает идентификатор цикла в контекст
func ContextWithCycleID(ctx context.Context, cycleID string) context.Context {
	return context.WithValue(ctx, cycleIDKey, cycleID)
}

// CycleIDFromContext извлекает идентификатор цикла из контекста
// Возвращает пустую строку, если идентификатор не найден
func CycleIDFromContext(ctx context.Context) string {
	if cycleID, ok := ctx.Value(cycleIDKey).(string); ok {
		return cycleID
	}
	return ""
}
