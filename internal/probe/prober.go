package probe

import (
	"context"
	"errors"
	"time"
)

// ErrEmptyAddress — ошибка конфигурации: проверять нечего.
// Отличается от обычной неудачной проверки и до планировщика доходить не должна.
var ErrEmptyAddress = errors.New("probe: empty address")

// Result — результат одной проверки доступности.
// Err заполняется для диагностики; любая сетевая ошибка — это Success=false,
// а не ошибка системы.
type Result struct {
	Success bool
	Latency time.Duration
	Err     error
}

// Prober выполняет одну проверку доступности адреса в пределах таймаута.
// Реализация обязана вернуться не позже таймаута.
type Prober interface {
	Probe(ctx context.Context, addr string, timeout time.Duration) Result
}

// deadline возвращает ближайший из дедлайнов контекста и таймаута.
func deadline(ctx context.Context, timeout time.Duration) time.Time {
	d := time.Now().Add(timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(d) {
		return ctxDeadline
	}
	return d
}
