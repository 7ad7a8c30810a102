package probe

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type stubProber struct {
	result Result
	calls  int
}

func (s *stubProber) Probe(context.Context, string, time.Duration) Result {
	s.calls++
	return s.result
}

func TestFallbackProber_PrimarySuccess(t *testing.T) {
	primary := &stubProber{result: Result{Success: true, Latency: time.Millisecond}}
	secondary := &stubProber{}
	p := NewFallbackProber(primary, secondary)

	res := p.Probe(context.Background(), "10.0.0.1", time.Second)

	assert.True(t, res.Success)
	assert.Zero(t, secondary.calls)
}

func TestFallbackProber_PermissionErrorFallsBack(t *testing.T) {
	primary := &stubProber{result: Result{Err: os.ErrPermission}}
	secondary := &stubProber{result: Result{Success: true}}
	p := NewFallbackProber(primary, secondary)

	res := p.Probe(context.Background(), "10.0.0.1", time.Second)

	assert.True(t, res.Success)
	assert.Equal(t, 1, secondary.calls)
}

func TestFallbackProber_DemotionIsSticky(t *testing.T) {
	primary := &stubProber{result: Result{Err: os.ErrPermission}}
	secondary := &stubProber{result: Result{Success: true}}
	p := NewFallbackProber(primary, secondary)

	p.Probe(context.Background(), "10.0.0.1", time.Second)
	p.Probe(context.Background(), "10.0.0.1", time.Second)
	p.Probe(context.Background(), "10.0.0.1", time.Second)

	assert.Equal(t, 1, primary.calls, "после отказа в правах primary больше не трогаем")
	assert.Equal(t, 3, secondary.calls)
}

func TestFallbackProber_NetworkFailureDoesNotFallBack(t *testing.T) {
	// обычная сетевая неудача — не повод менять транспорт
	primary := &stubProber{result: Result{Err: errors.New("host unreachable")}}
	secondary := &stubProber{}
	p := NewFallbackProber(primary, secondary)

	res := p.Probe(context.Background(), "10.0.0.1", time.Second)

	assert.False(t, res.Success)
	assert.Zero(t, secondary.calls)
}
