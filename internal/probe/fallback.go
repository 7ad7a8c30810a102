package probe

import (
	"context"
	"errors"
	"os"
	"strings"
	"sync/atomic"
	"syscall"
	"time"
)

// FallbackProber пробует primary, а при нехватке прав навсегда
// переключается на secondary: права на raw-сокет сами не появятся,
// дёргать ICMP каждую проверку бессмысленно.
// Типичный случай: ICMP без CAP_NET_RAW → tcp-connect.
type FallbackProber struct {
	primary   Prober
	secondary Prober
	demoted   atomic.Bool
}

func NewFallbackProber(primary, secondary Prober) *FallbackProber {
	return &FallbackProber{primary: primary, secondary: secondary}
}

func (p *FallbackProber) Probe(ctx context.Context, addr string, timeout time.Duration) Result {
	if p.demoted.Load() {
		return p.secondary.Probe(ctx, addr, timeout)
	}
	result := p.primary.Probe(ctx, addr, timeout)
	if result.Success || !isPermissionError(result.Err) {
		return result
	}
	p.demoted.Store(true)
	return p.secondary.Probe(ctx, addr, timeout)
}

func isPermissionError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrPermission) || errors.Is(err, syscall.EPERM) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "operation not permitted") || strings.Contains(msg, "permission denied")
}
