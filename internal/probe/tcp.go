package probe

import (
	"context"
	"net"
	"strconv"
	"strings"
	"time"
)

// TCPProber проверяет доступность через tcp-connect.
// Если адрес без порта, используется DefaultPort.
// Не требует прав на raw-сокеты, работает где угодно.
type TCPProber struct {
	DefaultPort int
}

func NewTCPProber(defaultPort int) *TCPProber {
	if defaultPort <= 0 {
		defaultPort = 80
	}
	return &TCPProber{DefaultPort: defaultPort}
}

func (p *TCPProber) Probe(ctx context.Context, addr string, timeout time.Duration) Result {
	if strings.TrimSpace(addr) == "" {
		return Result{Err: ErrEmptyAddress}
	}

	target := addr
	if _, _, err := net.SplitHostPort(addr); err != nil {
		target = net.JoinHostPort(addr, strconv.Itoa(p.DefaultPort))
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	d := net.Dialer{Timeout: timeout}
	start := time.Now()
	conn, err := d.DialContext(dialCtx, "tcp", target)
	if err != nil {
		// отказ в соединении, недостижимость, DNS, таймаут — обычная неудача
		return Result{Err: err}
	}
	_ = conn.Close()
	return Result{Success: true, Latency: time.Since(start)}
}
