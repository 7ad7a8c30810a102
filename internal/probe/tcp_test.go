package probe

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTCPProber_Success(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	p := NewTCPProber(80)
	res := p.Probe(context.Background(), ln.Addr().String(), time.Second)

	assert.True(t, res.Success)
	assert.NoError(t, res.Err)
	assert.Greater(t, res.Latency, time.Duration(0))
}

func TestTCPProber_ConnectionRefusedIsFailure(t *testing.T) {
	// порт только что закрыт — connect получит refused
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	p := NewTCPProber(80)
	res := p.Probe(context.Background(), addr, time.Second)

	assert.False(t, res.Success)
	assert.Error(t, res.Err, "причина сохраняется для диагностики")
}

func TestTCPProber_EmptyAddressIsConfigError(t *testing.T) {
	p := NewTCPProber(80)
	res := p.Probe(context.Background(), "  ", time.Second)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrEmptyAddress)
}

func TestTCPProber_DefaultPortAppended(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()
	go func() {
		for {
			c, err := ln.Accept()
			if err != nil {
				return
			}
			_ = c.Close()
		}
	}()

	port := ln.Addr().(*net.TCPAddr).Port
	p := NewTCPProber(port)
	res := p.Probe(context.Background(), "127.0.0.1", time.Second)

	assert.True(t, res.Success)
}

func TestTCPProber_CancelledContextIsFailure(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	p := NewTCPProber(80)
	res := p.Probe(ctx, "127.0.0.1:9", time.Second)

	assert.False(t, res.Success)
}

func TestICMPProber_EmptyAddressIsConfigError(t *testing.T) {
	p := NewICMPProber()
	res := p.Probe(context.Background(), "", time.Second)

	assert.False(t, res.Success)
	assert.ErrorIs(t, res.Err, ErrEmptyAddress)
}
