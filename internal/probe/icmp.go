package probe

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/net/icmp"
	"golang.org/x/net/ipv4"
	"golang.org/x/net/ipv6"
)

const echoPayload = "pulse-probe"

// ICMPProber шлёт ICMP echo через raw-сокет (нужны права).
type ICMPProber struct {
	id  int
	seq uint32
}

func NewICMPProber() *ICMPProber {
	return &ICMPProber{id: os.Getpid() & 0xffff}
}

// Probe отправляет один echo-запрос и ждёт ответ до дедлайна.
func (p *ICMPProber) Probe(ctx context.Context, addr string, timeout time.Duration) Result {
	if strings.TrimSpace(addr) == "" {
		return Result{Err: ErrEmptyAddress}
	}
	if err := ctx.Err(); err != nil {
		return Result{Err: err}
	}

	// адрес может быть host:port (для tcp-проверок) — порт здесь лишний
	host := addr
	if h, _, err := net.SplitHostPort(addr); err == nil {
		host = h
	}

	dst, err := net.ResolveIPAddr("ip", host)
	if err != nil || dst.IP == nil {
		if err == nil {
			err = fmt.Errorf("invalid address: %s", addr)
		}
		return Result{Err: err}
	}

	network, proto, reqType, replyType := icmpFamily(dst.IP)
	conn, err := icmp.ListenPacket(network, "")
	if err != nil {
		return Result{Err: err}
	}
	defer conn.Close()

	seq := int(atomic.AddUint32(&p.seq, 1) & 0xffff)
	msg := icmp.Message{
		Type: reqType,
		Code: 0,
		Body: &icmp.Echo{ID: p.id, Seq: seq, Data: []byte(echoPayload)},
	}
	payload, err := msg.Marshal(nil)
	if err != nil {
		return Result{Err: err}
	}

	if err := conn.SetDeadline(deadline(ctx, timeout)); err != nil {
		return Result{Err: err}
	}

	start := time.Now()
	if _, err := conn.WriteTo(payload, dst); err != nil {
		return Result{Err: err}
	}

	buf := make([]byte, 1500)
	for {
		if err := ctx.Err(); err != nil {
			return Result{Err: err}
		}
		n, peer, err := conn.ReadFrom(buf)
		if err != nil {
			return Result{Err: err}
		}
		if peer == nil {
			continue
		}
		reply, err := icmp.ParseMessage(proto, buf[:n])
		if err != nil || reply.Type != replyType {
			continue
		}
		echo, ok := reply.Body.(*icmp.Echo)
		if !ok || echo.ID != p.id || echo.Seq != seq {
			continue
		}
		return Result{Success: true, Latency: time.Since(start)}
	}
}

func icmpFamily(ip net.IP) (network string, proto int, reqType, replyType icmp.Type) {
	if ip.To4() != nil {
		return "ip4:icmp", ipv4.ICMPTypeEcho.Protocol(), ipv4.ICMPTypeEcho, ipv4.ICMPTypeEchoReply
	}
	return "ip6:ipv6-icmp", ipv6.ICMPTypeEchoRequest.Protocol(), ipv6.ICMPTypeEchoRequest, ipv6.ICMPTypeEchoReply
}
