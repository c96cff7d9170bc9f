// Package discovery implements the UDP side-channel clients use to locate a
// server on the local network. The exchange is stateless: a broadcast probe
// carrying a shared token, answered with the server's connection coordinates.
// The token is a protocol filter, not a secret.
package discovery

import (
	"context"
	"net"
	"os"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/logging"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
)

// Responder answers matching probes with the TCP port the server listens on.
type Responder struct {
	port    int
	token   string
	tcpPort int
	logger  logging.Logger

	conn *net.UDPConn
}

func NewResponder(port int, token string, tcpPort int, logger logging.Logger) *Responder {
	return &Responder{
		port:    port,
		token:   token,
		tcpPort: tcpPort,
		logger:  logger.With("module", "discovery"),
	}
}

// Port returns the UDP port the responder is bound to. Valid after Run has
// bound the socket; useful in tests that bind port 0.
func (r *Responder) Port() int {
	if r.conn == nil {
		return r.port
	}
	return r.conn.LocalAddr().(*net.UDPAddr).Port
}

// Run listens on all interfaces until ctx is cancelled. The read loop uses a
// short deadline so cancellation is observed within a second instead of
// blocking on recv forever. Datagrams that are not an exact probe match are
// ignored without any reply.
func (r *Responder) Run(ctx context.Context) error {
	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: r.port})
	if err != nil {
		return err
	}
	r.conn = conn
	defer conn.Close()

	r.logger.Info(ctx, "discovery responder listening", "udp_port", r.Port())

	expected := protocol.DiscoveryRequest(r.token)
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	reply := []byte(protocol.DiscoveryResponse(r.token, hostname, r.tcpPort))

	buf := make([]byte, 1024)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info(ctx, "discovery responder stopped")
			return nil
		default:
		}

		conn.SetReadDeadline(time.Now().Add(time.Second))
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				continue
			}
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Warn(ctx, "discovery read error", "error", err)
			continue
		}

		if string(buf[:n]) != expected {
			r.logger.Debug(ctx, "ignoring datagram", "from", addr.String())
			continue
		}

		if _, err := conn.WriteToUDP(reply, addr); err != nil {
			r.logger.Warn(ctx, "discovery reply failed", "to", addr.String(), "error", err)
			continue
		}
		r.logger.Info(ctx, "discovery probe answered", "from", addr.String())
	}
}
