package discovery

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/logging"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
)

// Requester locates a server by broadcasting probes and waiting for a reply
// carrying the expected token.
type Requester struct {
	token    string
	target   string // probe destination, host:port
	interval time.Duration
	timeout  time.Duration
	logger   logging.Logger
}

// NewRequester builds a requester probing the given target address
// (typically "255.255.255.255:<discovery port>"). interval is the gap
// between probes, timeout bounds the whole search.
func NewRequester(token, target string, interval, timeout time.Duration, logger logging.Logger) *Requester {
	return &Requester{
		token:    token,
		target:   target,
		interval: interval,
		timeout:  timeout,
		logger:   logger.With("module", "discovery"),
	}
}

// Locate probes until a valid reply arrives or the timeout elapses, and
// returns the server's TCP address as host:port. The host is the IP the
// reply came from, which is reachable even when the advertised hostname does
// not resolve on the client's network. Replies with a mismatched token or a
// malformed field count are ignored and the search continues.
//
// On timeout it returns ErrDiscoveryTimeout; the caller is expected to fall
// back to manual address entry.
func (r *Requester) Locate(ctx context.Context) (string, error) {
	dst, err := net.ResolveUDPAddr("udp", r.target)
	if err != nil {
		return "", fmt.Errorf("resolve %s: %w", r.target, err)
	}

	conn, err := net.ListenUDP("udp", nil)
	if err != nil {
		return "", err
	}
	defer conn.Close()

	probe := []byte(protocol.DiscoveryRequest(r.token))
	deadline := time.Now().Add(r.timeout)
	buf := make([]byte, 1024)

	for time.Now().Before(deadline) {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}

		if _, err := conn.WriteToUDP(probe, dst); err != nil {
			r.logger.Warn(ctx, "probe send failed", "error", err)
		}

		wait := time.Now().Add(r.interval)
		if wait.After(deadline) {
			wait = deadline
		}
		conn.SetReadDeadline(wait)

		for {
			n, from, err := conn.ReadFromUDP(buf)
			if err != nil {
				if ne, ok := err.(net.Error); ok && ne.Timeout() {
					break // next probe round
				}
				return "", err
			}

			_, tcpPort, ok := protocol.ParseDiscoveryResponse(string(buf[:n]), r.token)
			if !ok {
				r.logger.Debug(ctx, "ignoring malformed reply", "from", from.String())
				continue
			}

			addr := net.JoinHostPort(from.IP.String(), strconv.Itoa(tcpPort))
			r.logger.Info(ctx, "server located", "addr", addr)
			return addr, nil
		}
	}

	return "", common.ErrDiscoveryTimeout
}
