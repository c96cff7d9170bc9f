// Package cli implements the interactive AuraChat client: server discovery,
// the authentication dialogue and the command prompt.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/dmitrijs2005/aurachat/internal/client/config"
	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/discovery"
	"github.com/dmitrijs2005/aurachat/internal/logging"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
)

// dialFunc is a test seam for net.Dial.
var dialFunc = func(addr string) (net.Conn, error) {
	return net.Dial("tcp", addr)
}

type App struct {
	config *config.Config
	logger logging.Logger

	conn net.Conn
	br   *bufio.Reader

	in  *bufio.Reader
	out io.Writer
}

func NewApp(c *config.Config, logger logging.Logger) *App {
	return &App{
		config: c,
		logger: logger,
		in:     bufio.NewReader(os.Stdin),
		out:    os.Stdout,
	}
}

// Connect resolves the server address and dials it. A configured address is
// used as-is; otherwise the client probes the local network and falls back
// to asking the user when nobody answers.
func (a *App) Connect(ctx context.Context) error {
	addr := a.config.ServerAddr

	if addr == "" {
		fmt.Fprintln(a.out, "Ricerca server in corso...")
		target := fmt.Sprintf("255.255.255.255:%d", a.config.DiscoveryPort)
		r := discovery.NewRequester(a.config.DiscoveryToken, target,
			a.config.DiscoveryInterval, a.config.DiscoveryTimeout, a.logger)

		found, err := r.Locate(ctx)
		switch {
		case err == nil:
			fmt.Fprintf(a.out, "Server trovato: %s\n", found)
			addr = found
		case errors.Is(err, common.ErrDiscoveryTimeout):
			fmt.Fprintln(a.out, "Nessun server trovato sulla rete locale.")
			manual, merr := GetSimpleText(a.in, "Indirizzo server (host:porta):", a.out)
			if merr != nil {
				return merr
			}
			addr = manual
		default:
			return err
		}
	}

	conn, err := dialFunc(addr)
	if err != nil {
		return fmt.Errorf("connect %s: %w", addr, err)
	}
	a.conn = conn
	a.br = bufio.NewReader(conn)
	fmt.Fprintf(a.out, "Connesso a %s\n", addr)
	return nil
}

// Run drives a whole client session: authentication dialogue first, then the
// command prompt until EXIT or disconnect.
func (a *App) Run(ctx context.Context) error {
	if a.conn == nil {
		if err := a.Connect(ctx); err != nil {
			return err
		}
	}
	defer a.conn.Close()

	if err := a.authDialogue(); err != nil {
		return err
	}
	return a.repl(ctx)
}

// authDialogue answers the server's prompt frames until a success or failure
// frame arrives. The frame prefix decides what kind of input to collect; the
// text after the pipe is shown to the user verbatim.
func (a *App) authDialogue() error {
	for {
		line, err := a.readServerLine()
		if err != nil {
			return fmt.Errorf("connection lost during authentication: %w", err)
		}

		prefix, text := protocol.ParseFrame(line)
		switch prefix {
		case protocol.AuthSuccess, protocol.RegSuccess:
			fmt.Fprintln(a.out, text)
			return nil

		case protocol.AuthFail, protocol.RegFail:
			fmt.Fprintln(a.out, text)
			return fmt.Errorf("authentication failed: %s", text)

		case protocol.AuthRetry, protocol.RegRetry:
			fmt.Fprintln(a.out, text)

		case protocol.AuthPassword, protocol.RegPassword:
			pw, perr := GetPassword(a.in, text, a.out)
			if perr != nil {
				return perr
			}
			_, werr := fmt.Fprintln(a.conn, string(pw))
			common.WipeByteArray(pw)
			if werr != nil {
				return werr
			}

		case protocol.AuthRequest, protocol.AuthUsername, protocol.RegUsername:
			answer, gerr := GetSimpleText(a.in, text, a.out)
			if gerr != nil {
				return gerr
			}
			if _, werr := fmt.Fprintln(a.conn, answer); werr != nil {
				return werr
			}

		default:
			// an unframed line during the handshake is informational
			fmt.Fprintln(a.out, line)
		}
	}
}

func (a *App) readServerLine() (string, error) {
	line, err := a.br.ReadString('\n')
	if err != nil {
		return "", err
	}
	return trimEOL(line), nil
}

func trimEOL(s string) string {
	for len(s) > 0 && (s[len(s)-1] == '\n' || s[len(s)-1] == '\r') {
		s = s[:len(s)-1]
	}
	return s
}
