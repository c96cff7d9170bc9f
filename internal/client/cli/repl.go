package cli

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/filex"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
	"github.com/dmitrijs2005/aurachat/internal/transfer"
)

const replHelp = `Comandi disponibili:
  TIME              - ora corrente del server
  NAME              - hostname del server
  INFO [1-5]        - informazioni (INFO senza argomenti per l'help)
  STATS             - statistiche del server
  LOG [data]        - mostra il proprio log (default oggi)
  EX [fmt] [n] [t]  - esporta i log (xml/csv/txt, n righe, client/server/both)
  EXIT              - disconnessione`

// repl reads commands from the user, forwards them and renders the reply.
// LOG and EX switch into the transfer sub-protocol; everything else is one
// line in, one line out.
func (a *App) repl(ctx context.Context) error {
	fmt.Fprintln(a.out, replHelp)

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line, err := GetSimpleText(a.in, "", a.out)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}
		if line == "" {
			continue
		}
		if strings.EqualFold(line, "HELP") {
			fmt.Fprintln(a.out, replHelp)
			continue
		}

		if _, err := fmt.Fprintln(a.conn, line); err != nil {
			return fmt.Errorf("send failed: %w", err)
		}

		cmd := strings.ToUpper(strings.Fields(line)[0])
		switch cmd {
		case protocol.CmdLog:
			if err := a.receiveDisplayLog(); err != nil {
				return err
			}
		case protocol.CmdExport:
			if err := a.receiveExport(line); err != nil {
				return err
			}
		case protocol.CmdExit:
			reply, err := a.readServerLine()
			if err == nil {
				fmt.Fprintln(a.out, reply)
			}
			return nil
		default:
			reply, err := a.readReply()
			if err != nil {
				return fmt.Errorf("connection lost: %w", err)
			}
			if reply == protocol.ClientHandlesInfo4 {
				a.printLocalInfo()
				continue
			}
			fmt.Fprintln(a.out, reply)
		}
	}
}

// replyDrain is how long readReply waits for continuation lines after the
// first one. Replies such as the INFO help span several lines but arrive in
// a single server write, so a short grace period collects them all.
const replyDrain = 100 * time.Millisecond

// readReply reads one command reply, which may span multiple lines. The
// first line is read blocking; whatever follows within the grace period is
// part of the same reply. The protocol is half-duplex, so nothing else can
// arrive until the next command is sent.
func (a *App) readReply() (string, error) {
	first, err := a.br.ReadString('\n')
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(first)
	for {
		a.conn.SetReadDeadline(time.Now().Add(replyDrain))
		more, rerr := a.br.ReadString('\n')
		b.WriteString(more)
		if rerr != nil {
			break
		}
	}
	a.conn.SetReadDeadline(time.Time{})

	return strings.TrimRight(b.String(), "\r\n"), nil
}

// receiveDisplayLog consumes one display-log stream, or the error line the
// server sends instead when the requested log does not exist.
func (a *App) receiveDisplayLog() error {
	first, err := a.readServerLine()
	if err != nil {
		return fmt.Errorf("connection lost: %w", err)
	}
	if protocol.IsErrorLine(first) {
		fmt.Fprintln(a.out, first)
		return nil
	}
	if first != protocol.StartDisplayLog {
		fmt.Fprintln(a.out, first)
		return nil
	}

	r := transfer.NewReceiver(a.br, a.conn)
	text, err := r.ReadDisplayLog()
	if err != nil {
		return fmt.Errorf("log stream failed: %w", err)
	}
	fmt.Fprint(a.out, text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(a.out)
	}
	return nil
}

// receiveExport runs the file transfer loop until the end-of-transfer
// sentinel, writing each received log under the export directory. The file
// extension is taken from the format the user asked for.
func (a *App) receiveExport(command string) error {
	ext := "xml"
	for _, f := range strings.Fields(command)[1:] {
		switch strings.ToLower(f) {
		case "xml", "csv", "txt":
			ext = strings.ToLower(f)
		}
	}

	if _, err := filex.EnsureDir(a.config.ExportDir); err != nil {
		return fmt.Errorf("export dir: %w", err)
	}

	r := transfer.NewReceiver(a.br, a.conn)
	date := time.Now().Format("2006-01-02")

	for {
		f, done, err := r.Next()
		if err != nil {
			var remote *transfer.RemoteError
			if errors.As(err, &remote) {
				fmt.Fprintln(a.out, remote.Line)
				continue
			}
			return fmt.Errorf("transfer failed: %w", err)
		}
		if done {
			return nil
		}

		name := fmt.Sprintf("%s_log_%s.%s", strings.ToLower(f.Kind), date, ext)
		path := filepath.Join(a.config.ExportDir, name)
		if err := filex.WriteFileAtomic(path, f.Payload); err != nil {
			return fmt.Errorf("save %s: %w", name, err)
		}
		fmt.Fprintf(a.out, "Ricevuto log %s (%d byte) -> %s\n",
			strings.ToLower(f.Kind), len(f.Payload), path)
	}
}

// printLocalInfo renders the client-side network details the server asks us
// to display for INFO 4.
func (a *App) printLocalInfo() {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	local, remote := "N/A", "N/A"
	if a.conn != nil {
		if addr := a.conn.LocalAddr(); addr != nil {
			local = addr.String()
		}
		if addr := a.conn.RemoteAddr(); addr != nil {
			remote = addr.String()
		}
	}
	ip := "N/A"
	if host, _, err := net.SplitHostPort(local); err == nil {
		ip = host
	}
	fmt.Fprintf(a.out,
		"CLIENT INFO:\n  Hostname: %s\n  IP Address: %s\n  Indirizzo locale: %s\n  Server: %s\n  Sistema: %s/%s\n",
		hostname, ip, local, remote, runtime.GOOS, runtime.GOARCH)
}
