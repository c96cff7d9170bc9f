package session

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/protocol"
	"github.com/dmitrijs2005/aurachat/internal/server/audit"
	"github.com/dmitrijs2005/aurachat/internal/transfer"
)

const dateLayout = "2006-01-02"

func (e *Engine) sender() *transfer.Sender {
	return transfer.NewSender(e.conn, e.br, e.deps.ReadyTimeout)
}

// handleLog serves the LOG command: the caller's own audit log for one day,
// rendered as text and streamed between the display sentinels.
func (e *Engine) handleLog(ctx context.Context, fields []string) {
	s := e.sender()

	date := time.Now().Format(dateLayout)
	if len(fields) > 1 {
		if _, err := time.Parse(dateLayout, fields[1]); err != nil {
			s.SendError("Formato data non valido. Usare YYYY-MM-DD")
			return
		}
		date = fields[1]
	}

	path := e.deps.Audit.ClientLogPath(e.username, date)
	if !e.deps.Audit.Exists(path) {
		s.SendError("Nessun log trovato per la data " + date)
		return
	}

	text, err := e.deps.Audit.Render(path, audit.FormatTXT, 0)
	if err != nil {
		e.logger.Error(ctx, "log render failed", "path", path, "error", err)
		s.SendError("Errore durante la lettura del log")
		return
	}

	if err := s.SendDisplayLog(string(text)); err != nil {
		e.logger.Warn(ctx, "display log stream failed", "error", err)
		return
	}
	e.clientLog.Append(audit.LevelInfo, "LOG_SENT",
		fmt.Sprintf("log for %s displayed", date))
}

// handleExport serves the EX command. Arguments are recognized by shape
// rather than position: a format name, a digit count and a target may appear
// in any order. Every exchange ends with the end-of-transfer sentinel so the
// peer always knows the operation is over.
func (e *Engine) handleExport(ctx context.Context, fields []string) {
	s := e.sender()

	format := audit.FormatXML
	lastN := 0
	wantClient, wantServer := true, true

	for _, f := range fields[1:] {
		switch strings.ToLower(f) {
		case audit.FormatXML, audit.FormatCSV, audit.FormatTXT:
			format = strings.ToLower(f)
		case "client":
			wantClient, wantServer = true, false
		case "server":
			wantClient, wantServer = false, true
		case "both":
			wantClient, wantServer = true, true
		default:
			if n, ok := parseCount(f); ok {
				lastN = n
				continue
			}
			s.SendError("Parametro non valido: " + f +
				". Uso: EX [xml|csv|txt] [n] [client|server|both]")
			s.Finish()
			return
		}
	}

	date := time.Now().Format(dateLayout)
	sent := 0

	if wantClient {
		sent += e.exportOne(ctx, s, protocol.KindClient,
			e.deps.Audit.ClientLogPath(e.username, date), format, lastN)
	}
	if wantServer {
		sent += e.exportOne(ctx, s, protocol.KindServer,
			e.deps.Audit.ServerLogPath(date), format, lastN)
	}

	if sent == 0 {
		s.SendError("Nessun log disponibile per l'esportazione")
	}
	if err := s.Finish(); err != nil {
		e.logger.Warn(ctx, "export finish failed", "error", err)
		return
	}
	e.clientLog.Append(audit.LevelInfo, "EXPORT",
		fmt.Sprintf("export completed: format=%s files=%d", format, sent))
}

// exportOne renders one log file and streams it, reporting a skipped or
// failed file as an in-band error line. Returns 1 when a file was sent.
func (e *Engine) exportOne(ctx context.Context, s *transfer.Sender, kind, path, format string, lastN int) int {
	if !e.deps.Audit.Exists(path) {
		s.SendError("Log " + strings.ToLower(kind) + " non trovato")
		return 0
	}
	payload, err := e.deps.Audit.Render(path, format, lastN)
	if err != nil {
		e.logger.Error(ctx, "export render failed", "path", path, "error", err)
		s.SendError("Errore durante l'esportazione del log " + strings.ToLower(kind))
		return 0
	}
	if err := s.SendFile(kind, payload); err != nil {
		e.logger.Warn(ctx, "file transfer failed", "kind", kind, "error", err)
		return 0
	}
	return 1
}

func parseCount(f string) (int, bool) {
	n := 0
	for _, r := range f {
		if r < '0' || r > '9' {
			return 0, false
		}
		n = n*10 + int(r-'0')
	}
	if len(f) == 0 {
		return 0, false
	}
	return n, true
}
