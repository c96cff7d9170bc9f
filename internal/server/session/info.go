package session

import (
	"context"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"
	"strings"

	"github.com/dmitrijs2005/aurachat/internal/protocol"
)

const infoHelp = `Comando INFO - HELP
  Uso: INFO [type]
  Type disponibili:
    1 → Numero di client attualmente collegati
    2 → Numero di utenti presenti nel DB
    3 → Info rete del server
    4 → Info rete del client (solo client)
    5 → Lista utenti disponibili per chat
  Esempio: INFO 1`

// infoReply handles the INFO command and its numeric sub-dispatch. Every
// sub-case is a pure read of registry or credential-store state.
func (e *Engine) infoReply(ctx context.Context, fields []string) string {
	if len(fields) == 1 {
		return infoHelp
	}

	infoType, err := strconv.Atoi(fields[1])
	if err != nil {
		return "Errore: Specificare un type valido (1-5). Usa 'INFO' per vedere l'help."
	}

	switch infoType {
	case 1:
		return fmt.Sprintf("Client collegati: %d", e.deps.Registry.Count())

	case 2:
		n, err := e.deps.Users.Count(ctx)
		if err != nil {
			e.logger.Error(ctx, "user count failed", "error", err)
			return "Errore: conteggio utenti non disponibile"
		}
		return fmt.Sprintf("Utenti nel DB: %d", n)

	case 3:
		return e.serverInfo()

	case 4:
		// the peer computes its own local network info; nothing is
		// resolved server-side
		return protocol.ClientHandlesInfo4

	case 5:
		names, err := e.deps.Users.Usernames(ctx)
		if err != nil {
			e.logger.Error(ctx, "user listing failed", "error", err)
			return "Errore: lista utenti non disponibile"
		}
		if len(names) == 0 {
			return "Nessun utente disponibile per chat al momento."
		}
		var b strings.Builder
		b.WriteString("Utenti disponibili per chat:")
		for _, name := range names {
			// usernames end up inside XML log entries, keep them tag-free
			name = strings.ReplaceAll(name, "<", "[")
			name = strings.ReplaceAll(name, ">", "]")
			b.WriteString("\n  - " + name)
		}
		return b.String()

	default:
		return fmt.Sprintf("Errore: Type %d non valido. Usare un valore tra 1 e 5.", infoType)
	}
}

func (e *Engine) serverInfo() string {
	hostname, err := os.Hostname()
	if err != nil {
		hostname = "unknown"
	}
	ip := "N/A"
	if addrs, err := net.LookupHost(hostname); err == nil && len(addrs) > 0 {
		ip = addrs[0]
	}
	return fmt.Sprintf(
		"SERVER INFO:\n  Hostname: %s\n  IP Address: %s\n  Indirizzo: %s\n  Sistema: %s/%s",
		hostname, ip, e.conn.LocalAddr().String(), runtime.GOOS, runtime.GOARCH)
}
