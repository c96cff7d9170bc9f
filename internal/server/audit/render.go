package audit

import (
	"encoding/xml"
	"fmt"
	"strings"
)

// Export formats accepted by the EX command.
const (
	FormatXML = "xml"
	FormatCSV = "csv"
	FormatTXT = "txt"
)

// Render loads a stream file and renders it in the requested format,
// keeping only the newest lastN entries when lastN > 0.
func (m *Manager) Render(path, format string, lastN int) ([]byte, error) {
	m.mu.Lock()
	doc, err := m.loadLocked(path)
	m.mu.Unlock()
	if err != nil {
		return nil, err
	}

	tail(doc, lastN)

	switch format {
	case FormatXML:
		return renderXML(doc)
	case FormatCSV:
		return renderCSV(doc), nil
	case FormatTXT:
		return renderTXT(doc), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// tail trims doc in place so that only the newest n entries remain, dropping
// sessions emptied by the cut. n <= 0 keeps everything.
func tail(doc *Log, n int) {
	if n <= 0 {
		return
	}
	total := 0
	for _, s := range doc.Sessions {
		total += len(s.Entries)
	}
	drop := total - n
	if drop <= 0 {
		return
	}

	kept := make([]Session, 0, len(doc.Sessions))
	for _, s := range doc.Sessions {
		if drop >= len(s.Entries) {
			drop -= len(s.Entries)
			continue
		}
		s.Entries = s.Entries[drop:]
		drop = 0
		kept = append(kept, s)
	}
	if len(kept) == 0 && len(doc.Sessions) > 0 {
		// keep the final session shell so the document stays well-formed
		last := doc.Sessions[len(doc.Sessions)-1]
		last.Entries = nil
		kept = append(kept, last)
	}
	doc.Sessions = kept
}

func renderXML(doc *Log) ([]byte, error) {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), data...), nil
}

func renderCSV(doc *Log) []byte {
	var b strings.Builder
	b.WriteString("timestamp,level,type,message\n")
	for _, s := range doc.Sessions {
		for _, e := range s.Entries {
			msg := e.Message
			if strings.ContainsAny(msg, ",\"\n") {
				msg = `"` + strings.ReplaceAll(msg, `"`, `""`) + `"`
			}
			fmt.Fprintf(&b, "%s,%s,%s,%s\n", e.Timestamp, e.Level, e.Type, msg)
		}
	}
	return []byte(b.String())
}

func renderTXT(doc *Log) []byte {
	var b strings.Builder
	for _, s := range doc.Sessions {
		fmt.Fprintf(&b, "Sessione iniziata: %s", s.StartTime)
		if s.LoginTime != "" {
			fmt.Fprintf(&b, ", Login: %s", s.LoginTime)
		}
		b.WriteString("\n")
		b.WriteString(strings.Repeat("-", 50) + "\n")
		for _, e := range s.Entries {
			fmt.Fprintf(&b, "[%s] [%s] [%s] %s\n", e.Timestamp, e.Level, e.Type, e.Message)
		}
		b.WriteString("\n")
	}
	return []byte(b.String())
}
