// Package audit implements the append-only XML event log: one file per
// logical stream (the server-wide log plus one per authenticated user and
// day), structured as log > session > entry. It also renders streams to CSV
// and plain text for the LOG and EX commands.
package audit

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/filex"
	"github.com/dmitrijs2005/aurachat/internal/logging"
)

// Entry levels.
const (
	LevelInfo    = "INFO"
	LevelWarning = "WARNING"
	LevelError   = "ERROR"
)

const (
	dateFormat    = "2006-01-02"
	timeFormat    = "15:04:05"
	sessionFormat = "2006-01-02 15:04:05"
)

// Log is the root element of one audit file.
type Log struct {
	XMLName        xml.Name  `xml:"log"`
	ServerName     string    `xml:"server_name,attr,omitempty"`
	ClientUsername string    `xml:"client_username,attr,omitempty"`
	ClientAddress  string    `xml:"client_address,attr,omitempty"`
	Date           string    `xml:"date,attr"`
	Sessions       []Session `xml:"session"`
}

// Session groups the entries of one server run or one client login.
type Session struct {
	StartTime string  `xml:"start_time,attr"`
	LoginTime string  `xml:"login_time,attr,omitempty"`
	EndTime   string  `xml:"end_time,attr,omitempty"`
	Entries   []Entry `xml:"entry"`
}

// Entry is one audited event.
type Entry struct {
	Timestamp string `xml:"timestamp,attr"`
	Level     string `xml:"level,attr"`
	Type      string `xml:"type,attr"`
	Message   string `xml:"message"`
}

// echoTypes are event types worth echoing to the process log as well.
var echoTypes = map[string]struct{}{
	"CONNECTION":    {},
	"DISCONNECTION": {},
	"AUTH":          {},
	"AUTH_FAILED":   {},
	"REGISTRATION":  {},
	"ERROR":         {},
	"SERVER_START":  {},
	"SERVER_STOP":   {},
}

// Manager owns the log directory. A single mutex serializes every
// read-modify-write across all files; contention is low and correctness is
// what matters here.
type Manager struct {
	dir    string
	mu     sync.Mutex
	logger logging.Logger

	// test seam
	nowFn func() time.Time
}

func NewManager(dir string, logger logging.Logger) (*Manager, error) {
	if _, err := filex.EnsureDir(dir); err != nil {
		return nil, err
	}
	return &Manager{
		dir:    dir,
		logger: logger.With("module", "audit"),
		nowFn:  time.Now,
	}, nil
}

// Dir returns the managed log directory.
func (m *Manager) Dir() string { return m.dir }

// ServerLogPath returns the server stream path for a date (YYYY-MM-DD).
func (m *Manager) ServerLogPath(date string) string {
	return filepath.Join(m.dir, fmt.Sprintf("server_%s.xml", date))
}

// ClientLogPath returns the per-user stream path for a date (YYYY-MM-DD).
func (m *Manager) ClientLogPath(username, date string) string {
	return filepath.Join(m.dir, fmt.Sprintf("client_%s_%s.xml", username, date))
}

// Exists reports whether a stream file is present on disk.
func (m *Manager) Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// OpenServerLog opens today's server stream, creating the file with an
// initial session when missing. When the file already exists entries keep
// accumulating in its last session.
func (m *Manager) OpenServerLog() (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	path := m.ServerLogPath(now.Format(dateFormat))

	if !m.Exists(path) {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		doc := &Log{
			ServerName: hostname,
			Date:       now.Format(dateFormat),
			Sessions:   []Session{{StartTime: now.Format(sessionFormat)}},
		}
		if err := m.writeLocked(path, doc); err != nil {
			return nil, err
		}
	}
	return &Store{m: m, path: path}, nil
}

// OpenClientLog opens today's stream for an authenticated user, creating the
// file on first login and appending a fresh session on each later one.
func (m *Manager) OpenClientLog(username, addr string) (*Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.nowFn()
	path := m.ClientLogPath(username, now.Format(dateFormat))
	stamp := now.Format(sessionFormat)

	if !m.Exists(path) {
		doc := &Log{
			ClientUsername: username,
			ClientAddress:  addr,
			Date:           now.Format(dateFormat),
			Sessions:       []Session{{StartTime: stamp, LoginTime: stamp}},
		}
		if err := m.writeLocked(path, doc); err != nil {
			return nil, err
		}
		return &Store{m: m, path: path}, nil
	}

	doc, err := m.loadLocked(path)
	if err != nil {
		return nil, err
	}
	doc.Sessions = append(doc.Sessions, Session{StartTime: stamp, LoginTime: stamp})
	if err := m.writeLocked(path, doc); err != nil {
		return nil, err
	}
	return &Store{m: m, path: path}, nil
}

func (m *Manager) loadLocked(path string) (*Log, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	doc := &Log{}
	if err := xml.Unmarshal(data, doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return doc, nil
}

func (m *Manager) writeLocked(path string, doc *Log) error {
	data, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	return filex.WriteFileAtomic(path, append([]byte(xml.Header), data...))
}

// Store is an append handle on one stream file.
type Store struct {
	m    *Manager
	path string
}

// Path returns the underlying file path.
func (s *Store) Path() string { return s.path }

// Append adds one entry to the last session of the stream. Notable event
// types are echoed to the structured process log as well.
func (s *Store) Append(level, typ, msg string) error {
	s.m.mu.Lock()
	err := s.appendLocked(level, typ, msg)
	s.m.mu.Unlock()

	if _, echo := echoTypes[typ]; echo {
		ctx := context.Background()
		switch level {
		case LevelError:
			s.m.logger.Error(ctx, msg, "type", typ)
		case LevelWarning:
			s.m.logger.Warn(ctx, msg, "type", typ)
		default:
			s.m.logger.Info(ctx, msg, "type", typ)
		}
	}
	return err
}

func (s *Store) appendLocked(level, typ, msg string) error {
	doc, err := s.m.loadLocked(s.path)
	if err != nil {
		return err
	}
	if len(doc.Sessions) == 0 {
		doc.Sessions = []Session{{StartTime: s.m.nowFn().Format(sessionFormat)}}
	}
	last := &doc.Sessions[len(doc.Sessions)-1]
	last.Entries = append(last.Entries, Entry{
		Timestamp: s.m.nowFn().Format(timeFormat),
		Level:     level,
		Type:      typ,
		Message:   msg,
	})
	return s.m.writeLocked(s.path, doc)
}

// SetEndTime stamps the last session as finished.
func (s *Store) SetEndTime() error {
	s.m.mu.Lock()
	defer s.m.mu.Unlock()

	doc, err := s.m.loadLocked(s.path)
	if err != nil {
		return err
	}
	if len(doc.Sessions) == 0 {
		return nil
	}
	doc.Sessions[len(doc.Sessions)-1].EndTime = s.m.nowFn().Format(sessionFormat)
	return s.m.writeLocked(s.path, doc)
}
