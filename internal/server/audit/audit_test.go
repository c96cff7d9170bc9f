package audit

import (
	"encoding/xml"
	"io"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
	m, err := NewManager(t.TempDir(), logger)
	require.NoError(t, err)
	m.nowFn = func() time.Time {
		return time.Date(2025, 3, 14, 10, 30, 0, 0, time.UTC)
	}
	return m
}

func loadDoc(t *testing.T, path string) *Log {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	doc := &Log{}
	require.NoError(t, xml.Unmarshal(data, doc))
	return doc
}

func TestServerLog_CreateAndAppend(t *testing.T) {
	m := newTestManager(t)

	store, err := m.OpenServerLog()
	require.NoError(t, err)
	assert.Contains(t, store.Path(), "server_2025-03-14.xml")

	require.NoError(t, store.Append(LevelInfo, "SERVER_START", "server started"))
	require.NoError(t, store.Append(LevelWarning, "AUTH", "login failed for bob"))

	doc := loadDoc(t, store.Path())
	require.Len(t, doc.Sessions, 1)
	require.Len(t, doc.Sessions[0].Entries, 2)
	assert.Equal(t, "SERVER_START", doc.Sessions[0].Entries[0].Type)
	assert.Equal(t, "login failed for bob", doc.Sessions[0].Entries[1].Message)
	assert.Equal(t, "10:30:00", doc.Sessions[0].Entries[0].Timestamp)

	// reopening the same day appends to the same file, same session
	store2, err := m.OpenServerLog()
	require.NoError(t, err)
	require.NoError(t, store2.Append(LevelInfo, "CONNECTION", "peer connected"))

	doc = loadDoc(t, store.Path())
	require.Len(t, doc.Sessions, 1)
	assert.Len(t, doc.Sessions[0].Entries, 3)
}

func TestClientLog_NewSessionPerLogin(t *testing.T) {
	m := newTestManager(t)

	s1, err := m.OpenClientLog("alice", "127.0.0.1:5000")
	require.NoError(t, err)
	require.NoError(t, s1.Append(LevelInfo, "AUTH", "login"))

	s2, err := m.OpenClientLog("alice", "127.0.0.1:5001")
	require.NoError(t, err)
	require.NoError(t, s2.Append(LevelInfo, "AUTH", "login again"))

	doc := loadDoc(t, s1.Path())
	assert.Equal(t, "alice", doc.ClientUsername)
	require.Len(t, doc.Sessions, 2)
	assert.Len(t, doc.Sessions[0].Entries, 1)
	assert.Len(t, doc.Sessions[1].Entries, 1)
	assert.NotEmpty(t, doc.Sessions[1].LoginTime)
}

func TestStore_SetEndTime(t *testing.T) {
	m := newTestManager(t)
	store, err := m.OpenServerLog()
	require.NoError(t, err)

	require.NoError(t, store.SetEndTime())
	doc := loadDoc(t, store.Path())
	assert.Equal(t, "2025-03-14 10:30:00", doc.Sessions[0].EndTime)
}

func seedEntries(t *testing.T, m *Manager, n int) *Store {
	t.Helper()
	store, err := m.OpenServerLog()
	require.NoError(t, err)
	for i := 0; i < n; i++ {
		require.NoError(t, store.Append(LevelInfo, "REQUEST", "entry "+string(rune('a'+i))))
	}
	return store
}

func TestRender_XML_TailKeepsNewest(t *testing.T) {
	m := newTestManager(t)
	store := seedEntries(t, m, 5)

	out, err := m.Render(store.Path(), FormatXML, 2)
	require.NoError(t, err)

	doc := &Log{}
	require.NoError(t, xml.Unmarshal(out, doc))
	require.Len(t, doc.Sessions, 1)
	require.Len(t, doc.Sessions[0].Entries, 2)
	assert.Equal(t, "entry d", doc.Sessions[0].Entries[0].Message)
	assert.Equal(t, "entry e", doc.Sessions[0].Entries[1].Message)
}

func TestRender_XML_ZeroMeansAll(t *testing.T) {
	m := newTestManager(t)
	store := seedEntries(t, m, 3)

	out, err := m.Render(store.Path(), FormatXML, 0)
	require.NoError(t, err)

	doc := &Log{}
	require.NoError(t, xml.Unmarshal(out, doc))
	assert.Len(t, doc.Sessions[0].Entries, 3)
}

func TestRender_CSV(t *testing.T) {
	m := newTestManager(t)
	store, err := m.OpenServerLog()
	require.NoError(t, err)
	require.NoError(t, store.Append(LevelInfo, "REQUEST", "plain message"))
	require.NoError(t, store.Append(LevelWarning, "REQUEST", `has, comma and "quote"`))

	out, err := m.Render(store.Path(), FormatCSV, 0)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(out)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "timestamp,level,type,message", lines[0])
	assert.Equal(t, "10:30:00,INFO,REQUEST,plain message", lines[1])
	assert.Equal(t, `10:30:00,WARNING,REQUEST,"has, comma and ""quote"""`, lines[2])
}

func TestRender_TXT(t *testing.T) {
	m := newTestManager(t)
	store, err := m.OpenClientLog("alice", "127.0.0.1:5000")
	require.NoError(t, err)
	require.NoError(t, store.Append(LevelInfo, "AUTH", "login"))

	out, err := m.Render(store.Path(), FormatTXT, 0)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "Sessione iniziata: 2025-03-14 10:30:00, Login: 2025-03-14 10:30:00")
	assert.Contains(t, text, "[10:30:00] [INFO] [AUTH] login")
}

func TestRender_UnknownFormat(t *testing.T) {
	m := newTestManager(t)
	store, err := m.OpenServerLog()
	require.NoError(t, err)

	_, err = m.Render(store.Path(), "pdf", 0)
	assert.Error(t, err)
}

func TestRender_MissingFile(t *testing.T) {
	m := newTestManager(t)
	_, err := m.Render(m.ServerLogPath("1999-01-01"), FormatXML, 0)
	assert.Error(t, err)
}
