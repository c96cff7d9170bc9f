package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameRoundTrip(t *testing.T) {
	line := Frame(AuthRequest, "Hai già un account? (SI/NO):")
	prefix, text := ParseFrame(line + "\n")
	assert.Equal(t, AuthRequest, prefix)
	assert.Equal(t, "Hai già un account? (SI/NO):", text)
}

func TestParseFrame_NoPipe(t *testing.T) {
	prefix, text := ParseFrame("READY\r\n")
	assert.Equal(t, "READY", prefix)
	assert.Equal(t, "", text)
}

func TestParseFileHeader(t *testing.T) {
	tests := []struct {
		name     string
		line     string
		wantKind string
		wantSize int
		wantOK   bool
	}{
		{"client header", "FILE_START:CLIENT:1234", KindClient, 1234, true},
		{"server header with newline", "FILE_START:SERVER:0\n", KindServer, 0, true},
		{"unknown kind", "FILE_START:OTHER:10", "", 0, false},
		{"negative size", "FILE_START:CLIENT:-1", "", 0, false},
		{"not a header", "Ora corrente: 10:00:00", "", 0, false},
		{"missing size", "FILE_START:CLIENT", "", 0, false},
		{"garbage size", "FILE_START:CLIENT:abc", "", 0, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			kind, size, ok := ParseFileHeader(tc.line)
			assert.Equal(t, tc.wantOK, ok)
			if ok {
				assert.Equal(t, tc.wantKind, kind)
				assert.Equal(t, tc.wantSize, size)
			}
		})
	}
}

func TestFileHeaderRoundTrip(t *testing.T) {
	kind, size, ok := ParseFileHeader(FileHeader(KindServer, 99))
	assert.True(t, ok)
	assert.Equal(t, KindServer, kind)
	assert.Equal(t, 99, size)
}

func TestParseDiscoveryResponse(t *testing.T) {
	tests := []struct {
		name   string
		msg    string
		wantOK bool
	}{
		{"valid", "FOUND|AURACHAT|myhost|12345", true},
		{"wrong token", "FOUND|OTHER|myhost|12345", false},
		{"too few fields", "FOUND|AURACHAT|myhost", false},
		{"too many fields", "FOUND|AURACHAT|myhost|12345|extra", false},
		{"bad port", "FOUND|AURACHAT|myhost|abc", false},
		{"port out of range", "FOUND|AURACHAT|myhost|70000", false},
		{"not a reply", "DISCOVER|AURACHAT", false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			host, port, ok := ParseDiscoveryResponse(tc.msg, "AURACHAT")
			assert.Equal(t, tc.wantOK, ok)
			if ok {
				assert.Equal(t, "myhost", host)
				assert.Equal(t, 12345, port)
			}
		})
	}
}

func TestDiscoveryRequest(t *testing.T) {
	assert.Equal(t, "DISCOVER|AURACHAT", DiscoveryRequest("AURACHAT"))
}

func TestIsErrorLine(t *testing.T) {
	assert.True(t, IsErrorLine("ERRORE: no log for date 2025-01-01\n"))
	assert.False(t, IsErrorLine("FILE_START:CLIENT:10"))
}
