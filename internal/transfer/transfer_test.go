package transfer

import (
	"bufio"
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePair wires a Sender and Receiver over an in-memory connection.
func pipePair(t *testing.T) (*Sender, *Receiver, func()) {
	t.Helper()
	server, client := net.Pipe()
	s := NewSender(server, bufio.NewReader(server), time.Second)
	r := NewReceiver(bufio.NewReader(client), client)
	return s, r, func() {
		server.Close()
		client.Close()
	}
}

func TestTransfer_SingleFile_ByteExact(t *testing.T) {
	s, r, closeAll := pipePair(t)
	defer closeAll()

	payload := []byte("<log>payload with\nnewlines and FINE_INV inside</log>")

	errCh := make(chan error, 1)
	go func() {
		if err := s.SendFile(protocol.KindServer, payload); err != nil {
			errCh <- err
			return
		}
		errCh <- s.Finish()
	}()

	f, done, err := r.Next()
	require.NoError(t, err)
	require.False(t, done)
	assert.Equal(t, protocol.KindServer, f.Kind)
	assert.Equal(t, payload, f.Payload)

	f, done, err = r.Next()
	require.NoError(t, err)
	assert.True(t, done)
	assert.Nil(t, f)

	require.NoError(t, <-errCh)
}

func TestTransfer_MultiFile_CyclesThenSentinel(t *testing.T) {
	s, r, closeAll := pipePair(t)
	defer closeAll()

	files := []File{
		{Kind: protocol.KindClient, Payload: []byte("client log")},
		{Kind: protocol.KindServer, Payload: []byte("server log, longer than the first one")},
		{Kind: protocol.KindServer, Payload: []byte{}},
	}

	go func() {
		for _, f := range files {
			if err := s.SendFile(f.Kind, f.Payload); err != nil {
				return
			}
		}
		s.Finish()
	}()

	var got []File
	for {
		f, done, err := r.Next()
		require.NoError(t, err)
		if done {
			break
		}
		got = append(got, *f)
	}
	require.Len(t, got, len(files))
	for i := range files {
		assert.Equal(t, files[i].Kind, got[i].Kind)
		assert.Equal(t, string(files[i].Payload), string(got[i].Payload))
	}
}

func TestTransfer_Truncation_Detected(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	r := NewReceiver(bufio.NewReader(client), client)

	go func() {
		br := bufio.NewReader(server)
		// announce 100 bytes but deliver only 10, then drop the connection
		io.WriteString(server, protocol.FileHeader(protocol.KindClient, 100)+"\n")
		br.ReadString('\n') // consume READY
		server.Write([]byte("only 10 b!"))
		server.Close()
	}()

	_, _, err := r.Next()
	assert.ErrorIs(t, err, common.ErrTruncatedTransfer)
}

func TestTransfer_RemoteErrorLine(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	r := NewReceiver(bufio.NewReader(client), client)

	go func() {
		s := NewSender(server, bufio.NewReader(server), time.Second)
		s.SendError("no log for date 2025-01-01")
	}()

	_, _, err := r.Next()
	var remote *RemoteError
	require.True(t, errors.As(err, &remote))
	assert.Contains(t, remote.Line, "no log for date")
}

func TestSender_NotReady(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	s := NewSender(server, bufio.NewReader(server), time.Second)

	go func() {
		br := bufio.NewReader(client)
		br.ReadString('\n')
		io.WriteString(client, "NOPE\n")
	}()

	err := s.SendFile(protocol.KindServer, []byte("x"))
	assert.ErrorIs(t, err, common.ErrNotReady)
}

func TestDisplayLog_SentinelSharedWithPayload(t *testing.T) {
	server, client := net.Pipe()
	defer server.Close()
	defer client.Close()

	r := NewReceiver(bufio.NewReader(client), client)

	go func() {
		// text and closing sentinel written in one burst: the receiver must
		// find the sentinel by substring scan, not one-sentinel-per-read
		io.WriteString(server, protocol.StartDisplayLog+"\n")
		io.WriteString(server, "line one\nline two\n"+protocol.EndOfTransfer+"\n")
	}()

	br := r.br
	line, err := br.ReadString('\n')
	require.NoError(t, err)
	assert.Equal(t, protocol.StartDisplayLog+"\n", line)

	text, err := r.ReadDisplayLog()
	require.NoError(t, err)
	assert.Equal(t, "line one\nline two", text)
}

func TestDisplayLog_Unterminated(t *testing.T) {
	server, client := net.Pipe()
	defer client.Close()

	r := NewReceiver(bufio.NewReader(client), client)

	go func() {
		io.WriteString(server, "some text without a closing sentinel")
		server.Close()
	}()

	_, err := r.ReadDisplayLog()
	assert.ErrorIs(t, err, common.ErrTruncatedTransfer)
}
