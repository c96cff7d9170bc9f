// Package transfer implements the file-export exchange layered over the
// command stream. Each file is announced with a FILE_START header, gated on a
// READY acknowledgement and then streamed as exactly the announced number of
// raw bytes; the whole operation is closed by a single FINE_INVIO sentinel.
// Interactive log tailing instead wraps plain text between START_DISPLAY_LOG
// and FINE_INVIO.
package transfer

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
)

// File is one transferred log export. Payload is the rendered log content;
// it exists only for the duration of the operation and is never persisted by
// this package.
type File struct {
	Kind    string
	Payload []byte
}

// RemoteError is the single error line a sender emits instead of a
// FILE_START header, e.g. when the requested log date does not exist.
type RemoteError struct {
	Line string
}

func (e *RemoteError) Error() string {
	return e.Line
}

// readDeadliner is the subset of net.Conn used to bound the READY wait.
type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Sender streams files to the peer. The writer and reader must wrap the same
// connection. When the writer also implements SetReadDeadline, the wait for
// READY is bounded by readyTimeout so an unresponsive peer cannot stall the
// session forever.
type Sender struct {
	w            io.Writer
	br           *bufio.Reader
	dl           readDeadliner
	readyTimeout time.Duration
}

func NewSender(w io.Writer, br *bufio.Reader, readyTimeout time.Duration) *Sender {
	s := &Sender{w: w, br: br, readyTimeout: readyTimeout}
	if d, ok := w.(readDeadliner); ok {
		s.dl = d
	}
	return s
}

// SendFile announces one file, waits for READY and streams the payload.
func (s *Sender) SendFile(kind string, payload []byte) error {
	header := protocol.FileHeader(kind, len(payload))
	if _, err := fmt.Fprintln(s.w, header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if s.dl != nil && s.readyTimeout > 0 {
		s.dl.SetReadDeadline(time.Now().Add(s.readyTimeout))
		defer s.dl.SetReadDeadline(time.Time{})
	}

	ack, err := s.br.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read ack: %w", err)
	}
	if strings.TrimSpace(ack) != protocol.Ready {
		return fmt.Errorf("%w: got %q", common.ErrNotReady, strings.TrimSpace(ack))
	}

	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("write payload: %w", err)
	}
	return nil
}

// SendError emits the single error line used instead of a FILE_START header.
func (s *Sender) SendError(msg string) error {
	_, err := fmt.Fprintln(s.w, protocol.ErrorLinePrefix+" "+msg)
	return err
}

// Finish closes the whole operation with the end-of-transfer sentinel.
func (s *Sender) Finish() error {
	_, err := fmt.Fprintln(s.w, protocol.EndOfTransfer)
	return err
}

// SendDisplayLog streams text between the display sentinels. Used by the LOG
// command where the payload is shown interactively rather than saved.
func (s *Sender) SendDisplayLog(text string) error {
	if _, err := fmt.Fprintln(s.w, protocol.StartDisplayLog); err != nil {
		return err
	}
	if _, err := io.WriteString(s.w, text); err != nil {
		return err
	}
	if !strings.HasSuffix(text, "\n") {
		if _, err := io.WriteString(s.w, "\n"); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(s.w, protocol.EndOfTransfer)
	return err
}

// Receiver consumes files from the peer.
type Receiver struct {
	br *bufio.Reader
	w  io.Writer
}

func NewReceiver(br *bufio.Reader, w io.Writer) *Receiver {
	return &Receiver{br: br, w: w}
}

// Next reads the next transfer event. It returns done=true on the
// end-of-transfer sentinel, a *RemoteError when the sender reported a
// missing log, and a File after a complete header/READY/payload cycle.
// A payload cut short by a closed connection yields ErrTruncatedTransfer;
// a partial file is never reported as a success.
func (r *Receiver) Next() (f *File, done bool, err error) {
	line, err := r.br.ReadString('\n')
	if err != nil {
		return nil, false, fmt.Errorf("read header: %w", err)
	}
	trimmed := strings.TrimSpace(line)

	if trimmed == protocol.EndOfTransfer {
		return nil, true, nil
	}
	if protocol.IsErrorLine(trimmed) {
		return nil, false, &RemoteError{Line: trimmed}
	}

	kind, size, ok := protocol.ParseFileHeader(trimmed)
	if !ok {
		return nil, false, fmt.Errorf("unexpected transfer line %q", trimmed)
	}

	if _, err := fmt.Fprintln(r.w, protocol.Ready); err != nil {
		return nil, false, fmt.Errorf("write ack: %w", err)
	}

	payload := make([]byte, size)
	if _, err := io.ReadFull(r.br, payload); err != nil {
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return nil, false, fmt.Errorf("%w: %s after partial payload", common.ErrTruncatedTransfer, kind)
		}
		return nil, false, fmt.Errorf("read payload: %w", err)
	}

	return &File{Kind: kind, Payload: payload}, false, nil
}

// ReadDisplayLog accumulates streamed text until the end-of-transfer
// sentinel. The sentinel may arrive in the same read as payload text or split
// across reads, so the whole accumulated buffer is rescanned each time.
func (r *Receiver) ReadDisplayLog() (string, error) {
	var b strings.Builder
	chunk := make([]byte, 1024)
	for {
		if idx := strings.Index(b.String(), protocol.EndOfTransfer); idx >= 0 {
			r.drainBufferedNewlines()
			return strings.TrimRight(b.String()[:idx], "\r\n"), nil
		}
		n, err := r.br.Read(chunk)
		if n > 0 {
			b.Write(chunk[:n])
			continue
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return "", fmt.Errorf("%w: display log unterminated", common.ErrTruncatedTransfer)
			}
			return "", err
		}
	}
}

// drainBufferedNewlines discards line terminators already buffered after the
// sentinel so the next command reply starts clean. It never blocks.
func (r *Receiver) drainBufferedNewlines() {
	for r.br.Buffered() > 0 {
		b, err := r.br.Peek(1)
		if err != nil || (b[0] != '\n' && b[0] != '\r') {
			return
		}
		r.br.Discard(1)
	}
}
