// Package protocol defines the AuraChat wire vocabulary: the pipe-delimited
// prompt frames used during authentication, the command table, the file
// transfer header, the in-band sentinels and the UDP discovery exchange.
//
// All text messages are UTF-8 and newline-terminated; only file payloads are
// length-prefixed raw bytes. Readers must tolerate a sentinel sharing a read
// with adjacent payload text.
package protocol

import (
	"fmt"
	"strconv"
	"strings"
)

// Authentication / registration frame prefixes (server → client). The text
// after the pipe is a human-readable prompt or status message.
const (
	AuthRequest  = "AUTH_REQUEST"
	AuthUsername = "AUTH_USERNAME"
	AuthPassword = "AUTH_PASSWORD"
	AuthRetry    = "AUTH_RETRY"
	AuthSuccess  = "AUTH_SUCCESS"
	AuthFail     = "AUTH_FAIL"
	RegUsername  = "REG_USERNAME"
	RegPassword  = "REG_PASSWORD"
	RegRetry     = "REG_RETRY"
	RegSuccess   = "REG_SUCCESS"
	RegFail      = "REG_FAIL"
)

// Commands accepted in the authenticated loop. Matching is done on the
// uppercased first token of the line.
const (
	CmdTime   = "TIME"
	CmdName   = "NAME"
	CmdInfo   = "INFO"
	CmdStats  = "STATS"
	CmdLog    = "LOG"
	CmdExport = "EX"
	CmdExit   = "EXIT"
)

// Transfer sub-protocol markers.
const (
	Ready              = "READY"
	EndOfTransfer      = "FINE_INVIO"
	StartDisplayLog    = "START_DISPLAY_LOG"
	ClientHandlesInfo4 = "CLIENT_HANDLE_INFO_4"
	ErrorLinePrefix    = "ERRORE:"
	fileHeaderPrefix   = "FILE_START:"
)

// File kinds carried in a FILE_START header.
const (
	KindClient = "CLIENT"
	KindServer = "SERVER"
)

// Discovery exchange.
const (
	discoverPrefix = "DISCOVER"
	foundPrefix    = "FOUND"
)

// Frame builds a "PREFIX|text" message.
func Frame(prefix, text string) string {
	return prefix + "|" + text
}

// ParseFrame splits a "PREFIX|text" message. When no pipe is present the
// whole line is returned as the prefix with empty text.
func ParseFrame(line string) (prefix, text string) {
	prefix, text, _ = strings.Cut(strings.TrimRight(line, "\r\n"), "|")
	return prefix, text
}

// FileHeader builds a "FILE_START:<KIND>:<size>" transfer header.
func FileHeader(kind string, size int) string {
	return fmt.Sprintf("%s%s:%d", fileHeaderPrefix, kind, size)
}

// ParseFileHeader parses a transfer header line. ok is false when the line is
// not a well-formed FILE_START header.
func ParseFileHeader(line string) (kind string, size int, ok bool) {
	line = strings.TrimRight(line, "\r\n")
	rest, found := strings.CutPrefix(line, fileHeaderPrefix)
	if !found {
		return "", 0, false
	}
	kind, sizeStr, found := strings.Cut(rest, ":")
	if !found {
		return "", 0, false
	}
	if kind != KindClient && kind != KindServer {
		return "", 0, false
	}
	size, err := strconv.Atoi(sizeStr)
	if err != nil || size < 0 {
		return "", 0, false
	}
	return kind, size, true
}

// IsErrorLine reports whether a reply line is the single-line error sent
// instead of a FILE_START header when a requested log does not exist.
func IsErrorLine(line string) bool {
	return strings.HasPrefix(strings.TrimRight(line, "\r\n"), ErrorLinePrefix)
}

// DiscoveryRequest builds the UDP probe for the given token.
func DiscoveryRequest(token string) string {
	return discoverPrefix + "|" + token
}

// DiscoveryResponse builds the reply to a matched probe.
func DiscoveryResponse(token, hostname string, tcpPort int) string {
	return fmt.Sprintf("%s|%s|%s|%d", foundPrefix, token, hostname, tcpPort)
}

// ParseDiscoveryResponse validates a discovery reply against the expected
// token. Replies with a wrong token, a wrong field count or a non-numeric
// port are rejected (ok=false) and must be ignored by the requester.
func ParseDiscoveryResponse(msg, token string) (hostname string, tcpPort int, ok bool) {
	fields := strings.Split(strings.TrimSpace(msg), "|")
	if len(fields) != 4 || fields[0] != foundPrefix || fields[1] != token {
		return "", 0, false
	}
	port, err := strconv.Atoi(fields[3])
	if err != nil || port <= 0 || port > 65535 {
		return "", 0, false
	}
	return fields[2], port, true
}
