package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/dmitrijs2005/aurachat/internal/common"
	"github.com/dmitrijs2005/aurachat/internal/protocol"
	"github.com/dmitrijs2005/aurachat/internal/server/audit"
	"github.com/dmitrijs2005/aurachat/internal/server/users"
)

const maxLoginAttempts = 3

// authenticate drives the handshake: the SI/NO choice, then either login or
// registration. On success the identity is claimed in the registry and the
// per-session audit stream is opened. Any unexpected disconnect or internal
// failure is treated as a failed authentication.
func (e *Engine) authenticate(ctx context.Context) bool {
	if err := e.sendFrame(protocol.AuthRequest, "Hai già un account? (SI/NO):"); err != nil {
		return false
	}

	choice, err := e.readLine(ctx)
	if err != nil {
		e.deps.ServerLog.Append(audit.LevelError, "AUTH_ERROR",
			fmt.Sprintf("handshake aborted by %s: %v", e.peer, err))
		return false
	}

	switch strings.ToUpper(choice) {
	case "SI":
		return e.login(ctx)
	case "NO":
		return e.register(ctx)
	default:
		e.sendFrame(protocol.AuthFail, "Risposta non valida")
		return false
	}
}

// login grants up to three attempts. A correct credential pair for an
// identity that is already connected is refused outright: the existing
// session is never evicted.
func (e *Engine) login(ctx context.Context) bool {
	for attempt := 1; attempt <= maxLoginAttempts; attempt++ {
		if err := e.sendFrame(protocol.AuthUsername, "Username:"); err != nil {
			return false
		}
		username, err := e.readLine(ctx)
		if err != nil {
			e.deps.ServerLog.Append(audit.LevelError, "AUTH_ERROR",
				fmt.Sprintf("login aborted by %s: %v", e.peer, err))
			return false
		}

		if err := e.sendFrame(protocol.AuthPassword, "Password:"); err != nil {
			return false
		}
		password, err := e.readLine(ctx)
		if err != nil {
			e.deps.ServerLog.Append(audit.LevelError, "AUTH_ERROR",
				fmt.Sprintf("login aborted by %s: %v", e.peer, err))
			return false
		}

		ok, err := e.deps.Users.VerifyCredentials(ctx, username, []byte(password))
		if err != nil {
			// store fault surfaces as a failed login, never as a crash
			e.logger.Error(ctx, "credential store failure", "error", err)
			e.sendFrame(protocol.AuthFail, "Errore interno, riprovare più tardi")
			return false
		}

		if ok {
			if err := e.claimIdentity(username); err != nil {
				e.sendFrame(protocol.AuthFail, "Utente già connesso da un altro client!")
				e.deps.ServerLog.Append(audit.LevelWarning, "AUTH",
					fmt.Sprintf("login refused for %s: %v", username, err))
				return false
			}
			if err := e.finishAuth(ctx, username, protocol.AuthSuccess); err != nil {
				e.deps.Registry.Remove(username)
				return false
			}
			if err := e.deps.Users.TouchLastAccess(ctx, username); err != nil {
				e.logger.Warn(ctx, "last access update failed", "error", err)
			}
			e.deps.ServerLog.Append(audit.LevelInfo, "AUTH",
				fmt.Sprintf("login by %s", username))
			e.clientLog.Append(audit.LevelInfo, "AUTH",
				fmt.Sprintf("login from %s", e.peer))
			return true
		}

		remaining := maxLoginAttempts - attempt
		if remaining > 0 {
			e.sendFrame(protocol.AuthRetry,
				fmt.Sprintf("Credenziali errate! %d tentativi rimasti", remaining))
		} else {
			e.sendFrame(protocol.AuthFail, "Credenziali errate! Accesso negato")
		}
		e.deps.ServerLog.Append(audit.LevelWarning, "AUTH",
			fmt.Sprintf("failed login attempt for username: %s", username))
	}
	return false
}

// register loops on the username until it is long enough and free; the
// password is asked exactly once and a short one terminates the handshake.
func (e *Engine) register(ctx context.Context) bool {
	var username string
	for {
		if err := e.sendFrame(protocol.RegUsername,
			"Scegli un username (univoco, lunghezza min. 3):"); err != nil {
			return false
		}
		candidate, err := e.readLine(ctx)
		if err != nil {
			e.deps.ServerLog.Append(audit.LevelError, "AUTH_ERROR",
				fmt.Sprintf("registration aborted by %s: %v", e.peer, err))
			return false
		}

		if utf8.RuneCountInString(candidate) < users.MinUsernameLen {
			e.sendFrame(protocol.RegRetry, "Username troppo corto (minimo 3 caratteri)")
			continue
		}
		exists, err := e.deps.Users.Exists(ctx, candidate)
		if err != nil {
			e.logger.Error(ctx, "credential store failure", "error", err)
			e.sendFrame(protocol.RegFail, "Errore interno, riprovare più tardi")
			return false
		}
		if exists {
			e.sendFrame(protocol.RegRetry, "Username già esistente, scegline un altro")
			continue
		}
		username = candidate
		break
	}

	if err := e.sendFrame(protocol.RegPassword,
		"Scegli una password (lunghezza min. 4):"); err != nil {
		return false
	}
	password, err := e.readLine(ctx)
	if err != nil {
		e.deps.ServerLog.Append(audit.LevelError, "AUTH_ERROR",
			fmt.Sprintf("registration aborted by %s: %v", e.peer, err))
		return false
	}
	if utf8.RuneCountInString(password) < users.MinPasswordLen {
		e.sendFrame(protocol.RegFail, "Password troppo corta (minimo 4 caratteri)")
		return false
	}

	if _, err := e.deps.Users.Register(ctx, username, []byte(password), e.peer); err != nil {
		// a concurrent registration can still win the race despite the
		// earlier Exists check; both cases end the handshake the same way
		if !errors.Is(err, common.ErrorAlreadyExists) {
			e.logger.Error(ctx, "registration failure", "error", err)
		}
		e.sendFrame(protocol.RegFail, "Registrazione non riuscita")
		return false
	}

	if err := e.claimIdentity(username); err != nil {
		e.sendFrame(protocol.AuthFail, "Utente già connesso da un altro client!")
		return false
	}
	if err := e.finishAuth(ctx, username, protocol.RegSuccess); err != nil {
		e.deps.Registry.Remove(username)
		return false
	}

	e.deps.ServerLog.Append(audit.LevelInfo, "REGISTRATION",
		fmt.Sprintf("new user registered: %s", username))
	e.clientLog.Append(audit.LevelInfo, "REGISTRATION",
		fmt.Sprintf("account created from %s", e.peer))
	return true
}

// claimIdentity records the session in the registry. A second session for
// the same identity is refused with ErrAlreadyConnected; the existing one
// is never evicted.
func (e *Engine) claimIdentity(username string) error {
	if !e.deps.Registry.TryInsert(username, e.conn, e.peer) {
		return common.ErrAlreadyConnected
	}
	return nil
}

// finishAuth opens the per-session audit stream and sends the success frame.
func (e *Engine) finishAuth(ctx context.Context, username, successPrefix string) error {
	clientLog, err := e.deps.Audit.OpenClientLog(username, e.peer)
	if err != nil {
		e.logger.Error(ctx, "client log open failed", "error", err)
		e.sendFrame(protocol.AuthFail, "Errore interno, riprovare più tardi")
		return err
	}
	e.username = username
	e.clientLog = clientLog
	e.logger = e.logger.With("user", username)
	return e.sendFrame(successPrefix, fmt.Sprintf("Benvenuto %s!", username))
}
