// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"errors"

	"github.com/teleclaude/teleclaude/internal/model"
)

const (
	headerCallerSessionID    = "Caller-Session-Id"
	headerMultiplexerSession = "Multiplexer-Session"
)

// SessionLookup resolves a session record by id. Implemented by
// internal/session.Registry.
type SessionLookup interface {
	Get(ctx context.Context, id string) (*model.Session, error)
}

// authError distinguishes "no such identity" (401) from "identity verified,
// access denied" (403) — a distinction §4.6 draws but the shared errs.Kind
// taxonomy does not, since every other caller of errs.Identity treats it
// uniformly as "never retried, always surfaced".
type authError struct {
	unauthorized bool
	msg          string
}

func (e *authError) Error() string { return e.msg }

func errUnauthorized(msg string) error { return &authError{unauthorized: true, msg: msg} }
func errForbidden(msg string) error    { return &authError{msg: msg} }

// isUnauthorized reports whether err is an authError calling for 401 rather
// than 403.
func isUnauthorized(err error) bool {
	var a *authError
	if errors.As(err, &a) {
		return a.unauthorized
	}
	return false
}

// authenticate runs the §4.6 verification algorithm: look up the claimed
// session, cross-check its stored multiplexer session name against the
// Multiplexer-Session header when present. Missing or unknown identity is
// errUnauthorized (401); a present-but-mismatched Multiplexer-Session is
// errForbidden (403).
//
// Absence of Multiplexer-Session (direct non-agent callers: local UI,
// tests) skips the cross-check but still requires a valid
// Caller-Session-Id, so role enforcement has an identity to check against.
func authenticate(ctx context.Context, sessions SessionLookup, callerSessionID, multiplexerSession string) (*model.Session, error) {
	if callerSessionID == "" {
		return nil, errUnauthorized("missing " + headerCallerSessionID)
	}

	sess, err := sessions.Get(ctx, callerSessionID)
	if err != nil {
		return nil, err
	}
	if sess == nil {
		return nil, errUnauthorized("unknown session: " + callerSessionID)
	}

	if multiplexerSession != "" && multiplexerSession != sess.MultiplexerSession {
		return nil, errForbidden("multiplexer session mismatch for " + callerSessionID)
	}

	return sess, nil
}
