// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package control

import (
	"context"
	"net/http"

	"github.com/teleclaude/teleclaude/internal/model"
)

type contextKey int

const sessionContextKey contextKey = iota

// sessionFromContext returns the caller's verified session, attached by the
// identity gate ahead of every handler.
func sessionFromContext(r *http.Request) *model.Session {
	sess, _ := r.Context().Value(sessionContextKey).(*model.Session)
	return sess
}

func withSession(r *http.Request, sess *model.Session) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), sessionContextKey, sess))
}
