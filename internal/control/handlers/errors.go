// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package handlers

import "errors"

// errNotFound is a sentinel used internally to short-circuit a handler
// after it has already written the 404 response.
var errNotFound = errors.New("not found")
