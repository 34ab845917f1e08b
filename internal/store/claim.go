// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// claim is the compare-and-set mutual-exclusion primitive shared by the
// inbound and outbound worker pools (§4.1): it sets locked_at = now only if
// the row is unlocked or its lock is older than lockCutoff. table is always
// one of our own constant table names, never caller input.
func claim(ctx context.Context, db *sql.DB, table string, rowID int64, now, lockCutoff time.Time) (bool, error) {
	q := fmt.Sprintf(`UPDATE %s SET locked_at = ? WHERE id = ? AND (locked_at IS NULL OR locked_at < ?)`, table)
	res, err := db.ExecContext(ctx, q, now, rowID, lockCutoff)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}
