// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package multiplexer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewShimDirWritesExecutableWrapper(t *testing.T) {
	dir := t.TempDir()
	shim, err := newShimDir(dir, "/usr/bin/git")
	require.NoError(t, err)

	info, err := os.Stat(filepath.Join(dir, "git"))
	require.NoError(t, err)
	require.NotZero(t, info.Mode()&0111, "shim must be executable")

	contents, err := os.ReadFile(filepath.Join(dir, "git"))
	require.NoError(t, err)
	require.Contains(t, string(contents), "/usr/bin/git")
	require.Contains(t, string(contents), "forbidden")

	require.Contains(t, shim.PathPrefix("/usr/bin"), dir)
}
