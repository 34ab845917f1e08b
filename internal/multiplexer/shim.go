// Copyright © 2026 Groups.io, Inc.
// SPDX-License-Identifier: Apache-2.0

package multiplexer

import (
	"fmt"
	"os"
	"path/filepath"
)

// gitShimTemplate rejects destructive version-control invocations at the
// shell, below the agent's reasoning (§4.7). Anything else is forwarded to
// the real git binary.
const gitShimTemplate = `#!/bin/sh
# Generated by teleclaude — forbidden-command shell wrapper. Do not edit.
real_git="%s"

for arg in "$@"; do
  case "$arg" in
    --hard) is_hard=1 ;;
    clean) is_clean=1 ;;
  esac
done

case "$1" in
  reset)
    if [ -n "$is_hard" ]; then
      echo "teleclaude: 'git reset --hard' is forbidden in multiplexer sessions" >&2
      exit 1
    fi
    ;;
  checkout)
    shift
    for arg in "$@"; do
      case "$arg" in
        --) echo "teleclaude: 'git checkout --' is forbidden in multiplexer sessions" >&2; exit 1 ;;
      esac
    done
    ;;
  stash)
    echo "teleclaude: 'git stash' is forbidden in multiplexer sessions" >&2
    exit 1
    ;;
  clean)
    echo "teleclaude: 'git clean' is forbidden in multiplexer sessions" >&2
    exit 1
    ;;
esac

exec "$real_git" "$@"
`

// shimDir is the directory containing the generated wrapper scripts,
// prepended to PATH for every multiplexer session so the wrappers shadow
// the real binaries.
type shimDir struct {
	path string
}

// newShimDir writes the forbidden-command wrappers into dir (created if
// absent) and returns their location. realGit is the resolved path to the
// real git binary the wrapper ultimately execs.
func newShimDir(dir, realGit string) (*shimDir, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create shim dir: %w", err)
	}
	if realGit == "" {
		realGit = "/usr/bin/git"
	}
	script := fmt.Sprintf(gitShimTemplate, realGit)
	path := filepath.Join(dir, "git")
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		return nil, fmt.Errorf("write git shim: %w", err)
	}
	return &shimDir{path: dir}, nil
}

// PathPrefix returns the PATH value with the shim directory placed first.
func (d *shimDir) PathPrefix(existingPath string) string {
	return d.path + string(os.PathListSeparator) + existingPath
}
