// Package resolver translates a case-insensitive, 8.3-component DFS
// path into the host filesystem's actual case-sensitive spelling of it,
// one path component at a time.
//
// Grounded in fs.c's shorttolong(): strtok over '/'-separated
// components, FCB-matching each token against a directory listing of
// the host's current position, enforcing that every component but the
// last resolves to a directory.
package resolver

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/oerg866/ethersrv-866/internal/fcb"
)

// Resolve walks relPath (forward-slash separated, already lower-cased by
// the caller) component by component under root, matching each token
// against the host directory listing via its FCB encoding.
//
// On full success it returns the host path with every component in its
// on-disk case, and true. On the first unresolved component it returns
// false, but the returned path is still a valid, usable join of
// whatever resolved so far plus the raw remaining tokens verbatim --
// MKDIR depends on this partial result to know what to create.
func Resolve(root, relPath string) (hostPath string, ok bool) {
	if relPath == "" {
		return root, true
	}

	tokens := splitTokens(relPath)
	current := root

	for i, tok := range tokens {
		entries, err := os.ReadDir(current)
		if err != nil {
			return appendRaw(current, tokens[i:]), false
		}

		mask := fcb.ToFCB(tok)
		matchName := ""
		matchIsDir := false
		for _, e := range entries {
			name := e.Name()
			if name == "." || name == ".." {
				continue
			}
			if fcb.Match(mask, fcb.ToFCB(name)) {
				matchName = name
				matchIsDir = e.IsDir()
				break
			}
		}

		if matchName == "" {
			return appendRaw(current, tokens[i:]), false
		}

		isLast := i == len(tokens)-1
		if !isLast && !matchIsDir {
			return appendRaw(current, tokens[i:]), false
		}

		current = filepath.Join(current, matchName)
	}

	return current, true
}

func splitTokens(relPath string) []string {
	parts := strings.Split(relPath, "/")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p == "" {
			continue
		}
		out = append(out, p)
	}
	return out
}

func appendRaw(base string, remaining []string) string {
	parts := append([]string{base}, remaining...)
	return filepath.Join(parts...)
}
