// Package resolve locates uprobe attach targets — shared libraries and
// binaries — on the running host. Generalizes the teacher's
// "/proc/<pid>/cgroup regex scan, first match wins" idiom from container-ID
// extraction to shared-object-path globbing (spec §4.2/§6's
// probes.nccl.library_path; the nccl and llm probes are its callers).
package resolve

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LibraryResolver finds the first loaded shared object on the host whose
// path matches a configured glob pattern.
type LibraryResolver struct {
	mapsPath string // overridable for tests; defaults to /proc/self/maps
}

// NewLibraryResolver creates a resolver reading from the live process map.
func NewLibraryResolver() *LibraryResolver {
	return &LibraryResolver{mapsPath: "/proc/self/maps"}
}

// ResolveLibrary returns the first loaded shared object path matching
// pattern (a path/filepath.Match glob). If nothing matches, it returns
// ErrNoMatch — the caller treats this as "skip this probe", not fatal
// (spec §4.2).
func (r *LibraryResolver) ResolveLibrary(pattern string) (string, error) {
	paths, err := loadedObjectPaths(r.mapsPath)
	if err != nil {
		return "", fmt.Errorf("reading process maps: %w", err)
	}
	for _, p := range paths {
		matched, err := filepath.Match(pattern, filepath.Base(p))
		if err != nil {
			return "", fmt.Errorf("invalid library_path pattern %q: %w", pattern, err)
		}
		if matched {
			return p, nil
		}
		// Also allow a pattern that names a full path, not just a basename.
		if matched, err := filepath.Match(pattern, p); err == nil && matched {
			return p, nil
		}
	}
	return "", ErrNoMatch
}

// ErrNoMatch indicates no loaded object matched the requested pattern.
var ErrNoMatch = fmt.Errorf("no loaded library matched pattern")

// loadedObjectPaths parses /proc/<pid>/maps-style output, returning the
// distinct set of backing file paths for mapped regions, in first-seen
// order.
func loadedObjectPaths(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	seen := make(map[string]bool)
	var paths []string

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		fields := strings.Fields(line)
		if len(fields) < 6 {
			continue
		}
		p := fields[len(fields)-1]
		if !strings.HasPrefix(p, "/") {
			continue
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		paths = append(paths, p)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return paths, nil
}
