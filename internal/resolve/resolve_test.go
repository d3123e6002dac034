package resolve

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFakeMaps(t *testing.T, lines []string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "maps")
	content := ""
	for _, l := range lines {
		content += l + "\n"
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("writing fake maps file: %v", err)
	}
	return path
}

func TestResolveLibraryMatchesBasenameGlob(t *testing.T) {
	path := writeFakeMaps(t, []string{
		"7f0000000000-7f0000001000 r-xp 00000000 08:01 1234 /usr/lib/x86_64-linux-gnu/libnccl.so.2",
		"7f0000002000-7f0000003000 r-xp 00000000 08:01 5678 /usr/lib/x86_64-linux-gnu/libc.so.6",
	})
	r := &LibraryResolver{mapsPath: path}

	got, err := r.ResolveLibrary("libnccl.so*")
	if err != nil {
		t.Fatalf("ResolveLibrary() error = %v", err)
	}
	if got != "/usr/lib/x86_64-linux-gnu/libnccl.so.2" {
		t.Errorf("ResolveLibrary() = %q, want the nccl library path", got)
	}
}

func TestResolveLibraryNoMatch(t *testing.T) {
	path := writeFakeMaps(t, []string{
		"7f0000000000-7f0000001000 r-xp 00000000 08:01 1234 /usr/lib/libc.so.6",
	})
	r := &LibraryResolver{mapsPath: path}

	_, err := r.ResolveLibrary("libnccl.so*")
	if err != ErrNoMatch {
		t.Errorf("ResolveLibrary() error = %v, want ErrNoMatch", err)
	}
}

func TestResolveLibraryDeduplicatesPaths(t *testing.T) {
	path := writeFakeMaps(t, []string{
		"7f0000000000-7f0000001000 r-xp 00000000 08:01 1234 /usr/lib/libc.so.6",
		"7f0000002000-7f0000003000 r--p 00001000 08:01 1234 /usr/lib/libc.so.6",
	})
	paths, err := loadedObjectPaths(path)
	if err != nil {
		t.Fatalf("loadedObjectPaths() error = %v", err)
	}
	if len(paths) != 1 {
		t.Errorf("loadedObjectPaths() = %v, want 1 deduplicated entry", paths)
	}
}

func TestLoadedObjectPathsSkipsAnonymousRegions(t *testing.T) {
	path := writeFakeMaps(t, []string{
		"7f0000000000-7f0000001000 rw-p 00000000 00:00 0",
		"7f0000002000-7f0000003000 r-xp 00000000 08:01 1234 /usr/lib/libc.so.6",
	})
	paths, err := loadedObjectPaths(path)
	if err != nil {
		t.Fatalf("loadedObjectPaths() error = %v", err)
	}
	if len(paths) != 1 || paths[0] != "/usr/lib/libc.so.6" {
		t.Errorf("loadedObjectPaths() = %v, want only the backed region", paths)
	}
}
