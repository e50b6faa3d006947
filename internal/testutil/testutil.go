package testutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

// ProjectDir creates an empty project directory for testing
func ProjectDir(t *testing.T) string {
	t.Helper()

	dir, err := os.MkdirTemp(t.TempDir(), "pkgyaml-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	return dir
}

// CreateTestFile creates a test file with the given content
func CreateTestFile(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatalf("failed to create test dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to create test file: %v", err)
	}
	return path
}

// ReadTestFile returns a file's content, failing the test if it is missing
func ReadTestFile(t *testing.T, dir, name string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		t.Fatalf("failed to read %s: %v", name, err)
	}
	return string(data)
}

// ReadJSON decodes a JSON file into a value tree
func ReadJSON(t *testing.T, dir, name string) tree.Value {
	t.Helper()

	v, err := tree.DecodeJSON([]byte(ReadTestFile(t, dir, name)))
	if err != nil {
		t.Fatalf("failed to decode %s: %v", name, err)
	}
	return v
}

// Exists reports whether dir/name exists
func Exists(t *testing.T, dir, name string) bool {
	t.Helper()

	_, err := os.Stat(filepath.Join(dir, name))
	return err == nil
}

// SetModTime sets a file's modification time relative to now
func SetModTime(t *testing.T, dir, name string, offset time.Duration) {
	t.Helper()

	when := time.Now().Add(offset)
	if err := os.Chtimes(filepath.Join(dir, name), when, when); err != nil {
		t.Fatalf("failed to set mtime of %s: %v", name, err)
	}
}

// Logger returns a logger that writes through t.Log at debug level
func Logger(t *testing.T) logger.Logger {
	t.Helper()

	l, err := logger.New(logger.Config{
		Level:   logger.LevelDebug,
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr, Writer: testWriter{t}}},
	})
	if err != nil {
		t.Fatalf("failed to create logger: %v", err)
	}
	return l
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))
	return len(p), nil
}
