package backup

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Ning0612/pkgyaml/internal/adapter"
	"github.com/Ning0612/pkgyaml/internal/adapter/local"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/testutil"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

func newTestStore(t *testing.T, template string) (*Store, string) {
	t.Helper()
	dir := testutil.ProjectDir(t)
	fs, err := local.New(dir)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	return NewStore(fs, template, testutil.Logger(t)), fs.Root()
}

func TestPath(t *testing.T) {
	outside := t.TempDir()

	tests := []struct {
		name     string
		template string
		want     func(root string) string
	}{
		{
			name:     "default",
			template: "",
			want:     func(root string) string { return filepath.Join(root, ".package.json~") },
		},
		{
			name:     "relative subdirectory",
			template: "backups/%s.bak",
			want:     func(root string) string { return filepath.Join(root, "backups", "package.json.bak") },
		},
		{
			name:     "absolute with full path",
			template: filepath.Join(outside, "%S"),
			want: func(root string) string {
				full := filepath.ToSlash(filepath.Join(root, "package.json"))
				return filepath.Join(outside, strings.ReplaceAll(full, "/", "%"))
			},
		},
		{
			name:     "every occurrence replaced",
			template: "%s/%s~",
			want:     func(root string) string { return filepath.Join(root, "package.json", "package.json~") },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, root := newTestStore(t, tt.template)
			got, err := s.Path("package.json")
			if err != nil {
				t.Fatalf("Path() error = %v", err)
			}
			if want := tt.want(root); got != want {
				t.Errorf("Path() = %s, want %s", got, want)
			}
		})
	}
}

func TestSaveAndLoad(t *testing.T) {
	s, root := newTestStore(t, "")

	err := s.Save("package.json", []byte(`{"name": "demo"}`), "package.yaml", []byte("name: demo # comment\n"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if !testutil.Exists(t, root, ".package.json~") || !testutil.Exists(t, root, ".package.yaml~") {
		t.Fatalf("backup files not written")
	}

	snap := s.Load("package.json", "package.yaml")
	if !snap.HasJSON || !snap.HasYAML {
		t.Fatalf("Load() = %+v, want both backups", snap)
	}
	want := tree.MapOf("name", "demo")
	if !tree.Equal(snap.JSON, want) || !tree.Equal(snap.YAML, want) {
		t.Errorf("Load() = %v / %v, want %v", snap.JSON, snap.YAML, want)
	}
}

func TestLoad_MissingAndUnreadable(t *testing.T) {
	s, root := newTestStore(t, "")
	testutil.CreateTestFile(t, root, ".package.json~", "{not json")

	snap := s.Load("package.json", "package.yaml")
	if snap.HasJSON {
		t.Errorf("unreadable backup should be reported absent")
	}
	if snap.HasYAML {
		t.Errorf("missing backup should be reported absent")
	}
}

type readOnlyFS struct {
	adapter.Adapter
}

func (readOnlyFS) WriteFile(string, []byte) error { return domain.ErrPermissionDenied }

func TestSave_Failure(t *testing.T) {
	dir := testutil.ProjectDir(t)
	fs, err := local.New(dir)
	if err != nil {
		t.Fatalf("local.New: %v", err)
	}
	s := NewStore(readOnlyFS{fs}, "", nil)

	err = s.Save("package.json", []byte("{}"), "package.yaml", []byte("{}\n"))
	if !errors.Is(err, domain.ErrPermissionDenied) {
		t.Errorf("Expected ErrPermissionDenied, got %v", err)
	}
	if strings.Count(err.Error(), "write backup") != 2 {
		t.Errorf("Expected both failures joined, got %v", err)
	}
}
