package conflict

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/Ning0612/pkgyaml/internal/backup"
	"github.com/Ning0612/pkgyaml/internal/core/diff"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

func baseInput(jsonV, yamlV tree.Value) Input {
	return Input{
		JSONExists:    true,
		YAMLExists:    true,
		JSON:          jsonV,
		YAML:          yamlV,
		Strategy:      domain.ConflictAsk,
		WriteBackups:  true,
		TryMerge:      true,
		TimestampFuzz: 5,
	}
}

func withBackups(in Input, jsonB, yamlB tree.Value) Input {
	in.Backups = func() backup.Snapshot {
		return backup.Snapshot{JSON: jsonB, HasJSON: true, YAML: yamlB, HasYAML: true}
	}
	return in
}

func TestResolve_InSync(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	called := false
	in := baseInput(tree.MapOf("a", 1), tree.MapOf("a", 1))
	in.Backups = func() backup.Snapshot { called = true; return backup.Snapshot{} }

	d := resolver.Resolve(in)

	if !d.InSync {
		t.Errorf("Expected InSync")
	}
	if called {
		t.Errorf("Backups should not be loaded when files agree")
	}
}

func TestResolve_MissingFormatted(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	in := baseInput(tree.MapOf("a", 1), nil)
	in.YAMLExists = false

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictUseJSON {
		t.Errorf("Expected use-json, got %s", d.Strategy)
	}
}

func TestResolve_MissingJSON(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	in := baseInput(tree.NewMap(), tree.MapOf("a", 1))
	in.JSONExists = false
	in.Strategy = domain.ConflictUseJSON

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictUseYAML {
		t.Errorf("Expected use-yaml, got %s", d.Strategy)
	}
}

func TestResolve_OnlyFormattedChanged(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	jsonV := tree.MapOf("v", "1.0.0")
	yamlV := tree.MapOf("v", "1.1.0")
	in := withBackups(baseInput(jsonV, yamlV), jsonV, jsonV)

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictUseYAML {
		t.Errorf("Expected use-yaml, got %s", d.Strategy)
	}
	if d.Merged() {
		t.Errorf("single-sided change must not be a merge")
	}
}

func TestResolve_OnlyJSONChanged(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	jsonV := tree.MapOf("v", "1.1.0")
	yamlV := tree.MapOf("v", "1.0.0")
	in := withBackups(baseInput(jsonV, yamlV), yamlV, yamlV)

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictUseJSON {
		t.Errorf("Expected use-json, got %s", d.Strategy)
	}
}

func TestResolve_MissingBackupsFallBackToContent(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	in := baseInput(tree.MapOf("a", 1), tree.MapOf("a", 2))
	in.Backups = func() backup.Snapshot { return backup.Snapshot{} }

	d := resolver.Resolve(in)

	// No backup: each side is its own base, so neither single-sided check
	// matches and the base pair differs
	if d.Strategy != domain.ConflictAsk {
		t.Errorf("Expected ask, got %s", d.Strategy)
	}
}

func TestResolve_ThreeWayMerge(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	base := tree.MapOf("a", 1)
	jsonV := tree.MapOf("a", 1, "b", 2)
	yamlV := tree.MapOf("a", 1, "c", 3)
	in := withBackups(baseInput(jsonV, yamlV), base, base)

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictUseYAML {
		t.Fatalf("Expected use-yaml, got %s (%s)", d.Strategy, d.Reason)
	}
	if !d.Merged() {
		t.Fatalf("Expected merge")
	}
	want := []diff.Op{diff.New(tree.Path{"b"}, 2.0)}
	if got := d.Merge; !cmp.Equal(got, want) {
		t.Errorf("Merge mismatch (-want +got):\n%s", cmp.Diff(want, got))
	}
}

func TestResolve_MergeConflict(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	base := tree.MapOf("a", 1)
	in := withBackups(baseInput(tree.MapOf("a", 2), tree.MapOf("a", 3)), base, base)
	in.Strategy = domain.ConflictUseJSON

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictUseJSON {
		t.Errorf("Expected configured use-json, got %s", d.Strategy)
	}
	if d.Merged() {
		t.Errorf("conflicting edits must not merge")
	}
}

func TestResolve_MergeDisabled(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	base := tree.MapOf("a", 1)
	in := withBackups(baseInput(tree.MapOf("a", 1, "b", 2), tree.MapOf("a", 1, "c", 3)), base, base)
	in.TryMerge = false

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictAsk {
		t.Errorf("Expected ask, got %s", d.Strategy)
	}
}

func TestResolve_BackupsDisabledSkipsBackups(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	jsonV := tree.MapOf("v", "1")
	in := withBackups(baseInput(jsonV, tree.MapOf("v", "2")), jsonV, jsonV)
	in.WriteBackups = false
	in.Backups = func() backup.Snapshot {
		t.Fatalf("Backups loaded with writeBackups disabled")
		return backup.Snapshot{}
	}

	d := resolver.Resolve(in)

	if d.Strategy != domain.ConflictAsk {
		t.Errorf("Expected ask, got %s", d.Strategy)
	}
}

func TestResolve_UseLatest(t *testing.T) {
	now := time.Now()
	tests := []struct {
		name  string
		delta time.Duration // formatted mtime minus package.json mtime
		want  domain.ConflictStrategy
	}{
		{"within fuzz", 3 * time.Second, domain.ConflictAsk},
		{"exactly fuzz", 5 * time.Second, domain.ConflictAsk},
		{"formatted newer", 10 * time.Second, domain.ConflictUseYAML},
		{"json newer", -10 * time.Second, domain.ConflictUseJSON},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resolver := NewDefaultResolver(nil)
			in := baseInput(tree.MapOf("a", 1), tree.MapOf("a", 2))
			in.WriteBackups = false
			in.Strategy = domain.ConflictUseLatest
			in.JSONFile = domain.FileInfo{ModTime: now}
			in.YAMLFile = domain.FileInfo{ModTime: now.Add(tt.delta)}

			d := resolver.Resolve(in)

			if d.Strategy != tt.want {
				t.Errorf("Expected %s, got %s", tt.want, d.Strategy)
			}
		})
	}
}

func TestResolve_UnknownStrategyAsks(t *testing.T) {
	resolver := NewDefaultResolver(nil)
	in := baseInput(tree.MapOf("a", 1), tree.MapOf("a", 2))
	in.WriteBackups = false
	in.Strategy = "whatever"

	if d := resolver.Resolve(in); d.Strategy != domain.ConflictAsk {
		t.Errorf("Expected ask, got %s", d.Strategy)
	}
}
