package main

import (
	"bytes"
	"errors"
	"os/exec"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/Ning0612/pkgyaml/internal/config"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/testutil"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

// execute runs the CLI against dir with settings files outside dir
// ignored
func execute(t *testing.T, dir string, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv(config.EnvDebug, "")
	t.Setenv(config.EnvForce, "")

	a := &app{newLoader: func(log logger.Logger) *config.Loader {
		return &config.Loader{Log: log}
	}}
	cmd := newRootCmd(a)
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append([]string{"--dir", dir}, args...))

	err := cmd.Execute()
	if terr := a.teardown(); terr != nil {
		t.Errorf("teardown: %v", terr)
	}
	return stdout.String(), stderr.String(), err
}

func TestSync_CreatesPackageJSON(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.yaml", "name: demo\nversion: 1.0.0\n")

	out, _, err := execute(t, dir, "sync")
	if err != nil {
		t.Fatalf("sync error = %v", err)
	}
	if !strings.Contains(out, "package.json and package.yaml are in sync (use-yaml)") {
		t.Errorf("Unexpected output: %q", out)
	}

	got := testutil.ReadJSON(t, dir, "package.json")
	if !tree.Equal(got, tree.MapOf("name", "demo", "version", "1.0.0")) {
		t.Errorf("Unexpected package.json: %v", got)
	}
}

func TestSync_AskPrintsGuidance(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"v": 1}`)
	testutil.CreateTestFile(t, dir, "package.yaml", "v: 2\n")

	_, stderr, err := execute(t, dir, "sync")
	if !errors.Is(err, errReported) {
		t.Fatalf("Expected errReported, got %v", err)
	}
	if !strings.Contains(stderr, "package-yaml sync use-yaml") {
		t.Errorf("Expected command guidance, got %q", stderr)
	}
}

func TestSync_Strategy(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"v": 1}`)
	testutil.CreateTestFile(t, dir, "package.yaml", "v: 2 # from yaml\n")

	if _, _, err := execute(t, dir, "sync", "use-yaml"); err != nil {
		t.Fatalf("sync use-yaml error = %v", err)
	}
	if got := testutil.ReadJSON(t, dir, "package.json"); !tree.Equal(got, tree.MapOf("v", 2)) {
		t.Errorf("Unexpected package.json: %v", got)
	}
}

func TestSync_InvalidStrategy(t *testing.T) {
	dir := testutil.ProjectDir(t)
	_, _, err := execute(t, dir, "sync", "use-both")
	if !errors.Is(err, domain.ErrInvalidStrategy) {
		t.Errorf("Expected ErrInvalidStrategy, got %v", err)
	}
}

func TestBefore_HookGuidance(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"v": 1}`)
	testutil.CreateTestFile(t, dir, "package.yaml", "v: 2\n")

	_, stderr, err := execute(t, dir, "before", "--", "npm", "install")
	if !errors.Is(err, errReported) {
		t.Fatalf("Expected errReported, got %v", err)
	}
	if !strings.Contains(stderr, config.EnvForce+"=yaml npm install") {
		t.Errorf("Expected hook guidance, got %q", stderr)
	}
}

func TestAfter_CarriesJSONEdits(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"v": 1, "extra": true}`)
	testutil.CreateTestFile(t, dir, "package.yaml", "v: 2\n")

	if _, _, err := execute(t, dir, "after"); err != nil {
		t.Fatalf("after error = %v", err)
	}
	out := testutil.ReadTestFile(t, dir, "package.yaml")
	if !strings.Contains(out, "extra: true") || !strings.Contains(out, "v: 1") {
		t.Errorf("Expected package.json content in package.yaml, got:\n%s", out)
	}
}

func TestDiff(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"name": "demo", "v": 1}`)
	testutil.CreateTestFile(t, dir, "package.yaml", "name: demo\nv: 2\n")

	out, _, err := execute(t, dir, "diff")
	if err != nil {
		t.Fatalf("diff error = %v", err)
	}
	for _, want := range []string{"+++ package.yaml", `-   "v": 1`, `+   "v": 2`} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected %q in:\n%s", want, out)
		}
	}

	out, _, err = execute(t, dir, "diff", "--ops")
	if err != nil {
		t.Fatalf("diff --ops error = %v", err)
	}
	if strings.TrimSpace(out) != "~ v: 1 -> 2" {
		t.Errorf("Unexpected ops: %q", out)
	}

	out, _, err = execute(t, dir, "diff", "--merge-patch")
	if err != nil {
		t.Fatalf("diff --merge-patch error = %v", err)
	}
	if strings.TrimSpace(out) != `{"v":2}` {
		t.Errorf("Unexpected merge patch: %q", out)
	}

	// diff never writes
	if got := testutil.ReadJSON(t, dir, "package.json"); !tree.Equal(got, tree.MapOf("name", "demo", "v", 1)) {
		t.Errorf("diff modified package.json: %v", got)
	}
}

func TestDiff_InSync(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"v": 1}`)
	testutil.CreateTestFile(t, dir, "package.yml", "v: 1\n")

	out, _, err := execute(t, dir, "diff")
	if err != nil {
		t.Fatalf("diff error = %v", err)
	}
	if !strings.Contains(out, "package.json and package.yml are in sync") {
		t.Errorf("Unexpected output: %q", out)
	}
}

func TestConfig(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"package-yaml": {"conflicts": "use-json", "timestampFuzz": 2}}`)

	out, _, err := execute(t, dir, "config")
	if err != nil {
		t.Fatalf("config error = %v", err)
	}
	lines := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(out), "\n") {
		fields := strings.Fields(line)
		if len(fields) >= 2 {
			lines[fields[0]] = fields[1]
		}
	}
	if lines[config.OptConflicts] != "use-json" {
		t.Errorf("Expected conflicts use-json, got %q in:\n%s", lines[config.OptConflicts], out)
	}
	if lines[config.OptTimestampFuzz] != "2" {
		t.Errorf("Expected timestampFuzz 2, got %q", lines[config.OptTimestampFuzz])
	}
	if len(lines) != len(config.OptionNames()) {
		t.Errorf("Expected one line per option, got %d", len(lines))
	}
}

func TestHistoryAndStatus(t *testing.T) {
	dir := testutil.ProjectDir(t)
	historyDir := t.TempDir()
	testutil.CreateTestFile(t, dir, "package.yaml", "name: demo\n")

	if _, _, err := execute(t, dir, "--history-dir", historyDir, "sync"); err != nil {
		t.Fatalf("sync error = %v", err)
	}

	out, _, err := execute(t, dir, "--history-dir", historyDir, "history")
	if err != nil {
		t.Fatalf("history error = %v", err)
	}
	if !strings.Contains(out, "synced") || !strings.Contains(out, "use-yaml") {
		t.Errorf("Expected the sync pass in history:\n%s", out)
	}

	out, _, err = execute(t, dir, "--history-dir", historyDir, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "Unchanged since") {
		t.Errorf("Expected unchanged status:\n%s", out)
	}

	testutil.CreateTestFile(t, dir, "package.json", `{"name": "renamed"}`)
	out, _, err = execute(t, dir, "--history-dir", historyDir, "status")
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	if !strings.Contains(out, "package.json changed since") || strings.Contains(out, "package.yaml changed") {
		t.Errorf("Expected only package.json to be reported:\n%s", out)
	}
}

func TestHistory_RequiresDir(t *testing.T) {
	dir := testutil.ProjectDir(t)
	if _, _, err := execute(t, dir, "history"); err == nil {
		t.Error("Expected error without --history-dir")
	}
}

func TestRun(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("sh not available")
	}
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.yaml", "name: demo\n")

	_, _, err := execute(t, dir, "run", "--", "sh", "-c", `sed 's/demo/edited/' package.json > tmp && mv tmp package.json; exit 3`)
	var exit *exitError
	if !errors.As(err, &exit) || exit.code != 3 {
		t.Fatalf("Expected exit status 3, got %v", err)
	}

	// pre-pass created package.json, post-pass carried the edit back
	if out := testutil.ReadTestFile(t, dir, "package.yaml"); !strings.Contains(out, "name: edited") {
		t.Errorf("Expected the command's edit in package.yaml, got:\n%s", out)
	}
}

func TestRun_AskSkipsCommand(t *testing.T) {
	dir := testutil.ProjectDir(t)
	testutil.CreateTestFile(t, dir, "package.json", `{"v": 1}`)
	testutil.CreateTestFile(t, dir, "package.yaml", "v: 2\n")

	_, stderr, err := execute(t, dir, "run", "--", "no-such-binary", "install")
	if !errors.Is(err, errReported) {
		t.Fatalf("Expected errReported, got %v", err)
	}
	if !strings.Contains(stderr, "no-such-binary install") {
		t.Errorf("Expected hook guidance naming the command, got %q", stderr)
	}
}

type recordingCommand struct {
	args [][]string
}

func (c *recordingCommand) Execute(args []string) error {
	c.args = append(c.args, args)
	return nil
}

func (c *recordingCommand) Usage() string { return "test" }

func TestCobraRegistry(t *testing.T) {
	root := &cobra.Command{Use: "host"}
	reg := &cobraRegistry{root: root}
	cmd := &recordingCommand{}

	reg.Register("package-yaml", cmd)
	reg.Register("package-yaml", &recordingCommand{})
	if n := len(root.Commands()); n != 1 {
		t.Fatalf("Expected one registered command, got %d", n)
	}

	root.SetArgs([]string{"package-yaml", "use-json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("Execute error = %v", err)
	}
	if len(cmd.args) != 1 || cmd.args[0][0] != "use-json" {
		t.Errorf("Expected the first registration to receive args, got %v", cmd.args)
	}
}

func TestVersion(t *testing.T) {
	out, _, err := execute(t, t.TempDir(), "version")
	if err != nil {
		t.Fatalf("version error = %v", err)
	}
	if !strings.Contains(out, version) {
		t.Errorf("Unexpected version output: %q", out)
	}
}
