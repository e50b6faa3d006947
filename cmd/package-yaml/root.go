package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Ning0612/pkgyaml/internal/config"
	"github.com/Ning0612/pkgyaml/internal/hook"
	"github.com/Ning0612/pkgyaml/internal/logger"
	"github.com/Ning0612/pkgyaml/internal/project"
	"github.com/Ning0612/pkgyaml/internal/report"
	"github.com/Ning0612/pkgyaml/internal/state"
)

// errReported marks failures whose message was already printed
var errReported = errors.New("reported")

// exitError carries a child process exit status through cobra
type exitError struct {
	code int
}

func (e *exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// app holds the flag values and the handles built from them
type app struct {
	dir        string
	debug      bool
	logFormat  string
	logFile    string
	historyDir string

	log     logger.Logger
	history *state.Manager

	// newLoader builds the settings loader; tests point it at temp dirs
	newLoader func(logger.Logger) *config.Loader
}

func newApp() *app {
	return &app{newLoader: config.NewLoader}
}

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "package-yaml",
		Short: "Keep package.json and package.yaml in sync",
		Long: `package-yaml lets you maintain package metadata in package.yaml (or
package.yml) while package managers keep reading and writing package.json.

Each pass compares both files, consults the backups written on the last
successful pass and decides which side wins, merging independent edits
when it can.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.BoolVar(&a.debug, "debug", false, "Enable debug logging (same as "+config.EnvDebug+")")
	flags.StringVar(&a.logFormat, "log-format", "text", "Log format: text|json")
	flags.StringVar(&a.logFile, "log-file", "", "Also write logs to this file (rotated)")
	flags.StringVar(&a.historyDir, "history-dir", "", "Record every pass in a history database in this directory")
	flags.StringVarP(&a.dir, "dir", "C", "", "Project directory (default: nearest directory with a package file)")

	rootCmd.AddCommand(
		newSyncCmd(a),
		newBeforeCmd(a),
		newAfterCmd(a),
		newRunCmd(a),
		newDiffCmd(a),
		newConfigCmd(a),
		newHistoryCmd(a),
		newStatusCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

func (a *app) setup() error {
	if a.debug {
		if err := os.Setenv(config.EnvDebug, "1"); err != nil {
			return err
		}
	}

	cfg := logger.Config{
		Level:   logger.LevelWarn,
		Format:  logger.ParseFormat(a.logFormat),
		Outputs: []logger.OutputConfig{{Type: logger.OutputStderr}},
	}
	if a.debug {
		cfg.Level = logger.LevelDebug
	}
	if a.logFile != "" {
		cfg.Outputs = append(cfg.Outputs, logger.OutputConfig{Type: logger.OutputFile})
		cfg.File = logger.FileConfig{
			Enabled:    true,
			Path:       a.logFile,
			MaxSizeMB:  10,
			MaxAgeDays: 28,
			MaxBackups: 3,
		}
	}
	log, err := logger.New(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.log = log

	if a.historyDir != "" {
		m, err := state.NewManager(a.historyDir)
		if err != nil {
			return err
		}
		a.history = m
	}
	return nil
}

// teardown releases what setup opened; it is safe to call more than once
func (a *app) teardown() error {
	var errs []error
	if a.history != nil {
		errs = append(errs, a.history.Close())
		a.history = nil
	}
	if a.log != nil {
		errs = append(errs, a.log.Shutdown())
		a.log = nil
	}
	return errors.Join(errs...)
}

// root resolves --dir, defaulting to the nearest project above the
// working directory
func (a *app) root() (string, error) {
	if a.dir != "" {
		return a.dir, nil
	}
	wd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return hook.FindRoot(wd)
}

func (a *app) runner() *hook.Runner {
	r := &hook.Runner{Loader: a.newLoader(a.log), Log: a.log}
	if a.history != nil {
		r.Recorder = a.history
	}
	return r
}

func (a *app) open() (*project.Project, error) {
	root, err := a.root()
	if err != nil {
		return nil, err
	}
	return project.Open(root, project.Options{Loader: a.newLoader(a.log), Log: a.log})
}

// guide prints guidance for an unsynced pass and returns errReported
func guide(w io.Writer, text string) error {
	if report.UseColor(w) {
		c := color.New(color.FgYellow)
		c.EnableColor()
		text = c.Sprint(text)
	}
	fmt.Fprint(w, text)
	return errReported
}
