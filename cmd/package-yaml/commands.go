package main

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Ning0612/pkgyaml/internal/config"
	"github.com/Ning0612/pkgyaml/internal/core/checksum"
	"github.com/Ning0612/pkgyaml/internal/core/diff"
	"github.com/Ning0612/pkgyaml/internal/domain"
	"github.com/Ning0612/pkgyaml/internal/hook"
	"github.com/Ning0612/pkgyaml/internal/report"
	"github.com/Ning0612/pkgyaml/internal/state"
	"github.com/Ning0612/pkgyaml/internal/tree"
)

func newSyncCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [use-yaml|use-json|use-latest|ask]",
		Short: "Reconcile package.json and package.yaml",
		Long: `Run one reconciliation pass. With a strategy argument the strategy is
locked for this invocation, unless ` + config.EnvForce + ` already locked one.`,
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: strategyNames(),
		RunE: func(cmd *cobra.Command, args []string) error {
			var strategy domain.ConflictStrategy
			if len(args) == 1 {
				strategy = domain.ConflictStrategy(args[0])
				if !strategy.IsValid() {
					return fmt.Errorf("%w: %q (want one of %s)", domain.ErrInvalidStrategy, args[0], strings.Join(strategyNames(), ", "))
				}
			}
			root, err := a.root()
			if err != nil {
				return err
			}

			d, err := a.runner().Sync(root, strategy)
			if err != nil {
				return err
			}
			switch d.Outcome {
			case domain.OutcomeAsk:
				return guide(cmd.ErrOrStderr(), hook.CommandGuidance())
			case domain.OutcomeFailed:
				return fmt.Errorf("sync failed: %s", d.Reason)
			}
			msg := fmt.Sprintf("package.json and %s are in sync", d.YAMLName)
			if d.Resolved != "" {
				msg += fmt.Sprintf(" (%s)", d.Resolved)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}
}

func newBeforeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "before [-- host-command...]",
		Short: "Pre-pass run by a package manager before its own work",
		Long: `Reconcile with the configured strategy. The optional host command line is
only used to print how to rerun it with a forced strategy.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.hookPass(cmd, args, (*hook.Runner).Before)
		},
	}
}

func newAfterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "after [-- host-command...]",
		Short: "Post-pass run by a package manager after its own work",
		Long:  `Reconcile with package.json authoritative, carrying edits made by the package manager into the formatted file.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.hookPass(cmd, args, (*hook.Runner).After)
		},
	}
}

func (a *app) hookPass(cmd *cobra.Command, cmdline []string, pass func(*hook.Runner, string) (hook.Decision, error)) error {
	root, err := a.root()
	if err != nil {
		return err
	}
	d, err := pass(a.runner(), root)
	if err != nil {
		return err
	}
	if !d.OK() {
		return guide(cmd.ErrOrStderr(), hook.HookGuidance(cmdline))
	}
	return nil
}

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run -- command [args...]",
		Short: "Run a package manager command between a pre-pass and a post-pass",
		Long: `Reconcile, run the command, then reconcile again with package.json
authoritative. The pre-pass is skipped when the command is package-yaml
itself; the command is not started when the pre-pass cannot decide.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := a.root()
			if err != nil {
				return err
			}
			r := a.runner()

			hostCommand := ""
			if len(args) > 1 {
				hostCommand = args[1]
			}
			d, err := r.Autoload(&cobraRegistry{root: cmd.Root()}, hostCommand, root)
			if err != nil {
				return err
			}
			if !d.OK() {
				return guide(cmd.ErrOrStderr(), hook.HookGuidance(args))
			}

			child := exec.CommandContext(cmd.Context(), args[0], args[1:]...)
			child.Dir = root
			child.Stdin = os.Stdin
			child.Stdout = cmd.OutOrStdout()
			child.Stderr = cmd.ErrOrStderr()
			runErr := child.Run()

			if d, err = r.After(root); err != nil {
				return err
			}
			if !d.OK() {
				return guide(cmd.ErrOrStderr(), hook.HookGuidance(args))
			}

			var exit *exec.ExitError
			if errors.As(runErr, &exit) {
				return &exitError{code: exit.ExitCode()}
			}
			return runErr
		},
	}
}

// cobraRegistry exposes hook commands as hidden subcommands
type cobraRegistry struct {
	root *cobra.Command
}

func (r *cobraRegistry) Register(name string, cmd hook.Command) {
	for _, c := range r.root.Commands() {
		if c.Name() == name {
			return
		}
	}
	r.root.AddCommand(&cobra.Command{
		Use:                name,
		Short:              "Reconcile package.json and package.yaml",
		Long:               cmd.Usage(),
		Hidden:             true,
		DisableFlagParsing: true,
		RunE: func(_ *cobra.Command, args []string) error {
			return cmd.Execute(args)
		},
	})
}

func newDiffCmd(a *app) *cobra.Command {
	var mergePatch, ops bool
	cmd := &cobra.Command{
		Use:   "diff",
		Short: "Show how package.json differs from the formatted file",
		Long: `Compare the two package files without writing anything. Lines marked
"+" are only in the formatted file, lines marked "-" only in package.json.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			from, err := p.JSON()
			if err != nil {
				return err
			}
			to, err := p.YAMLContents()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if mergePatch {
				patch, err := report.MergePatch(from, to)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, string(patch))
				return nil
			}
			if tree.Equal(from, to) {
				fmt.Fprintf(out, "package.json and %s are in sync\n", p.YAMLName())
				return nil
			}

			colors := report.Plain()
			if report.UseColor(out) {
				colors = report.NewColors()
			}
			if ops {
				return report.Ops(out, diff.Diff(from, to), colors)
			}
			text, err := report.Lines(from, to, colors)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "--- package.json\n+++ %s\n%s", p.YAMLName(), text)
			return nil
		},
	}
	cmd.Flags().BoolVar(&mergePatch, "merge-patch", false, "Print a JSON merge patch turning package.json into the formatted content")
	cmd.Flags().BoolVar(&ops, "ops", false, "Print the structural edit list instead of a line diff")
	return cmd
}

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective settings for the project",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := a.open()
			if err != nil {
				return err
			}
			s := p.Settings()
			values := s.Values()

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, name := range config.OptionNames() {
				locked := ""
				if s.Locked(name) {
					locked = "(locked)"
				}
				fmt.Fprintf(w, "%s\t%v\t%s\n", name, values[name], locked)
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	var all bool
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded passes (requires --history-dir)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.history == nil {
				return errors.New("history requires --history-dir")
			}

			var records []state.PassRecord
			var err error
			if all {
				records, err = a.history.GetAllHistory(limit)
			} else {
				root, rerr := a.projectRoot()
				if rerr != nil {
					return rerr
				}
				records, err = a.history.GetHistory(root, limit)
			}
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No passes recorded")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "TIME\tPHASE\tOUTCOME\tSTRATEGY\tJSON\tYAML\tROOT\tREASON")
			for _, r := range records {
				reason := r.Reason
				if r.Error != "" {
					reason = r.Error
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
					r.StartTime.Local().Format(time.DateTime),
					r.Phase,
					r.Outcome,
					r.Resolved,
					checksum.Short(r.JSONSum, 8),
					checksum.Short(r.YAMLSum, 8),
					r.Root,
					reason,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum number of passes to list")
	cmd.Flags().BoolVar(&all, "all", false, "List passes for every project")
	return cmd
}

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether the package files changed since the last synced pass (requires --history-dir)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.history == nil {
				return errors.New("status requires --history-dir")
			}
			p, err := a.open()
			if err != nil {
				return err
			}
			last, err := a.history.GetLastSynced(p.Root())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if last == nil {
				fmt.Fprintln(out, "No synced pass recorded")
				return nil
			}
			fp, err := p.Fingerprint(checksum.Default)
			if err != nil {
				return err
			}

			fmt.Fprintf(out, "Last synced %s (%s, %s)\n", last.EndTime.Local().Format(time.DateTime), last.Phase, last.Resolved)
			if fp.JSON == last.JSONSum && fp.YAML == last.YAMLSum {
				fmt.Fprintln(out, "Unchanged since")
				return nil
			}
			if fp.JSON != last.JSONSum {
				fmt.Fprintf(out, "%s changed since\n", "package.json")
			}
			if fp.YAML != last.YAMLSum {
				fmt.Fprintf(out, "%s changed since\n", p.YAMLName())
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "package-yaml %s\n", version)
		},
	}
}

func strategyNames() []string {
	var names []string
	for _, s := range domain.Strategies() {
		names = append(names, string(s))
	}
	return names
}

// projectRoot is root() made absolute, the form history records use
func (a *app) projectRoot() (string, error) {
	root, err := a.root()
	if err != nil {
		return "", err
	}
	return filepath.Abs(root)
}
