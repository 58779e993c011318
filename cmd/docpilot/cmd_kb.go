package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/user/docpilot/internal/config"
	"github.com/user/docpilot/internal/ingest"
	"github.com/user/docpilot/internal/kb"
	"github.com/user/docpilot/internal/render"
	"github.com/user/docpilot/internal/scheduler"
	"github.com/user/docpilot/internal/watch"
)

func init() {
	rootCmd.AddCommand(kbCmd)
	kbCmd.AddCommand(kbStatusCmd, kbBuildCmd, kbDeleteCmd, kbShellCmd, kbWatchCmd)

	kbDeleteCmd.Flags().Bool("yes", false, "confirm the delete without prompting")
	kbWatchCmd.Flags().String("schedule", "", "status refresh schedule (default from config)")
	kbWatchCmd.Flags().Duration("settle", watch.DefaultDelay, "quiet period before new files are indexed")
}

var kbCmd = &cobra.Command{
	Use:   "kb",
	Short: "Manage the persistent knowledge-base index",
}

func (a *app) printBlock(s string) {
	a.printer.Line("%s", strings.TrimRight(s, "\n"))
}

var kbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the index status",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		res := a.kbManager(a.printer).RequestStatus(ctx)
		if err := resultErr(res); err != nil {
			return err
		}
		a.printBlock(render.Snapshot(res.Value))
		return nil
	},
}

var kbBuildCmd = &cobra.Command{
	Use:   "build <file>...",
	Short: "Upload files and build the index",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		raw, err := ingest.Describe(args...)
		if err != nil {
			return err
		}

		m := a.kbManager(a.printer)
		staged := m.Stage(raw)
		if skipped := len(raw) - len(staged); skipped > 0 {
			a.printer.Info(fmt.Sprintf("Skipped %d file(s); accepted: %s", skipped, a.constraints()))
		}
		a.printBlock(render.Candidates(staged))

		ctx, stop := signalContext()
		defer stop()

		return runWithMetrics(ctx, a, func(ctx context.Context) error {
			if err := resultErr(m.Build(ctx)); err != nil {
				return err
			}
			if snap, ok := m.Snapshot(); ok {
				a.printBlock(render.Snapshot(snap))
			}
			return nil
		})
	},
}

var kbDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the index (irreversible)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		yes, _ := cmd.Flags().GetBool("yes")

		ctx, stop := signalContext()
		defer stop()

		m := a.kbManager(a.printer)
		if res := m.RequestStatus(ctx); res.OK() && !m.CanDelete() {
			a.printer.Info("There is no index on disk to delete.")
			return nil
		}

		m.Delete(ctx)
		if !yes && !confirm("Type 'yes' to delete the index: ") {
			m.Cancel()
			a.printer.Info("Delete cancelled.")
			return nil
		}
		_, res := m.Delete(ctx)
		return resultErr(res)
	},
}

func confirm(question string) bool {
	fmt.Print(question)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(scanner.Text()), "yes")
}

const kbShellHelp = "Commands: status, stage PATH..., remove N, list, build, delete, cancel, quit"

var kbShellCmd = &cobra.Command{
	Use:   "shell",
	Short: "Interactive knowledge-base manager",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, stop := signalContext()
		defer stop()

		sh := &kbShell{app: a, kb: a.kbManager(a.printer)}
		return runWithMetrics(ctx, a, func(ctx context.Context) error {
			sh.status(ctx)
			a.printer.Dim(kbShellHelp)
			return runREPL(ctx, "kb> ", sh.handle)
		})
	},
}

type kbShell struct {
	app *app
	kb  *kb.Manager
}

func (s *kbShell) status(ctx context.Context) {
	if res := s.kb.RequestStatus(ctx); res.OK() {
		s.app.printBlock(render.Snapshot(res.Value))
	}
}

func (s *kbShell) handle(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	p := s.app.printer

	switch strings.ToLower(strings.TrimPrefix(fields[0], "/")) {
	case "quit", "exit":
		return true, nil
	case "status", "refresh":
		s.status(ctx)
	case "stage":
		if len(fields) < 2 {
			p.Error("Usage: stage PATH...")
			return false, nil
		}
		raw, err := ingest.Describe(fields[1:]...)
		if err != nil {
			p.Error(err.Error())
			return false, nil
		}
		s.app.printBlock(render.Candidates(s.kb.Stage(raw)))
	case "remove":
		n, err := strconv.Atoi(strings.Join(fields[1:], ""))
		if err != nil || n < 1 || n > len(s.kb.Candidates()) {
			p.Error("Usage: remove N (see list)")
			return false, nil
		}
		s.app.printBlock(render.Candidates(s.kb.Unstage(n - 1)))
	case "list":
		s.app.printBlock(render.Candidates(s.kb.Candidates()))
	case "build":
		s.kb.Build(ctx)
	case "delete":
		if snap, ok := s.kb.Snapshot(); ok && !s.kb.CanDelete() {
			p.Info("There is no index on disk to delete (" + snap.StoragePath + ").")
			return false, nil
		}
		s.kb.Delete(ctx)
	case "cancel":
		if s.kb.Armed() {
			s.kb.Cancel()
			p.Info("Delete cancelled.")
		}
	case "help":
		p.Line(kbShellHelp)
	default:
		p.Error("Unknown command. " + kbShellHelp)
	}
	return false, nil
}

var kbWatchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "Index documents dropped into a directory and keep the status fresh",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		flagSchedule, _ := cmd.Flags().GetString("schedule")
		settle, _ := cmd.Flags().GetDuration("settle")
		schedule := flagSchedule
		if schedule == "" {
			schedule = a.cfg.KB.RefreshSchedule
		}

		ctx, stop := signalContext()
		defer stop()

		m := a.kbManager(a.printer)
		watcher := watch.New(args[0], settle, func(files []ingest.FileDescriptor) {
			staged := m.Stage(files)
			if len(staged) == 0 {
				return
			}
			a.printBlock(render.Candidates(staged))
			m.Build(ctx)
		})

		var last string
		refresh := scheduler.Job{
			Name:     "kb-status-refresh",
			Schedule: schedule,
			Run: func() {
				res := m.RequestStatus(ctx)
				if !res.OK() {
					return
				}
				if s := render.Snapshot(res.Value); s != last {
					last = s
					a.printer.Dim("Index status at %s", res.Value.FetchedAt.Format(time.TimeOnly))
					a.printBlock(s)
				}
			},
		}

		sched := scheduler.New()
		if err := sched.Add(refresh); err != nil {
			return err
		}
		if err := sched.Start(); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()

		// SIGHUP picks up a changed kb.refresh_schedule without restarting.
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case <-hup:
					if err := reloadRefresh(sched, refresh, flagSchedule); err != nil {
						a.printer.Error("Reloading schedule failed: " + err.Error())
					}
				}
			}
		}()

		return runWithMetrics(ctx, a, watcher.Run)
	},
}

// reloadRefresh re-reads the config file and restarts the refresh job on
// its schedule. A --schedule flag keeps precedence over the file.
func reloadRefresh(sched *scheduler.Scheduler, job scheduler.Job, flagSchedule string) error {
	if flagSchedule == "" {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		job.Schedule = cfg.KB.RefreshSchedule
	}
	if err := sched.Replace(job); err != nil {
		return err
	}
	slog.Info("refresh schedule reloaded", "schedule", job.Schedule)
	return sched.Reload()
}
