// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// session_cmd.go - The session command: an interactive cleaning REPL.

package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"

	"github.com/jeranaias/tidyrun/internal/config"
	"github.com/jeranaias/tidyrun/internal/export"
	"github.com/jeranaias/tidyrun/internal/plan"
	"github.com/jeranaias/tidyrun/internal/session"
	"github.com/jeranaias/tidyrun/internal/util"
)

// =============================================================================
// LINE EDITOR
// =============================================================================

// sessionLine provides input history and line editing for the REPL.
type sessionLine struct {
	line        *liner.State
	historyFile string
}

func newSessionLine() *sessionLine {
	line := liner.NewLiner()
	line.SetCtrlCAborts(true)

	configDir, err := config.ConfigDir()
	if err != nil {
		configDir = os.TempDir()
	}
	s := &sessionLine{
		line:        line,
		historyFile: filepath.Join(configDir, "session_history"),
	}
	if f, err := os.Open(s.historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		f.Close()
	}
	return s
}

func (s *sessionLine) read(prompt string) (string, error) {
	input, err := s.line.Prompt(prompt)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(input) != "" {
		s.line.AppendHistory(input)
	}
	return input, nil
}

// close saves history with owner-only permissions and restores the terminal.
func (s *sessionLine) close() {
	if err := os.MkdirAll(filepath.Dir(s.historyFile), 0o700); err == nil {
		if f, err := os.OpenFile(s.historyFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600); err == nil {
			_, _ = s.line.WriteHistory(f)
			f.Close()
		}
	}
	s.line.Close()
}

// =============================================================================
// COMMAND HANDLER
// =============================================================================

// HandleSession handles "tidyrun session".
func HandleSession(ctx context.Context, app *App, args Args) error {
	if err := RequiresTTY("session"); err != nil {
		return err
	}
	if app.NeedsAPIKey() {
		key, err := ReadSecret("API key (not saved, Enter for none): ")
		if err != nil {
			return err
		}
		if key != "" {
			app.SetAPIKey(key)
		}
	}

	r := newREPL(app)
	if p := NewArgParser(args.Raw).Positional(0); p != "" {
		r.exec(ctx, "load "+p, app.Out)
	}

	fmt.Fprintf(app.Out, "%s %s (type 'help' for commands)\n",
		TitleStyle.Render("tidyrun session"), DimStyle.Render(r.sess.ID()))

	in := newSessionLine()
	defer in.close()

	// Interrupts cancel the running command, not the session.
	base := context.WithoutCancel(ctx)
	for {
		input, err := in.read("tidyrun> ")
		if err != nil {
			if !errors.Is(err, liner.ErrPromptAborted) && !errors.Is(err, io.EOF) {
				return err
			}
			fmt.Fprintln(app.Out)
			return nil
		}

		opCtx, stop := signal.NotifyContext(base, os.Interrupt)
		quit := r.exec(opCtx, input, app.Out)
		stop()
		if quit {
			return nil
		}
	}
}

// =============================================================================
// REPL
// =============================================================================

const replHelp = `Commands:
  load <file>        Load a CSV, TSV or XLSX dataset
  show [what]        Show the dataset, plan, result or status
  plan               Ask the model for a cleaning plan
  run                Execute the plan on a copy of the dataset
  save [file]        Write the cleaned CSV (default: <name>.cleaned.csv)
  reset              Forget dataset, plan and result
  help               Show this help
  quit               Leave the session`

// repl maps command lines onto a session.
type repl struct {
	app  *App
	sess *session.Session
}

func newREPL(app *App) *repl {
	r := &repl{app: app}
	r.sess = session.New(app.Planner(), app.Runner(0, newProgressPrinter(app.Out, true).Handle),
		session.WithLogger(app.Logger))
	return r
}

// exec runs one command line and reports whether the session should end.
// Command errors are printed, never returned.
func (r *repl) exec(ctx context.Context, line string, out io.Writer) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}
	cmd, rest := strings.ToLower(fields[0]), fields[1:]

	var err error
	switch cmd {
	case "quit", "exit", "q":
		return true
	case "help", "?":
		fmt.Fprintln(out, replHelp)
	case "load":
		err = r.load(out, strings.Join(rest, " "))
	case "show":
		what := ""
		if len(rest) > 0 {
			what = rest[0]
		}
		err = r.show(out, what)
	case "plan":
		err = r.plan(ctx, out)
	case "run":
		err = r.run(ctx, out)
	case "save":
		err = r.save(out, strings.Join(rest, " "))
	case "reset":
		r.sess.Reset()
		fmt.Fprintln(out, DimStyle.Render("session cleared"))
	default:
		err = fmt.Errorf("unknown command %q (type 'help')", cmd)
	}

	if err != nil {
		fmt.Fprintf(out, "%s %v\n", ErrorStyle.Render("Error:"), err)
	}
	return false
}

func (r *repl) load(out io.Writer, path string) error {
	if path == "" {
		return errors.New("usage: load <file>")
	}
	if err := r.sess.Load(path); err != nil {
		return err
	}
	t, source, _ := r.sess.Dataset()
	fmt.Fprintf(out, "%s loaded %s\n", RenderStatus("ok"), source)
	fmt.Fprintln(out, t.Info())
	return nil
}

func (r *repl) show(out io.Writer, what string) error {
	switch what {
	case "", "data", "dataset":
		t, _, err := r.sess.Dataset()
		if err != nil {
			return err
		}
		fmt.Fprintln(out, t.HeadString(10))
	case "plan":
		p, err := r.sess.CurrentPlan()
		if err != nil {
			return err
		}
		printPlan(out, p)
	case "result":
		t, outcomes, err := r.sess.Result()
		if err != nil {
			return err
		}
		applied, failed := plan.Summary(outcomes)
		fmt.Fprintln(out, t.HeadString(10))
		fmt.Fprintf(out, "%d applied, %d failed\n", applied, failed)
	case "status":
		st := r.sess.GetStatus()
		fmt.Fprintf(out, "%s %s\n", RenderLabel("Session"), st.SessionID)
		fmt.Fprintf(out, "%s %s\n", RenderLabel("Uptime"), session.FormatDuration(st.Duration))
		if st.Source != "" {
			fmt.Fprintf(out, "%s %s (%d x %d)\n", RenderLabel("Dataset"), st.Source, st.Rows, st.Columns)
		}
		fmt.Fprintf(out, "%s %d\n", RenderLabel("Plan steps"), st.Steps)
		if st.HasResult {
			fmt.Fprintf(out, "%s %d applied, %d failed\n", RenderLabel("Result"), st.Applied, st.Failed)
		}
	default:
		return fmt.Errorf("show what? (data, plan, result, status)")
	}
	return nil
}

func (r *repl) plan(ctx context.Context, out io.Writer) error {
	fmt.Fprintf(out, "%s asking %s for a plan...\n", DimStyle.Render(">"), r.app.Model())
	p, err := r.sess.Plan(ctx)
	if err != nil {
		return err
	}
	printPlan(out, p)
	return nil
}

func (r *repl) run(ctx context.Context, out io.Writer) error {
	outcomes, err := r.sess.Execute(ctx)
	if err != nil {
		return err
	}
	applied, failed := plan.Summary(outcomes)
	status := "ok"
	if failed > 0 {
		status = "failed"
	}
	fmt.Fprintf(out, "\n%s %d applied, %d failed %s\n", RenderStatus(status), applied, failed,
		DimStyle.Render("('save' writes the result)"))
	return nil
}

func (r *repl) save(out io.Writer, path string) error {
	if path == "" {
		_, source, err := r.sess.Dataset()
		if err != nil {
			return err
		}
		path = export.CleanedPath(filepath.Dir(source), source)
	}
	if err := r.sess.Save(path); err != nil {
		return err
	}
	t, _, _ := r.sess.Result()
	fmt.Fprintf(out, "%s wrote %d %s to %s\n", RenderStatus("ok"), t.NumRows(), util.Plural(t.NumRows(), "row"), path)
	return nil
}
