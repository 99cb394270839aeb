package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/chzyer/readline"
	"github.com/leapstack-labs/sqlstage/internal/cli/output"
	"github.com/leapstack-labs/sqlstage/internal/pipeline"
	"github.com/leapstack-labs/sqlstage/internal/stage"
	"github.com/leapstack-labs/sqlstage/pkg/core"
	"github.com/spf13/cobra"
)

const (
	promptReady    = "sqlstage> "
	promptContinue = "    ...> "
)

// NewREPLCommand creates the repl command.
func NewREPLCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "repl",
		Short: "Build stages interactively",
		Long: `Start an interactive shell on top of an empty stage cache.

Declare a stage with .stage <name> [ORDER BY cols] and type its SQL ending in
a semicolon. Every earlier stage can be referenced by name. SQL typed without
a pending .stage runs once against the current stages and is not cached.

When stdin is not a terminal, lines are read from stdin as a script.`,
		Example: `  sqlstage repl
  sqlstage repl --target prod
  sqlstage repl < session.sql`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return RunREPL(cmd)
		},
	}
}

// RunREPL runs the interactive shell, or a script when stdin is not a terminal.
func RunREPL(cmd *cobra.Command) error {
	cc, cleanup, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cleanup()

	s := newSession(cc.Cache, cc.Adapter, cc.Renderer)
	if in, ok := cmd.InOrStdin().(*os.File); ok && output.IsTerminal(in) {
		return runInteractive(cmd, cc, s)
	}
	return runScript(cmd.Context(), cmd.InOrStdin(), s)
}

func runInteractive(cmd *cobra.Command, cc *CommandContext, s *session) error {
	ctx := cmd.Context()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          promptReady,
		HistoryFile:     historyFile(cc.Cfg.HistoryFile),
		AutoComplete:    newStageCompleter(cc.Cache),
		InterruptPrompt: "^C",
		EOFPrompt:       ".quit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize REPL: %w", err)
	}
	defer func() { _ = rl.Close() }()

	styles := cc.Renderer.Styles()
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s (%s)\n", styles.Header1.Render("sqlstage"), cc.Adapter.DialectName())
	_, _ = fmt.Fprintln(cmd.OutOrStdout(), styles.Muted.Render("Type .help for commands, .quit to exit"))
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	for {
		rl.SetPrompt(styles.Prompt.Render(s.prompt()))
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			s.cancel()
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if s.handleLine(ctx, line) {
			return nil
		}
	}
}

func runScript(ctx context.Context, in io.Reader, s *session) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		if s.handleLine(ctx, scanner.Text()) {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return err
	}
	s.flush(ctx)

	if s.failures > 0 {
		return fmt.Errorf("%d statement(s) failed", s.failures)
	}
	return nil
}

func historyFile(configured string) string {
	if configured != "" {
		return configured
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".sqlstage_history")
}

// DotCommand describes one shell command.
type DotCommand struct {
	Name  string
	Args  string
	Usage string
	// TakesStage is set when the single argument is a cached stage name.
	TakesStage bool
}

var dotCommands = []DotCommand{
	{Name: ".stage", Args: "<name> [ORDER BY cols]", Usage: "Cache the next statement as a stage"},
	{Name: ".show", Args: "<stage>", Usage: "Show a cached result", TakesStage: true},
	{Name: ".sql", Args: "<stage>", Usage: "Show the SQL of a stage", TakesStage: true},
	{Name: ".stages", Usage: "List cached stages"},
	{Name: ".with", Usage: "Show the WITH clause of all stages"},
	{Name: ".drop", Args: "<stage>", Usage: "Drop a stage and every later stage", TakesStage: true},
	{Name: ".reset", Usage: "Drop all stages"},
	{Name: ".load", Args: "<table> <csv>", Usage: "Load a CSV file into a table"},
	{Name: ".help", Usage: "Show this help message"},
	{Name: ".quit", Usage: "Exit"},
	{Name: ".exit", Usage: "Exit"},
}

// DotCommands returns the shell's commands in help order.
func DotCommands() []DotCommand {
	return slices.Clone(dotCommands)
}

// newStageCompleter completes dot-commands and, after the commands that
// take one, the names of the currently cached stages.
func newStageCompleter(cache *stage.Cache) *readline.PrefixCompleter {
	names := func(string) []string { return cache.Names() }
	items := make([]readline.PrefixCompleterInterface, 0, len(dotCommands))
	for _, dc := range dotCommands {
		if dc.TakesStage {
			items = append(items, readline.PcItem(dc.Name, readline.PcItemDynamic(names)))
			continue
		}
		items = append(items, readline.PcItem(dc.Name))
	}
	return readline.NewPrefixCompleter(items...)
}

// pendingStage is a stage declared with .stage whose SQL is still being typed.
type pendingStage struct {
	name    string
	orderBy []string
}

// session is the line-oriented state of one shell.
type session struct {
	cache    *stage.Cache
	loader   pipeline.CSVLoader
	r        *output.Renderer
	buf      strings.Builder
	pending  *pendingStage
	failures int
}

func newSession(cache *stage.Cache, loader pipeline.CSVLoader, r *output.Renderer) *session {
	return &session{cache: cache, loader: loader, r: r}
}

func (s *session) prompt() string {
	switch {
	case s.buf.Len() > 0:
		return promptContinue
	case s.pending != nil:
		return s.pending.name + "> "
	default:
		return promptReady
	}
}

// cancel discards the statement being typed and any pending stage.
func (s *session) cancel() {
	s.buf.Reset()
	s.pending = nil
}

// handleLine processes one input line and reports whether the shell should exit.
func (s *session) handleLine(ctx context.Context, line string) bool {
	trimmed := strings.TrimSpace(line)
	if trimmed == "" {
		return false
	}

	if s.buf.Len() == 0 && strings.HasPrefix(trimmed, ".") {
		return s.dotCommand(ctx, trimmed)
	}

	if s.buf.Len() > 0 {
		s.buf.WriteString("\n")
	}
	s.buf.WriteString(line)
	if !strings.HasSuffix(trimmed, ";") {
		return false
	}
	s.flush(ctx)
	return false
}

// flush executes the buffered statement, if any.
func (s *session) flush(ctx context.Context) {
	sql := pipeline.TrimStatement(s.buf.String())
	s.buf.Reset()
	if sql == "" {
		return
	}

	if p := s.pending; p != nil {
		s.pending = nil
		s.register(ctx, p, sql)
		return
	}

	res, err := s.cache.Query(ctx, sql)
	if err != nil {
		s.fail(err)
		return
	}
	s.render(res)
}

func (s *session) register(ctx context.Context, p *pendingStage, sql string) {
	if err := s.cache.Register(ctx, p.name, sql, p.orderBy...); err != nil {
		s.fail(err)
		return
	}
	res, err := s.cache.Result(p.name)
	if err != nil {
		s.fail(err)
		return
	}
	s.r.Success(fmt.Sprintf("stage %s cached (%d rows)", p.name, res.Len()))
	s.render(res)
}

func (s *session) fail(err error) {
	s.failures++
	s.r.Error(err.Error())
}

func (s *session) render(res *core.Result) {
	if err := s.r.Result(res); err != nil {
		s.fail(err)
	}
}

func (s *session) dotCommand(ctx context.Context, line string) bool {
	command, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)
	args := strings.Fields(rest)

	switch strings.ToLower(command) {
	case ".quit", ".exit":
		return true

	case ".help":
		printREPLHelp(s.r.Writer())

	case ".stage":
		p, err := parseStageDecl(rest)
		if err != nil {
			s.fail(err)
			return false
		}
		s.pending = p

	case ".show":
		if len(args) != 1 {
			s.r.Error("usage: .show <stage>")
			return false
		}
		res, err := s.cache.Result(args[0])
		if err != nil {
			s.fail(err)
			return false
		}
		s.render(res)

	case ".sql":
		if len(args) != 1 {
			s.r.Error("usage: .sql <stage>")
			return false
		}
		fragment, err := s.cache.Fragment(args[0])
		if err != nil {
			s.fail(err)
			return false
		}
		s.r.Println(fragment)

	case ".stages":
		s.render(stageSummary(s.cache))

	case ".with":
		if prefix := s.cache.ComposePrefix(); prefix != "" {
			s.r.Println(prefix)
		} else {
			s.r.Muted("(no stages)")
		}

	case ".drop":
		if len(args) != 1 {
			s.r.Error("usage: .drop <stage>")
			return false
		}
		before := s.cache.Len()
		if err := s.cache.Drop(args[0]); err != nil {
			s.fail(err)
			return false
		}
		s.r.Success(fmt.Sprintf("dropped %d stage(s)", before-s.cache.Len()))

	case ".reset":
		s.cache.Reset()
		s.cancel()
		s.r.Success("all stages dropped")

	case ".load":
		if len(args) != 2 {
			s.r.Error("usage: .load <table> <csv>")
			return false
		}
		if err := s.loader.LoadCSV(ctx, args[0], args[1]); err != nil {
			s.fail(err)
			return false
		}
		s.r.Success(fmt.Sprintf("loaded %s into %s", args[1], args[0]))

	default:
		s.r.Error(fmt.Sprintf("unknown command: %s (type .help for commands)", command))
	}
	return false
}

// parseStageDecl parses "<name> [ORDER BY col, ...]".
func parseStageDecl(decl string) (*pendingStage, error) {
	name, rest, _ := strings.Cut(strings.TrimSpace(decl), " ")
	if name == "" {
		return nil, errors.New("usage: .stage <name> [ORDER BY cols]")
	}

	p := &pendingStage{name: name}
	rest = strings.TrimSpace(rest)
	if rest == "" {
		return p, nil
	}

	fields := strings.Fields(rest)
	if len(fields) < 3 || !strings.EqualFold(fields[0], "ORDER") || !strings.EqualFold(fields[1], "BY") {
		return nil, fmt.Errorf("unexpected %q after stage name (want ORDER BY cols)", rest)
	}
	cols := strings.Join(fields[2:], " ")
	for _, col := range strings.Split(cols, ",") {
		if col = strings.TrimSpace(col); col != "" {
			p.orderBy = append(p.orderBy, col)
		}
	}
	return p, nil
}

// stageSummary lists the cached stages as a result.
func stageSummary(cache *stage.Cache) *core.Result {
	res := &core.Result{Columns: []core.Column{
		{Name: "position"}, {Name: "stage"}, {Name: "rows"}, {Name: "columns"},
	}}
	for i, name := range cache.Names() {
		r, err := cache.Result(name)
		if err != nil {
			continue
		}
		res.Rows = append(res.Rows, []any{i + 1, name, r.Len(), strings.Join(r.ColumnNames(), ", ")})
	}
	return res
}

func printREPLHelp(w io.Writer) {
	_, _ = fmt.Fprintln(w, "\nCommands:")
	for _, dc := range dotCommands {
		_, _ = fmt.Fprintf(w, "  %-30s %s\n", strings.TrimSpace(dc.Name+" "+dc.Args), dc.Usage)
	}
	_, _ = fmt.Fprint(w, `
Tips:
  - SQL statements must end with a semicolon (;)
  - Re-declaring a stage drops it and every stage after it
  - Tab completion works for stage names

`)
}
