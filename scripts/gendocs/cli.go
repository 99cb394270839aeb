package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/sqlstage/internal/cli"
	"github.com/leapstack-labs/sqlstage/internal/cli/commands"
	"github.com/leapstack-labs/sqlstage/internal/config"
	"github.com/leapstack-labs/sqlstage/internal/pipeline"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// commandPage is the documented view of one cobra command.
type commandPage struct {
	cmd      *cobra.Command
	sections []func(w *MarkdownWriter) error
}

// documentedCommands returns the visible top-level commands, each with the
// sections specific to it.
func documentedCommands(root *cobra.Command) []commandPage {
	extra := map[string][]func(w *MarkdownWriter) error{
		"repl": {writeDotCommands},
		"run":  {writePipelineFormat},
	}

	var pages []commandPage
	for _, cmd := range root.Commands() {
		if cmd.Hidden || cmd.Name() == "help" {
			continue
		}
		pages = append(pages, commandPage{cmd: cmd, sections: extra[cmd.Name()]})
	}
	return pages
}

// generateCLIDocs writes index.md and one page per command to outDir.
func generateCLIDocs(outDir string) error {
	log.Printf("Generating CLI docs to %s", outDir)
	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	root := cli.NewRootCmd()
	pages := documentedCommands(root)

	files := map[string][]byte{}
	index, err := renderIndex(root, pages)
	if err != nil {
		return err
	}
	files["index.md"] = index
	for _, p := range pages {
		data, err := renderCommand(p)
		if err != nil {
			return fmt.Errorf("%s: %w", p.cmd.Name(), err)
		}
		files[p.cmd.Name()+".md"] = data
	}

	for name, data := range files {
		if err := os.WriteFile(filepath.Join(outDir, name), data, 0600); err != nil {
			return err
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

func renderIndex(root *cobra.Command, pages []commandPage) ([]byte, error) {
	w := NewMarkdownWriter()
	w.Frontmatter("CLI Reference", "Command-line interface reference for sqlstage")
	w.GeneratedMarker()

	w.Header(1, "CLI Reference")
	w.Paragraph(root.Long)
	w.CodeBlock("bash", root.Use+" [command] [options]")

	rows := make([][]string, 0, len(pages))
	for _, p := range pages {
		rows = append(rows, []string{
			fmt.Sprintf("[%s](/cli/%s)", InlineCode(p.cmd.Name()), p.cmd.Name()),
			cleanDescription(p.cmd.Short),
		})
	}
	w.Header(2, "Commands")
	w.Table([]string{"Command", "Description"}, rows)

	w.Header(2, "Global Options")
	writeFlags(w, root.PersistentFlags())

	w.Header(2, "Environment Variables")
	w.Paragraph("Every configuration key can be set from the environment. Flags take precedence.")
	w.Table([]string{"Variable", "Description"}, envRows())

	return w.Bytes(), nil
}

// envRows derives the environment variable names from the config schema.
func envRows() [][]string {
	var rows [][]string
	for _, f := range getConfigSchema() {
		if strings.HasPrefix(f.Type, "map") {
			continue
		}
		key := f.Name
		if f.Target {
			key = "target__" + key
		}
		rows = append(rows, []string{InlineCode(config.EnvPrefix + strings.ToUpper(key)), f.Description})
	}
	return rows
}

func renderCommand(p commandPage) ([]byte, error) {
	cmd := p.cmd
	w := NewMarkdownWriter()
	w.Frontmatter(cmd.Name(), cmd.Short)
	w.GeneratedMarker()

	w.Header(1, cmd.Name())
	if cmd.Long != "" {
		w.Paragraph(cmd.Long)
	} else {
		w.Paragraph(cmd.Short)
	}

	w.Header(2, "Usage")
	w.CodeBlock("bash", strings.TrimSuffix(cmd.UseLine(), " [flags]"))

	if cmd.HasLocalFlags() {
		w.Header(2, "Options")
		writeFlags(w, cmd.LocalFlags())
	}

	for _, section := range p.sections {
		if err := section(w); err != nil {
			return nil, err
		}
	}

	if cmd.Example != "" {
		w.Header(2, "Examples")
		w.CodeBlock("bash", cleanExample(cmd.Example))
	}
	return w.Bytes(), nil
}

// writeDotCommands documents the shell commands of repl.
func writeDotCommands(w *MarkdownWriter) error {
	var rows [][]string
	for _, dc := range commands.DotCommands() {
		rows = append(rows, []string{InlineCode(strings.TrimSpace(dc.Name + " " + dc.Args)), dc.Usage})
	}
	w.Header(2, "Shell Commands")
	w.Table([]string{"Command", "Description"}, rows)
	return nil
}

// writePipelineFormat documents the pipeline file read by run, with an
// example encoded from pipeline.File.
func writePipelineFormat(w *MarkdownWriter) error {
	example := pipeline.File{
		Seeds: map[string]string{"trips": "data/trips.csv"},
		Stages: []pipeline.Stage{
			{Name: "paris", SQL: "SELECT rider, fare FROM trips WHERE city = 'paris'"},
			{Name: "top_riders", SQL: "SELECT rider, SUM(fare) AS total FROM paris GROUP BY rider", OrderBy: []string{"total DESC"}},
		},
	}
	data, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to encode example pipeline: %w", err)
	}

	w.Header(2, "Pipeline File")
	w.Paragraph("Seeds are loaded before the first stage; relative paths resolve against the pipeline file. " +
		"Each stage may reference every stage above it by name. With `--watch`, only the stages from the first " +
		"changed one onwards run again.")
	w.CodeBlock("yaml", string(data))
	return nil
}

// writeFlags writes one row per visible flag.
func writeFlags(w *MarkdownWriter, flags *pflag.FlagSet) {
	var rows [][]string
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Hidden {
			return
		}
		name := InlineCode("--" + f.Name)
		if f.Shorthand != "" {
			name += ", " + InlineCode("-"+f.Shorthand)
		}
		def := "-"
		if f.DefValue != "" && f.DefValue != "[]" {
			def = InlineCode(f.DefValue)
		}
		rows = append(rows, []string{name, f.Value.Type(), def, cleanDescription(f.Usage)})
	})
	w.Table([]string{"Flag", "Type", "Default", "Description"}, rows)
}

// cleanExample removes the indentation shared by every non-blank line.
func cleanExample(example string) string {
	lines := strings.Split(example, "\n")
	indent := -1
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		n := len(line) - len(strings.TrimLeft(line, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	for i, line := range lines {
		if len(line) >= indent && indent > 0 {
			lines[i] = line[indent:]
		} else {
			lines[i] = strings.TrimLeft(line, " \t")
		}
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
