// Package output renders stage results and status messages for the CLI.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/leapstack-labs/sqlstage/pkg/core"
	"golang.org/x/term"
)

// Format is a result rendering format.
type Format string

// Supported formats.
const (
	FormatTable    Format = "table"
	FormatJSON     Format = "json"
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
)

// Renderer writes results to out and status messages to errOut.
type Renderer struct {
	out    io.Writer
	errOut io.Writer
	format Format
	isTTY  bool
	styles *Styles
}

// NewRenderer creates a renderer. Styling is enabled only when out is a terminal.
func NewRenderer(out, errOut io.Writer, format string) *Renderer {
	return NewRendererWithTTY(out, errOut, format, IsTerminal(out))
}

// NewRendererWithTTY creates a renderer with explicit terminal detection.
func NewRendererWithTTY(out, errOut io.Writer, format string, isTTY bool) *Renderer {
	styles := PlainStyles()
	if isTTY {
		styles = DefaultStyles()
	}
	f := Format(format)
	if f == "markdown" {
		f = FormatMarkdown
	}
	if f == "" {
		f = FormatTable
	}
	return &Renderer{out: out, errOut: errOut, format: f, isTTY: isTTY, styles: styles}
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w any) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd())) //nolint:gosec // fd fits in int
}

// Format returns the result format.
func (r *Renderer) Format() Format { return r.format }

// IsTTY reports whether output goes to a terminal.
func (r *Renderer) IsTTY() bool { return r.isTTY }

// Styles returns the active styles.
func (r *Renderer) Styles() *Styles { return r.styles }

// Writer returns the result writer.
func (r *Renderer) Writer() io.Writer { return r.out }

// Println writes a line to the result writer.
func (r *Renderer) Println(a ...any) {
	_, _ = fmt.Fprintln(r.out, a...)
}

// Printf writes formatted text to the result writer.
func (r *Renderer) Printf(format string, a ...any) {
	_, _ = fmt.Fprintf(r.out, format, a...)
}

// Success writes a status line to the status writer.
func (r *Renderer) Success(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Success.Render("✓ "+msg))
}

// Warning writes a warning line to the status writer.
func (r *Renderer) Warning(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Warning.Render("! "+msg))
}

// Error writes an error line to the status writer.
func (r *Renderer) Error(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Error.Render("Error: "+msg))
}

// Muted writes a dimmed line to the status writer.
func (r *Renderer) Muted(msg string) {
	_, _ = fmt.Fprintln(r.errOut, r.styles.Muted.Render(msg))
}

// Header writes a heading to the result writer.
func (r *Renderer) Header(level int, title string) {
	style := r.styles.Header2
	if level <= 1 {
		style = r.styles.Header1
	}
	r.Println(style.Render(title))
}

// JSON writes v as indented JSON.
func (r *Renderer) JSON(v any) error {
	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Result renders res in the renderer's format.
func (r *Renderer) Result(res *core.Result) error {
	if res == nil {
		res = &core.Result{}
	}

	switch r.format {
	case FormatJSON:
		return r.JSON(resultRecords(res))
	case FormatCSV:
		r.writer(res).RenderCSV()
		return nil
	case FormatMarkdown:
		if len(res.Columns) == 0 {
			r.Println("(0 rows)")
			return nil
		}
		r.writer(res).RenderMarkdown()
		return nil
	default:
		if len(res.Columns) == 0 {
			r.Println("(0 rows)")
			return nil
		}
		tw := r.writer(res)
		tw.SetStyle(table.StyleLight)
		tw.Style().Format.Header = text.FormatDefault
		tw.Render()
		r.Printf("(%d rows)\n", res.Len())
		return nil
	}
}

func (r *Renderer) writer(res *core.Result) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(r.out)

	header := make(table.Row, len(res.Columns))
	for i, col := range res.Columns {
		header[i] = col.Name
	}
	tw.AppendHeader(header)

	for _, row := range res.Rows {
		out := make(table.Row, len(row))
		for i, v := range row {
			out[i] = FormatValue(v)
		}
		tw.AppendRow(out)
	}
	return tw
}

// resultRecords converts rows to column-keyed records for JSON output.
func resultRecords(res *core.Result) []map[string]any {
	records := make([]map[string]any, 0, len(res.Rows))
	for _, row := range res.Rows {
		rec := make(map[string]any, len(res.Columns))
		for i, col := range res.Columns {
			if i < len(row) {
				rec[col.Name] = row[i]
			}
		}
		records = append(records, rec)
	}
	return records
}

// FormatValue formats a single cell.
func FormatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return "NULL"
	case time.Time:
		return t.Format(time.RFC3339)
	case []byte:
		return string(t)
	default:
		return fmt.Sprintf("%v", v)
	}
}
