package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"github.com/forPelevin/mdvid/internal/diag"
)

// renderTable draws a rounded table. Columns listed in right are right-aligned.
func renderTable(headers []string, rows [][]string, right ...int) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	tw.AppendHeader(header)
	for _, row := range rows {
		r := make(table.Row, len(row))
		for i, v := range row {
			r[i] = v
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, len(right))
	for _, col := range right {
		configs = append(configs, table.ColumnConfig{Number: col + 1, Align: text.AlignRight, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

const (
	ansiReset = "\x1b[0m"
	ansiRed   = "\x1b[31m"
)

// printError writes "error[<code>]: <message>", red on a terminal.
func printError(w io.Writer, err error) {
	label := "error"
	msg := err.Error()
	if code := diag.CodeOf(err); code != "" {
		label = fmt.Sprintf("error[%s]", code)
		if len(msg) > len(code)+2 && msg[:len(code)+2] == string(code)+": " {
			msg = msg[len(code)+2:]
		}
	}
	if shouldColorize(w) {
		label = ansiRed + label + ansiReset
	}
	fmt.Fprintf(w, "%s: %s\n", label, msg)
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
