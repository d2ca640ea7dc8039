package ui

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Printer writes command output, styled on a terminal and plain otherwise.
type Printer struct {
	out    io.Writer
	width  int
	styled bool
}

// NewPrinter creates a new Printer that writes to the given writer.
// If w is nil, os.Stdout is used and styling follows IsTerminal.
func NewPrinter(w io.Writer) *Printer {
	styled := false
	if w == nil {
		w = os.Stdout
		styled = IsTerminal()
	}
	return &Printer{
		out:    w,
		width:  GetTerminalWidth(),
		styled: styled,
	}
}

// SetStyled forces styled or plain output.
func (p *Printer) SetStyled(styled bool) *Printer {
	p.styled = styled
	return p
}

// Width returns the terminal width used by this printer
func (p *Printer) Width() int {
	return p.width
}

// Println writes content with a newline
func (p *Printer) Println(content string) {
	_, _ = fmt.Fprintln(p.out, content)
}

// Newline prints an empty line
func (p *Printer) Newline() {
	_, _ = fmt.Fprintln(p.out)
}

// PrintHeader prints a command header box. Plain output skips it.
func (p *Printer) PrintHeader(title, command string, params ...Param) {
	if !p.styled {
		return
	}
	p.Println(NewHeader(title, command, params...).SetWidth(p.width).Render())
}

// PrintResult prints a result box.
func (p *Printer) PrintResult(r *Result) {
	if !p.styled {
		_, _ = fmt.Fprint(p.out, r.Plain())
		return
	}
	p.Println(r.SetWidth(p.width).Render())
}

// PrintSuccess prints a success result box
func (p *Printer) PrintSuccess(title string, details ...Param) {
	p.PrintResult(NewSuccessResult(title, details...))
}

// PrintError prints an error result box. hint is split into its summary and
// bullet items.
func (p *Printer) PrintError(title string, err error, hint string) {
	summary, tips := SplitHint(hint)
	r := NewFailureResult(title, err, tips)
	if summary != "" {
		r.AddDetail("Reason", summary)
	}
	p.PrintResult(r)
}

// PrintTable prints rows under a header line, columns padded to the widest
// cell.
func (p *Printer) PrintTable(columns []string, rows [][]string) {
	widths := make([]int, len(columns))
	for i, c := range columns {
		widths[i] = len(c)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && len(cell) > widths[i] {
				widths[i] = len(cell)
			}
		}
	}

	format := func(cells []string) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			if i == len(cells)-1 || i >= len(widths) {
				parts[i] = cell
				continue
			}
			parts[i] = cell + strings.Repeat(" ", widths[i]-len(cell))
		}
		return strings.Join(parts, "  ")
	}

	head := format(columns)
	if p.styled {
		head = TableHeaderStyle.Render(head)
	}
	p.Println(head)
	for _, row := range rows {
		p.Println(format(row))
	}
}
