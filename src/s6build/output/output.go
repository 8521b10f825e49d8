// Package output renders command results. Commands construct a Printer
// over their cobra output stream, which keeps rendering testable
// without capturing process stdout.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

// Printer renders command results to a single output stream.
type Printer struct {
	w io.Writer
}

// New creates a Printer writing to w.
func New(w io.Writer) *Printer {
	return &Printer{w: w}
}

// JSON renders data as indented JSON.
func (p *Printer) JSON(data interface{}) error {
	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}

// Table renders rows under a header line, aligned into columns.
func (p *Printer) Table(headers []string, rows [][]string) {
	tw := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for _, row := range rows {
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	tw.Flush()
}

// Message renders a plain line.
func (p *Printer) Message(msg string) {
	fmt.Fprintln(p.w, msg)
}
