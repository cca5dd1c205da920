package patterns

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go-metronome/sequencer"
)

// ReadPat parses a pattern file: INI sections named after the pattern, one
// key=cells line per row, cells separated by commas.
//
//	[Rock]
//	36=f,,,,f,,,
//	42=5,5,5,5,5,5,5,5
func ReadPat(r io.Reader) ([]Pattern, error) {
	var (
		out  []Pattern
		cur  *Pattern
		seen = map[string]bool{}
	)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || line[0] == '#' || line[0] == ';' {
			continue
		}

		if line[0] == '[' {
			if !strings.HasSuffix(line, "]") {
				return nil, fmt.Errorf("line %d: %w: unterminated section", lineNo, ErrInvalid)
			}
			name := strings.TrimSpace(line[1 : len(line)-1])
			if name == "" {
				return nil, fmt.Errorf("line %d: %w: empty section name", lineNo, ErrInvalid)
			}
			if seen[strings.ToLower(name)] {
				return nil, fmt.Errorf("line %d: %w: pattern %q defined twice", lineNo, ErrInvalid, name)
			}
			seen[strings.ToLower(name)] = true
			out = append(out, Pattern{Name: name})
			cur = &out[len(out)-1]
			continue
		}

		if cur == nil {
			return nil, fmt.Errorf("line %d: %w: row outside a section", lineNo, ErrInvalid)
		}
		key, value, ok := strings.Cut(line, "=")
		if !ok {
			return nil, fmt.Errorf("line %d: %w: expected key=cells", lineNo, ErrInvalid)
		}
		note, err := strconv.Atoi(strings.TrimSpace(key))
		if err != nil || note < 0 || note > 127 {
			return nil, fmt.Errorf("line %d: %w: key %q", lineNo, ErrInvalid, key)
		}
		row := Row{Key: uint8(note)}
		for _, field := range strings.Split(strings.Trim(strings.TrimSpace(value), `"`), ",") {
			cell, ok := ParseCell(field)
			if !ok {
				return nil, fmt.Errorf("line %d: %w: cell %q", lineNo, ErrInvalid, field)
			}
			row.Cells = append(row.Cells, cell)
		}
		cur.Rows = append(cur.Rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	for i := range out {
		if err := out[i].Validate(); err != nil {
			return nil, err
		}
		out[i].normalize()
	}
	return out, nil
}

// WritePat writes patterns in the format read by ReadPat
func WritePat(w io.Writer, patterns []Pattern) error {
	bw := bufio.NewWriter(w)
	for i, p := range patterns {
		if err := p.Validate(); err != nil {
			return err
		}
		if i > 0 {
			bw.WriteString("\n")
		}
		fmt.Fprintf(bw, "[%s]\n", p.Name)
		figure := p.Figure()
		for _, r := range p.Rows {
			cells := make([]string, figure)
			for j := range cells {
				if j < len(r.Cells) {
					cells[j] = string(r.Cells[j])
				}
			}
			fmt.Fprintf(bw, "%d=%s\n", r.Key, strings.Join(cells, ","))
		}
	}
	return bw.Flush()
}

// normalize pads short rows to the figure
func (p *Pattern) normalize() {
	figure := p.Figure()
	for i := range p.Rows {
		for len(p.Rows[i].Cells) < figure {
			p.Rows[i].Cells = append(p.Rows[i].Cells, sequencer.Cell(""))
		}
	}
}
