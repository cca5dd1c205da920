package theme

import (
	"bufio"
	"embed"
	"fmt"
	"io"
	"math"
	"os"
	"path"
	"sort"
	"strconv"
	"strings"
)

//go:embed palettes/*.gpl
var builtin embed.FS

// DefaultPalette is used when no palette is configured
const DefaultPalette = "plasma"

// RGB is one palette entry
type RGB [3]uint8

// Palette is an ordered colour ramp, dark to bright
type Palette struct {
	Name   string
	Colors []RGB
}

// ParseGPL reads a GIMP palette. Lines that are not "R G B [name]" are
// skipped; channel values are clipped to 0..255.
func ParseGPL(r io.Reader) (*Palette, error) {
	p := &Palette{}
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		key, val, header := strings.Cut(line, ":")
		switch {
		case line == "", line[0] == '#', line == "GIMP Palette":
		case header && key == "Name":
			p.Name = strings.TrimSpace(val)
		case header && key == "Columns":
		default:
			if c, ok := parseRGB(line); ok {
				p.Colors = append(p.Colors, c)
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(p.Colors) == 0 {
		return nil, fmt.Errorf("palette %q has no colors", p.Name)
	}
	return p, nil
}

func parseRGB(line string) (RGB, bool) {
	f := strings.Fields(line)
	if len(f) < 3 {
		return RGB{}, false
	}
	var c RGB
	for i := range c {
		v, err := strconv.Atoi(f[i])
		if err != nil {
			return RGB{}, false
		}
		c[i] = channel(v)
	}
	return c, true
}

// LoadGPL reads a palette file from disk
func LoadGPL(path string) (*Palette, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseGPL(f)
}

// Builtin returns an embedded palette by name
func Builtin(name string) (*Palette, error) {
	f, err := builtin.Open(path.Join("palettes", name+".gpl"))
	if err != nil {
		return nil, fmt.Errorf("unknown palette %q", name)
	}
	defer f.Close()
	return ParseGPL(f)
}

// Builtins lists the embedded palette names
func Builtins() []string {
	entries, _ := builtin.ReadDir("palettes")
	var names []string
	for _, e := range entries {
		names = append(names, strings.TrimSuffix(e.Name(), ".gpl"))
	}
	sort.Strings(names)
	return names
}

// Resolve loads name as a builtin palette, or as a .gpl file path
func Resolve(name string) (*Palette, error) {
	if name == "" {
		name = DefaultPalette
	}
	if strings.HasSuffix(name, ".gpl") {
		return LoadGPL(name)
	}
	return Builtin(name)
}

// Lookup maps norm in 0..1 onto the ramp, blending neighbouring entries
func (p *Palette) Lookup(norm float64) RGB {
	last := len(p.Colors) - 1
	switch {
	case norm <= 0 || last == 0:
		return p.Colors[0]
	case norm >= 1:
		return p.Colors[last]
	}
	whole, frac := math.Modf(norm * float64(last))
	a, b := p.Colors[int(whole)], p.Colors[int(whole)+1]
	var out RGB
	for i := range out {
		out[i] = uint8(float64(a[i]) + (float64(b[i])-float64(a[i]))*frac)
	}
	return out
}

func channel(v int) uint8 {
	return uint8(max(0, min(v, 255)))
}
