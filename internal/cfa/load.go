package cfa

import (
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/gnoverse/impact/internal/formula"
)

// Program is the YAML form of a CFA.
type Program struct {
	Name      string            `yaml:"name"`
	Variables map[string]string `yaml:"variables"`
	Entry     string            `yaml:"entry"`
	Targets   []string          `yaml:"targets"`
	Edges     []ProgramEdge     `yaml:"edges"`
}

// ProgramEdge is one edge of a Program. An edge carries at most one
// statement, except that assume may be combined with assign or havoc: the
// condition is then checked first, on an edge to a fresh location.
type ProgramEdge struct {
	From   string `yaml:"from"`
	To     string `yaml:"to"`
	Assume string `yaml:"assume,omitempty"`
	Assign string `yaml:"assign,omitempty"`
	Havoc  string `yaml:"havoc,omitempty"`
}

// LoadFile reads a YAML program from path.
func LoadFile(path string) (*CFA, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	c, err := Load(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Load decodes a YAML program and builds its CFA.
func Load(r io.Reader) (*CFA, error) {
	var p Program
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)
	if err := decoder.Decode(&p); err != nil {
		return nil, fmt.Errorf("decoding program: %w", err)
	}
	return p.Build()
}

// Build converts p into a CFA.
func (p Program) Build() (*CFA, error) {
	b := NewBuilder(p.Name)
	for name, typ := range p.Variables {
		sort, err := parseSort(typ)
		if err != nil {
			return nil, fmt.Errorf("variable %s: %w", name, err)
		}
		b.DeclareVar(name, sort)
	}
	if p.Entry == "" {
		return nil, ErrNoEntry
	}
	b.SetEntry(p.Entry)

	for i, e := range p.Edges {
		if err := p.addEdge(b, i, e); err != nil {
			return nil, fmt.Errorf("edge %d (%s -> %s): %w", i, e.From, e.To, err)
		}
	}
	for _, t := range p.Targets {
		if b.cfa.Location(t) == nil {
			return nil, fmt.Errorf("target %s: %w", t, ErrUnknownLocation)
		}
		b.MarkTarget(t)
	}
	return b.Build()
}

func (p Program) addEdge(b *Builder, i int, e ProgramEdge) error {
	if e.From == "" || e.To == "" {
		return fmt.Errorf("%w: missing endpoint", ErrUnknownLocation)
	}
	if e.Assign != "" && e.Havoc != "" {
		return fmt.Errorf("edge cannot both assign and havoc")
	}

	from := e.From
	if e.Assume != "" {
		cond, err := formula.Parse(e.Assume, b)
		if err != nil {
			return err
		}
		to := e.To
		if e.Assign != "" || e.Havoc != "" {
			to = fmt.Sprintf("%s.%d", e.From, i)
		}
		b.Assume(from, to, cond).Label = "[" + e.Assume + "]"
		from = to
	}

	switch {
	case e.Assign != "":
		name, rhs, ok := strings.Cut(e.Assign, ":=")
		if !ok {
			return fmt.Errorf("assignment %q: expected \"x := expr\"", e.Assign)
		}
		name = strings.TrimSpace(name)
		value, err := parseValue(b, name, strings.TrimSpace(rhs))
		if err != nil {
			return err
		}
		b.Assign(from, e.To, name, value).Label = name + " := " + strings.TrimSpace(rhs)
	case e.Havoc != "":
		b.Havoc(from, e.To, strings.TrimSpace(e.Havoc))
	case e.Assume == "":
		b.Blank(from, e.To)
	}
	return b.err
}

func parseValue(b *Builder, name, src string) (any, error) {
	sort, ok := b.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUndeclaredVar, name)
	}
	if sort == formula.SortBool {
		return formula.Parse(src, b)
	}
	return formula.ParseTerm(src, b)
}

func parseSort(s string) (formula.Sort, error) {
	switch strings.TrimSpace(s) {
	case "int":
		return formula.SortInt, nil
	case "bool":
		return formula.SortBool, nil
	}
	return 0, fmt.Errorf("unknown type %q", s)
}
