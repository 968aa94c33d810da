package templates

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrNoTemplate is returned when a filter leaves nothing to choose from.
var ErrNoTemplate = errors.New("no template matches")

//go:embed catalog.yaml
var builtinCatalog []byte

// Style is one text layer's visual preset, in the render API's drawtext terms.
type Style struct {
	Font        string   `yaml:"font" json:"font,omitempty"`
	FontSize    int      `yaml:"fontsize" json:"fontsize"`
	FontColor   string   `yaml:"fontcolor" json:"fontcolor"`
	BorderColor string   `yaml:"bordercolor" json:"bordercolor,omitempty"`
	BorderW     int      `yaml:"borderw" json:"borderw"`
	Box         int      `yaml:"box" json:"box"`
	BoxColor    string   `yaml:"boxcolor" json:"boxcolor,omitempty"`
	BoxBorderW  int      `yaml:"boxborderw" json:"boxborderw,omitempty"`
	ShadowColor string   `yaml:"shadowcolor" json:"shadowcolor,omitempty"`
	ShadowX     int      `yaml:"shadowx" json:"shadowx,omitempty"`
	ShadowY     int      `yaml:"shadowy" json:"shadowy,omitempty"`
	X           Position `yaml:"x" json:"x,omitempty"`
	Y           Position `yaml:"y" json:"y,omitempty"`
	MaxLines    int      `yaml:"max_lines" json:"max_lines,omitempty"`
}

// Position is a drawtext coordinate: a pixel offset ("250") or an expression
// ("h-330", "center").
type Position string

// Pixels returns the numeric offset when the position is a plain number.
func (p Position) Pixels() (int, bool) {
	n, err := strconv.Atoi(string(p))
	return n, err == nil
}

func (p Position) MarshalJSON() ([]byte, error) {
	if n, ok := p.Pixels(); ok {
		return []byte(strconv.Itoa(n)), nil
	}
	return []byte(strconv.Quote(string(p))), nil
}

type Template struct {
	Name      string   `yaml:"name" json:"name"`
	Category  string   `yaml:"category" json:"category"`
	BestFor   []string `yaml:"best_for" json:"best_for"`
	Title     Style    `yaml:"title" json:"title"`
	Subtitles Style    `yaml:"subtitles" json:"subtitles"`
}

func (t Template) clone() Template {
	t.BestFor = append([]string(nil), t.BestFor...)
	return t
}

// Catalog is an immutable set of templates keyed by template key.
type Catalog struct {
	version int
	byKey   map[string]Template
	keys    []string
}

type catalogFile struct {
	Version   int                 `yaml:"version"`
	Templates map[string]Template `yaml:"templates"`
}

func Parse(b []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("unmarshal catalog: %w", err)
	}
	if len(f.Templates) == 0 {
		return nil, errors.New("catalog has no templates")
	}
	c := &Catalog{version: f.Version, byKey: make(map[string]Template, len(f.Templates))}
	for k, t := range f.Templates {
		if t.Name == "" {
			return nil, fmt.Errorf("template %q: name is required", k)
		}
		if t.Title.FontSize <= 0 || t.Subtitles.FontSize <= 0 {
			return nil, fmt.Errorf("template %q: fontsize must be > 0", k)
		}
		c.byKey[k] = t
		c.keys = append(c.keys, k)
	}
	sort.Strings(c.keys)
	return c, nil
}

func LoadFile(path string) (*Catalog, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(b)
}

var (
	builtinOnce sync.Once
	builtin     *Catalog
	builtinErr  error
)

// Builtin returns the catalog shipped with the binary, parsed once.
func Builtin() (*Catalog, error) {
	builtinOnce.Do(func() {
		builtin, builtinErr = Parse(builtinCatalog)
	})
	return builtin, builtinErr
}

func (c *Catalog) Version() int { return c.version }

func (c *Catalog) Len() int { return len(c.keys) }

// Keys returns template keys in sorted order.
func (c *Catalog) Keys() []string { return append([]string(nil), c.keys...) }

func (c *Catalog) Get(key string) (Template, bool) {
	t, ok := c.byKey[key]
	if !ok {
		return Template{}, false
	}
	return t.clone(), true
}

// Filter narrows the selection. Key wins over Category; Genre only narrows
// when it leaves at least one template.
type Filter struct {
	Key      string
	Category string
	Genre    string
}

type Selection struct {
	Key       string   `json:"template_key"`
	Template  Template `json:"template"`
	Available int      `json:"templates_available"`
}

// Select picks one template uniformly at random among those matching f.
func (c *Catalog) Select(rng *rand.Rand, f Filter) (Selection, error) {
	keys := c.keys
	if _, ok := c.byKey[f.Key]; f.Key != "" && ok {
		keys = []string{f.Key}
	} else if f.Category != "" {
		keys = c.filter(keys, func(t Template) bool { return t.Category == f.Category })
	}

	if f.Genre != "" && len(keys) > 1 {
		genre := c.filter(keys, func(t Template) bool { return contains(t.BestFor, f.Genre) })
		if len(genre) > 0 {
			keys = genre
		}
	}
	if len(keys) == 0 {
		return Selection{}, fmt.Errorf("%w: category %q", ErrNoTemplate, f.Category)
	}

	k := keys[rng.Intn(len(keys))]
	return Selection{Key: k, Template: c.byKey[k].clone(), Available: len(keys)}, nil
}

func (c *Catalog) filter(keys []string, keep func(Template) bool) []string {
	var out []string
	for _, k := range keys {
		if keep(c.byKey[k]) {
			out = append(out, k)
		}
	}
	return out
}

func contains(xs []string, s string) bool {
	for _, x := range xs {
		if x == s {
			return true
		}
	}
	return false
}
