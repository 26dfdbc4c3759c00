package catalog

import (
	"bytes"
	_ "embed"
	"fmt"
	"io"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

type fileCatalog struct {
	Version     string         `yaml:"version"`
	Preparation filePrep       `yaml:"preparation"`
	SampleRules map[string]int `yaml:"sample_rules"`
	Groups      []fileGroup    `yaml:"groups"`
}

type filePrep struct {
	Core string `yaml:"core"`
	Lump string `yaml:"lump"`
}

type fileGroup struct {
	ID          string     `yaml:"id"`
	Title       string     `yaml:"title"`
	Preparatory bool       `yaml:"preparatory"`
	Items       []fileItem `yaml:"items"`
}

type fileItem struct {
	ID               string    `yaml:"id"`
	Name             string    `yaml:"name"`
	Price            filePrice `yaml:"price"`
	Method           string    `yaml:"method"`
	Sample           string    `yaml:"sample"`
	IncompatibleWith []string  `yaml:"incompatible_with"`
}

// filePrice reads the scalar text directly so the amount never passes through float64.
type filePrice struct {
	decimal.Decimal
}

func (p *filePrice) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: price must be a number", n.Line)
	}
	d, err := decimal.NewFromString(n.Value)
	if err != nil {
		return fmt.Errorf("line %d: parse price %q: %w", n.Line, n.Value, err)
	}
	p.Decimal = d
	return nil
}

// Default returns the catalog compiled into the binary.
func Default() (*Index, error) {
	return Parse(bytes.NewReader(defaultCatalog))
}

// LoadFile reads a catalog from a YAML file on disk.
func LoadFile(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog file: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse decodes a YAML catalog and validates it with NewIndex.
func Parse(r io.Reader) (*Index, error) {
	var fc fileCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fc); err != nil {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}
	if fc.Version == "" {
		return nil, fmt.Errorf("decode catalog: version is required")
	}

	groups := make([]Group, 0, len(fc.Groups))
	for _, fg := range fc.Groups {
		g := Group{ID: fg.ID, Title: fg.Title, Preparatory: fg.Preparatory}
		for _, fi := range fg.Items {
			incompatible := make([]MaterialSource, 0, len(fi.IncompatibleWith))
			for _, code := range fi.IncompatibleWith {
				src, err := ParseMaterialSource(code)
				if err != nil {
					return nil, fmt.Errorf("item %s: %w", fi.ID, err)
				}
				incompatible = append(incompatible, src)
			}
			g.Items = append(g.Items, Item{
				ID:                fi.ID,
				Name:              fi.Name,
				UnitPrice:         fi.Price.Decimal,
				MethodDescription: fi.Method,
				SampleDescription: fi.Sample,
				Incompatible:      NewSourceSet(incompatible...),
			})
		}
		groups = append(groups, g)
	}

	idx, err := NewIndex(fc.Version, groups, SampleRules(fc.SampleRules), Preparation{
		Core: fc.Preparation.Core,
		Lump: fc.Preparation.Lump,
	})
	if err != nil {
		return nil, fmt.Errorf("build catalog %s: %w", fc.Version, err)
	}
	return idx, nil
}
