package catalog

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Item is a purchasable laboratory test or service.
type Item struct {
	ID                string
	Group             string
	Name              string
	UnitPrice         decimal.Decimal
	MethodDescription string
	SampleDescription string
	// Incompatible holds the material sources for which the item cannot be ordered.
	// Only items of the preparatory group may carry incompatibilities.
	Incompatible SourceSet
}

// Group is a normative document together with the tests it covers.
type Group struct {
	ID          string
	Title       string
	Preparatory bool
	Items       []Item
}

// SampleRules maps a test item id to the number of prepared specimens one unit of the
// test consumes. Items absent from the map do not need specimens.
type SampleRules map[string]int

// SamplesPerUnit returns the factor for id, or 0 when id carries no rule.
func (r SampleRules) SamplesPerUnit(id string) int {
	return r[id]
}

// Preparation names the preparation item ordered automatically for each material source
// that needs specimens to be made in the laboratory.
type Preparation struct {
	Core string
	Lump string
}

// ItemFor returns the preparation item id for the given source.
// Ready-made specimens need no preparation.
func (p Preparation) ItemFor(source MaterialSource) (string, bool) {
	switch source {
	case SourceCore:
		return p.Core, p.Core != ""
	case SourceLump:
		return p.Lump, p.Lump != ""
	default:
		return "", false
	}
}

// Automatic reports whether id is one of the preparation items the calculator adds on its
// own. Such items are never selected by hand.
func (p Preparation) Automatic(id string) bool {
	return id != "" && (id == p.Core || id == p.Lump)
}

var (
	ErrDuplicateID      = errors.New("duplicate catalog item id")
	ErrNegativePrice    = errors.New("negative unit price")
	ErrUnknownReference = errors.New("reference to unknown catalog item")
	ErrPreparatoryGroup = errors.New("catalog must have exactly one preparatory group")
)

// Index is the immutable, loaded catalog.
type Index struct {
	version string
	groups  []Group
	byID    map[string]Item
	rules   SampleRules
	prep    Preparation
}

// NewIndex validates the catalog and builds the lookup structures.
// Any violation is a configuration error and the catalog must not be used.
func NewIndex(version string, groups []Group, rules SampleRules, prep Preparation) (*Index, error) {
	idx := &Index{
		version: version,
		groups:  make([]Group, 0, len(groups)),
		byID:    make(map[string]Item),
		rules:   make(SampleRules, len(rules)),
		prep:    prep,
	}

	preparatory := 0
	for _, g := range groups {
		if g.Preparatory {
			preparatory++
		}
		group := Group{ID: g.ID, Title: g.Title, Preparatory: g.Preparatory, Items: make([]Item, 0, len(g.Items))}
		for _, it := range g.Items {
			if it.ID == "" {
				return nil, fmt.Errorf("group %q: item without id", g.ID)
			}
			if _, exists := idx.byID[it.ID]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateID, it.ID)
			}
			if it.UnitPrice.IsNegative() {
				return nil, fmt.Errorf("%w: %s", ErrNegativePrice, it.ID)
			}
			if !g.Preparatory && !it.Incompatible.Empty() {
				return nil, fmt.Errorf("item %s: only preparatory items may be restricted by material source", it.ID)
			}
			it.Group = g.ID
			idx.byID[it.ID] = it
			group.Items = append(group.Items, it)
		}
		idx.groups = append(idx.groups, group)
	}
	if preparatory != 1 {
		return nil, fmt.Errorf("%w: found %d", ErrPreparatoryGroup, preparatory)
	}

	for id, factor := range rules {
		if _, ok := idx.byID[id]; !ok {
			return nil, fmt.Errorf("%w: sample rule %s", ErrUnknownReference, id)
		}
		if factor <= 0 {
			return nil, fmt.Errorf("sample rule %s: factor must be positive, got %d", id, factor)
		}
		idx.rules[id] = factor
	}

	for _, src := range []MaterialSource{SourceCore, SourceLump} {
		id, ok := prep.ItemFor(src)
		if !ok {
			return nil, fmt.Errorf("preparation item for %s is not configured", src)
		}
		it, found := idx.byID[id]
		if !found {
			return nil, fmt.Errorf("%w: preparation item %s", ErrUnknownReference, id)
		}
		if !idx.isPreparatory(it) {
			return nil, fmt.Errorf("preparation item %s is outside the preparatory group", id)
		}
	}

	return idx, nil
}

// Version returns the catalog format version it was loaded from.
func (idx *Index) Version() string {
	return idx.version
}

// FindByID looks up an item. Unknown ids are reported with ok == false.
func (idx *Index) FindByID(id string) (Item, bool) {
	it, ok := idx.byID[id]
	return it, ok
}

// AllItems returns every item, groups and items in declaration order.
func (idx *Index) AllItems() []Item {
	items := make([]Item, 0, len(idx.byID))
	for _, g := range idx.groups {
		items = append(items, g.Items...)
	}
	return items
}

// Groups returns the grouped catalog in declaration order.
func (idx *Index) Groups() []Group {
	groups := make([]Group, len(idx.groups))
	for i, g := range idx.groups {
		g.Items = append([]Item(nil), g.Items...)
		groups[i] = g
	}
	return groups
}

// Rules returns a copy of the sample requirement rules.
func (idx *Index) Rules() SampleRules {
	rules := make(SampleRules, len(idx.rules))
	for id, factor := range idx.rules {
		rules[id] = factor
	}
	return rules
}

// Preparation returns the source to preparation item mapping.
func (idx *Index) Preparation() Preparation {
	return idx.prep
}

func (idx *Index) isPreparatory(it Item) bool {
	for _, g := range idx.groups {
		if g.ID == it.Group {
			return g.Preparatory
		}
	}
	return false
}

// IsApplicable reports whether the item may be ordered for the given material source.
func IsApplicable(it Item, source MaterialSource) bool {
	return !it.Incompatible.Has(source)
}
