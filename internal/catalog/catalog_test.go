package catalog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func testGroups() []Group {
	return []Group{
		{ID: "tests", Title: "Tests", Items: []Item{
			{ID: "a", Name: "A", UnitPrice: decimal.RequireFromString("100.10")},
			{ID: "b", Name: "B", UnitPrice: decimal.RequireFromString("200")},
		}},
		{ID: "prep", Title: "Prep", Preparatory: true, Items: []Item{
			{ID: "prep-core", Name: "Core prep", UnitPrice: decimal.RequireFromString("10"), Incompatible: NewSourceSet(SourceLump, SourceReadyMade)},
			{ID: "prep-lump", Name: "Lump prep", UnitPrice: decimal.RequireFromString("20"), Incompatible: NewSourceSet(SourceCore, SourceReadyMade)},
		}},
	}
}

func TestNewIndex_FindByIDAndAllItemsOrder(t *testing.T) {
	idx, err := NewIndex("t1", testGroups(), SampleRules{"a": 5}, Preparation{Core: "prep-core", Lump: "prep-lump"})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	it, ok := idx.FindByID("b")
	if !ok {
		t.Fatalf("expected item b to be found")
	}
	if it.Group != "tests" || !it.UnitPrice.Equal(decimal.NewFromInt(200)) {
		t.Fatalf("unexpected item: %+v", it)
	}

	if _, ok := idx.FindByID("missing"); ok {
		t.Fatalf("expected missing id to be reported as not found")
	}

	var ids []string
	for _, it := range idx.AllItems() {
		ids = append(ids, it.ID)
	}
	if got := strings.Join(ids, ","); got != "a,b,prep-core,prep-lump" {
		t.Fatalf("AllItems order = %s", got)
	}
}

func TestNewIndex_AccessorsReturnCopies(t *testing.T) {
	idx, err := NewIndex("t1", testGroups(), SampleRules{"a": 5}, Preparation{Core: "prep-core", Lump: "prep-lump"})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}

	groups := idx.Groups()
	groups[0].Items[0].Name = "changed"
	rules := idx.Rules()
	rules["a"] = 99

	if it, _ := idx.FindByID("a"); it.Name != "A" {
		t.Fatalf("catalog mutated through Groups: %+v", it)
	}
	if idx.Groups()[0].Items[0].Name != "A" {
		t.Fatalf("group items mutated through Groups copy")
	}
	if idx.Rules().SamplesPerUnit("a") != 5 {
		t.Fatalf("rules mutated through Rules copy")
	}
}

func TestNewIndex_RejectsInvalidCatalogs(t *testing.T) {
	prep := Preparation{Core: "prep-core", Lump: "prep-lump"}

	cases := []struct {
		name    string
		mutate  func(groups []Group) []Group
		rules   SampleRules
		prep    Preparation
		wantErr error
	}{
		{
			name: "duplicate id across groups",
			mutate: func(groups []Group) []Group {
				groups[1].Items = append(groups[1].Items, Item{ID: "a"})
				return groups
			},
			prep:    prep,
			wantErr: ErrDuplicateID,
		},
		{
			name: "negative price",
			mutate: func(groups []Group) []Group {
				groups[0].Items[0].UnitPrice = decimal.NewFromInt(-1)
				return groups
			},
			prep:    prep,
			wantErr: ErrNegativePrice,
		},
		{
			name:    "rule for unknown item",
			mutate:  func(groups []Group) []Group { return groups },
			rules:   SampleRules{"ghost": 3},
			prep:    prep,
			wantErr: ErrUnknownReference,
		},
		{
			name:    "preparation item unknown",
			mutate:  func(groups []Group) []Group { return groups },
			prep:    Preparation{Core: "prep-core", Lump: "ghost"},
			wantErr: ErrUnknownReference,
		},
		{
			name: "no preparatory group",
			mutate: func(groups []Group) []Group {
				groups[1].Preparatory = false
				groups[1].Items[0].Incompatible = 0
				groups[1].Items[1].Incompatible = 0
				return groups
			},
			prep:    prep,
			wantErr: ErrPreparatoryGroup,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewIndex("t1", tc.mutate(testGroups()), tc.rules, tc.prep)
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("NewIndex error = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestNewIndex_RejectsRestrictedItemOutsidePreparatoryGroup(t *testing.T) {
	groups := testGroups()
	groups[0].Items[0].Incompatible = NewSourceSet(SourceReadyMade)

	if _, err := NewIndex("t1", groups, nil, Preparation{Core: "prep-core", Lump: "prep-lump"}); err == nil {
		t.Fatalf("expected error for restricted non-preparatory item")
	}
}

func TestIsApplicable(t *testing.T) {
	idx, err := NewIndex("t1", testGroups(), nil, Preparation{Core: "prep-core", Lump: "prep-lump"})
	if err != nil {
		t.Fatalf("NewIndex: %v", err)
	}
	core, _ := idx.FindByID("prep-core")
	test, _ := idx.FindByID("a")

	cases := []struct {
		item   Item
		source MaterialSource
		want   bool
	}{
		{core, SourceCore, true},
		{core, SourceLump, false},
		{core, SourceReadyMade, false},
		{test, SourceReadyMade, true},
	}
	for _, tc := range cases {
		if got := IsApplicable(tc.item, tc.source); got != tc.want {
			t.Fatalf("IsApplicable(%s, %s) = %v, want %v", tc.item.ID, tc.source, got, tc.want)
		}
	}
}

func TestDefaultCatalogLoads(t *testing.T) {
	idx, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if idx.Version() == "" {
		t.Fatalf("expected catalog version")
	}

	for _, src := range []MaterialSource{SourceCore, SourceLump} {
		id, ok := idx.Preparation().ItemFor(src)
		if !ok {
			t.Fatalf("no preparation item for %s", src)
		}
		it, found := idx.FindByID(id)
		if !found {
			t.Fatalf("preparation item %s missing", id)
		}
		if !IsApplicable(it, src) {
			t.Fatalf("preparation item %s must be applicable to %s", id, src)
		}
		if IsApplicable(it, SourceReadyMade) {
			t.Fatalf("preparation item %s must not apply to ready-made specimens", id)
		}
	}

	it, _ := idx.FindByID("concrete-compression")
	if !it.UnitPrice.Equal(decimal.RequireFromString("1500")) {
		t.Fatalf("unexpected compression price %s", it.UnitPrice)
	}
}

func TestParse_PriceKeepsDecimalText(t *testing.T) {
	doc := `
version: "x"
preparation: {core: pc, lump: pl}
sample_rules: {t: 2}
groups:
  - id: g
    title: G
    items:
      - {id: t, name: T, price: 0.1}
      - {id: u, name: U, price: 0.2}
  - id: p
    title: P
    preparatory: true
    items:
      - {id: pc, name: PC, price: 1, incompatible_with: [lump, ready_made]}
      - {id: pl, name: PL, price: 2, incompatible_with: [core]}
`
	idx, err := Parse(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	tItem, _ := idx.FindByID("t")
	uItem, _ := idx.FindByID("u")
	if !tItem.UnitPrice.Add(uItem.UnitPrice).Equal(decimal.RequireFromString("0.3")) {
		t.Fatalf("expected exact 0.3, got %s", tItem.UnitPrice.Add(uItem.UnitPrice))
	}
	pl, _ := idx.FindByID("pl")
	if pl.Incompatible.Has(SourceReadyMade) || !pl.Incompatible.Has(SourceCore) {
		t.Fatalf("unexpected incompatibility set for pl: %b", pl.Incompatible)
	}
}

func TestParse_RejectsBadInput(t *testing.T) {
	cases := map[string]string{
		"missing version": `groups: []`,
		"bad price":       "version: x\ngroups:\n  - id: g\n    items:\n      - {id: t, price: \"12 руб.\"}\n",
		"unknown source":  "version: x\ngroups:\n  - id: p\n    preparatory: true\n    items:\n      - {id: t, price: 1, incompatible_with: [wood]}\n",
		"unknown field":   "version: x\ncolour: red\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse(strings.NewReader(doc)); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, defaultCatalog, 0o600); err != nil {
		t.Fatalf("write catalog: %v", err)
	}

	idx, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if len(idx.AllItems()) == 0 {
		t.Fatalf("expected items")
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestParseMaterialSource(t *testing.T) {
	for _, src := range Sources {
		got, err := ParseMaterialSource(src.String())
		if err != nil || got != src {
			t.Fatalf("ParseMaterialSource(%q) = %v, %v", src.String(), got, err)
		}
		if src.Label() == "" {
			t.Fatalf("missing label for %s", src)
		}
	}
	if _, err := ParseMaterialSource("wood"); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	if MaterialSource(7).Valid() {
		t.Fatalf("out-of-range source must be invalid")
	}
}

func TestPreparationAutomatic(t *testing.T) {
	prep := Preparation{Core: "prep-core"}
	if !prep.Automatic("prep-core") {
		t.Fatalf("core preparation item must be automatic")
	}
	if prep.Automatic("") || prep.Automatic("a") {
		t.Fatalf("only configured preparation ids are automatic")
	}
}
