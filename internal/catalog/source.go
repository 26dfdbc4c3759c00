package catalog

import (
	"fmt"
	"strings"
)

// MaterialSource is the physical form of the sample material a customer supplies.
// The zero value is SourceCore.
type MaterialSource int

const (
	SourceCore MaterialSource = iota
	SourceLump
	SourceReadyMade
)

// Sources lists every material source in display order.
var Sources = []MaterialSource{SourceCore, SourceLump, SourceReadyMade}

var sourceCodes = map[MaterialSource]string{
	SourceCore:      "core",
	SourceLump:      "lump",
	SourceReadyMade: "ready_made",
}

var sourceLabels = map[MaterialSource]string{
	SourceCore:      "Керны",
	SourceLump:      "Куски бетона",
	SourceReadyMade: "Готовые образцы",
}

// String returns the stable code used in forms, storage and catalog files.
func (s MaterialSource) String() string {
	if code, ok := sourceCodes[s]; ok {
		return code
	}
	return fmt.Sprintf("MaterialSource(%d)", int(s))
}

// Label returns the human readable name.
func (s MaterialSource) Label() string {
	return sourceLabels[s]
}

// Valid reports whether s is one of the known sources.
func (s MaterialSource) Valid() bool {
	_, ok := sourceCodes[s]
	return ok
}

// ParseMaterialSource converts a code produced by String back into a MaterialSource.
func ParseMaterialSource(raw string) (MaterialSource, error) {
	raw = strings.TrimSpace(strings.ToLower(raw))
	for s, code := range sourceCodes {
		if code == raw {
			return s, nil
		}
	}
	return SourceCore, fmt.Errorf("unknown material source %q", raw)
}

// SourceSet is a set of material sources stored as a bitmask.
type SourceSet uint8

// NewSourceSet builds a set from the given sources.
func NewSourceSet(sources ...MaterialSource) SourceSet {
	var set SourceSet
	for _, s := range sources {
		set |= 1 << uint(s)
	}
	return set
}

// Has reports whether s is a member of the set.
func (set SourceSet) Has(s MaterialSource) bool {
	return set&(1<<uint(s)) != 0
}

// Empty reports whether the set has no members.
func (set SourceSet) Empty() bool {
	return set == 0
}
