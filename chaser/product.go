package chaser

import (
	"fmt"
	"strings"
)

// ProductKind identifies a licensed product. Wire tags the server reports
// but that are not listed here decode as ProductOther.
type ProductKind int

const (
	ProductOther ProductKind = iota
	ProductCore
	ProductFx
	ProductKarma
	ProductRender
	ProductEngine
)

// productTags maps server product_id tags to kinds.
var productTags = map[string]ProductKind{
	"Houdini-Escape": ProductCore,
	"Houdini-Master": ProductFx,
	"Karma-Render":   ProductKarma,
	"Render":         ProductRender,
	"Houdini-Engine": ProductEngine,
}

var productNames = map[ProductKind]string{
	ProductOther:  "other",
	ProductCore:   "core",
	ProductFx:     "fx",
	ProductKarma:  "karma",
	ProductRender: "render",
	ProductEngine: "engine",
}

// ProductKindFromTag maps a server product_id tag to its kind.
func ProductKindFromTag(tag string) ProductKind {
	if k, ok := productTags[tag]; ok {
		return k
	}
	return ProductOther
}

// ParseProductKind maps a product name such as "core" or "FX" to its kind.
// It is used for user input, not for server responses.
func ParseProductKind(name string) (ProductKind, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for k, n := range productNames {
		if n == name {
			return k, nil
		}
	}
	return ProductOther, fmt.Errorf("unknown product %q", name)
}

// ProductKinds returns the known kinds in declaration order, excluding
// ProductOther.
func ProductKinds() []ProductKind {
	return []ProductKind{ProductCore, ProductFx, ProductKarma, ProductRender, ProductEngine}
}

func (k ProductKind) String() string {
	if n, ok := productNames[k]; ok {
		return n
	}
	return fmt.Sprintf("ProductKind(%d)", int(k))
}

// Tag returns the server product_id tag for k, or "" for ProductOther.
func (k ProductKind) Tag() string {
	for tag, kind := range productTags {
		if kind == k {
			return tag
		}
	}
	return ""
}

// Criterion selects the license records counted towards availability.
type Criterion struct {
	Product      ProductKind
	MajorVersion uint8
}

func (c Criterion) String() string {
	return fmt.Sprintf("%s %d", c.Product, c.MajorVersion)
}
