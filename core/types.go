package core

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

// World identifies one auction instance. Goods, generic definitions and
// bidders all belong to exactly one world and must never be mixed.
type World struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

// NewWorld creates a world with a fresh random identity.
func NewWorld(name string) World {
	return World{ID: uuid.New(), Name: name}
}

// Good is an atomic, identity-bearing item such as a single spectrum license.
type Good struct {
	ID    string    `json:"id"`
	World uuid.UUID `json:"world"`
}

// Bundle is a set of distinct goods. Goods keep their insertion order.
type Bundle []Good

// NewBundle builds a bundle, rejecting duplicate goods and goods from different worlds.
func NewBundle(goods ...Good) (Bundle, error) {
	seen := make(map[string]bool, len(goods))
	for i, g := range goods {
		if seen[g.ID] {
			return nil, fmt.Errorf("%w: good %s appears twice", ErrDuplicateGood, g.ID)
		}
		seen[g.ID] = true
		if i > 0 && g.World != goods[0].World {
			return nil, fmt.Errorf("%w: good %s belongs to world %s, expected %s", ErrWorldMismatch, g.ID, g.World, goods[0].World)
		}
	}
	bundle := make(Bundle, len(goods))
	copy(bundle, goods)
	return bundle, nil
}

// Contains reports whether the bundle holds the good with the given ID.
func (b Bundle) Contains(goodID string) bool {
	for _, g := range b {
		if g.ID == goodID {
			return true
		}
	}
	return false
}

// IDs returns the sorted good IDs of the bundle.
func (b Bundle) IDs() []string {
	ids := make([]string, len(b))
	for i, g := range b {
		ids[i] = g.ID
	}
	sort.Strings(ids)
	return ids
}

// String renders the bundle as {A,B,C} using sorted good IDs.
func (b Bundle) String() string {
	return "{" + strings.Join(b.IDs(), ",") + "}"
}

// GenericDefinition is a category of interchangeable goods with a fixed supply.
type GenericDefinition struct {
	ID     string    `json:"id"`
	Supply int       `json:"supply"`
	World  uuid.UUID `json:"world"`
}

// GenericQuantity requests Quantity units of one generic definition.
type GenericQuantity struct {
	Definition GenericDefinition `json:"definition"`
	Quantity   int               `json:"quantity"`
}

// GenericBundle is a quantity vector over generic definitions.
type GenericBundle []GenericQuantity

// NewGenericBundle builds a quantity vector. Quantities must be positive and
// each definition may appear only once.
func NewGenericBundle(quantities ...GenericQuantity) (GenericBundle, error) {
	seen := make(map[string]bool, len(quantities))
	for i, q := range quantities {
		if q.Quantity <= 0 {
			return nil, fmt.Errorf("%w: %d units of %s", ErrInvalidQuantity, q.Quantity, q.Definition.ID)
		}
		if seen[q.Definition.ID] {
			return nil, fmt.Errorf("%w: definition %s appears twice", ErrDuplicateGood, q.Definition.ID)
		}
		seen[q.Definition.ID] = true
		if i > 0 && q.Definition.World != quantities[0].Definition.World {
			return nil, fmt.Errorf("%w: definition %s belongs to world %s", ErrWorldMismatch, q.Definition.ID, q.Definition.World)
		}
	}
	bundle := make(GenericBundle, len(quantities))
	copy(bundle, quantities)
	return bundle, nil
}

// QuantityOf returns the requested units of the given definition (0 if absent).
func (g GenericBundle) QuantityOf(definitionID string) int {
	for _, q := range g {
		if q.Definition.ID == definitionID {
			return q.Quantity
		}
	}
	return 0
}

// String renders the quantity vector as {def:qty,...} sorted by definition ID.
func (g GenericBundle) String() string {
	parts := make([]string, len(g))
	for i, q := range g {
		parts[i] = fmt.Sprintf("%s:%d", q.Definition.ID, q.Quantity)
	}
	sort.Strings(parts)
	return "{" + strings.Join(parts, ",") + "}"
}

// Bidder is supplied by the valuation collaborator. IDs must be stable and
// unique within a world.
type Bidder interface {
	ID() string
	WorldID() uuid.UUID
	CalculateValue(bundle Bundle) float64
}

// GenericValuer is implemented by bidders able to value quantity vectors.
type GenericValuer interface {
	CalculateGenericValue(bundle GenericBundle) float64
}

// BundleBid is one (bundle, declared value) pair of an XOR bid.
type BundleBid struct {
	Bundle Bundle  `json:"bundle"`
	Value  float64 `json:"value"`
}

// XORBid holds all bundle bids of one bidder; at most one is accepted.
type XORBid struct {
	Bidder Bidder
	Bids   []BundleBid
}

// QuantityBid is one (quantity vector, declared value) pair of a generic bid.
type QuantityBid struct {
	Quantities GenericBundle `json:"quantities"`
	Value      float64       `json:"value"`
}

// GenericBid holds all quantity bids of one bidder; at most one is accepted.
type GenericBid struct {
	Bidder Bidder
	Bids   []QuantityBid
}
