// Package testutil builds small auction instances shared by package tests.
package testutil

import (
	"fmt"

	"github.com/cloudx-io/ccgauction/core"
)

// XORScenario is a world of distinct goods with bundle bids.
type XORScenario struct {
	World   core.World
	Goods   map[string]core.Good
	Bidders map[string]*core.SimpleBidder
	Bids    []core.XORBid
}

// NewXORScenario creates a world holding the given goods.
func NewXORScenario(name string, goodIDs ...string) *XORScenario {
	s := &XORScenario{
		World:   core.NewWorld(name),
		Goods:   make(map[string]core.Good, len(goodIDs)),
		Bidders: make(map[string]*core.SimpleBidder),
	}
	for _, id := range goodIDs {
		s.Goods[id] = core.Good{ID: id, World: s.World.ID}
	}
	return s
}

// Bundle returns the bundle of the named goods. Panics on unknown goods.
func (s *XORScenario) Bundle(goodIDs ...string) core.Bundle {
	goods := make([]core.Good, len(goodIDs))
	for i, id := range goodIDs {
		g, ok := s.Goods[id]
		if !ok {
			panic(fmt.Sprintf("unknown good %s", id))
		}
		goods[i] = g
	}
	bundle, err := core.NewBundle(goods...)
	if err != nil {
		panic(err)
	}
	return bundle
}

// Bidder returns the named bidder, creating it on first use.
func (s *XORScenario) Bidder(id string) *core.SimpleBidder {
	if b, ok := s.Bidders[id]; ok {
		return b
	}
	b := core.NewBidder(id, s.World.ID, nil)
	s.Bidders[id] = b
	return b
}

// Bid adds a bundle bid for the bidder, keeping bidders in first-bid order.
func (s *XORScenario) Bid(bidderID string, value float64, goodIDs ...string) *XORScenario {
	bidder := s.Bidder(bidderID)
	bb := core.BundleBid{Bundle: s.Bundle(goodIDs...), Value: value}
	for i := range s.Bids {
		if s.Bids[i].Bidder.ID() == bidderID {
			s.Bids[i].Bids = append(s.Bids[i].Bids, bb)
			return s
		}
	}
	s.Bids = append(s.Bids, core.XORBid{Bidder: bidder, Bids: []core.BundleBid{bb}})
	return s
}

// ScenarioA: goods {A,B,C,D}; bidder1{A}=2, bidder2{A,B,D}=3, bidder3{B,C}=2, bidder4{C,D}=1.
// The efficient allocation gives A to bidder1 and {B,C} to bidder3 for a total of 4.
func ScenarioA() *XORScenario {
	return NewXORScenario("scenario-a", "A", "B", "C", "D").
		Bid("bidder1", 2, "A").
		Bid("bidder2", 3, "A", "B", "D").
		Bid("bidder3", 2, "B", "C").
		Bid("bidder4", 1, "C", "D")
}

// ScenarioB: goods {A,B}; bidder1{A}=10, bidder2{B}=10, bidder3{A,B}=6.
// VCG charges nothing; bidder3 blocks those payments.
func ScenarioB() *XORScenario {
	return NewXORScenario("scenario-b", "A", "B").
		Bid("bidder1", 10, "A").
		Bid("bidder2", 10, "B").
		Bid("bidder3", 6, "A", "B")
}

// GenericScenario is a world of generic definitions with quantity bids.
type GenericScenario struct {
	World       core.World
	Definitions map[string]core.GenericDefinition
	Bidders     map[string]*core.SimpleBidder
	Bids        []core.GenericBid
}

// NewGenericScenario creates a world with the given definition supplies.
func NewGenericScenario(name string, supplies map[string]int) *GenericScenario {
	s := &GenericScenario{
		World:       core.NewWorld(name),
		Definitions: make(map[string]core.GenericDefinition, len(supplies)),
		Bidders:     make(map[string]*core.SimpleBidder),
	}
	for id, supply := range supplies {
		s.Definitions[id] = core.GenericDefinition{ID: id, Supply: supply, World: s.World.ID}
	}
	return s
}

// Quantities builds a quantity vector from definition ID / quantity pairs.
func (s *GenericScenario) Quantities(quantities map[string]int) core.GenericBundle {
	bundle := make(core.GenericBundle, 0, len(quantities))
	for id, q := range quantities {
		def, ok := s.Definitions[id]
		if !ok {
			panic(fmt.Sprintf("unknown definition %s", id))
		}
		bundle = append(bundle, core.GenericQuantity{Definition: def, Quantity: q})
	}
	return bundle
}

// Bid adds a quantity bid for the bidder, keeping bidders in first-bid order.
func (s *GenericScenario) Bid(bidderID string, value float64, quantities map[string]int) *GenericScenario {
	bidder, ok := s.Bidders[bidderID]
	if !ok {
		bidder = core.NewGenericBidder(bidderID, s.World.ID, nil)
		s.Bidders[bidderID] = bidder
	}
	qb := core.QuantityBid{Quantities: s.Quantities(quantities), Value: value}
	for i := range s.Bids {
		if s.Bids[i].Bidder.ID() == bidderID {
			s.Bids[i].Bids = append(s.Bids[i].Bids, qb)
			return s
		}
	}
	s.Bids = append(s.Bids, core.GenericBid{Bidder: bidder, Bids: []core.QuantityBid{qb}})
	return s
}

// ScenarioC: one definition with supply 2; two bidders each bid 1 unit at 5 and 2 units at 9.
// The efficient allocation gives one unit to each bidder for a total of 10.
func ScenarioC() *GenericScenario {
	return NewGenericScenario("scenario-c", map[string]int{"licence": 2}).
		Bid("bidder1", 5, map[string]int{"licence": 1}).
		Bid("bidder1", 9, map[string]int{"licence": 2}).
		Bid("bidder2", 5, map[string]int{"licence": 1}).
		Bid("bidder2", 9, map[string]int{"licence": 2})
}
