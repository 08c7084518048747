package core

import (
	"crypto/sha256"
	"fmt"

	"github.com/fxamacker/cbor/v2"
	"github.com/shopspring/decimal"
)

// ComputeBundleBidHash computes a commitment to a single bundle bid.
//
// Formula: SHA256(bidder_id + "|" + bundle + "|" + sprintf("%.6f", value) + "|" + nonce)
//
// The bundle is rendered with sorted good IDs and the value is formatted to exactly
// 6 decimal places so the hash does not depend on insertion order or float representation.
func ComputeBundleBidHash(bidderID string, bundle Bundle, value float64, nonce string) string {
	data := fmt.Sprintf("%s|%s|%.6f|%s", bidderID, bundle.String(), value, nonce)
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

// resultDigest is the canonical CBOR shape hashed by ComputeResultHash.
type resultDigest struct {
	Nonce      string         `cbor:"1,keyasint"`
	TotalValue string         `cbor:"2,keyasint"`
	Winners    []winnerDigest `cbor:"3,keyasint"`
	Payments   []string       `cbor:"4,keyasint"`
}

type winnerDigest struct {
	BidderID string `cbor:"1,keyasint"`
	Goods    string `cbor:"2,keyasint"`
	Value    string `cbor:"3,keyasint"`
}

// ComputeResultHash computes a digest of a mechanism result.
//
// Formula: SHA256(canonical_cbor({nonce, total, winners sorted by id, payments sorted by id}))
//
// Amounts are rounded to 6 decimal places first, so two runs whose payments differ
// only by solver noise below that precision hash identically.
func ComputeResultHash(result *MechanismResult, nonce string) (string, error) {
	digest := resultDigest{
		Nonce:      nonce,
		TotalValue: formatAmount(result.Allocation.TotalValue()),
		Winners:    make([]winnerDigest, 0, len(result.Allocation.winners)),
		Payments:   make([]string, 0),
	}
	for _, id := range result.Allocation.WinnerIDs() {
		trade, _ := result.Allocation.Get(id)
		goods := trade.Bundle.String()
		if len(trade.Quantities) > 0 {
			goods = trade.Quantities.String()
		}
		digest.Winners = append(digest.Winners, winnerDigest{
			BidderID: id,
			Goods:    goods,
			Value:    formatAmount(trade.Value),
		})
	}
	if result.Payment != nil {
		for _, id := range result.Payment.BidderIDs() {
			digest.Payments = append(digest.Payments, id+":"+formatAmount(result.Payment.Of(id)))
		}
	}

	encMode, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		return "", fmt.Errorf("create canonical cbor encoder: %w", err)
	}
	data, err := encMode.Marshal(digest)
	if err != nil {
		return "", fmt.Errorf("encode result digest: %w", err)
	}
	hash := sha256.Sum256(data)
	return fmt.Sprintf("%x", hash), nil
}

func formatAmount(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(6)
}
