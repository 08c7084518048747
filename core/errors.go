package core

import "errors"

// Usage errors. Constructors wrap these with context, so match with errors.Is.
var (
	ErrWorldMismatch   = errors.New("bidders and goods from different worlds")
	ErrNoBids          = errors.New("bid set is empty")
	ErrInvalidQuantity = errors.New("generic quantity must be positive")
	ErrDuplicateGood   = errors.New("duplicate good in bundle")
	ErrDuplicateBidder = errors.New("bidder submitted more than one bid set")
	ErrInvalidValue    = errors.New("declared value must be a finite non-negative number")
	ErrSupplyMismatch  = errors.New("generic definition declared with conflicting supply")
)
