package valuation

import "fmt"

// DataIntegrityError reports a malformed persisted record: a SELL whose
// back-derived cost basis is zero or negative, or a BUY whose shares
// outstanding fall outside [0, transaction_shares]. Aggregation stops at
// the first violation; partial results over corrupt data are never
// returned.
type DataIntegrityError struct {
	TransactionID string
	Reason        string
}

func (e *DataIntegrityError) Error() string {
	return fmt.Sprintf("data integrity violation in transaction %s: %s", e.TransactionID, e.Reason)
}

// MissingPriceError reports that the price service returned no usable
// quote for a symbol with open shares. Substituting zero would show a
// phantom loss across every aggregate, so the valuation fails instead.
type MissingPriceError struct {
	Symbol string
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("no price available for symbol %s", e.Symbol)
}
