package model

import "time"

// Pairing links a credit-card vendor/account to the bank account that
// settles its statements. MatchPatterns are case-insensitive substrings
// tested against bank transaction names; an empty list means the pairing
// matches no bank transactions and exists only to record the vendor link.
type Pairing struct {
	CreatedAt               time.Time
	UpdatedAt               time.Time
	CreditCardAccountNumber *string
	BankAccountNumber       *string
	CreditCardVendor        string
	BankVendor              string
	MatchPatterns           []string
	ID                      int64
	IsActive                bool
	DiscrepancyAcknowledged bool
}

// SameTuple reports whether two pairings reference the same
// (ccVendor, ccAccount, bankVendor, bankAccount) tuple. Account numbers
// compare NULL-safe: two nils are equal, nil never equals non-nil.
func (p *Pairing) SameTuple(o *Pairing) bool {
	return p.CreditCardVendor == o.CreditCardVendor &&
		p.BankVendor == o.BankVendor &&
		nullableEqual(p.CreditCardAccountNumber, o.CreditCardAccountNumber) &&
		nullableEqual(p.BankAccountNumber, o.BankAccountNumber)
}

func nullableEqual(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// PairingLogEntry is one row of the append-only pairing audit log.
type PairingLogEntry struct {
	CreatedAt time.Time
	Action    string
	Params    string // JSON blob of the relevant mutation parameters
	ID        int64
	PairingID int64
}

// Pairing log actions.
const (
	LogActionCreate      = "create"
	LogActionUpdate      = "update"
	LogActionDelete      = "delete"
	LogActionIgnoreCycle = "ignore_cycle"
	LogActionAddFee      = "add_fee"
	LogActionAcknowledge = "acknowledge"
	LogActionAutoPair    = "auto_pair"
)
