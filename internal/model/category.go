package model

// CategoryDefinition is category metadata owned by the external store;
// the core only reads it and reassigns transactions to the well-known
// categories below.
type CategoryDefinition struct {
	ID     int64
	Name   string // Hebrew display name
	NameEn string
}

// Well-known category names the pairing core depends on. The ingestion
// layer seeds them; the store looks them up by name.
const (
	CategoryRepaymentName   = "פרעון כרטיס אשראי"
	CategoryRepaymentNameEn = "Credit Card Repayment"
	CategoryRefundName      = "החזר כרטיס אשראי"
	CategoryRefundNameEn    = "Credit Card Refund"
	CategoryFeesName        = "עמלות בנק וכרטיס"
	CategoryFeesNameEn      = "Bank & Card Fees"
)
