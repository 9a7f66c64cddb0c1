package types

// TransactionState is the lifecycle state of a transaction manager.
type TransactionState int

const (
	// TxUninitialized: constructed, no BEGIN issued.
	TxUninitialized TransactionState = iota
	// TxActive: BEGIN acknowledged.
	TxActive
	// TxTerminated: COMMIT or ROLLBACK issued.
	TxTerminated
)

func (s TransactionState) String() string {
	switch s {
	case TxUninitialized:
		return "uninitialized"
	case TxActive:
		return "active"
	case TxTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Metadata describes the most recently executed statement of a transaction.
// It is overwritten, not merged, on every successful query.
type Metadata struct {
	Connection  bool   `json:"connection"`
	ReferenceNo string `json:"reference_no,omitempty"`
	Timestamp   string `json:"timestamp,omitempty"`
}
