package domain

// EventKind is the closed set of event types the decoder recognizes.
type EventKind string

const (
	EventDeposit   EventKind = "deposit"
	EventWithdraw  EventKind = "withdraw"
	EventFeeUpdate EventKind = "fee_update"
)

// Event is one typed event extracted from a transaction's log lines.
// Numeric fields are decimal strings because u64 values may exceed the
// safe range of downstream JSON consumers. Unused fields stay empty.
// LogIndex is the ordinal of the source log line within the transaction,
// which together with (Signature, Kind) uniquely identifies the event.
type Event struct {
	Signature string    `json:"signature"`
	Slot      uint64    `json:"slot"`
	BlockTime *int64    `json:"block_time"`
	ProgramID string    `json:"program_id"`
	Kind      EventKind `json:"kind"`
	LogIndex  int       `json:"log_index"`

	Staker      string `json:"staker,omitempty"`
	Amount      string `json:"amount,omitempty"`
	Fee         string `json:"fee,omitempty"`
	TotalStaked string `json:"total_staked,omitempty"`
	OldFee      string `json:"old_fee,omitempty"`
	NewFee      string `json:"new_fee,omitempty"`
}
