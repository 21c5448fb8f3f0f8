package domain

// Source tags which indexing mode first persisted a transaction.
type Source string

const (
	SourceBackfill Source = "backfill"
	SourceRealtime Source = "realtime"
)

// SignatureRef is one entry from the chain's signature listing: a
// transaction identifier plus its chain position. Transient, never
// persisted directly.
type SignatureRef struct {
	Signature string
	Slot      uint64
	BlockTime *int64
}

// IndexedTransaction is the persisted record for one chain transaction
// observed against a monitored program. (ProgramID, Signature) is unique,
// enforced by the store. Created once, never mutated after insert.
type IndexedTransaction struct {
	ProgramID string   `json:"program_id"`
	Signature string   `json:"signature"`
	Slot      uint64   `json:"slot"`
	BlockTime *int64   `json:"block_time"`
	Err       *string  `json:"err"`
	Logs      []string `json:"logs"`
	Events    []*Event `json:"events"`
	Source    Source   `json:"source"`
}

// Failed reports whether the transaction errored on-chain. Failed
// transactions are still indexed, they just carry no decoded events.
func (t *IndexedTransaction) Failed() bool {
	return t.Err != nil
}
