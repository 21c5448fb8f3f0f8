// Package decoder turns a transaction's raw log lines into typed staking
// events. Decoding is pure: no I/O, no fatal errors. Malformed input is
// absorbed into "skip this record" so one bad log line never poisons a
// transaction, and one bad transaction never poisons a batch.
package decoder

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"log/slog"
	"strconv"
	"strings"

	"github.com/gagliardetto/solana-go"

	"github.com/stakescope/stakescope/internal/core/domain"
	"github.com/stakescope/stakescope/internal/infra/rpc"
)

// logDataPrefix tags the log lines that carry an encoded event payload.
const logDataPrefix = "Program data: "

// Event discriminators as observed on-chain: the first 8 bytes of
// sha256("event:<Name>"). Pre-computed, never derived at runtime.
var discriminators = map[[8]byte]domain.EventKind{
	disc("dc82918e6d7b2664"): domain.EventDeposit,   // TokensStaked
	disc("1e746e935759099e"): domain.EventWithdraw,  // TokensWithdrawn
	disc("e44b2b6709c4b604"): domain.EventFeeUpdate, // FeeUpdated
}

func disc(s string) [8]byte {
	raw, err := hex.DecodeString(s)
	if err != nil || len(raw) != 8 {
		panic("bad discriminator constant: " + s)
	}
	var d [8]byte
	copy(d[:], raw)
	return d
}

// Decoder extracts typed events from fetched transactions.
type Decoder struct {
	log *slog.Logger
}

// New creates a decoder with the given log sink.
func New(log *slog.Logger) *Decoder {
	return &Decoder{log: log}
}

// Decode builds the indexable record for one transaction, or nil when the
// transaction does not actually invoke programID (listing APIs also return
// transactions that merely reference an address).
//
// A failed or log-less transaction is still a valid record, just with no
// events. Log lines that are not tagged data records, carry an unknown
// discriminator, or are too short for their layout are skipped one at a
// time; the rest of the transaction keeps decoding.
func (d *Decoder) Decode(signature, programID string, tx *rpc.TransactionRecord) *domain.IndexedTransaction {
	invoked := false
	for _, prog := range tx.InvokedPrograms {
		if prog == programID {
			invoked = true
			break
		}
	}
	if !invoked {
		return nil
	}

	rec := &domain.IndexedTransaction{
		ProgramID: programID,
		Signature: signature,
		Slot:      tx.Slot,
		BlockTime: tx.BlockTime,
		Err:       tx.Err,
		Logs:      tx.Logs,
	}

	if rec.Failed() || len(tx.Logs) == 0 {
		return rec
	}

	for i, line := range tx.Logs {
		payload, ok := strings.CutPrefix(line, logDataPrefix)
		if !ok {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			d.log.Debug("Skipping undecodable log payload", "signature", signature, "log_index", i, "error", err)
			continue
		}
		if event := d.decodeEvent(raw, signature, programID, i, rec); event != nil {
			rec.Events = append(rec.Events, event)
		}
	}
	return rec
}

// decodeEvent decodes one binary payload. Returns nil for unknown
// discriminators (forward-compatible skip) and malformed records.
func (d *Decoder) decodeEvent(raw []byte, signature, programID string, logIndex int, rec *domain.IndexedTransaction) *domain.Event {
	if len(raw) < 8 {
		d.log.Debug("Log payload shorter than discriminator", "signature", signature, "log_index", logIndex, "len", len(raw))
		return nil
	}

	var discriminator [8]byte
	copy(discriminator[:], raw[:8])
	kind, ok := discriminators[discriminator]
	if !ok {
		return nil
	}

	event := &domain.Event{
		Signature: signature,
		Slot:      rec.Slot,
		BlockTime: rec.BlockTime,
		ProgramID: programID,
		Kind:      kind,
		LogIndex:  logIndex,
	}

	body := raw[8:]
	switch kind {
	case domain.EventDeposit:
		// [staker:32][amount:u64][totalStaked:u64]
		if len(body) < 48 {
			return d.malformed(signature, kind, logIndex, len(raw))
		}
		event.Staker = address(body[0:32])
		event.Amount = u64(body[32:40])
		event.TotalStaked = u64(body[40:48])

	case domain.EventWithdraw:
		// [staker:32][amount:u64][fee:u64][totalStaked:u64]
		if len(body) < 56 {
			return d.malformed(signature, kind, logIndex, len(raw))
		}
		event.Staker = address(body[0:32])
		event.Amount = u64(body[32:40])
		event.Fee = u64(body[40:48])
		event.TotalStaked = u64(body[48:56])

	case domain.EventFeeUpdate:
		// [oldFee:u64][newFee:u64]
		if len(body) < 16 {
			return d.malformed(signature, kind, logIndex, len(raw))
		}
		event.OldFee = u64(body[0:8])
		event.NewFee = u64(body[8:16])
	}

	return event
}

func (d *Decoder) malformed(signature string, kind domain.EventKind, logIndex, size int) *domain.Event {
	d.log.Warn("Log payload shorter than event layout",
		"signature", signature, "kind", kind, "log_index", logIndex, "len", size)
	return nil
}

func address(raw []byte) string {
	return solana.PublicKeyFromBytes(raw).String()
}

func u64(raw []byte) string {
	return strconv.FormatUint(binary.LittleEndian.Uint64(raw), 10)
}
