package decoder

import (
	"encoding/base64"
	"encoding/binary"
	"encoding/hex"
	"io"
	"log/slog"
	"testing"

	"github.com/gagliardetto/solana-go"

	"github.com/stakescope/stakescope/internal/core/domain"
	"github.com/stakescope/stakescope/internal/infra/rpc"
)

const testProgram = "Stake111111111111111111111111111111111111111"

func testDecoder() *Decoder {
	return New(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func discBytes(t *testing.T, s string) []byte {
	t.Helper()
	raw, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return raw
}

func u64le(v uint64) []byte {
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, v)
	return buf
}

func dataLog(payload []byte) string {
	return "Program data: " + base64.StdEncoding.EncodeToString(payload)
}

func depositPayload(t *testing.T, staker [32]byte, amount, total uint64) []byte {
	t.Helper()
	p := discBytes(t, "dc82918e6d7b2664")
	p = append(p, staker[:]...)
	p = append(p, u64le(amount)...)
	p = append(p, u64le(total)...)
	return p
}

func txRecord(logs ...string) *rpc.TransactionRecord {
	bt := int64(1700000000)
	return &rpc.TransactionRecord{
		Slot:            12345,
		BlockTime:       &bt,
		Logs:            logs,
		InvokedPrograms: []string{testProgram},
	}
}

func TestDecode_Deposit(t *testing.T) {
	var staker [32]byte
	staker[0] = 0xAB
	tx := txRecord(
		"Program log: Instruction: Deposit",
		dataLog(depositPayload(t, staker, 1_000_000_000, 5_000_000_000)),
	)

	rec := testDecoder().Decode("sig-1", testProgram, tx)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if len(rec.Events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(rec.Events))
	}

	ev := rec.Events[0]
	if ev.Kind != domain.EventDeposit {
		t.Errorf("expected deposit, got %s", ev.Kind)
	}
	if want := solana.PublicKeyFromBytes(staker[:]).String(); ev.Staker != want {
		t.Errorf("staker = %s, want %s", ev.Staker, want)
	}
	if ev.Amount != "1000000000" {
		t.Errorf("amount = %s, want 1000000000", ev.Amount)
	}
	if ev.TotalStaked != "5000000000" {
		t.Errorf("total_staked = %s, want 5000000000", ev.TotalStaked)
	}
	if ev.LogIndex != 1 {
		t.Errorf("log_index = %d, want 1", ev.LogIndex)
	}
	if ev.Slot != 12345 {
		t.Errorf("slot = %d, want 12345", ev.Slot)
	}
}

func TestDecode_Withdraw(t *testing.T) {
	var staker [32]byte
	staker[31] = 0x01
	p := discBytes(t, "1e746e935759099e")
	p = append(p, staker[:]...)
	p = append(p, u64le(500)...)
	p = append(p, u64le(5)...)
	p = append(p, u64le(9500)...)

	rec := testDecoder().Decode("sig-2", testProgram, txRecord(dataLog(p)))
	if rec == nil || len(rec.Events) != 1 {
		t.Fatalf("expected 1 event, got record %+v", rec)
	}

	ev := rec.Events[0]
	if ev.Kind != domain.EventWithdraw {
		t.Errorf("expected withdraw, got %s", ev.Kind)
	}
	if ev.Amount != "500" || ev.Fee != "5" || ev.TotalStaked != "9500" {
		t.Errorf("got amount=%s fee=%s total=%s", ev.Amount, ev.Fee, ev.TotalStaked)
	}
}

func TestDecode_FeeUpdate(t *testing.T) {
	p := discBytes(t, "e44b2b6709c4b604")
	p = append(p, u64le(100)...)
	p = append(p, u64le(250)...)

	rec := testDecoder().Decode("sig-3", testProgram, txRecord(dataLog(p)))
	if rec == nil || len(rec.Events) != 1 {
		t.Fatalf("expected 1 event, got record %+v", rec)
	}

	ev := rec.Events[0]
	if ev.Kind != domain.EventFeeUpdate {
		t.Errorf("expected fee_update, got %s", ev.Kind)
	}
	if ev.OldFee != "100" || ev.NewFee != "250" {
		t.Errorf("got old=%s new=%s", ev.OldFee, ev.NewFee)
	}
	if ev.Staker != "" {
		t.Errorf("fee update should carry no staker, got %s", ev.Staker)
	}
}

func TestDecode_NotInvoked(t *testing.T) {
	tx := txRecord("Program log: hello")
	tx.InvokedPrograms = []string{"SomeOtherProgram11111111111111111111111111"}

	if rec := testDecoder().Decode("sig-4", testProgram, tx); rec != nil {
		t.Fatalf("expected nil for a transaction that does not invoke the program, got %+v", rec)
	}
}

func TestDecode_FailedTransaction(t *testing.T) {
	var staker [32]byte
	tx := txRecord(dataLog(depositPayload(t, staker, 1, 1)))
	errStr := `{"InstructionError":[0,{"Custom":6001}]}`
	tx.Err = &errStr

	rec := testDecoder().Decode("sig-5", testProgram, tx)
	if rec == nil {
		t.Fatal("failed transactions are still recorded")
	}
	if len(rec.Events) != 0 {
		t.Errorf("failed transaction must not produce events, got %d", len(rec.Events))
	}
	if !rec.Failed() {
		t.Error("record should report failed")
	}
}

func TestDecode_NoLogs(t *testing.T) {
	tx := txRecord()
	rec := testDecoder().Decode("sig-6", testProgram, tx)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if len(rec.Events) != 0 {
		t.Errorf("expected no events, got %d", len(rec.Events))
	}
}

func TestDecode_SkipsMalformedPayloads(t *testing.T) {
	var staker [32]byte
	staker[5] = 0x42

	unknown := append([]byte{0xde, 0xad, 0xbe, 0xef, 0x00, 0x11, 0x22, 0x33}, u64le(7)...)
	truncated := discBytes(t, "dc82918e6d7b2664") // discriminator only, no body

	tx := txRecord(
		dataLog([]byte{0x01, 0x02}),    // shorter than a discriminator
		"Program data: not-base64!!!",  // undecodable payload
		dataLog(unknown),               // unknown discriminator
		dataLog(truncated),             // known kind, body too short
		"Program log: something else",  // not a data line
		dataLog(depositPayload(t, staker, 42, 42)),
	)

	rec := testDecoder().Decode("sig-7", testProgram, tx)
	if rec == nil {
		t.Fatal("expected a record")
	}
	if len(rec.Events) != 1 {
		t.Fatalf("expected only the valid deposit to survive, got %d events", len(rec.Events))
	}
	if rec.Events[0].Amount != "42" {
		t.Errorf("amount = %s, want 42", rec.Events[0].Amount)
	}
	if rec.Events[0].LogIndex != 5 {
		t.Errorf("log_index = %d, want 5", rec.Events[0].LogIndex)
	}
}
