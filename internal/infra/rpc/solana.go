package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/stakescope/stakescope/internal/core/domain"
)

// CommitmentFromString maps a config value onto a commitment level,
// defaulting to confirmed (avoids indexing slots that can still reorg).
func CommitmentFromString(s string) solrpc.CommitmentType {
	switch s {
	case "processed":
		return solrpc.CommitmentProcessed
	case "finalized":
		return solrpc.CommitmentFinalized
	default:
		return solrpc.CommitmentConfirmed
	}
}

// SolanaClient implements ChainClient over the Solana JSON-RPC HTTP
// endpoint.
type SolanaClient struct {
	client     *solrpc.Client
	commitment solrpc.CommitmentType
	log        *slog.Logger
}

// NewSolanaClient creates a client for the given HTTP endpoint.
func NewSolanaClient(endpoint string, commitment string, log *slog.Logger) *SolanaClient {
	return &SolanaClient{
		client:     solrpc.New(endpoint),
		commitment: CommitmentFromString(commitment),
		log:        log,
	}
}

// ListSignatures returns signature refs for address, newest first.
func (c *SolanaClient) ListSignatures(ctx context.Context, address string, opts ListOptions) ([]domain.SignatureRef, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid program address %q: %w", address, err)
	}

	rpcOpts := &solrpc.GetSignaturesForAddressOpts{
		Commitment: c.commitment,
	}
	if opts.Limit > 0 {
		limit := opts.Limit
		rpcOpts.Limit = &limit
	}
	if opts.Before != "" {
		before, err := solana.SignatureFromBase58(opts.Before)
		if err != nil {
			return nil, fmt.Errorf("invalid before signature %q: %w", opts.Before, err)
		}
		rpcOpts.Before = before
	}

	sigs, err := c.client.GetSignaturesForAddressWithOpts(ctx, pubkey, rpcOpts)
	if err != nil {
		return nil, fmt.Errorf("getSignaturesForAddress: %w", err)
	}

	refs := make([]domain.SignatureRef, 0, len(sigs))
	for _, s := range sigs {
		ref := domain.SignatureRef{
			Signature: s.Signature.String(),
			Slot:      uint64(s.Slot),
		}
		if s.BlockTime != nil {
			bt := int64(*s.BlockTime)
			ref.BlockTime = &bt
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// GetTransaction fetches one transaction body. Returns (nil, nil) when the
// node no longer has it.
func (c *SolanaClient) GetTransaction(ctx context.Context, signature string) (*TransactionRecord, error) {
	sig, err := solana.SignatureFromBase58(signature)
	if err != nil {
		return nil, fmt.Errorf("invalid signature %q: %w", signature, err)
	}

	maxVersion := uint64(0)
	out, err := c.client.GetTransaction(ctx, sig, &solrpc.GetTransactionOpts{
		Encoding:                       solana.EncodingBase64,
		Commitment:                     c.commitment,
		MaxSupportedTransactionVersion: &maxVersion,
	})
	if err != nil {
		if errors.Is(err, solrpc.ErrNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("getTransaction %s: %w", signature, err)
	}
	if out == nil {
		return nil, nil
	}

	rec := &TransactionRecord{
		Slot: uint64(out.Slot),
	}
	if out.BlockTime != nil {
		bt := int64(*out.BlockTime)
		rec.BlockTime = &bt
	}
	if out.Meta != nil {
		if out.Meta.Err != nil {
			rec.Err = marshalTxErr(out.Meta.Err)
		}
		rec.Logs = out.Meta.LogMessages
	}

	rec.InvokedPrograms = c.invokedPrograms(out, signature)
	return rec, nil
}

// invokedPrograms resolves every program address named by a top-level or
// inner instruction. A transaction that fails to decode yields an empty
// list, which the decoder treats as "not an interaction".
func (c *SolanaClient) invokedPrograms(out *solrpc.GetTransactionResult, signature string) []string {
	if out.Transaction == nil {
		return nil
	}
	tx, err := out.Transaction.GetTransaction()
	if err != nil || tx == nil {
		c.log.Warn("Failed to decode transaction envelope", "signature", signature, "error", err)
		return nil
	}

	msg := &tx.Message
	seen := make(map[string]struct{})
	var programs []string

	add := func(idx uint16) {
		prog, err := msg.Program(idx)
		if err != nil {
			return
		}
		key := prog.String()
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		programs = append(programs, key)
	}

	for _, ix := range msg.Instructions {
		add(ix.ProgramIDIndex)
	}
	if out.Meta != nil {
		for _, inner := range out.Meta.InnerInstructions {
			for _, ix := range inner.Instructions {
				add(ix.ProgramIDIndex)
			}
		}
	}
	return programs
}

func marshalTxErr(txErr any) *string {
	raw, err := json.Marshal(txErr)
	var s string
	if err != nil {
		s = fmt.Sprintf("%v", txErr)
	} else {
		s = string(raw)
	}
	return &s
}
