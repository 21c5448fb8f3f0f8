// Package rpc provides resilient access to the Solana JSON-RPC and
// WebSocket endpoints: a narrow client contract over the calls the
// indexers need, a retry executor with error classification, and the
// solana-go backed implementations.
package rpc

import (
	"context"

	"github.com/stakescope/stakescope/internal/core/domain"
)

// TransactionRecord is the fetched body of one chain transaction, reduced
// to what the decoder needs.
type TransactionRecord struct {
	Slot      uint64
	BlockTime *int64
	// Err is the on-chain error, nil on success.
	Err *string
	// Logs are the raw log lines emitted during execution.
	Logs []string
	// InvokedPrograms lists every program address named by a top-level or
	// inner instruction. Listing APIs also return transactions that merely
	// reference an address; the decoder uses this to filter those out.
	InvokedPrograms []string
}

// ListOptions controls a signature listing call. Before paginates strictly
// older than the given signature; empty means start from the newest end.
type ListOptions struct {
	Limit  int
	Before string
}

// ChainClient is the pull side of the chain RPC: signature listing
// (newest-first) and single-transaction fetch.
type ChainClient interface {
	// ListSignatures returns up to opts.Limit signature refs for address,
	// newest first.
	ListSignatures(ctx context.Context, address string, opts ListOptions) ([]domain.SignatureRef, error)

	// GetTransaction fetches one transaction body. Returns (nil, nil) when
	// the transaction is not found (it may have vanished between listing
	// and fetch).
	GetTransaction(ctx context.Context, signature string) (*TransactionRecord, error)
}

// Notification is one pushed subscription event. It carries the signature
// only; the handler fetches the full transaction afterwards.
type Notification struct {
	Signature string
}

// Subscription is an open log subscription. Recv blocks until the next
// notification, a transport error, or ctx is done.
type Subscription interface {
	Recv(ctx context.Context) (Notification, error)
	// Unsubscribe releases the underlying resource. Release failures are
	// logged by the implementation, never surfaced.
	Unsubscribe()
}

// LogStreamer is the push side of the chain RPC: a subscription for any
// transaction mentioning an address.
type LogStreamer interface {
	SubscribeLogs(ctx context.Context, address string) (Subscription, error)
}
