package rpc

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
	solrpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
)

// SolanaStreamer implements LogStreamer over the Solana WebSocket
// endpoint. Each SubscribeLogs call opens its own connection so that a
// dropped subscription can be rebuilt from scratch.
type SolanaStreamer struct {
	endpoint   string
	commitment solrpc.CommitmentType
	log        *slog.Logger
}

// NewSolanaStreamer creates a streamer for the given WebSocket endpoint.
func NewSolanaStreamer(endpoint string, commitment string, log *slog.Logger) *SolanaStreamer {
	return &SolanaStreamer{
		endpoint:   endpoint,
		commitment: CommitmentFromString(commitment),
		log:        log,
	}
}

// SubscribeLogs opens a "mentions" log subscription for address.
func (s *SolanaStreamer) SubscribeLogs(ctx context.Context, address string) (Subscription, error) {
	pubkey, err := solana.PublicKeyFromBase58(address)
	if err != nil {
		return nil, fmt.Errorf("invalid program address %q: %w", address, err)
	}

	client, err := ws.Connect(ctx, s.endpoint)
	if err != nil {
		return nil, fmt.Errorf("ws connect %s: %w", s.endpoint, err)
	}

	sub, err := client.LogsSubscribeMentions(pubkey, s.commitment)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("logsSubscribe mentions %s: %w", address, err)
	}

	return &solanaSubscription{client: client, sub: sub, log: s.log}, nil
}

type solanaSubscription struct {
	client *ws.Client
	sub    *ws.LogSubscription
	log    *slog.Logger
}

func (s *solanaSubscription) Recv(ctx context.Context) (Notification, error) {
	result, err := s.sub.Recv(ctx)
	if err != nil {
		return Notification{}, err
	}
	return Notification{Signature: result.Value.Signature.String()}, nil
}

func (s *solanaSubscription) Unsubscribe() {
	defer func() {
		// The ws client panics if the connection already died underneath
		// the subscription; shutdown must not be blocked by that.
		if r := recover(); r != nil {
			s.log.Warn("Failed to release log subscription", "panic", r)
		}
	}()
	s.sub.Unsubscribe()
	s.client.Close()
}
