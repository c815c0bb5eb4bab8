package solana

import (
	"context"
	"errors"
	"net/url"

	"github.com/brojonat/chainfeed/service/endpoint"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// RPCClient is the subset of the Solana JSON-RPC API the adapter uses.
// Tests substitute a mock for the real node.
type RPCClient interface {
	GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error)

	GetSignaturesForAddress(
		ctx context.Context,
		account solana.PublicKey,
		opts *rpc.GetSignaturesForAddressOpts,
	) ([]*rpc.TransactionSignature, error)

	GetTransaction(
		ctx context.Context,
		signature solana.Signature,
		opts *rpc.GetTransactionOpts,
	) (*rpc.GetTransactionResult, error)
}

// ClientFactory builds the RPC client for one endpoint.
type ClientFactory func(ep endpoint.Endpoint) RPCClient

// realRPCClient adapts the solana-go client to RPCClient.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates an RPCClient for ep, attaching the credential as a
// query parameter or header per the endpoint's auth scheme.
func NewRPCClient(ep endpoint.Endpoint) RPCClient {
	rpcURL := ep.BaseURL
	if ep.Credential == "" {
		return &realRPCClient{client: rpc.New(rpcURL)}
	}
	switch ep.Auth {
	case endpoint.AuthHeaderKey:
		return &realRPCClient{client: rpc.NewWithHeaders(rpcURL, map[string]string{ep.KeyName: ep.Credential})}
	case endpoint.AuthQueryKey:
		if u, err := url.Parse(rpcURL); err == nil {
			q := u.Query()
			q.Set(ep.KeyName, ep.Credential)
			u.RawQuery = q.Encode()
			rpcURL = u.String()
		}
	}
	return &realRPCClient{client: rpc.New(rpcURL)}
}

func (r *realRPCClient) GetBalance(ctx context.Context, account solana.PublicKey, commitment rpc.CommitmentType) (*rpc.GetBalanceResult, error) {
	return r.client.GetBalance(ctx, account, commitment)
}

func (r *realRPCClient) GetSignaturesForAddress(
	ctx context.Context,
	account solana.PublicKey,
	opts *rpc.GetSignaturesForAddressOpts,
) ([]*rpc.TransactionSignature, error) {
	return r.client.GetSignaturesForAddressWithOpts(ctx, account, opts)
}

func (r *realRPCClient) GetTransaction(
	ctx context.Context,
	signature solana.Signature,
	opts *rpc.GetTransactionOpts,
) (*rpc.GetTransactionResult, error) {
	return r.client.GetTransaction(ctx, signature, opts)
}

// statusOf extracts the HTTP status carried by a solana-go error, or 0.
func statusOf(err error) int {
	if err == nil {
		return 200
	}
	var httpErr *jsonrpc.HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.Code
	}
	var rpcErr *jsonrpc.RPCError
	if errors.As(err, &rpcErr) {
		return 200
	}
	return 0
}
