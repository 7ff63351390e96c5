package cosmos

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

type accountInfo struct {
	AccountNumber uint64
	Sequence      uint64
}

type blockInfo struct {
	ChainID string
	Height  string
}

type txResult struct {
	Hash   string
	Code   uint64
	RawLog string
	Height string
}

// backend is the node API the adapter needs, independent of transport.
type backend interface {
	account(ctx context.Context, address string) (accountInfo, error)
	latestBlock(ctx context.Context) (blockInfo, error)
	rewards(ctx context.Context, delegator, denom string) (*big.Int, error)
	broadcast(ctx context.Context, tx []byte) (txResult, error)
	// transaction returns nil when the node does not know the hash yet.
	transaction(ctx context.Context, hash string) (*txResult, error)
}

type restBackend struct {
	client rpc.RPCClient
}

type restAccount struct {
	AccountNumber string `json:"account_number"`
	Sequence      string `json:"sequence"`
	BaseAccount   *struct {
		AccountNumber string `json:"account_number"`
		Sequence      string `json:"sequence"`
	} `json:"base_account"`
}

type restTxResponse struct {
	TxHash string `json:"txhash"`
	Code   uint64 `json:"code"`
	RawLog string `json:"raw_log"`
	Height string `json:"height"`
}

func (r restTxResponse) result() txResult {
	return txResult{Hash: r.TxHash, Code: r.Code, RawLog: r.RawLog, Height: r.Height}
}

func (b *restBackend) get(ctx context.Context, path string, out any) error {
	result, err := b.client.Execute(ctx, rpc.NewRESTOperation(path, "GET", nil))
	if err != nil {
		return err
	}
	return rpc.Decode(result, out)
}

func (b *restBackend) account(ctx context.Context, address string) (accountInfo, error) {
	var resp struct {
		Account restAccount `json:"account"`
	}
	if err := b.get(ctx, "cosmos/auth/v1beta1/accounts/"+address, &resp); err != nil {
		return accountInfo{}, err
	}
	number, sequence := resp.Account.AccountNumber, resp.Account.Sequence
	if resp.Account.BaseAccount != nil {
		number, sequence = resp.Account.BaseAccount.AccountNumber, resp.Account.BaseAccount.Sequence
	}
	return parseAccount(number, sequence)
}

func (b *restBackend) latestBlock(ctx context.Context) (blockInfo, error) {
	var resp struct {
		Block struct {
			Header struct {
				ChainID string `json:"chain_id"`
				Height  string `json:"height"`
			} `json:"header"`
		} `json:"block"`
	}
	if err := b.get(ctx, "cosmos/base/tendermint/v1beta1/blocks/latest", &resp); err != nil {
		return blockInfo{}, err
	}
	if resp.Block.Header.ChainID == "" {
		return blockInfo{}, fmt.Errorf("latest block has no chain id")
	}
	return blockInfo{ChainID: resp.Block.Header.ChainID, Height: resp.Block.Header.Height}, nil
}

func (b *restBackend) rewards(ctx context.Context, delegator, denom string) (*big.Int, error) {
	var resp struct {
		Total []struct {
			Denom  string `json:"denom"`
			Amount string `json:"amount"`
		} `json:"total"`
	}
	if err := b.get(ctx, "cosmos/distribution/v1beta1/delegators/"+delegator+"/rewards", &resp); err != nil {
		return nil, err
	}
	for _, c := range resp.Total {
		if c.Denom != denom {
			continue
		}
		d, err := decimal.NewFromString(c.Amount)
		if err != nil {
			return nil, fmt.Errorf("invalid reward amount %q: %w", c.Amount, err)
		}
		return d.Truncate(0).BigInt(), nil
	}
	return new(big.Int), nil
}

func (b *restBackend) broadcast(ctx context.Context, tx []byte) (txResult, error) {
	body := map[string]any{
		"tx_bytes": base64.StdEncoding.EncodeToString(tx),
		"mode":     "BROADCAST_MODE_SYNC",
	}
	result, err := b.client.Execute(ctx, rpc.NewRESTOperation("cosmos/tx/v1beta1/txs", "POST", body))
	if err != nil {
		return txResult{}, err
	}
	var resp struct {
		TxResponse restTxResponse `json:"tx_response"`
	}
	if err := rpc.Decode(result, &resp); err != nil {
		return txResult{}, err
	}
	return resp.TxResponse.result(), nil
}

func (b *restBackend) transaction(ctx context.Context, hash string) (*txResult, error) {
	var resp struct {
		TxResponse restTxResponse `json:"tx_response"`
	}
	err := b.get(ctx, "cosmos/tx/v1beta1/txs/"+hash, &resp)
	var httpErr *rpc.HTTPError
	if errors.As(err, &httpErr) && httpErr.NotFound() {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r := resp.TxResponse.result()
	return &r, nil
}

// rawCodec passes pre-encoded protobuf bytes through gRPC untouched.
type rawCodec struct{}

func (rawCodec) Marshal(v any) ([]byte, error) {
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("raw codec: unexpected request %T", v)
	}
	return b, nil
}

func (rawCodec) Unmarshal(data []byte, v any) error {
	p, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: unexpected response %T", v)
	}
	*p = append((*p)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "proto" }

type grpcBackend struct {
	client rpc.RPCClient
}

const (
	methodAccount        = "/cosmos.auth.v1beta1.Query/Account"
	methodLatestBlock    = "/cosmos.base.tendermint.v1beta1.Service/GetLatestBlock"
	methodTotalRewards   = "/cosmos.distribution.v1beta1.Query/DelegationTotalRewards"
	methodBroadcastTx    = "/cosmos.tx.v1beta1.Service/BroadcastTx"
	methodGetTx          = "/cosmos.tx.v1beta1.Service/GetTx"
	broadcastModeSync    = 2
	legacyDecPrecision   = 18
	ethAccountTypeSuffix = "EthAccount"
)

func (b *grpcBackend) invoke(ctx context.Context, method string, req []byte) (fields, error) {
	op := rpc.NewGRPCOperation(method, func(ctx context.Context, conn grpc.ClientConnInterface) (any, error) {
		var resp []byte
		if err := conn.Invoke(ctx, method, req, &resp, grpc.ForceCodec(rawCodec{})); err != nil {
			return nil, err
		}
		return resp, nil
	})
	result, err := b.client.Execute(ctx, op)
	if err != nil {
		return fields{}, err
	}
	raw, _ := result.([]byte)
	return parseFields(raw)
}

func (b *grpcBackend) account(ctx context.Context, address string) (accountInfo, error) {
	resp, err := b.invoke(ctx, methodAccount, appendString(nil, 1, address))
	if err != nil {
		return accountInfo{}, err
	}
	anyMsg, err := resp.message(1)
	if err != nil {
		return accountInfo{}, err
	}
	acc, err := anyMsg.message(2)
	if err != nil {
		return accountInfo{}, err
	}
	if strings.HasSuffix(anyMsg.str(1), ethAccountTypeSuffix) {
		if acc, err = acc.message(1); err != nil {
			return accountInfo{}, err
		}
	}
	return accountInfo{AccountNumber: acc.varints[3], Sequence: acc.varints[4]}, nil
}

func (b *grpcBackend) latestBlock(ctx context.Context) (blockInfo, error) {
	resp, err := b.invoke(ctx, methodLatestBlock, nil)
	if err != nil {
		return blockInfo{}, err
	}
	blockField := protowire.Number(3)
	if resp.first(blockField) == nil {
		blockField = 2
	}
	block, err := resp.message(blockField)
	if err != nil {
		return blockInfo{}, err
	}
	header, err := block.message(1)
	if err != nil {
		return blockInfo{}, err
	}
	if header.str(2) == "" {
		return blockInfo{}, fmt.Errorf("latest block has no chain id")
	}
	return blockInfo{ChainID: header.str(2), Height: strconv.FormatUint(header.varints[3], 10)}, nil
}

func (b *grpcBackend) rewards(ctx context.Context, delegator, denom string) (*big.Int, error) {
	resp, err := b.invoke(ctx, methodTotalRewards, appendString(nil, 1, delegator))
	if err != nil {
		return nil, err
	}
	for _, raw := range resp.bytes[2] {
		c, err := parseFields(raw)
		if err != nil {
			return nil, err
		}
		if c.str(1) != denom {
			continue
		}
		// LegacyDec travels as an integer scaled by 10^18
		d, err := decimal.NewFromString(c.str(2))
		if err != nil {
			return nil, fmt.Errorf("invalid reward amount %q: %w", c.str(2), err)
		}
		return d.Shift(-legacyDecPrecision).Truncate(0).BigInt(), nil
	}
	return new(big.Int), nil
}

func (b *grpcBackend) broadcast(ctx context.Context, tx []byte) (txResult, error) {
	req := appendBytes(nil, 1, tx)
	req = appendVarint(req, 2, broadcastModeSync)
	resp, err := b.invoke(ctx, methodBroadcastTx, req)
	if err != nil {
		return txResult{}, err
	}
	r, err := resp.message(1)
	if err != nil {
		return txResult{}, err
	}
	return grpcTxResult(r), nil
}

func (b *grpcBackend) transaction(ctx context.Context, hash string) (*txResult, error) {
	resp, err := b.invoke(ctx, methodGetTx, appendString(nil, 1, hash))
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r, err := resp.message(2)
	if err != nil {
		return nil, err
	}
	result := grpcTxResult(r)
	return &result, nil
}

func grpcTxResult(r fields) txResult {
	return txResult{
		Height: strconv.FormatUint(r.varints[1], 10),
		Hash:   r.str(2),
		Code:   r.varints[4],
		RawLog: r.str(6),
	}
}

func parseAccount(number, sequence string) (accountInfo, error) {
	n, err := strconv.ParseUint(number, 10, 64)
	if err != nil {
		return accountInfo{}, fmt.Errorf("invalid account number %q", number)
	}
	s, err := strconv.ParseUint(sequence, 10, 64)
	if err != nil {
		return accountInfo{}, fmt.Errorf("invalid sequence %q", sequence)
	}
	return accountInfo{AccountNumber: n, Sequence: s}, nil
}
