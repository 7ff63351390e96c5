package solana

import (
	"bytes"
	"context"
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"math/big"
	"testing"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const usdtMint = "Es9vMFrzaCERmJfrF4H2FYD4KCoNkY11McCe8BenwNYB"

// MockRPCClient implements rpc.RPCClient for testing
type MockRPCClient struct {
	CallFunc func(ctx context.Context, method string, params any) (any, error)
}

func (m *MockRPCClient) Execute(ctx context.Context, op rpc.Operation) (any, error) {
	if op.Invoke != nil {
		return op.Invoke(ctx)
	}
	if m.CallFunc != nil {
		return m.CallFunc(ctx, op.Name, op.Params)
	}
	return nil, nil
}

func seedKey(b byte) []byte {
	seed := make([]byte, ed25519.SeedSize)
	seed[0] = b
	return seed
}

func address(b byte) string {
	key, _ := privateKey(seedKey(b))
	return key.PublicKey().String()
}

func testBlockhash() string {
	return solana.Hash(sha256.Sum256([]byte("blockhash"))).String()
}

func nodeMock(senderTokenAccounts []any, recipientTokenAccounts []any) *MockRPCClient {
	return &MockRPCClient{
		CallFunc: func(ctx context.Context, method string, params any) (any, error) {
			switch method {
			case "getLatestBlockhash":
				return map[string]any{"value": map[string]any{"blockhash": testBlockhash()}}, nil
			case "getRecentPrioritizationFees":
				return []any{
					map[string]any{"slot": 1, "prioritizationFee": 100},
					map[string]any{"slot": 2, "prioritizationFee": 200},
				}, nil
			case "getMinimumBalanceForRentExemption":
				return json.Number("2039280"), nil
			case "getTokenAccountsByOwner":
				owner := params.([]any)[0].(string)
				if owner == address(1) {
					return map[string]any{"value": senderTokenAccounts}, nil
				}
				return map[string]any{"value": recipientTokenAccounts}, nil
			}
			return nil, nil
		},
	}
}

func tokenAccountValue(pubkey string) any {
	return map[string]any{
		"pubkey": pubkey,
		"account": map[string]any{
			"owner": solana.TokenProgramID.String(),
			"data": map[string]any{
				"parsed": map[string]any{
					"info": map[string]any{"tokenAmount": map[string]any{"amount": "100", "decimals": 6}},
				},
			},
		},
	}
}

func transfer(asset domain.AssetID, amount int64) domain.TransferParams {
	return domain.TransferParams{
		Intent: domain.Intent{
			AssetID: asset,
			From:    domain.Account{Chain: domain.ChainSolana, Address: address(1)},
			Amount:  big.NewInt(amount),
		},
		Destination: address(2),
	}
}

func TestCalculateFees(t *testing.T) {
	tests := []struct {
		name     string
		recent   []uint64
		minPrice uint64
		amount   int64
		price    int64
	}{
		{"native", []uint64{100_000_000, 2_000_000_000}, minNativePriceMicro, 105_005_000, 1_050_000_000},
		{"native without priority fees", nil, minNativePriceMicro, 6_000, 10_000},
		{"token below minimum", []uint64{100, 200}, minTokenPriceMicro, 15_000, 100_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fees := calculateFees(domain.ChainSolana, tt.recent, tt.minPrice, big.NewInt(30))
			fee, _ := fees.For(domain.FeePriorityNormal)
			if fee.Amount.Int64() != tt.amount {
				t.Errorf("expected amount %d, got %s", tt.amount, fee.Amount)
			}
			if fee.Gas.MinerFee.Int64() != tt.price {
				t.Errorf("expected unit price %d, got %s", tt.price, fee.Gas.MinerFee)
			}
			if fee.Gas.MaxGasPrice.Int64() != 5000 || fee.Gas.Limit.Int64() != 100_000 {
				t.Errorf("unexpected gas %+v", fee.Gas)
			}
			if fee.Options[OptionTokenAccountCreation].Int64() != 30 {
				t.Errorf("expected creation option 30, got %v", fee.Options[OptionTokenAccountCreation])
			}
		})
	}
}

func TestAdapter_PreloadTokenTransfer(t *testing.T) {
	sender := address(9)
	adapter := NewAdapter(domain.ChainSolana, nodeMock([]any{tokenAccountValue(sender)}, nil))
	params := transfer(domain.AssetID{Chain: domain.ChainSolana, TokenID: usdtMint}, 10_000_000)

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := sp.Data.(*SignData)
	if data.SenderTokenAccount != sender || data.Decimals != 6 {
		t.Errorf("unexpected token data %+v", data)
	}
	if data.RecipientTokenAccount != "" {
		t.Errorf("recipient should need a new account, got %s", data.RecipientTokenAccount)
	}
	fee := data.Fee(domain.FeePriorityNormal)
	if fee.Amount.Int64() != 15_000 {
		t.Errorf("expected fee 15000, got %s", fee.Amount)
	}
	if fee.Options[OptionTokenAccountCreation].Int64() != 2039280 {
		t.Errorf("expected account creation rent, got %v", fee.Options[OptionTokenAccountCreation])
	}
}

func TestAdapter_PreloadMissingSenderTokenAccount(t *testing.T) {
	adapter := NewAdapter(domain.ChainSolana, nodeMock(nil, nil))
	params := transfer(domain.AssetID{Chain: domain.ChainSolana, TokenID: usdtMint}, 1)

	_, err := adapter.Preload(context.Background(), params.From, params)
	if !errors.Is(err, domain.ErrPreload) {
		t.Fatalf("expected preload error, got %v", err)
	}
}

func TestAdapter_PreloadUnsupported(t *testing.T) {
	adapter := NewAdapter(domain.ChainSolana, nodeMock(nil, nil))
	params := domain.DelegateParams{Intent: transfer(domain.NativeAsset(domain.ChainSolana), 1).Intent, ValidatorID: address(3)}

	if _, err := adapter.Preload(context.Background(), params.From, params); !errors.Is(err, domain.ErrPreload) {
		t.Fatalf("expected preload error, got %v", err)
	}
}

func TestAdapter_SignNativeTransfer(t *testing.T) {
	adapter := NewAdapter(domain.ChainSolana, nodeMock(nil, nil))
	params := transfer(domain.NativeAsset(domain.ChainSolana), 10_000_000)
	params.Memo = "invoice 42"

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	in := chain.SignInput{Params: params, Data: sp.Data, FinalAmount: big.NewInt(9_000_000), Priority: domain.FeePriorityNormal, PrivateKey: seedKey(1)}

	first, err := adapter.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, _ := adapter.Sign(in)
	if !bytes.Equal(first[0], second[0]) {
		t.Fatal("signing should be deterministic")
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(first[0]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	// compute limit, compute price, transfer, memo
	if n := len(tx.Message.Instructions); n != 4 {
		t.Fatalf("expected 4 instructions, got %d", n)
	}
	if tx.Message.RecentBlockhash.String() != testBlockhash() {
		t.Errorf("unexpected blockhash %s", tx.Message.RecentBlockhash)
	}

	msg, err := tx.Message.MarshalBinary()
	if err != nil {
		t.Fatalf("marshal message: %v", err)
	}
	key, _ := privateKey(seedKey(1))
	if !ed25519.Verify(ed25519.PublicKey(key.PublicKey().Bytes()), msg, tx.Signatures[0][:]) {
		t.Error("signature does not verify")
	}
}

func TestAdapter_SignTokenTransferCreatesRecipientAccount(t *testing.T) {
	sender := address(9)
	adapter := NewAdapter(domain.ChainSolana, nodeMock([]any{tokenAccountValue(sender)}, nil))
	params := transfer(domain.AssetID{Chain: domain.ChainSolana, TokenID: usdtMint}, 5)

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	signed, err := adapter.Sign(chain.SignInput{Params: params, Data: sp.Data, FinalAmount: big.NewInt(5), Priority: domain.FeePriorityFast, PrivateKey: seedKey(1)})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(signed[0]))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if n := len(tx.Message.Instructions); n != 4 {
		t.Fatalf("expected budget, create and transfer instructions, got %d", n)
	}
}

func TestAdapter_SignRejectsBadKey(t *testing.T) {
	adapter := NewAdapter(domain.ChainSolana, nil)
	_, err := adapter.Sign(chain.SignInput{
		Params:     transfer(domain.NativeAsset(domain.ChainSolana), 1),
		Data:       &SignData{},
		PrivateKey: []byte{1, 2, 3},
	})
	if !errors.Is(err, domain.ErrSignFail) {
		t.Fatalf("expected sign failure, got %v", err)
	}
}

func TestAdapter_SignRejectsOversizedComputeLimit(t *testing.T) {
	adapter := NewAdapter(domain.ChainSolana, nil)
	asset := domain.NativeAsset(domain.ChainSolana)
	data := &SignData{
		Blockhash: testBlockhash(),
		GasFees: domain.Fees{domain.NewGasFee(domain.FeePriorityNormal, asset, domain.GasFee{
			Limit:       new(big.Int).Lsh(big.NewInt(1), 32),
			MaxGasPrice: big.NewInt(1),
			MinerFee:    big.NewInt(100),
		})},
	}
	_, err := adapter.Sign(chain.SignInput{
		Params:      transfer(asset, 1_000),
		Data:        data,
		FinalAmount: big.NewInt(1_000),
		Priority:    domain.FeePriorityNormal,
		PrivateKey:  seedKey(1),
	})
	if !errors.Is(err, domain.ErrSignFail) {
		t.Fatalf("expected sign failure, got %v", err)
	}
}

func TestAdapter_SendSkipsPreflightForSwaps(t *testing.T) {
	var skip any
	mock := &MockRPCClient{
		CallFunc: func(ctx context.Context, method string, params any) (any, error) {
			skip = params.([]any)[1].(map[string]any)["skipPreflight"]
			return "5sig", nil
		},
	}
	adapter := NewAdapter(domain.ChainSolana, mock)

	if _, err := adapter.Send(context.Background(), domain.Account{}, []byte{1}, domain.TxTypeSwap); err != nil {
		t.Fatalf("send: %v", err)
	}
	if skip != true {
		t.Error("swap should skip preflight")
	}
	if _, err := adapter.Send(context.Background(), domain.Account{}, []byte{1}, domain.TxTypeTransfer); err != nil {
		t.Fatalf("send: %v", err)
	}
	if skip != false {
		t.Error("transfer should run preflight")
	}
}

func TestAdapter_Status(t *testing.T) {
	tests := []struct {
		name   string
		status any
		want   domain.TransactionState
	}{
		{"unknown", nil, domain.TxStatePending},
		{"processed", map[string]any{"slot": 10, "err": nil, "confirmationStatus": "processed"}, domain.TxStatePending},
		{"finalized", map[string]any{"slot": 10, "err": nil, "confirmationStatus": "finalized"}, domain.TxStateConfirmed},
		{"failed", map[string]any{"slot": 10, "err": map[string]any{"InstructionError": []any{0, "Custom"}}, "confirmationStatus": "confirmed"}, domain.TxStateReverted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockRPCClient{
				CallFunc: func(ctx context.Context, method string, params any) (any, error) {
					return map[string]any{"value": []any{tt.status}}, nil
				},
			}
			changes, err := NewAdapter(domain.ChainSolana, mock).Status(context.Background(), domain.StatusRequest{Hash: "5sig"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changes.State != tt.want {
				t.Errorf("expected %s, got %s", tt.want, changes.State)
			}
		})
	}
}
