package cosmos

import (
	"bytes"
	"context"
	"crypto/sha256"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	testOwner     = "osmo1q0d0q8w8y8t6h4l9w5u8p8s8h8f8e8r8t8y8u8i8o8p8"
	testRecipient = "osmo1rcjvzz8wzktqfz8qjf0l9q45kzxvd0z0n7l5cf"
	testValidator = "osmovaloper1pxphtfhqnx9ny27d53z4052e3r76e7qq495ehm"
)

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

func lcdMock() *MockRPCClient {
	return &MockRPCClient{
		CallFunc: func(ctx context.Context, method string, params any) (any, error) {
			switch {
			case strings.HasPrefix(method, "cosmos/auth/v1beta1/accounts/"):
				return map[string]any{
					"account": map[string]any{"account_number": "2913388", "sequence": "10"},
				}, nil
			case method == "cosmos/base/tendermint/v1beta1/blocks/latest":
				return map[string]any{
					"block": map[string]any{
						"header": map[string]any{"chain_id": "osmosis-1", "height": "25181150"},
					},
				}, nil
			case strings.HasSuffix(method, "/rewards"):
				return map[string]any{
					"total": []any{
						map[string]any{"denom": "ibc/27394FB092D2ECCD56123C74F36E4C1F926001CEADA9CA97EA622B25F41E5EB2", "amount": "5.1"},
						map[string]any{"denom": "uosmo", "amount": "1234.567000000000000000"},
					},
				}, nil
			}
			return nil, nil
		},
	}
}

func transfer(amount int64) domain.TransferParams {
	return domain.TransferParams{
		Intent: domain.Intent{
			AssetID: domain.NativeAsset(domain.ChainOsmosis),
			From:    domain.Account{Chain: domain.ChainOsmosis, Address: testOwner},
			Amount:  big.NewInt(amount),
		},
		Destination: testRecipient,
	}
}

func owner() domain.Account {
	return domain.Account{Chain: domain.ChainOsmosis, Address: testOwner}
}

func testKey() []byte {
	key := make([]byte, 32)
	key[31] = 7
	return key
}

func TestAdapter_PreloadTransfer(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, lcdMock(), Options{})

	sp, err := adapter.Preload(context.Background(), owner(), transfer(1))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	data := sp.Data.(*SignData)
	if data.ChainID != "osmosis-1" || data.AccountNumber != 2913388 || data.Sequence != 10 {
		t.Errorf("unexpected sign data %+v", data)
	}
	if data.Height != "25181150" {
		t.Errorf("expected height 25181150, got %s", data.Height)
	}

	fee := data.Fee(domain.FeePriorityFast)
	if fee.Amount.Int64() != 10000 || fee.Gas.MaxGasPrice.Int64() != 10000 {
		t.Errorf("expected flat fee 10000, got %s", fee)
	}
	if fee.Gas.Limit.Int64() != 200000 {
		t.Errorf("expected limit 200000, got %s", fee.Gas.Limit)
	}
	if fee.FeeAssetID != domain.NativeAsset(domain.ChainOsmosis) || fee.Priority != domain.FeePriorityNormal {
		t.Errorf("unexpected fee asset or priority: %+v", fee)
	}
}

func TestAdapter_PreloadStakeFees(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, lcdMock(), Options{})
	intent := domain.Intent{AssetID: domain.NativeAsset(domain.ChainOsmosis), From: owner(), Amount: big.NewInt(1)}

	tests := []struct {
		name   string
		params domain.ConfirmParams
		limit  int64
	}{
		{"delegate", domain.DelegateParams{Intent: intent, ValidatorID: testValidator}, 1_000_000},
		{"undelegate", domain.UndelegateParams{Intent: intent, ValidatorID: testValidator, DelegationID: "25053096"}, 1_000_000},
		{"redelegate", domain.RedelegateParams{Intent: intent, SrcValidatorID: testValidator, DstValidatorID: "osmovaloper1z0sh4s80u99l6y9d3vfy582p8jejeeu6tcucs2"}, 1_250_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sp, err := adapter.Preload(context.Background(), owner(), tt.params)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			fee := sp.Fee(domain.FeePriorityNormal)
			if fee.Amount.Int64() != 100000 {
				t.Errorf("expected fee 100000, got %s", fee.Amount)
			}
			if fee.Gas.Limit.Int64() != tt.limit {
				t.Errorf("expected limit %d, got %s", tt.limit, fee.Gas.Limit)
			}
		})
	}
}

func TestAdapter_PreloadGasPrice(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, lcdMock(), Options{GasPrice: big.NewInt(10_000)})

	sp, err := adapter.Preload(context.Background(), owner(), transfer(10_000))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := sp.Fee(domain.FeePriorityNormal).Amount; got.Cmp(big.NewInt(2_000_000_000)) != 0 {
		t.Errorf("expected fee 2000000000, got %s", got)
	}
}

func TestAdapter_PreloadRewards(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, lcdMock(), Options{})
	params := domain.RewardsParams{
		Intent:       domain.Intent{AssetID: domain.NativeAsset(domain.ChainOsmosis), From: owner(), Amount: new(big.Int)},
		ValidatorIDs: []string{testValidator, "osmovaloper1z0sh4s80u99l6y9d3vfy582p8jejeeu6tcucs2"},
	}

	sp, err := adapter.Preload(context.Background(), owner(), params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	rewards, ok := sp.Data.(domain.RewardsData)
	if !ok {
		t.Fatal("sign data should expose rewards")
	}
	if rewards.RewardsTotal().Int64() != 1234 {
		t.Errorf("expected rewards 1234, got %s", rewards.RewardsTotal())
	}
	if limit := sp.Fee(domain.FeePriorityNormal).Gas.Limit.Int64(); limit != 1_800_000 {
		t.Errorf("expected limit 1800000, got %d", limit)
	}
}

func TestAdapter_PreloadFailures(t *testing.T) {
	t.Run("unsupported", func(t *testing.T) {
		adapter := NewAdapter(domain.ChainOsmosis, lcdMock(), Options{})
		params := domain.FreezeParams{Intent: domain.Intent{AssetID: domain.NativeAsset(domain.ChainOsmosis), From: owner(), Amount: big.NewInt(1)}}
		if _, err := adapter.Preload(context.Background(), owner(), params); !errors.Is(err, domain.ErrPreload) {
			t.Fatalf("expected preload error, got %v", err)
		}
	})

	t.Run("account lookup", func(t *testing.T) {
		mock := &MockRPCClient{
			CallFunc: func(ctx context.Context, method string, params any) (any, error) {
				if strings.HasPrefix(method, "cosmos/auth") {
					return nil, &rpc.HTTPError{StatusCode: 404, Body: "account not found"}
				}
				return lcdMock().CallFunc(ctx, method, params)
			},
		}
		adapter := NewAdapter(domain.ChainOsmosis, mock, Options{})
		if _, err := adapter.Preload(context.Background(), owner(), transfer(1)); !errors.Is(err, domain.ErrPreload) {
			t.Fatalf("expected preload error, got %v", err)
		}
	})
}

func TestAdapter_Sign(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, lcdMock(), Options{GasPrice: big.NewInt(10_000)})
	params := transfer(10_000)
	sp, err := adapter.Preload(context.Background(), owner(), params)
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	in := chain.SignInput{
		Params:      params,
		Data:        sp.Data,
		FinalAmount: big.NewInt(10_000),
		Priority:    domain.FeePriorityNormal,
		PrivateKey:  testKey(),
	}

	first, err := adapter.Sign(in)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	second, _ := adapter.Sign(in)
	if !bytes.Equal(first[0], second[0]) {
		t.Fatal("signing should be deterministic")
	}

	raw, err := parseFields(first[0])
	if err != nil {
		t.Fatalf("parse tx: %v", err)
	}
	body, authInfo, sig := raw.first(1), raw.first(2), raw.first(3)
	if len(sig) != 64 {
		t.Fatalf("expected 64 byte signature, got %d", len(sig))
	}
	if !bytes.Contains(body, []byte(typeMsgSend)) || !bytes.Contains(body, []byte(testRecipient)) {
		t.Error("body should carry the MsgSend to the recipient")
	}
	if !bytes.Contains(authInfo, []byte("2000000000")) {
		t.Error("auth info should carry the fee amount")
	}

	info, _ := parseFields(authInfo)
	signer, _ := info.message(1)
	if signer.varints[3] != 10 {
		t.Errorf("expected sequence 10, got %d", signer.varints[3])
	}

	var r, s btcec.ModNScalar
	r.SetByteSlice(sig[:32])
	s.SetByteSlice(sig[32:])
	digest := sha256.Sum256(encodeSignDoc(body, authInfo, "osmosis-1", 2913388))
	_, pub := btcec.PrivKeyFromBytes(testKey())
	if !ecdsa.NewSignature(&r, &s).Verify(digest[:], pub) {
		t.Error("signature does not verify against the sign doc")
	}
}

func TestAdapter_SignRewardsOneMessagePerValidator(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, nil, Options{})
	params := domain.RewardsParams{
		Intent:       domain.Intent{AssetID: domain.NativeAsset(domain.ChainOsmosis), From: owner(), Amount: new(big.Int)},
		ValidatorIDs: []string{"val1", "val2", "val3"},
	}
	data := &SignData{ChainID: "osmosis-1", AccountNumber: 1, GasFee: adapter.calculateFee(gasRewards*3, true)}

	signed, err := adapter.Sign(chain.SignInput{Params: params, Data: data, FinalAmount: new(big.Int), PrivateKey: testKey()})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	raw, _ := parseFields(signed[0])
	body, _ := raw.message(1)
	if n := len(body.bytes[1]); n != 3 {
		t.Errorf("expected 3 messages, got %d", n)
	}
}

func TestAdapter_SignUnsupported(t *testing.T) {
	adapter := NewAdapter(domain.ChainOsmosis, nil, Options{})
	params := domain.ActivateParams{Intent: domain.Intent{AssetID: domain.NativeAsset(domain.ChainOsmosis), From: owner(), Amount: new(big.Int)}}
	data := &SignData{GasFee: adapter.calculateFee(gasTransfer, false)}

	_, err := adapter.Sign(chain.SignInput{Params: params, Data: data, PrivateKey: testKey()})
	if !errors.Is(err, domain.ErrSignFail) {
		t.Fatalf("expected sign failure, got %v", err)
	}
}

func TestAdapter_Send(t *testing.T) {
	tests := []struct {
		name     string
		response map[string]any
		wantHash string
		wantErr  error
	}{
		{
			name:     "accepted",
			response: map[string]any{"tx_response": map[string]any{"txhash": "ABC123", "code": 0}},
			wantHash: "ABC123",
		},
		{
			name:     "rejected",
			response: map[string]any{"tx_response": map[string]any{"txhash": "ABC123", "code": 5, "raw_log": "insufficient funds"}},
			wantErr:  domain.ErrBroadcast,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockRPCClient{
				CallFunc: func(ctx context.Context, method string, params any) (any, error) {
					if method != "cosmos/tx/v1beta1/txs" {
						t.Errorf("unexpected path %s", method)
					}
					return tt.response, nil
				},
			}
			hash, err := NewAdapter(domain.ChainOsmosis, mock, Options{}).Send(context.Background(), owner(), []byte{1}, domain.TxTypeTransfer)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				if !strings.Contains(err.Error(), "insufficient funds") {
					t.Errorf("raw log should be surfaced, got %v", err)
				}
				return
			}
			if err != nil || hash != tt.wantHash {
				t.Fatalf("unexpected result %q %v", hash, err)
			}
		})
	}
}

func TestAdapter_Status(t *testing.T) {
	tests := []struct {
		name   string
		result any
		err    error
		want   domain.TransactionState
	}{
		{"unknown", nil, &rpc.HTTPError{StatusCode: 404, Body: "tx not found"}, domain.TxStatePending},
		{"success", map[string]any{"tx_response": map[string]any{"height": "25181151", "code": 0}}, nil, domain.TxStateConfirmed},
		{"failed", map[string]any{"tx_response": map[string]any{"height": "25181151", "code": 11}}, nil, domain.TxStateReverted},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockRPCClient{
				CallFunc: func(ctx context.Context, method string, params any) (any, error) {
					return tt.result, tt.err
				},
			}
			changes, err := NewAdapter(domain.ChainOsmosis, mock, Options{}).Status(context.Background(), domain.StatusRequest{Hash: "ABC"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changes.State != tt.want {
				t.Errorf("expected %s, got %s", tt.want, changes.State)
			}
		})
	}
}
