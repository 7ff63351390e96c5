package bitcoin

import (
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"strings"
	"testing"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/rpc"
)

const (
	testKey   = "0c28fca386c7a227600b2fe50b7cae11ec86d3bf1fbe471be89827e19d72aa1d"
	recipient = "bc1qw508d6qejxtdg4y5r3zarvary0c5xw7kv8f3t4"
	utxoHashA = "a1075db55d416d3ca199f55b6084e2115b9345e16c5cf302fc80e9d5fbf5d48d"
	utxoHashB = "b1075db55d416d3ca199f55b6084e2115b9345e16c5cf302fc80e9d5fbf5d48d"
)

// MockRPCClient implements rpc.RPCClient for testing
type MockRPCClient struct {
	CallFunc func(ctx context.Context, method string, params any) (any, error)
}

func (m *MockRPCClient) Execute(ctx context.Context, op rpc.Operation) (any, error) {
	if op.Invoke != nil {
		return op.Invoke(ctx)
	}
	return m.CallFunc(ctx, op.Name, op.Params)
}

func testAccount(t *testing.T) ([]byte, string) {
	t.Helper()
	key, _ := hex.DecodeString(testKey)
	_, pub := btcec.PrivKeyFromBytes(key)
	addr, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), &chaincfg.MainNetParams)
	if err != nil {
		t.Fatalf("address: %v", err)
	}
	return key, addr.EncodeAddress()
}

func blockbookMock(feeResult string) *MockRPCClient {
	return &MockRPCClient{
		CallFunc: func(ctx context.Context, path string, params any) (any, error) {
			switch {
			case strings.HasPrefix(path, "api/v2/utxo/"):
				return []any{
					map[string]any{"txid": utxoHashA, "vout": 0, "value": "30000", "confirmations": 10},
					map[string]any{"txid": utxoHashB, "vout": 1, "value": "50000", "confirmations": 3},
				}, nil
			case strings.HasPrefix(path, "api/v2/estimatefee/"):
				return map[string]any{"result": feeResult}, nil
			}
			return nil, nil
		},
	}
}

func transfer(from string, amount int64) domain.TransferParams {
	return domain.TransferParams{
		Intent: domain.Intent{
			AssetID: domain.NativeAsset(domain.ChainBitcoin),
			From:    domain.Account{Chain: domain.ChainBitcoin, Address: from},
			Amount:  big.NewInt(amount),
		},
		Destination: recipient,
	}
}

func TestAdapter_Preload(t *testing.T) {
	_, from := testAccount(t)
	adapter := NewAdapter(domain.ChainBitcoin, blockbookMock("0.00012"))
	params := transfer(from, 40_000)

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	fee := sp.Fee(domain.FeePriorityNormal)
	if fee.Gas.MaxGasPrice.Int64() != 12 {
		t.Errorf("expected 12 sat/vB, got %s", fee.Gas.MaxGasPrice)
	}
	if fee.Gas.Limit.Int64() != 141 {
		t.Errorf("expected 141 vbytes, got %s", fee.Gas.Limit)
	}
	if fee.Amount.Int64() != 1692 {
		t.Errorf("expected fee 1692, got %s", fee.Amount)
	}
	if n := len(sp.Data.(*SignData).UTXOs); n != 2 {
		t.Errorf("expected 2 utxos, got %d", n)
	}
}

func TestAdapter_PreloadFeeRateFloor(t *testing.T) {
	_, from := testAccount(t)
	adapter := NewAdapter(domain.ChainBitcoin, blockbookMock("-1"))
	params := transfer(from, 40_000)

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, fee := range sp.Data.Fees() {
		if fee.Gas.MaxGasPrice.Int64() != 1 {
			t.Errorf("%s: expected minimum rate 1, got %s", fee.Priority, fee.Gas.MaxGasPrice)
		}
	}
}

func TestAdapter_PreloadInsufficientFunds(t *testing.T) {
	_, from := testAccount(t)
	adapter := NewAdapter(domain.ChainBitcoin, blockbookMock("0.00012"))
	params := transfer(from, 80_000)

	_, err := adapter.Preload(context.Background(), params.From, params)
	if !errors.Is(err, domain.ErrPreload) {
		t.Fatalf("expected preload error, got %v", err)
	}
}

func TestAdapter_PreloadUnavailable(t *testing.T) {
	_, from := testAccount(t)
	mock := &MockRPCClient{
		CallFunc: func(ctx context.Context, path string, params any) (any, error) {
			return nil, errors.New("connection reset by peer")
		},
	}
	params := transfer(from, 40_000)

	_, err := NewAdapter(domain.ChainBitcoin, mock).Preload(context.Background(), params.From, params)
	if !errors.Is(err, domain.ErrServiceUnavailable) {
		t.Fatalf("expected unavailable, got %v", err)
	}
}

func TestAdapter_Sign(t *testing.T) {
	key, from := testAccount(t)
	adapter := NewAdapter(domain.ChainBitcoin, blockbookMock("0.00012"))
	params := transfer(from, 40_000)

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	signed, err := adapter.Sign(chain.SignInput{
		Params:      params,
		Data:        sp.Data,
		FinalAmount: big.NewInt(40_000),
		Priority:    domain.FeePriorityNormal,
		PrivateKey:  key,
	})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(signed[0])); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tx.TxIn) != 1 || tx.TxIn[0].PreviousOutPoint.Hash.String() != utxoHashB {
		t.Fatalf("expected the largest utxo as only input, got %+v", tx.TxIn)
	}
	if len(tx.TxOut) != 2 || tx.TxOut[0].Value != 40_000 || tx.TxOut[1].Value != 50_000-40_000-1692 {
		t.Fatalf("unexpected outputs %+v", tx.TxOut)
	}

	senderAddr, _ := btcutil.DecodeAddress(from, &chaincfg.MainNetParams)
	senderScript, _ := txscript.PayToAddrScript(senderAddr)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	fetcher.AddPrevOut(tx.TxIn[0].PreviousOutPoint, wire.NewTxOut(50_000, senderScript))
	vm, err := txscript.NewEngine(senderScript, &tx, 0, txscript.StandardVerifyFlags, nil,
		txscript.NewTxSigHashes(&tx, fetcher), 50_000, fetcher)
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	if err := vm.Execute(); err != nil {
		t.Fatalf("witness does not verify: %v", err)
	}
}

func TestAdapter_SignMax(t *testing.T) {
	key, from := testAccount(t)
	adapter := NewAdapter(domain.ChainBitcoin, blockbookMock("0.00012"))
	params := transfer(from, 80_000)
	params.Max = true

	sp, err := adapter.Preload(context.Background(), params.From, params)
	if err != nil {
		t.Fatalf("preload: %v", err)
	}
	fee := sp.Fee(domain.FeePriorityFast)
	final := new(big.Int).Sub(params.Amount, fee.Amount)

	signed, err := adapter.Sign(chain.SignInput{Params: params, Data: sp.Data, FinalAmount: final, Priority: domain.FeePriorityFast, PrivateKey: key})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	var tx wire.MsgTx
	if err := tx.Deserialize(bytes.NewReader(signed[0])); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(tx.TxIn) != 2 || len(tx.TxOut) != 1 {
		t.Fatalf("expected 2 inputs and no change, got %d/%d", len(tx.TxIn), len(tx.TxOut))
	}
	if tx.TxOut[0].Value != final.Int64() {
		t.Errorf("expected %s, got %d", final, tx.TxOut[0].Value)
	}
}

func TestAdapter_SignWrongKey(t *testing.T) {
	_, from := testAccount(t)
	adapter := NewAdapter(domain.ChainBitcoin, nil)
	other := bytes.Repeat([]byte{7}, 32)

	_, err := adapter.Sign(chain.SignInput{Params: transfer(from, 1000), Data: &SignData{}, PrivateKey: other})
	if !errors.Is(err, domain.ErrSignFail) {
		t.Fatalf("expected sign failure, got %v", err)
	}
}

func TestAdapter_Send(t *testing.T) {
	tests := []struct {
		name    string
		result  any
		err     error
		wantErr error
	}{
		{name: "accepted", result: map[string]any{"result": "txid1"}},
		{name: "rejected", result: map[string]any{"error": map[string]any{"message": "min relay fee not met"}}, wantErr: domain.ErrBroadcast},
		{name: "http rejection", err: &rpc.HTTPError{StatusCode: 400, Body: "bad-txns-inputs-missingorspent"}, wantErr: domain.ErrBroadcast},
		{name: "unavailable", err: &rpc.HTTPError{StatusCode: 502, Body: "bad gateway"}, wantErr: domain.ErrServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var path string
			mock := &MockRPCClient{
				CallFunc: func(ctx context.Context, p string, params any) (any, error) {
					path = p
					return tt.result, tt.err
				},
			}
			hash, err := NewAdapter(domain.ChainBitcoin, mock).Send(context.Background(), domain.Account{}, []byte{0xde, 0xad}, domain.TxTypeTransfer)
			if path != "api/v2/sendtx/dead" {
				t.Errorf("unexpected path %s", path)
			}
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil || hash != "txid1" {
				t.Fatalf("unexpected result %q, %v", hash, err)
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
		block  string
	}{
		{name: "mempool", result: map[string]any{"blockHeight": -1, "confirmations": 0}, want: domain.TxStatePending},
		{name: "confirmed", result: map[string]any{"blockHeight": 840000, "confirmations": 2, "fees": "1692"}, want: domain.TxStateConfirmed, block: "840000"},
		{name: "unknown", err: &rpc.HTTPError{StatusCode: 404, Body: "not found"}, want: domain.TxStatePending},
		{name: "unknown on old indexer", err: &rpc.HTTPError{StatusCode: 400, Body: `{"error":"Transaction 'x' not found"}`}, want: domain.TxStatePending},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &MockRPCClient{
				CallFunc: func(ctx context.Context, path string, params any) (any, error) {
					return tt.result, tt.err
				},
			}
			changes, err := NewAdapter(domain.ChainBitcoin, mock).Status(context.Background(), domain.StatusRequest{Hash: "x"})
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if changes.State != tt.want || changes.BlockNumber != tt.block {
				t.Errorf("unexpected changes %+v", changes)
			}
		})
	}
}
