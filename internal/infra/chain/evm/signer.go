package evm

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

// Sign builds and signs one EIP-1559 transaction.
func (a *Adapter) Sign(in chain.SignInput) ([][]byte, error) {
	data, ok := in.Data.(*SignData)
	if !ok {
		return nil, domain.SignFailf(a.chainID, "unexpected sign data %T", in.Data)
	}
	fee := data.Fee(in.Priority)
	if fee.Gas == nil {
		return nil, domain.SignFailf(a.chainID, "missing gas fee for %s", in.Priority)
	}
	amount := in.FinalAmount
	if amount == nil {
		amount = in.Params.Value()
	}

	msg, err := a.buildCall(in.Params, amount)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	if !common.IsHexAddress(msg.to) {
		return nil, domain.SignFailf(a.chainID, "invalid destination %q", msg.to)
	}

	key, err := crypto.ToECDSA(in.PrivateKey)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "invalid private key")
	}

	to := common.HexToAddress(msg.to)
	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   data.NetworkID,
		Nonce:     data.Nonce,
		GasTipCap: fee.Gas.MinerFee,
		GasFeeCap: fee.Gas.MaxGasPrice,
		Gas:       fee.Gas.Limit.Uint64(),
		To:        &to,
		Value:     msg.value,
		Data:      msg.data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(data.NetworkID), key)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	return [][]byte{raw}, nil
}

// SignMessage produces an EIP-191 personal_sign signature with v in {27, 28}.
func (a *Adapter) SignMessage(message []byte, privateKey []byte) ([]byte, error) {
	key, err := crypto.ToECDSA(privateKey)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "invalid private key")
	}
	sig, err := crypto.Sign(accounts.TextHash(message), key)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign_message", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// TransactionHash returns the hash a signed payload will be known by.
func TransactionHash(raw []byte) (string, error) {
	var tx types.Transaction
	if err := tx.UnmarshalBinary(raw); err != nil {
		return "", fmt.Errorf("decode transaction: %w", err)
	}
	return tx.Hash().Hex(), nil
}

func gasCost(gasUsed, price *big.Int) *big.Int {
	return new(big.Int).Mul(gasUsed, price)
}
