package cosmos

import (
	"crypto/sha256"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcec/v2/ecdsa"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

func (a *Adapter) Sign(in chain.SignInput) ([][]byte, error) {
	data, ok := in.Data.(*SignData)
	if !ok {
		return nil, domain.SignFailf(a.chainID, "unexpected sign data %T", in.Data)
	}
	if len(in.PrivateKey) != btcec.PrivKeyBytesLen {
		return nil, domain.SignFailf(a.chainID, "invalid private key")
	}
	fee := data.Fee(in.Priority)
	if fee.Gas == nil || fee.Gas.Limit == nil {
		return nil, domain.SignFailf(a.chainID, "missing gas limit")
	}
	amount := in.FinalAmount
	if amount == nil {
		amount = in.Params.Value()
	}

	msgs, memo, err := a.messages(in.Params, amount)
	if err != nil {
		return nil, err
	}

	priv, pub := btcec.PrivKeyFromBytes(in.PrivateKey)
	pubKeyType := typeSecp256k1PubKey
	if a.defaults.ethSecp256k1 {
		pubKeyType = typeEthSecp256k1PubKey
	}

	body := encodeTxBody(msgs, memo)
	authInfo := encodeAuthInfo(
		pub.SerializeCompressed(),
		pubKeyType,
		data.Sequence,
		coin{Denom: a.denom, Amount: fee.Amount.String()},
		fee.Gas.Limit.Uint64(),
	)
	signDoc := encodeSignDoc(body, authInfo, data.ChainID, data.AccountNumber)

	var digest []byte
	if a.defaults.ethSecp256k1 {
		digest = crypto.Keccak256(signDoc)
	} else {
		sum := sha256.Sum256(signDoc)
		digest = sum[:]
	}
	// compact signatures lead with a recovery byte; cosmos wants r||s only
	sig := ecdsa.SignCompact(priv, digest, true)[1:]
	priv.Zero()

	return [][]byte{encodeTxRaw(body, authInfo, sig)}, nil
}

func (a *Adapter) messages(params domain.ConfirmParams, amount *big.Int) ([][]byte, string, error) {
	denom := a.denom
	if !params.Asset().IsNative() {
		denom = params.Asset().TokenID
	}
	value := coin{Denom: denom, Amount: amount.String()}
	from := params.Sender().Address

	switch p := params.(type) {
	case domain.TransferParams:
		return [][]byte{encodeAny(typeMsgSend, encodeMsgSend(from, p.Destination, value))}, p.Memo, nil
	case domain.DelegateParams:
		return [][]byte{encodeAny(typeMsgDelegate, encodeStakeMsg(from, p.ValidatorID, value))}, "", nil
	case domain.UndelegateParams:
		return [][]byte{encodeAny(typeMsgUndelegate, encodeStakeMsg(from, p.ValidatorID, value))}, "", nil
	case domain.RedelegateParams:
		msg := encodeMsgBeginRedelegate(from, p.SrcValidatorID, p.DstValidatorID, value)
		return [][]byte{encodeAny(typeMsgBeginRedelegate, msg)}, "", nil
	case domain.RewardsParams:
		if len(p.ValidatorIDs) == 0 {
			return nil, "", domain.SignFailf(a.chainID, "no validators to claim from")
		}
		msgs := make([][]byte, 0, len(p.ValidatorIDs))
		for _, v := range p.ValidatorIDs {
			msgs = append(msgs, encodeAny(typeMsgWithdrawReward, encodeMsgWithdrawReward(from, v)))
		}
		return msgs, "", nil
	}
	return nil, "", domain.Unsupported(domain.ErrSignFail, a.chainID, params)
}
