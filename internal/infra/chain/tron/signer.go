package tron

import (
	"crypto/sha256"
	"math/big"

	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

// Sign returns one signed transaction per contract. Delegate and
// Undelegate produce a freeze or unfreeze followed by a vote update; they
// must be broadcast in that order.
func (a *Adapter) Sign(in chain.SignInput) ([][]byte, error) {
	data, ok := in.Data.(*SignData)
	if !ok {
		return nil, domain.SignFailf(a.chainID, "unexpected sign data %T", in.Data)
	}
	key, err := crypto.ToECDSA(in.PrivateKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	if from := in.Params.Sender().Address; from != Address(&key.PublicKey) {
		return nil, domain.SignFailf(a.chainID, "key does not control %s", from)
	}
	owner, err := decodeAddress(in.Params.Sender().Address)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}

	amount := in.FinalAmount
	if amount == nil {
		amount = in.Params.Value()
	}
	if !amount.IsInt64() {
		return nil, domain.SignFailf(a.chainID, "amount %s out of range", amount)
	}
	contracts, err := a.contracts(in.Params, data, owner, amount)
	if err != nil {
		return nil, err
	}

	feeLimit := data.GasFee.Amount
	if feeLimit == nil || !feeLimit.IsInt64() {
		feeLimit = new(big.Int)
	}
	out := make([][]byte, 0, len(contracts))
	for _, c := range contracts {
		raw, err := encodeRaw(data.Block, c, feeLimit.Int64())
		if err != nil {
			return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		txID := sha256.Sum256(raw)
		sig, err := crypto.Sign(txID[:], key)
		if err != nil {
			return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		out = append(out, encodeSigned(raw, sig))
	}
	return out, nil
}

func (a *Adapter) contracts(
	params domain.ConfirmParams,
	data *SignData,
	owner []byte,
	amount *big.Int,
) ([]contract, error) {
	vote := func() (contract, error) {
		body, err := voteBody(owner, data.Votes)
		if err != nil {
			return contract{}, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		return contract{kind: voteWitnessContract, body: body}, nil
	}

	switch p := params.(type) {
	case domain.TransferParams, domain.TokenApprovalParams, domain.SwapParams:
		call, err := a.buildCall(params, amount)
		if err != nil {
			return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		if call != nil {
			return []contract{{kind: triggerSmartContract, body: triggerBody(owner, call.contract, call.value, call.data)}}, nil
		}
		transfer := p.(domain.TransferParams)
		to, err := decodeAddress(transfer.Destination)
		if err != nil {
			return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		return []contract{{kind: transferContract, body: transferBody(owner, to, amount.Int64())}}, nil

	case domain.DelegateParams:
		v, err := vote()
		if err != nil {
			return nil, err
		}
		freeze := contract{kind: freezeBalanceV2Contract, body: freezeBody(owner, p.Value().Int64(), domain.ResourceBandwidth)}
		return []contract{freeze, v}, nil

	case domain.UndelegateParams:
		out := []contract{{kind: unfreezeBalanceV2Contract, body: freezeBody(owner, p.Value().Int64(), domain.ResourceBandwidth)}}
		if len(data.Votes) > 0 {
			v, err := vote()
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil

	case domain.RedelegateParams:
		v, err := vote()
		if err != nil {
			return nil, err
		}
		return []contract{v}, nil

	case domain.FreezeParams:
		return []contract{{kind: freezeBalanceV2Contract, body: freezeBody(owner, p.Value().Int64(), p.Resource)}}, nil

	case domain.UnfreezeParams:
		return []contract{{kind: unfreezeBalanceV2Contract, body: freezeBody(owner, p.Value().Int64(), p.Resource)}}, nil

	case domain.WithdrawParams:
		return []contract{{kind: withdrawExpireUnfreezeContract, body: ownerBody(owner)}}, nil

	case domain.RewardsParams:
		return []contract{{kind: withdrawBalanceContract, body: ownerBody(owner)}}, nil
	}
	return nil, domain.Unsupported(domain.ErrSignFail, a.chainID, params)
}
