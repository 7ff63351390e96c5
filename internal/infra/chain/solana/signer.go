package solana

import (
	"crypto/ed25519"
	"encoding/base64"
	"fmt"
	"math"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	associatedtokenaccount "github.com/gagliardetto/solana-go/programs/associated-token-account"
	computebudget "github.com/gagliardetto/solana-go/programs/compute-budget"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/gagliardetto/solana-go/programs/token"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

func (a *Adapter) Sign(in chain.SignInput) ([][]byte, error) {
	data, ok := in.Data.(*SignData)
	if !ok {
		return nil, domain.SignFailf(a.chainID, "unexpected sign data %T", in.Data)
	}
	key, err := privateKey(in.PrivateKey)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}

	if swap, ok := in.Params.(domain.SwapParams); ok {
		return a.signSwap(swap, key)
	}

	fee := data.Fee(in.Priority)
	if fee.Gas == nil {
		return nil, domain.SignFailf(a.chainID, "missing compute budget for %s", in.Priority)
	}
	if fee.Gas.Limit == nil || !fee.Gas.Limit.IsUint64() || fee.Gas.Limit.Uint64() > math.MaxUint32 {
		return nil, domain.SignFailf(a.chainID, "compute unit limit %s out of range", fee.Gas.Limit)
	}
	if fee.Gas.MinerFee == nil || !fee.Gas.MinerFee.IsUint64() {
		return nil, domain.SignFailf(a.chainID, "compute unit price %s out of range", fee.Gas.MinerFee)
	}
	amount := in.FinalAmount
	if amount == nil {
		amount = in.Params.Value()
	}
	if !amount.IsUint64() {
		return nil, domain.SignFailf(a.chainID, "amount %s out of range", amount)
	}

	payer := key.PublicKey()
	instructions := []solana.Instruction{
		computebudget.NewSetComputeUnitLimitInstruction(uint32(fee.Gas.Limit.Uint64())).Build(),
		computebudget.NewSetComputeUnitPriceInstruction(fee.Gas.MinerFee.Uint64()).Build(),
	}
	body, err := a.instructions(in.Params, data, payer, amount.Uint64())
	if err != nil {
		return nil, err
	}
	instructions = append(instructions, body...)

	blockhash, err := solana.HashFromBase58(data.Blockhash)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "invalid blockhash %q", data.Blockhash)
	}
	tx, err := solana.NewTransaction(instructions, blockhash, solana.TransactionPayer(payer))
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	return a.signAndEncode(tx, key)
}

func (a *Adapter) instructions(
	params domain.ConfirmParams,
	data *SignData,
	payer solana.PublicKey,
	amount uint64,
) ([]solana.Instruction, error) {
	switch p := params.(type) {
	case domain.TransferParams:
		dest, err := solana.PublicKeyFromBase58(p.Destination)
		if err != nil {
			return nil, domain.SignFailf(a.chainID, "invalid destination %q", p.Destination)
		}
		var out []solana.Instruction
		if p.AssetID.IsNative() {
			out = append(out, system.NewTransferInstruction(amount, payer, dest).Build())
		} else {
			transfer, err := a.tokenTransfer(p.AssetID.TokenID, data, payer, dest, amount)
			if err != nil {
				return nil, err
			}
			out = append(out, transfer...)
		}
		if p.Memo != "" {
			out = append(out, memoInstruction(payer, p.Memo))
		}
		return out, nil

	case domain.ActivateParams:
		mint, err := solana.PublicKeyFromBase58(p.AssetID.TokenID)
		if err != nil {
			return nil, domain.SignFailf(a.chainID, "invalid mint %q", p.AssetID.TokenID)
		}
		return []solana.Instruction{associatedtokenaccount.NewCreateInstruction(payer, payer, mint).Build()}, nil
	}
	return nil, domain.Unsupported(domain.ErrSignFail, a.chainID, params)
}

func (a *Adapter) tokenTransfer(
	mintAddr string,
	data *SignData,
	owner, dest solana.PublicKey,
	amount uint64,
) ([]solana.Instruction, error) {
	mint, err := solana.PublicKeyFromBase58(mintAddr)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "invalid mint %q", mintAddr)
	}
	source, err := solana.PublicKeyFromBase58(data.SenderTokenAccount)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "missing sender token account")
	}
	program, err := solana.PublicKeyFromBase58(data.TokenProgram)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "invalid token program %q", data.TokenProgram)
	}

	var out []solana.Instruction
	target := data.RecipientTokenAccount
	if target == "" {
		ata, _, err := solana.FindAssociatedTokenAddress(dest, mint)
		if err != nil {
			return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		out = append(out, associatedtokenaccount.NewCreateInstruction(owner, dest, mint).Build())
		target = ata.String()
	}
	destination, err := solana.PublicKeyFromBase58(target)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "invalid recipient token account %q", target)
	}

	transfer, err := withProgram(
		token.NewTransferCheckedInstruction(amount, data.Decimals, source, mint, destination, owner, nil).Build(),
		program,
	)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	return append(out, transfer), nil
}

// signSwap signs a provider-built transaction as is.
func (a *Adapter) signSwap(p domain.SwapParams, key solana.PrivateKey) ([][]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(p.Payload.Data)
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "swap payload is not base64")
	}
	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(raw))
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	return a.signAndEncode(tx, key)
}

func (a *Adapter) signAndEncode(tx *solana.Transaction, key solana.PrivateKey) ([][]byte, error) {
	pub := key.PublicKey()
	_, err := tx.Sign(func(k solana.PublicKey) *solana.PrivateKey {
		if k.Equals(pub) {
			return &key
		}
		return nil
	})
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	raw, err := tx.MarshalBinary()
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	return [][]byte{raw}, nil
}

func memoInstruction(signer solana.PublicKey, memo string) solana.Instruction {
	return solana.NewInstruction(
		solana.MemoProgramID,
		solana.AccountMetaSlice{solana.Meta(signer).SIGNER()},
		[]byte(memo),
	)
}

// withProgram re-targets an instruction built for the classic token
// program, so token-2022 mints share the same encoding.
func withProgram(inst solana.Instruction, program solana.PublicKey) (solana.Instruction, error) {
	if program.Equals(inst.ProgramID()) {
		return inst, nil
	}
	data, err := inst.Data()
	if err != nil {
		return nil, err
	}
	return solana.NewInstruction(program, inst.Accounts(), data), nil
}

// privateKey accepts a 32-byte seed or a 64-byte expanded key.
func privateKey(raw []byte) (solana.PrivateKey, error) {
	switch len(raw) {
	case ed25519.SeedSize:
		return solana.PrivateKey(ed25519.NewKeyFromSeed(raw)), nil
	case ed25519.PrivateKeySize:
		return solana.PrivateKey(append([]byte(nil), raw...)), nil
	}
	return nil, fmt.Errorf("invalid private key length %d", len(raw))
}
