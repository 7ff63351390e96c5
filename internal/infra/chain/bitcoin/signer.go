package bitcoin

import (
	"bytes"

	"github.com/btcsuite/btcd/btcec/v2"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

// Sign builds and signs a P2WPKH spend. Coin selection is repeated with
// the chosen fee rate so the result matches the previewed fee.
func (a *Adapter) Sign(in chain.SignInput) ([][]byte, error) {
	data, ok := in.Data.(*SignData)
	if !ok {
		return nil, domain.SignFailf(a.chainID, "unexpected sign data %T", in.Data)
	}
	if len(in.PrivateKey) != btcec.PrivKeyBytesLen {
		return nil, domain.SignFailf(a.chainID, "invalid private key length %d", len(in.PrivateKey))
	}
	priv, pub := btcec.PrivKeyFromBytes(in.PrivateKey)
	defer priv.Zero()

	sender, err := btcutil.NewAddressWitnessPubKeyHash(btcutil.Hash160(pub.SerializeCompressed()), a.network.params)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	if from := in.Params.Sender().Address; from != "" && from != sender.EncodeAddress() {
		return nil, domain.SignFailf(a.chainID, "key does not control %s", from)
	}
	senderScript, err := txscript.PayToAddrScript(sender)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}

	amount := in.FinalAmount
	if amount == nil {
		amount = in.Params.Value()
	}
	outputs, err := a.paymentOutputs(in.Params, amount)
	if err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	fee := data.Fee(in.Priority)
	if fee.Gas == nil {
		return nil, domain.SignFailf(a.chainID, "missing fee rate for %s", in.Priority)
	}
	s, err := selectCoins(data.UTXOs, amount.Int64(), fee.Gas.MaxGasPrice.Int64(),
		outputsVBytes(outputs), outputVBytes(senderScript), isMax(in.Params))
	if err != nil {
		return nil, domain.SignFailf(a.chainID, "%s", err)
	}
	outputs[0].Value = s.amount

	tx := wire.NewMsgTx(wire.TxVersion)
	fetcher := txscript.NewMultiPrevOutFetcher(nil)
	for _, u := range s.inputs {
		hash, err := chainhash.NewHashFromStr(u.TxID)
		if err != nil {
			return nil, domain.SignFailf(a.chainID, "invalid utxo %s", u.TxID)
		}
		outpoint := wire.NewOutPoint(hash, u.Vout)
		tx.AddTxIn(wire.NewTxIn(outpoint, nil, nil))
		fetcher.AddPrevOut(*outpoint, wire.NewTxOut(u.Value, senderScript))
	}
	for _, out := range outputs {
		tx.AddTxOut(out)
	}
	if s.change > 0 {
		tx.AddTxOut(wire.NewTxOut(s.change, senderScript))
	}

	sigHashes := txscript.NewTxSigHashes(tx, fetcher)
	for i, u := range s.inputs {
		witness, err := txscript.WitnessSignature(tx, sigHashes, i, u.Value, senderScript, txscript.SigHashAll, priv, true)
		if err != nil {
			return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
		}
		tx.TxIn[i].Witness = witness
	}

	var buf bytes.Buffer
	if err := tx.Serialize(&buf); err != nil {
		return nil, domain.NewError(domain.ErrSignFail, a.chainID, "sign", err)
	}
	return [][]byte{buf.Bytes()}, nil
}
