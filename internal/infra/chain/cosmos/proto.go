package cosmos

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"
)

const (
	typeMsgSend            = "/cosmos.bank.v1beta1.MsgSend"
	typeMsgDelegate        = "/cosmos.staking.v1beta1.MsgDelegate"
	typeMsgUndelegate      = "/cosmos.staking.v1beta1.MsgUndelegate"
	typeMsgBeginRedelegate = "/cosmos.staking.v1beta1.MsgBeginRedelegate"
	typeMsgWithdrawReward  = "/cosmos.distribution.v1beta1.MsgWithdrawDelegatorReward"

	typeSecp256k1PubKey    = "/cosmos.crypto.secp256k1.PubKey"
	typeEthSecp256k1PubKey = "/injective.crypto.v1beta1.ethsecp256k1.PubKey"

	signModeDirect = 1
)

type coin struct {
	Denom  string
	Amount string
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendString(b []byte, num protowire.Number, s string) []byte {
	return appendBytes(b, num, []byte(s))
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func encodeAny(typeURL string, value []byte) []byte {
	var b []byte
	b = appendString(b, 1, typeURL)
	return appendBytes(b, 2, value)
}

func encodeCoin(c coin) []byte {
	var b []byte
	b = appendString(b, 1, c.Denom)
	return appendString(b, 2, c.Amount)
}

func encodeMsgSend(from, to string, amount coin) []byte {
	var b []byte
	b = appendString(b, 1, from)
	b = appendString(b, 2, to)
	return appendBytes(b, 3, encodeCoin(amount))
}

// encodeStakeMsg covers MsgDelegate and MsgUndelegate, which share a layout.
func encodeStakeMsg(delegator, validator string, amount coin) []byte {
	var b []byte
	b = appendString(b, 1, delegator)
	b = appendString(b, 2, validator)
	return appendBytes(b, 3, encodeCoin(amount))
}

func encodeMsgBeginRedelegate(delegator, src, dst string, amount coin) []byte {
	var b []byte
	b = appendString(b, 1, delegator)
	b = appendString(b, 2, src)
	b = appendString(b, 3, dst)
	return appendBytes(b, 4, encodeCoin(amount))
}

func encodeMsgWithdrawReward(delegator, validator string) []byte {
	var b []byte
	b = appendString(b, 1, delegator)
	return appendString(b, 2, validator)
}

func encodeTxBody(msgs [][]byte, memo string) []byte {
	var b []byte
	for _, m := range msgs {
		b = appendBytes(b, 1, m)
	}
	return appendString(b, 2, memo)
}

func encodeAuthInfo(pubKey []byte, pubKeyType string, sequence uint64, fee coin, gasLimit uint64) []byte {
	var key []byte
	key = appendBytes(key, 1, pubKey)

	single := appendVarint(nil, 1, signModeDirect)
	modeInfo := appendBytes(nil, 1, single)

	var signer []byte
	signer = appendBytes(signer, 1, encodeAny(pubKeyType, key))
	signer = appendBytes(signer, 2, modeInfo)
	signer = appendVarint(signer, 3, sequence)

	var feeMsg []byte
	feeMsg = appendBytes(feeMsg, 1, encodeCoin(fee))
	feeMsg = appendVarint(feeMsg, 2, gasLimit)

	var b []byte
	b = appendBytes(b, 1, signer)
	return appendBytes(b, 2, feeMsg)
}

func encodeSignDoc(body, authInfo []byte, chainID string, accountNumber uint64) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	b = appendString(b, 3, chainID)
	return appendVarint(b, 4, accountNumber)
}

func encodeTxRaw(body, authInfo, signature []byte) []byte {
	var b []byte
	b = appendBytes(b, 1, body)
	b = appendBytes(b, 2, authInfo)
	return appendBytes(b, 3, signature)
}

// fields is a decoded protobuf message: bytes and varint values by field
// number, in wire order.
type fields struct {
	bytes   map[protowire.Number][][]byte
	varints map[protowire.Number]uint64
}

func parseFields(b []byte) (fields, error) {
	f := fields{bytes: map[protowire.Number][][]byte{}, varints: map[protowire.Number]uint64{}}
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return f, fmt.Errorf("bad tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		switch typ {
		case protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return f, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			f.bytes[num] = append(f.bytes[num], v)
			b = b[n:]
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return f, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			f.varints[num] = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return f, fmt.Errorf("field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return f, nil
}

func (f fields) message(num protowire.Number) (fields, error) {
	return parseFields(f.first(num))
}

func (f fields) first(num protowire.Number) []byte {
	if v := f.bytes[num]; len(v) > 0 {
		return v[0]
	}
	return nil
}

func (f fields) str(num protowire.Number) string {
	return string(f.first(num))
}
