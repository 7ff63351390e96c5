package tron

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
)

type contractType int32

const (
	transferContract               contractType = 1
	voteWitnessContract            contractType = 4
	withdrawBalanceContract        contractType = 13
	triggerSmartContract           contractType = 31
	freezeBalanceV2Contract        contractType = 54
	unfreezeBalanceV2Contract      contractType = 55
	withdrawExpireUnfreezeContract contractType = 56
)

var contractNames = map[contractType]string{
	transferContract:               "TransferContract",
	voteWitnessContract:            "VoteWitnessContract",
	withdrawBalanceContract:        "WithdrawBalanceContract",
	triggerSmartContract:           "TriggerSmartContract",
	freezeBalanceV2Contract:        "FreezeBalanceV2Contract",
	unfreezeBalanceV2Contract:      "UnfreezeBalanceV2Contract",
	withdrawExpireUnfreezeContract: "WithdrawExpireUnfreezeContract",
}

type contract struct {
	kind contractType
	body []byte
}

// Vote is a witness and the votes cast for it.
type Vote struct {
	Address string
	Count   int64
}

// blockRef anchors a transaction to a recent block.
type blockRef struct {
	Number    int64
	ID        string
	Timestamp int64
}

func appendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

func appendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

func transferBody(owner, to []byte, amount int64) []byte {
	b := appendBytes(nil, 1, owner)
	b = appendBytes(b, 2, to)
	return appendVarint(b, 3, uint64(amount))
}

func triggerBody(owner, contractAddr []byte, callValue int64, data []byte) []byte {
	b := appendBytes(nil, 1, owner)
	b = appendBytes(b, 2, contractAddr)
	b = appendVarint(b, 3, uint64(callValue))
	return appendBytes(b, 4, data)
}

func voteBody(owner []byte, votes []Vote) ([]byte, error) {
	b := appendBytes(nil, 1, owner)
	for _, v := range votes {
		addr, err := decodeAddress(v.Address)
		if err != nil {
			return nil, err
		}
		vote := appendBytes(nil, 1, addr)
		vote = appendVarint(vote, 2, uint64(v.Count))
		b = appendBytes(b, 2, vote)
	}
	return appendVarint(b, 3, 1), nil
}

func resourceCode(r domain.Resource) uint64 {
	if r == domain.ResourceEnergy {
		return 1
	}
	return 0
}

func freezeBody(owner []byte, amount int64, resource domain.Resource) []byte {
	b := appendBytes(nil, 1, owner)
	b = appendVarint(b, 2, uint64(amount))
	return appendVarint(b, 3, resourceCode(resource))
}

func ownerBody(owner []byte) []byte {
	return appendBytes(nil, 1, owner)
}

// encodeRaw builds Transaction.raw for a single contract.
func encodeRaw(ref blockRef, c contract, feeLimit int64) ([]byte, error) {
	blockID, err := hex.DecodeString(ref.ID)
	if err != nil || len(blockID) < 16 {
		return nil, fmt.Errorf("invalid block id %q", ref.ID)
	}
	var number [8]byte
	binary.BigEndian.PutUint64(number[:], uint64(ref.Number))

	param := appendBytes(nil, 1, []byte("type.googleapis.com/protocol."+contractNames[c.kind]))
	param = appendBytes(param, 2, c.body)
	msg := appendVarint(nil, 1, uint64(c.kind))
	msg = appendBytes(msg, 2, param)

	b := appendBytes(nil, 1, number[6:8])
	b = appendBytes(b, 4, blockID[8:16])
	b = appendVarint(b, 8, uint64(ref.Timestamp+expiration.Milliseconds()))
	b = appendBytes(b, 11, msg)
	b = appendVarint(b, 14, uint64(ref.Timestamp))
	b = appendVarint(b, 18, uint64(feeLimit))
	return b, nil
}

func encodeSigned(raw, sig []byte) []byte {
	b := appendBytes(nil, 1, raw)
	return appendBytes(b, 2, sig)
}
