package sui

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"

	"github.com/gemwalletcom/gem-android-sub002/internal/core/domain"
	"github.com/gemwalletcom/gem-android-sub002/internal/infra/chain"
)

const ed25519Flag = 0x00

// Sign returns a single payload "<tx base64>_<signature base64>" where the
// signature is flag ‖ sig ‖ public key.
func (a *Adapter) Sign(in chain.SignInput) ([][]byte, error) {
	data, ok := in.Data.(*SignData)
	if !ok {
		return nil, domain.SignFailf(a.chainID, "unexpected sign data %T", in.Data)
	}
	if len(data.TxBytes) == 0 {
		return nil, domain.SignFailf(a.chainID, "missing transaction data")
	}
	if len(in.PrivateKey) != ed25519.SeedSize {
		return nil, domain.SignFailf(a.chainID, "invalid private key length %d", len(in.PrivateKey))
	}
	key := ed25519.NewKeyFromSeed(in.PrivateKey)
	pub := key.Public().(ed25519.PublicKey)

	if from := in.Params.Sender().Address; from != "" && !strings.EqualFold(from, Address(pub)) {
		return nil, domain.SignFailf(a.chainID, "key does not control %s", from)
	}

	sig := make([]byte, 0, 1+ed25519.SignatureSize+ed25519.PublicKeySize)
	sig = append(sig, ed25519Flag)
	sig = append(sig, ed25519.Sign(key, data.Digest[:])...)
	sig = append(sig, pub...)

	payload := base64.StdEncoding.EncodeToString(data.TxBytes) + "_" + base64.StdEncoding.EncodeToString(sig)
	return [][]byte{[]byte(payload)}, nil
}

// Address derives the account address of an ed25519 key.
func Address(pub ed25519.PublicKey) string {
	sum := blake2b.Sum256(append([]byte{ed25519Flag}, pub...))
	return "0x" + hex.EncodeToString(sum[:])
}
