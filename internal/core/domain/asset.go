package domain

import (
	"fmt"
	"strings"
)

// AssetID names a native coin (TokenID empty) or a token on a chain.
type AssetID struct {
	Chain   Chain  `json:"chain"`
	TokenID string `json:"tokenId,omitempty"`
}

// NativeAsset returns the fee asset of the chain.
func NativeAsset(chain Chain) AssetID {
	return AssetID{Chain: chain}
}

// IsNative reports whether the asset is the chain's native coin.
func (a AssetID) IsNative() bool {
	return a.TokenID == ""
}

// String renders the identifier form "chain" or "chain_token".
func (a AssetID) String() string {
	if a.TokenID == "" {
		return string(a.Chain)
	}
	return string(a.Chain) + "_" + a.TokenID
}

// ParseAssetID parses the identifier produced by AssetID.String.
func ParseAssetID(s string) (AssetID, error) {
	if s == "" {
		return AssetID{}, fmt.Errorf("empty asset id")
	}
	chain, token, _ := strings.Cut(s, "_")
	if _, ok := Chain(chain).Info(); !ok {
		return AssetID{}, fmt.Errorf("unknown chain in asset id %q", s)
	}
	return AssetID{Chain: Chain(chain), TokenID: token}, nil
}

func (a AssetID) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *AssetID) UnmarshalText(text []byte) error {
	id, err := ParseAssetID(string(text))
	if err != nil {
		return err
	}
	*a = id
	return nil
}

// Account is an address on a specific chain.
type Account struct {
	Chain   Chain  `json:"chain"`
	Address string `json:"address"`
}
