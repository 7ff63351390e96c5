package evm

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/common/math"
)

const erc20JSON = `[
	{"type":"function","name":"transfer","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]},
	{"type":"function","name":"approve","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"type":"bool"}]}
]`

const erc721JSON = `[
	{"type":"function","name":"safeTransferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"tokenId","type":"uint256"}],"outputs":[]}
]`

const erc1155JSON = `[
	{"type":"function","name":"safeTransferFrom","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"id","type":"uint256"},{"name":"amount","type":"uint256"},{"name":"data","type":"bytes"}],"outputs":[]}
]`

var (
	erc20ABI   = mustABI(erc20JSON)
	erc721ABI  = mustABI(erc721JSON)
	erc1155ABI = mustABI(erc1155JSON)
)

func mustABI(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic(err)
	}
	return parsed
}

func encodeTransfer(to string, amount *big.Int) ([]byte, error) {
	if !common.IsHexAddress(to) {
		return nil, fmt.Errorf("invalid recipient %q", to)
	}
	return erc20ABI.Pack("transfer", common.HexToAddress(to), amount)
}

// encodeApprove grants an unlimited allowance.
func encodeApprove(spender string) ([]byte, error) {
	if !common.IsHexAddress(spender) {
		return nil, fmt.Errorf("invalid spender %q", spender)
	}
	return erc20ABI.Pack("approve", common.HexToAddress(spender), math.MaxBig256)
}

func encodeERC721Transfer(from, to string, tokenID *big.Int) ([]byte, error) {
	return erc721ABI.Pack("safeTransferFrom", common.HexToAddress(from), common.HexToAddress(to), tokenID)
}

func encodeERC1155Transfer(from, to string, tokenID, amount *big.Int) ([]byte, error) {
	return erc1155ABI.Pack("safeTransferFrom", common.HexToAddress(from), common.HexToAddress(to), tokenID, amount, []byte{})
}

// decodeData accepts 0x-prefixed calldata; anything else is treated as text.
func decodeData(s string) []byte {
	if s == "" {
		return nil
	}
	if b, err := hexutil.Decode(s); err == nil {
		return b
	}
	return []byte(s)
}
