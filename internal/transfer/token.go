package transfer

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// ERC-20 function selectors: keccak256 of the canonical signatures.
var (
	transferSelector  = []byte{0xa9, 0x05, 0x9c, 0xbb} // transfer(address,uint256)
	balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31} // balanceOf(address)
)

// packTransfer encodes the calldata for transfer(to, amount).
func packTransfer(to common.Address, amount *big.Int) []byte {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return data
}

// packBalanceOf encodes the calldata for balanceOf(owner).
func packBalanceOf(owner common.Address) []byte {
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(owner.Bytes(), 32)...)
	return data
}

// unpackUint256 decodes a single uint256 return value.
func unpackUint256(returnData []byte) (*big.Int, error) {
	if len(returnData) < 32 {
		return nil, errors.Errorf("unexpected return data length %d", len(returnData))
	}
	return new(big.Int).SetBytes(returnData[:32]), nil
}
