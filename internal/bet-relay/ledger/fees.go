package ledger

import (
	"math/big"

	"github.com/shopspring/decimal"
)

// Gas units por tipo de ação, multiplicados pelo gas price do tier
const (
	CreateGas uint64 = 67000
	CallGas   uint64 = 330000
	CancelGas uint64 = 52000

	lockTxGasLimit    uint64 = 100000
	initBetTxGasLimit uint64 = 400000
)

// oracleQueryFeeWei é o preço fixo da query ao oráculo (0.00006 ETH)
var oracleQueryFeeWei = big.NewInt(60_000_000_000_000)

// WeiToEther converte wei para ether sem perda de precisão
func WeiToEther(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -18)
}

// EtherToWei converte ether para wei, truncando abaixo de 1 wei
func EtherToWei(eth decimal.Decimal) *big.Int {
	return eth.Shift(18).Truncate(0).BigInt()
}

// feeWei = gasPrice * units
func feeWei(gasPrice *big.Int, units uint64) *big.Int {
	return new(big.Int).Mul(gasPrice, new(big.Int).SetUint64(units))
}
