package ledger

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/shopspring/decimal"
)

// betContractABI cobre só o que o relay usa do contrato de apostas com oráculo
const betContractABI = `[
	{"name":"balanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"ethBalanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"lockedEthBalanceOf","type":"function","stateMutability":"view",
	 "inputs":[{"name":"user","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"isBetInitialized","type":"function","stateMutability":"view",
	 "inputs":[{"name":"betId","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
	{"name":"oraclizeGasPrice","type":"function","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"oraclizeGasLimit","type":"function","stateMutability":"view",
	 "inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"name":"getBetById","type":"function","stateMutability":"view",
	 "inputs":[{"name":"betId","type":"uint256"}],
	 "outputs":[
		{"name":"maker","type":"address"},
		{"name":"caller","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"rollUnder","type":"uint256"},
		{"name":"rawResult","type":"string"},
		{"name":"roll","type":"uint256"},
		{"name":"makerWon","type":"bool"},
		{"name":"executedAt","type":"uint256"}
	 ]},
	{"name":"chargeFeeAndLockEthBalance","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"fee","type":"uint256"}],
	 "outputs":[]},
	{"name":"unlockEthBalance","type":"function","stateMutability":"nonpayable",
	 "inputs":[{"name":"user","type":"address"},{"name":"amount","type":"uint256"},{"name":"fee","type":"uint256"}],
	 "outputs":[]},
	{"name":"initBet","type":"function","stateMutability":"payable",
	 "inputs":[
		{"name":"betId","type":"uint256"},
		{"name":"maker","type":"address"},
		{"name":"caller","type":"address"},
		{"name":"amount","type":"uint256"},
		{"name":"rollUnder","type":"uint256"},
		{"name":"fee","type":"uint256"}
	 ],
	 "outputs":[]},
	{"name":"BetInitialized","type":"event","anonymous":false,
	 "inputs":[{"name":"betId","type":"uint256","indexed":true},{"name":"queryId","type":"bytes32","indexed":false}]},
	{"name":"ExecutedBet","type":"event","anonymous":false,
	 "inputs":[
		{"name":"betId","type":"uint256","indexed":true},
		{"name":"roll","type":"uint256","indexed":false},
		{"name":"makerWon","type":"bool","indexed":false}
	 ]}
]`

var contractABI abi.ABI

func init() {
	var err error
	contractABI, err = abi.JSON(strings.NewReader(betContractABI))
	if err != nil {
		panic("bet contract abi parse: " + err.Error())
	}
}

// rollUnderToChain envia o limite em centésimos, truncado (50.775 -> 5077)
func rollUnderToChain(rollUnder decimal.Decimal) *big.Int {
	return rollUnder.Shift(2).Truncate(0).BigInt()
}

// decodeOutcome converte o retorno de getBetById
func decodeOutcome(vals []interface{}) (Outcome, error) {
	if len(vals) != 8 {
		return Outcome{}, fmt.Errorf("getBetById: expected 8 values, got %d", len(vals))
	}

	maker, ok1 := vals[0].(common.Address)
	caller, ok2 := vals[1].(common.Address)
	amount, ok3 := vals[2].(*big.Int)
	rollUnder, ok4 := vals[3].(*big.Int)
	raw, ok5 := vals[4].(string)
	roll, ok6 := vals[5].(*big.Int)
	won, ok7 := vals[6].(bool)
	executedAt, ok8 := vals[7].(*big.Int)
	if !(ok1 && ok2 && ok3 && ok4 && ok5 && ok6 && ok7 && ok8) {
		return Outcome{}, fmt.Errorf("getBetById: unexpected value types")
	}

	out := Outcome{
		Maker:        maker.Hex(),
		Caller:       caller.Hex(),
		Amount:       WeiToEther(amount),
		RollUnder:    decimal.NewFromBigInt(rollUnder, -2),
		Roll:         decimal.NewFromBigInt(roll, -2),
		OutcomeBytes: raw,
		Won:          won,
	}
	if executedAt.Sign() > 0 {
		t := time.Unix(executedAt.Int64(), 0).UTC()
		out.ExecutedAt = &t
	}
	return out, nil
}

// decodeBool lê o único retorno bool de uma função view
func decodeBool(method string, vals []interface{}) (bool, error) {
	if len(vals) != 1 {
		return false, fmt.Errorf("%s: expected 1 value, got %d", method, len(vals))
	}
	b, ok := vals[0].(bool)
	if !ok {
		return false, fmt.Errorf("%s: unexpected type %T", method, vals[0])
	}
	return b, nil
}

// queryIDFromReceipt procura o BetInitialized emitido por initBet
func queryIDFromReceipt(receipt *types.Receipt) (string, error) {
	ev := contractABI.Events["BetInitialized"]
	for _, lg := range receipt.Logs {
		if len(lg.Topics) == 0 || lg.Topics[0] != ev.ID {
			continue
		}
		vals, err := contractABI.Unpack("BetInitialized", lg.Data)
		if err != nil {
			return "", fmt.Errorf("unpack BetInitialized: %w", err)
		}
		if len(vals) == 0 {
			break
		}
		q, ok := vals[0].([32]byte)
		if !ok {
			return "", fmt.Errorf("BetInitialized: unexpected queryId type %T", vals[0])
		}
		return hexutil.Encode(q[:]), nil
	}
	return "", fmt.Errorf("BetInitialized log not found in receipt")
}
