package ledger

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/radieske/ethbet-relay/internal/bet-relay/domain"
)

// EthConfig agrupa os parâmetros de conexão com o nó e o contrato
type EthConfig struct {
	RPCURL     string
	Contract   string
	PrivateKey string // hex, com ou sem 0x, da conta operadora do relay
	ChainID    int64  // 0 = perguntar ao nó
	RPS        float64
}

// EthClient implementa as operações do ledger sobre um nó Ethereum
type EthClient struct {
	rpc      *ethclient.Client
	contract common.Address
	key      *ecdsa.PrivateKey
	from     common.Address
	chainID  *big.Int
	gas      GasOracle
	limiter  *rate.Limiter
	log      *zap.Logger

	// serializa nonce + envio entre transações concorrentes da mesma conta
	sendMu sync.Mutex

	receiptPoll time.Duration
}

// NewEthClient conecta no nó e valida contrato e chave
func NewEthClient(ctx context.Context, cfg EthConfig, log *zap.Logger) (*EthClient, error) {
	if !common.IsHexAddress(cfg.Contract) {
		return nil, fmt.Errorf("ledger: invalid contract address %q", cfg.Contract)
	}

	key, err := crypto.HexToECDSA(strings.TrimPrefix(cfg.PrivateKey, "0x"))
	if err != nil {
		return nil, fmt.Errorf("ledger: invalid private key: %w", err)
	}

	rpc, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("ledger: dial rpc %s: %w", cfg.RPCURL, err)
	}

	chainID := big.NewInt(cfg.ChainID)
	if cfg.ChainID == 0 {
		if chainID, err = rpc.ChainID(ctx); err != nil {
			rpc.Close()
			return nil, fmt.Errorf("ledger: chain id: %w", err)
		}
	}

	rps := cfg.RPS
	if rps <= 0 {
		rps = 20
	}

	return &EthClient{
		rpc:         rpc,
		contract:    common.HexToAddress(cfg.Contract),
		key:         key,
		from:        crypto.PubkeyToAddress(key.PublicKey),
		chainID:     chainID,
		gas:         NewNodeGasOracle(rpc),
		limiter:     rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:         log,
		receiptPoll: 3 * time.Second,
	}, nil
}

// WithGasOracle troca a resolução de tiers (ex.: serviço externo de gas price)
func (c *EthClient) WithGasOracle(g GasOracle) *EthClient {
	c.gas = g
	return c
}

func (c *EthClient) Close() { c.rpc.Close() }

// Ping verifica se o nó responde, usado no /healthz
func (c *EthClient) Ping(ctx context.Context) error {
	_, err := c.rpc.BlockNumber(ctx)
	return err
}

// call executa uma função view do contrato respeitando o rate limit
func (c *EthClient) call(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}

	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &c.contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s: %w", method, err)
	}

	vals, err := contractABI.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return vals, nil
}

func (c *EthClient) callUint(ctx context.Context, method string, args ...interface{}) (*big.Int, error) {
	vals, err := c.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	v, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("%s: unexpected type %T", method, vals[0])
	}
	return v, nil
}

// StakeBalanceOf devolve o saldo do token de stake (unidades inteiras do token)
func (c *EthClient) StakeBalanceOf(ctx context.Context, user string) (decimal.Decimal, error) {
	v, err := c.callUint(ctx, "balanceOf", common.HexToAddress(user))
	if err != nil {
		return decimal.Zero, err
	}
	return decimal.NewFromBigInt(v, 0), nil
}

// FreeBalanceOf devolve o saldo livre em ether depositado no contrato
func (c *EthClient) FreeBalanceOf(ctx context.Context, user string) (decimal.Decimal, error) {
	v, err := c.callUint(ctx, "ethBalanceOf", common.HexToAddress(user))
	if err != nil {
		return decimal.Zero, err
	}
	return WeiToEther(v), nil
}

// LockedBalanceOf devolve o saldo em ether bloqueado em apostas abertas
func (c *EthClient) LockedBalanceOf(ctx context.Context, user string) (decimal.Decimal, error) {
	v, err := c.callUint(ctx, "lockedEthBalanceOf", common.HexToAddress(user))
	if err != nil {
		return decimal.Zero, err
	}
	return WeiToEther(v), nil
}

func (c *EthClient) IsInitialized(ctx context.Context, betID int64) (bool, error) {
	vals, err := c.call(ctx, "isBetInitialized", big.NewInt(betID))
	if err != nil {
		return false, err
	}
	return decodeBool("isBetInitialized", vals)
}

func (c *EthClient) GetBetOutcome(ctx context.Context, betID int64) (Outcome, error) {
	vals, err := c.call(ctx, "getBetById", big.NewInt(betID))
	if err != nil {
		return Outcome{}, err
	}
	return decodeOutcome(vals)
}

// oracleFee = oraclizeGasPrice * oraclizeGasLimit + preço da query
func (c *EthClient) oracleFee(ctx context.Context) (*big.Int, error) {
	price, err := c.callUint(ctx, "oraclizeGasPrice")
	if err != nil {
		return nil, err
	}
	limit, err := c.callUint(ctx, "oraclizeGasLimit")
	if err != nil {
		return nil, err
	}
	fee := new(big.Int).Mul(price, limit)
	return fee.Add(fee, oracleQueryFeeWei), nil
}

func (c *EthClient) CreateFee(ctx context.Context, tier domain.FeeTier) (decimal.Decimal, error) {
	gp, err := c.gas.GasPrice(ctx, tier)
	if err != nil {
		return decimal.Zero, err
	}
	return WeiToEther(feeWei(gp, CreateGas)), nil
}

func (c *EthClient) CancelFee(ctx context.Context, tier domain.FeeTier) (decimal.Decimal, error) {
	gp, err := c.gas.GasPrice(ctx, tier)
	if err != nil {
		return decimal.Zero, err
	}
	return WeiToEther(feeWei(gp, CancelGas)), nil
}

// CallFee inclui a taxa do oráculo
func (c *EthClient) CallFee(ctx context.Context, tier domain.FeeTier) (decimal.Decimal, error) {
	gp, err := c.gas.GasPrice(ctx, tier)
	if err != nil {
		return decimal.Zero, err
	}
	of, err := c.oracleFee(ctx)
	if err != nil {
		return decimal.Zero, err
	}
	return WeiToEther(new(big.Int).Add(of, feeWei(gp, CallGas))), nil
}

// LockFunds cobra a fee de criação e bloqueia amount do usuário
func (c *EthClient) LockFunds(ctx context.Context, user string, amount decimal.Decimal, tier domain.FeeTier) (TxResult, error) {
	gp, err := c.gas.GasPrice(ctx, tier)
	if err != nil {
		return TxResult{}, &Error{Op: OpLockFunds, Err: err}
	}
	data, err := contractABI.Pack("chargeFeeAndLockEthBalance",
		common.HexToAddress(user), EtherToWei(amount), feeWei(gp, CreateGas))
	if err != nil {
		return TxResult{}, &Error{Op: OpLockFunds, Err: err}
	}

	receipt, err := c.transact(ctx, OpLockFunds, data, nil, lockTxGasLimit, gp)
	if err != nil {
		return TxResult{}, err
	}
	return TxResult{TxHash: receipt.TxHash.Hex()}, nil
}

// UnlockFunds devolve amount ao saldo livre cobrando a fee de cancelamento
func (c *EthClient) UnlockFunds(ctx context.Context, user string, amount decimal.Decimal, tier domain.FeeTier) (TxResult, error) {
	gp, err := c.gas.GasPrice(ctx, tier)
	if err != nil {
		return TxResult{}, &Error{Op: OpUnlockFunds, Err: err}
	}
	data, err := contractABI.Pack("unlockEthBalance",
		common.HexToAddress(user), EtherToWei(amount), feeWei(gp, CancelGas))
	if err != nil {
		return TxResult{}, &Error{Op: OpUnlockFunds, Err: err}
	}

	receipt, err := c.transact(ctx, OpUnlockFunds, data, nil, lockTxGasLimit, gp)
	if err != nil {
		return TxResult{}, err
	}
	return TxResult{TxHash: receipt.TxHash.Hex()}, nil
}

// InitiateRoll registra o call no contrato e dispara a query ao oráculo
func (c *EthClient) InitiateRoll(ctx context.Context, betID int64, maker, caller string, amount, rollUnder decimal.Decimal, tier domain.FeeTier) (TxResult, error) {
	gp, err := c.gas.GasPrice(ctx, tier)
	if err != nil {
		return TxResult{}, &Error{Op: OpInitiateRoll, Err: err}
	}
	of, err := c.oracleFee(ctx)
	if err != nil {
		return TxResult{}, &Error{Op: OpInitiateRoll, Err: err}
	}

	data, err := contractABI.Pack("initBet",
		big.NewInt(betID),
		common.HexToAddress(maker),
		common.HexToAddress(caller),
		EtherToWei(amount),
		rollUnderToChain(rollUnder),
		new(big.Int).Add(of, feeWei(gp, CallGas)),
	)
	if err != nil {
		return TxResult{}, &Error{Op: OpInitiateRoll, Err: err}
	}

	receipt, err := c.transact(ctx, OpInitiateRoll, data, of, initBetTxGasLimit, gp)
	if err != nil {
		return TxResult{}, err
	}

	queryID, err := queryIDFromReceipt(receipt)
	if err != nil {
		return TxResult{}, &Error{Op: OpInitiateRoll, TxHash: receipt.TxHash.Hex(), Err: err}
	}
	return TxResult{TxHash: receipt.TxHash.Hex(), QueryID: queryID}, nil
}

// AwaitExecution bloqueia até o contrato emitir ExecutedBet para betID.
// Retorna erro se a assinatura cair ou se ctx for cancelado.
func (c *EthClient) AwaitExecution(ctx context.Context, betID int64) error {
	q := ethereum.FilterQuery{
		Addresses: []common.Address{c.contract},
		Topics: [][]common.Hash{
			{contractABI.Events["ExecutedBet"].ID},
			{common.BigToHash(big.NewInt(betID))},
		},
	}

	logs := make(chan types.Log, 1)
	sub, err := c.rpc.SubscribeFilterLogs(ctx, q, logs)
	if err != nil {
		return fmt.Errorf("subscribe ExecutedBet: %w", err)
	}
	defer sub.Unsubscribe()

	select {
	case <-logs:
		return nil
	case err := <-sub.Err():
		return fmt.Errorf("ExecutedBet subscription: %w", err)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// transact assina, envia e espera o receipt; status != sucesso vira *Error
func (c *EthClient) transact(ctx context.Context, op string, data []byte, value *big.Int, gasLimit uint64, gasPrice *big.Int) (*types.Receipt, error) {
	if value == nil {
		value = big.NewInt(0)
	}

	c.sendMu.Lock()
	nonce, err := c.rpc.PendingNonceAt(ctx, c.from)
	if err != nil {
		c.sendMu.Unlock()
		return nil, &Error{Op: op, Err: fmt.Errorf("nonce: %w", err)}
	}

	tx := types.NewTransaction(nonce, c.contract, value, gasLimit, gasPrice, data)
	signed, err := types.SignTx(tx, types.NewEIP155Signer(c.chainID), c.key)
	if err != nil {
		c.sendMu.Unlock()
		return nil, &Error{Op: op, Err: fmt.Errorf("sign tx: %w", err)}
	}

	err = c.rpc.SendTransaction(ctx, signed)
	c.sendMu.Unlock()
	if err != nil {
		return nil, &Error{Op: op, Err: fmt.Errorf("send tx: %w", err)}
	}

	txHash := signed.Hash().Hex()
	c.log.Debug("ledger tx sent", zap.String("op", op), zap.String("tx", txHash), zap.Uint64("nonce", nonce))

	receipt, err := c.waitForReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, &Error{Op: op, TxHash: txHash, Err: fmt.Errorf("wait receipt: %w", err)}
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, &Error{Op: op, TxHash: txHash, Err: ErrReverted}
	}
	return receipt, nil
}

func (c *EthClient) waitForReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.receiptPoll)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, err := c.rpc.TransactionReceipt(ctx, hash)
			if err != nil {
				continue // ainda não minerada
			}
			return receipt, nil
		}
	}
}
