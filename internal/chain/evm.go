package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
)

var (
	// ErrReverted is returned when a call or transaction is rejected by the
	// contract.
	ErrReverted = errors.New("execution reverted")
	// ErrReceiptTimeout is returned when a transaction is not mined in time.
	ErrReceiptTimeout = errors.New("transaction not mined")
)

// EVMClient is a JSON-RPC client for EVM chains.
type EVMClient struct {
	url string
	rpc *rpc.Client
}

// Dial connects to the JSON-RPC endpoint at url.
func Dial(ctx context.Context, url string) (*EVMClient, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}

	c, err := rpc.DialOptions(ctx, url, rpc.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return &EVMClient{url: url, rpc: c}, nil
}

// URL returns the endpoint the client was dialed with.
func (c *EVMClient) URL() string { return c.url }

// Close releases the underlying connection.
func (c *EVMClient) Close() { c.rpc.Close() }

// BlockNumber returns the latest block number.
func (c *EVMClient) BlockNumber(ctx context.Context) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_blockNumber"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// ChainID returns the chain ID reported by the node.
func (c *EVMClient) ChainID(ctx context.Context) (*big.Int, error) {
	var id hexutil.Big
	if err := c.call(ctx, &id, "eth_chainId"); err != nil {
		return nil, err
	}
	return id.ToInt(), nil
}

// LogEntry holds one event log.
type LogEntry struct {
	Address     common.Address `json:"address"`
	Topics      []common.Hash  `json:"topics"`
	Data        hexutil.Bytes  `json:"data"`
	BlockNumber hexutil.Uint64 `json:"blockNumber"`
	TxHash      common.Hash    `json:"transactionHash"`
	LogIndex    hexutil.Uint   `json:"logIndex"`
}

// LogQuery selects logs emitted by one contract in an inclusive block range.
// Topic0 matches any of the given event topics.
type LogQuery struct {
	Address   common.Address
	Topic0    []common.Hash
	FromBlock uint64
	ToBlock   uint64
}

func (q LogQuery) arg() map[string]interface{} {
	arg := map[string]interface{}{
		"address":   q.Address,
		"fromBlock": hexutil.Uint64(q.FromBlock),
		"toBlock":   hexutil.Uint64(q.ToBlock),
	}
	if len(q.Topic0) > 0 {
		arg["topics"] = [][]common.Hash{q.Topic0}
	}
	return arg
}

// FilterLogs queries event logs matching q.
func (c *EVMClient) FilterLogs(ctx context.Context, q LogQuery) ([]LogEntry, error) {
	var logs []LogEntry
	if err := c.call(ctx, &logs, "eth_getLogs", q.arg()); err != nil {
		return nil, fmt.Errorf("getLogs %d-%d: %w", q.FromBlock, q.ToBlock, err)
	}
	return logs, nil
}

func callArg(from, to common.Address, data []byte) map[string]interface{} {
	arg := map[string]interface{}{
		"from": from,
		"to":   to,
	}
	if len(data) > 0 {
		arg["data"] = hexutil.Bytes(data)
	}
	return arg
}

// CallContract executes a read-only call against the latest block.
func (c *EVMClient) CallContract(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	var out hexutil.Bytes
	if err := c.call(ctx, &out, "eth_call", callArg(from, to, data), "latest"); err != nil {
		return nil, err
	}
	return out, nil
}

// SimulateCall runs data as an eth_call from the sender. It returns
// (true, returnData, nil) on success or (false, revertReason, nil) if the
// call reverts. Transport errors return (false, "", err).
func (c *EVMClient) SimulateCall(ctx context.Context, from, to common.Address, data []byte) (bool, string, error) {
	out, err := c.CallContract(ctx, from, to, data)
	if errors.Is(err, ErrReverted) {
		return false, extractRevertReason(err.Error()), nil
	}
	if err != nil {
		return false, "", err
	}
	return true, hexutil.Encode(out), nil
}

// EstimateGas estimates the gas needed for a transaction.
func (c *EVMClient) EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	var gas hexutil.Uint64
	if err := c.call(ctx, &gas, "eth_estimateGas", callArg(from, to, data)); err != nil {
		return 0, err
	}
	return uint64(gas), nil
}

// GasPrice returns the current gas price in wei.
func (c *EVMClient) GasPrice(ctx context.Context) (*big.Int, error) {
	var p hexutil.Big
	if err := c.call(ctx, &p, "eth_gasPrice"); err != nil {
		return nil, err
	}
	return p.ToInt(), nil
}

// PendingNonce returns the transaction count including pending transactions.
func (c *EVMClient) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	var n hexutil.Uint64
	if err := c.call(ctx, &n, "eth_getTransactionCount", addr, "pending"); err != nil {
		return 0, err
	}
	return uint64(n), nil
}

// SendRawTransaction broadcasts a signed transaction and returns its hash.
func (c *EVMClient) SendRawTransaction(ctx context.Context, raw []byte) (common.Hash, error) {
	var hash common.Hash
	if err := c.call(ctx, &hash, "eth_sendRawTransaction", hexutil.Bytes(raw)); err != nil {
		return common.Hash{}, err
	}
	return hash, nil
}

// TxReceipt holds the on-chain receipt of a mined transaction.
type TxReceipt struct {
	Hash            common.Hash     `json:"transactionHash"`
	Status          hexutil.Uint64  `json:"status"`
	BlockNumber     hexutil.Uint64  `json:"blockNumber"`
	GasUsed         hexutil.Uint64  `json:"gasUsed"`
	ContractAddress *common.Address `json:"contractAddress"`
	Logs            []LogEntry      `json:"logs"`
}

// Succeeded reports whether the transaction executed without reverting.
func (r *TxReceipt) Succeeded() bool { return r.Status == 1 }

// TransactionReceipt fetches the receipt for hash. It returns nil, nil while
// the transaction is pending.
func (c *EVMClient) TransactionReceipt(ctx context.Context, hash common.Hash) (*TxReceipt, error) {
	var r *TxReceipt
	if err := c.call(ctx, &r, "eth_getTransactionReceipt", hash); err != nil {
		return nil, err
	}
	return r, nil
}

// WaitForReceipt polls every interval until the transaction is mined or
// timeout expires. A reverted transaction returns its receipt and
// ErrReverted.
func (c *EVMClient) WaitForReceipt(ctx context.Context, hash common.Hash, interval, timeout time.Duration) (*TxReceipt, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		receipt, err := c.TransactionReceipt(ctx, hash)
		if err != nil && ctx.Err() == nil {
			return nil, err
		}
		if receipt != nil {
			if !receipt.Succeeded() {
				return receipt, fmt.Errorf("%w: transaction %s", ErrReverted, hash.Hex())
			}
			return receipt, nil
		}

		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return nil, fmt.Errorf("%w: %s within %s", ErrReceiptTimeout, hash.Hex(), timeout)
			}
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

// CodeAt returns the bytecode at an address. Empty means no contract.
func (c *EVMClient) CodeAt(ctx context.Context, addr common.Address) ([]byte, error) {
	var code hexutil.Bytes
	if err := c.call(ctx, &code, "eth_getCode", addr, "latest"); err != nil {
		return nil, err
	}
	return code, nil
}

// StorageAt reads a raw storage slot from a contract.
func (c *EVMClient) StorageAt(ctx context.Context, addr common.Address, slot common.Hash) (common.Hash, error) {
	var word common.Hash
	if err := c.call(ctx, &word, "eth_getStorageAt", addr, slot, "latest"); err != nil {
		return common.Hash{}, err
	}
	return word, nil
}

func (c *EVMClient) call(ctx context.Context, result interface{}, method string, args ...interface{}) error {
	err := c.rpc.CallContext(ctx, result, method, args...)
	if err == nil {
		return nil
	}
	if isRevert(err) {
		return fmt.Errorf("%w: %s", ErrReverted, err.Error())
	}
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		return fmt.Errorf("RPC error %d: %w", rpcErr.ErrorCode(), err)
	}
	return fmt.Errorf("%s: %w", method, err)
}

func isRevert(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "revert")
}

// extractRevertReason pulls the reason out of an RPC error message.
func extractRevertReason(errMsg string) string {
	if idx := strings.LastIndex(errMsg, "execution reverted:"); idx >= 0 {
		return strings.TrimSpace(errMsg[idx:])
	}
	if idx := strings.LastIndex(errMsg, "revert"); idx >= 0 {
		return strings.TrimSpace(errMsg[idx:])
	}
	return errMsg
}
