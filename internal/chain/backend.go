package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// TxSigner signs a transaction on behalf of from.
type TxSigner interface {
	SignTx(from common.Address, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// Backend executes calls and signed transactions against a live node.
type Backend struct {
	client *EVMClient
	signer TxSigner
	log    logrus.FieldLogger

	// PollInterval and ReceiptTimeout bound the wait for each transaction.
	PollInterval   time.Duration
	ReceiptTimeout time.Duration

	chainID *big.Int
}

// NewBackend creates a live backend. signer may be nil for read-only use.
func NewBackend(client *EVMClient, signer TxSigner, log logrus.FieldLogger) *Backend {
	return &Backend{
		client:         client,
		signer:         signer,
		log:            log.WithField("module", "chain"),
		PollInterval:   2 * time.Second,
		ReceiptTimeout: 2 * time.Minute,
	}
}

// BlockNumber returns the latest block number.
func (b *Backend) BlockNumber(ctx context.Context) (uint64, error) {
	return b.client.BlockNumber(ctx)
}

// FilterLogs queries event logs matching q.
func (b *Backend) FilterLogs(ctx context.Context, q LogQuery) ([]LogEntry, error) {
	return b.client.FilterLogs(ctx, q)
}

// Call executes a read-only call from the given sender.
func (b *Backend) Call(ctx context.Context, from, to common.Address, data []byte) ([]byte, error) {
	return b.client.CallContract(ctx, from, to, data)
}

// Transact signs and sends a transaction from from and waits for it to be
// mined. The call is simulated first so a revert costs no gas.
func (b *Backend) Transact(ctx context.Context, from, to common.Address, data []byte) error {
	if b.signer == nil {
		return fmt.Errorf("no signer configured for %s", from.Hex())
	}

	ok, reason, err := b.client.SimulateCall(ctx, from, to, data)
	if err != nil {
		return fmt.Errorf("simulating call to %s: %w", to.Hex(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrReverted, reason)
	}

	chainID, err := b.chainIDCached(ctx)
	if err != nil {
		return err
	}
	nonce, err := b.client.PendingNonce(ctx, from)
	if err != nil {
		return fmt.Errorf("fetching nonce: %w", err)
	}
	gasPrice, err := b.client.GasPrice(ctx)
	if err != nil {
		return fmt.Errorf("fetching gas price: %w", err)
	}
	gas, err := b.client.EstimateGas(ctx, from, to, data)
	if err != nil {
		return fmt.Errorf("estimating gas: %w", err)
	}
	// 20% headroom over the estimate.
	gas = gas * 12 / 10

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &to,
		Data:     data,
	})
	signed, err := b.signer.SignTx(from, tx, chainID)
	if err != nil {
		return fmt.Errorf("signing transaction: %w", err)
	}
	raw, err := signed.MarshalBinary()
	if err != nil {
		return fmt.Errorf("marshaling signed tx: %w", err)
	}

	hash, err := b.client.SendRawTransaction(ctx, raw)
	if err != nil {
		return fmt.Errorf("sending transaction: %w", err)
	}
	b.log.WithFields(logrus.Fields{"from": from.Hex(), "to": to.Hex(), "hash": hash.Hex()}).
		Debug("Transaction sent")

	receipt, err := b.client.WaitForReceipt(ctx, hash, b.PollInterval, b.ReceiptTimeout)
	if err != nil {
		return err
	}
	b.log.WithFields(logrus.Fields{"hash": hash.Hex(), "block": uint64(receipt.BlockNumber), "gasUsed": uint64(receipt.GasUsed)}).
		Debug("Transaction mined")
	return nil
}

func (b *Backend) chainIDCached(ctx context.Context) (*big.Int, error) {
	if b.chainID != nil {
		return b.chainID, nil
	}
	id, err := b.client.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching chain id: %w", err)
	}
	b.chainID = id
	return id, nil
}
