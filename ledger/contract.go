package ledger

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/ballot/contract"
	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSigner   = errors.New("no private key configured, writes are disabled")
	ErrTxReverted = errors.New("transaction reverted")
)

var _ core.Ledger = (*Contract)(nil)

// Contract is the go-ethereum binding of the Vote contract.
type Contract struct {
	client  Client
	address common.Address
	abi     abi.ABI
	chainID *big.Int
	logger  *logrus.Logger

	key     *ecdsa.PrivateKey
	account common.Address

	gasLimit        uint64
	receiptAttempts uint
	receiptBackoff  time.Duration
}

func NewContract(client Client, config *repo.Config, logger *logrus.Logger) (*Contract, error) {
	c := &Contract{
		client:          client,
		address:         common.HexToAddress(config.ContractAddr),
		abi:             contract.ABI(),
		chainID:         new(big.Int).SetUint64(config.ChainID),
		logger:          logger,
		gasLimit:        config.Tx.GasLimit,
		receiptAttempts: config.Tx.ReceiptAttempts,
		receiptBackoff:  config.Tx.ReceiptBackoff,
	}
	if c.receiptAttempts == 0 {
		c.receiptAttempts = 1
	}

	if config.Account.PrivateKey != "" {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(config.Account.PrivateKey, "0x"))
		if err != nil {
			return nil, errors.Wrap(err, "parse account private key")
		}
		c.key = key
		c.account = crypto.PubkeyToAddress(key.PublicKey)
		if config.Account.Address != "" && common.HexToAddress(config.Account.Address) != c.account {
			return nil, errors.Errorf("account.address %s does not match private key address %s", config.Account.Address, c.account)
		}
	} else if config.Account.Address != "" {
		c.account = common.HexToAddress(config.Account.Address)
	}

	return c, nil
}

// Account is the bound account, zero when neither key nor address is configured.
func (c *Contract) Account() common.Address {
	return c.account
}

// CanWrite reports whether a signing key is configured.
func (c *Contract) CanWrite() bool {
	return c.key != nil
}

func (c *Contract) CreateProposal(ctx context.Context, title, body, changeSummary string, durationSeconds *big.Int, whitelist []common.Address) (*core.TxResult, error) {
	return c.transact(ctx, contract.MethodCreateProposal, title, body, changeSummary, durationSeconds, whitelist)
}

func (c *Contract) Vote(ctx context.Context, proposalID uint64, choice core.VoteChoice, comment string) (*core.TxResult, error) {
	if !choice.Valid() {
		return nil, errors.Wrapf(core.ErrInvalidChoice, "ordinal %d", uint8(choice))
	}
	return c.transact(ctx, contract.MethodVote, new(big.Int).SetUint64(proposalID), uint8(choice), comment)
}

func (c *Contract) ProposalCount(ctx context.Context) (uint64, error) {
	res, err := c.call(ctx, contract.MethodGetProposalCount)
	if err != nil {
		return 0, err
	}
	count, err := as[*big.Int](res, 0)
	if err != nil {
		return 0, err
	}
	if !count.IsUint64() {
		return 0, errors.Errorf("proposal count %s overflows uint64", count)
	}
	return count.Uint64(), nil
}

func (c *Contract) Proposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	res, err := c.call(ctx, contract.MethodGetProposal, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return decodeProposal(res)
}

func (c *Contract) ProposalVoteStats(ctx context.Context, id uint64) ([core.NumChoices]*big.Int, error) {
	var stats [core.NumChoices]*big.Int
	res, err := c.call(ctx, contract.MethodGetProposalVoteStats, new(big.Int).SetUint64(id))
	if err != nil {
		return stats, err
	}
	return as[[core.NumChoices]*big.Int](res, 0)
}

func (c *Contract) ProposalVoters(ctx context.Context, id uint64) ([]common.Address, error) {
	res, err := c.call(ctx, contract.MethodGetProposalVoters, new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return as[[]common.Address](res, 0)
}

func (c *Contract) IsWhitelisted(ctx context.Context, id uint64, account common.Address) (bool, error) {
	res, err := c.call(ctx, contract.MethodIsWhitelisted, new(big.Int).SetUint64(id), account)
	if err != nil {
		return false, err
	}
	return as[bool](res, 0)
}

func (c *Contract) HasVoted(ctx context.Context, id uint64, account common.Address) (bool, error) {
	res, err := c.call(ctx, contract.MethodHasVoted, new(big.Int).SetUint64(id), account)
	if err != nil {
		return false, err
	}
	return as[bool](res, 0)
}

func (c *Contract) VoterChoice(ctx context.Context, id uint64, account common.Address) (core.VoteChoice, error) {
	res, err := c.call(ctx, contract.MethodGetVoterChoice, new(big.Int).SetUint64(id), account)
	if err != nil {
		return 0, err
	}
	o, err := as[uint8](res, 0)
	if err != nil {
		return 0, err
	}
	return core.VoteChoiceFromOrdinal(o)
}

func (c *Contract) call(ctx context.Context, method string, args ...any) ([]any, error) {
	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	out, err := c.client.CallContract(ctx, ethereum.CallMsg{
		From: c.account,
		To:   &c.address,
		Data: data,
	}, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "call %s", method)
	}

	res, err := c.abi.Unpack(method, out)
	if err != nil {
		return nil, errors.Wrapf(err, "unpack %s", method)
	}
	return res, nil
}

func (c *Contract) transact(ctx context.Context, method string, args ...any) (*core.TxResult, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}

	data, err := c.abi.Pack(method, args...)
	if err != nil {
		return nil, errors.Wrapf(err, "pack %s", method)
	}

	nonce, err := c.client.PendingNonceAt(ctx, c.account)
	if err != nil {
		return nil, errors.Wrap(err, "get pending nonce")
	}

	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "suggest gas price")
	}

	gas := c.gasLimit
	if gas == 0 {
		gas, err = c.client.EstimateGas(ctx, ethereum.CallMsg{
			From:     c.account,
			To:       &c.address,
			GasPrice: gasPrice,
			Data:     data,
		})
		if err != nil {
			return nil, errors.Wrapf(err, "estimate gas for %s", method)
		}
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gas,
		To:       &c.address,
		Value:    new(big.Int),
		Data:     data,
	})
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(c.chainID), c.key)
	if err != nil {
		return nil, errors.Wrap(err, "sign transaction")
	}

	if err := c.client.SendTransaction(ctx, signed); err != nil {
		return nil, errors.Wrapf(err, "send %s transaction", method)
	}

	c.logger.WithFields(logrus.Fields{
		"method": method,
		"hash":   signed.Hash().Hex(),
		"nonce":  nonce,
		"gas":    gas,
	}).Info("transaction sent")

	receipt, err := c.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return nil, errors.Wrapf(err, "wait receipt of %s", signed.Hash().Hex())
	}

	result := &core.TxResult{
		Hash:    signed.Hash(),
		GasUsed: receipt.GasUsed,
	}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	if receipt.Status == types.ReceiptStatusFailed {
		return result, errors.Wrapf(ErrTxReverted, "%s in block %d", method, result.BlockNumber)
	}

	c.logger.WithFields(logrus.Fields{
		"method":   method,
		"hash":     result.Hash.Hex(),
		"block":    result.BlockNumber,
		"gas_used": result.GasUsed,
	}).Info("transaction confirmed")

	return result, nil
}

func (c *Contract) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	var receipt *types.Receipt

	action := func(attempt uint) error {
		r, err := c.client.TransactionReceipt(ctx, hash)
		if err != nil {
			c.logger.Debugf("receipt of %s not ready (attempt %d): %s", hash.Hex(), attempt, err)
			return err
		}
		receipt = r
		return nil
	}

	alive := func(attempt uint) bool {
		return ctx.Err() == nil
	}

	err := retry.Retry(action, alive, strategy.Limit(c.receiptAttempts), strategy.Backoff(backoff.Fibonacci(c.receiptBackoff)))
	if err != nil {
		return nil, err
	}
	if receipt == nil {
		return nil, ctx.Err()
	}
	return receipt, nil
}

func decodeProposal(res []any) (*core.Proposal, error) {
	id, err := as[*big.Int](res, 0)
	if err != nil {
		return nil, err
	}
	title, err := as[string](res, 1)
	if err != nil {
		return nil, err
	}
	body, err := as[string](res, 2)
	if err != nil {
		return nil, err
	}
	changeSummary, err := as[string](res, 3)
	if err != nil {
		return nil, err
	}
	creator, err := as[common.Address](res, 4)
	if err != nil {
		return nil, err
	}
	start, err := as[*big.Int](res, 5)
	if err != nil {
		return nil, err
	}
	end, err := as[*big.Int](res, 6)
	if err != nil {
		return nil, err
	}
	active, err := as[bool](res, 7)
	if err != nil {
		return nil, err
	}
	total, err := as[*big.Int](res, 8)
	if err != nil {
		return nil, err
	}

	return &core.Proposal{
		ID:            id.Uint64(),
		Title:         title,
		Body:          body,
		ChangeSummary: changeSummary,
		Creator:       creator,
		StartTime:     time.Unix(start.Int64(), 0),
		EndTime:       time.Unix(end.Int64(), 0),
		Active:        active,
		TotalVotes:    total,
	}, nil
}

func as[T any](res []any, i int) (T, error) {
	var zero T
	if i >= len(res) {
		return zero, errors.Errorf("missing output %d of %d", i, len(res))
	}
	v, ok := res[i].(T)
	if !ok {
		return zero, errors.Errorf("output %d has type %T, want %T", i, res[i], zero)
	}
	return v, nil
}
