package core

import (
	"context"
	"encoding/binary"
	"math/big"
	"path/filepath"
	"sync"
	"time"

	"github.com/Rican7/retry"
	"github.com/Rican7/retry/backoff"
	"github.com/Rican7/retry/strategy"
	"github.com/axiomesh/axiom-kit/storage"
	"github.com/axiomesh/axiom-kit/storage/leveldb"
	"github.com/axiomesh/ballot/contract"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

const (
	LogChanMaxSize = 1000

	nextFromBlockKey = "nextFromBlock"

	resubscribeAttempts = 5
)

// LogClient is the part of the JSON-RPC client the watcher needs.
type LogClient interface {
	FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error)

	SubscribeFilterLogs(context.Context, ethereum.FilterQuery, chan<- types.Log) (ethereum.Subscription, error)
}

// EventHandler is called once per decoded contract event, in log order.
type EventHandler func(ctx context.Context, ev contract.Event)

// Watcher follows ProposalCreated and VoteCast logs of the Vote contract and
// remembers the next block to read across restarts.
type Watcher struct {
	Ctx     context.Context
	cancel  context.CancelFunc
	Client  LogClient
	Logger  *logrus.Logger
	DB      storage.Storage
	Config  *repo.Config
	handler EventHandler

	FromBlock *big.Int
	ToBlock   *big.Int
	Addresses []common.Address
	Topics    [][]common.Hash

	LogChan chan types.Log
	subMu   sync.Mutex
	LogSub  ethereum.Subscription

	resubscribeBackoff time.Duration
	done               chan struct{}
	stopOnce           sync.Once
}

func NewWatcher(ctx context.Context, config *repo.Config, client LogClient, logger *logrus.Logger, handler EventHandler) (*Watcher, error) {
	var fromBlock, toBlock *big.Int
	if config.Watch.FromBlock != 0 {
		fromBlock = new(big.Int).SetUint64(config.Watch.FromBlock)
	}

	if config.Watch.ToBlock != 0 {
		toBlock = new(big.Int).SetUint64(config.Watch.ToBlock)
	}

	db, err := leveldb.New(filepath.Join(config.RepoRoot, repo.LevelDBDirName))
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Watcher{
		Ctx:                ctx,
		cancel:             cancel,
		Client:             client,
		Logger:             logger,
		DB:                 db,
		Config:             config,
		handler:            handler,
		FromBlock:          fromBlock,
		ToBlock:            toBlock,
		Addresses:          []common.Address{common.HexToAddress(config.ContractAddr)},
		Topics:             contract.EventTopics(),
		LogChan:            make(chan types.Log, LogChanMaxSize),
		resubscribeBackoff: 5 * time.Second,
		done:               make(chan struct{}),
	}, nil
}

func (w *Watcher) Start() error {
	if err := w.fetchHistoryLog(); err != nil {
		return err
	}

	if err := w.subscribeLog(); err != nil {
		return err
	}

	go w.listenEvents()

	return nil
}

func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.cancel()
		if sub := w.subscription(); sub != nil {
			sub.Unsubscribe()
			<-w.done
		}
		err = w.DB.Close()
	})
	return err
}

// NextFromBlock is the first block not yet handled, nil before any log.
func (w *Watcher) NextFromBlock() *big.Int {
	data := w.DB.Get([]byte(nextFromBlockKey))
	if data == nil {
		return nil
	}
	return new(big.Int).SetUint64(binary.BigEndian.Uint64(data))
}

func (w *Watcher) fetchHistoryLog() error {
	fromBlock := w.getNewestFromBlock()

	logs, err := w.Client.FilterLogs(w.Ctx, ethereum.FilterQuery{
		FromBlock: fromBlock,
		ToBlock:   w.ToBlock,
		Addresses: w.Addresses,
		Topics:    w.Topics,
	})
	if err != nil {
		return err
	}

	w.Logger.Debugf("fetched %d history logs from block %v", len(logs), fromBlock)

	for _, log := range logs {
		w.handleLog(log)
	}

	return nil
}

func (w *Watcher) subscribeLog() error {
	sub, err := w.Client.SubscribeFilterLogs(w.Ctx, ethereum.FilterQuery{
		ToBlock:   w.ToBlock,
		Addresses: w.Addresses,
		Topics:    w.Topics,
	}, w.LogChan)
	if err != nil {
		return err
	}

	w.subMu.Lock()
	w.LogSub = sub
	w.subMu.Unlock()
	return nil
}

func (w *Watcher) subscription() ethereum.Subscription {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	return w.LogSub
}

func (w *Watcher) listenEvents() {
	defer close(w.done)

	w.Logger.Info("listen vote contract events")

	for {
		select {
		case <-w.Ctx.Done():
			w.Logger.Info("context done")
			return
		case err := <-w.subscription().Err():
			if w.Ctx.Err() != nil {
				return
			}
			w.Logger.Warnf("log subscription dropped: %v", err)
			if err := w.resubscribe(); err != nil {
				w.Logger.Errorf("resubscribe failed, stop watching: %s", err)
				return
			}
		case log := <-w.LogChan:
			w.handleLog(log)
		}
	}
}

// resubscribe refetches the gap since the cursor, then subscribes again.
func (w *Watcher) resubscribe() error {
	action := func(attempt uint) error {
		if err := w.fetchHistoryLog(); err != nil {
			return err
		}
		return w.subscribeLog()
	}

	alive := func(attempt uint) bool {
		return w.Ctx.Err() == nil
	}

	return retry.Retry(action, alive, strategy.Limit(resubscribeAttempts), strategy.Backoff(backoff.Fibonacci(w.resubscribeBackoff)))
}

func (w *Watcher) handleLog(log types.Log) {
	if log.Removed {
		w.Logger.Debugf("skip removed log %s:%d", log.TxHash.Hex(), log.Index)
		return
	}

	ev, err := contract.DecodeEvent(log)
	if err != nil {
		w.Logger.Errorf("decode log error: %s", err)
		return
	}

	w.Logger.WithFields(logrus.Fields{
		"event":    ev.Name(),
		"proposal": ev.Proposal(),
		"block":    log.BlockNumber,
		"tx":       log.TxHash.Hex(),
	}).Info("vote contract event")

	if w.handler != nil {
		w.handler(w.Ctx, ev)
	}

	w.setNextFromBlock(log.BlockNumber + 1)
}

func (w *Watcher) getNewestFromBlock() *big.Int {
	next := w.NextFromBlock()
	if next != nil && (w.FromBlock == nil || next.Cmp(w.FromBlock) > 0) {
		w.FromBlock = next
	}

	return w.FromBlock
}

func (w *Watcher) setNextFromBlock(next uint64) {
	if cur := w.NextFromBlock(); cur != nil && cur.Uint64() >= next {
		return
	}
	data := make([]byte, 8)
	binary.BigEndian.PutUint64(data, next)
	w.DB.Put([]byte(nextFromBlockKey), data)
}
