package core

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/ballot/contract"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ LogClient = (*MockLogClient)(nil)

type MockLogClient struct {
	mu      sync.Mutex
	history []types.Log
	queries []ethereum.FilterQuery
	subs    []*MockSubscription
	sink    chan<- types.Log
}

func (mc *MockLogClient) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.queries = append(mc.queries, q)

	var logs []types.Log
	for _, l := range mc.history {
		if q.FromBlock == nil || l.BlockNumber >= q.FromBlock.Uint64() {
			logs = append(logs, l)
		}
	}
	return logs, nil
}

func (mc *MockLogClient) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	sub := &MockSubscription{errCh: make(chan error, 1)}
	mc.subs = append(mc.subs, sub)
	mc.sink = ch
	return sub, nil
}

func (mc *MockLogClient) push(l types.Log) {
	mc.mu.Lock()
	sink := mc.sink
	mc.mu.Unlock()
	sink <- l
}

func (mc *MockLogClient) lastQuery() ethereum.FilterQuery {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.queries[len(mc.queries)-1]
}

func (mc *MockLogClient) subscriptions() []*MockSubscription {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return append([]*MockSubscription(nil), mc.subs...)
}

type MockSubscription struct {
	once  sync.Once
	errCh chan error
}

func (ms *MockSubscription) Unsubscribe() {
	ms.once.Do(func() {
		close(ms.errCh)
	})
}

func (ms *MockSubscription) Err() <-chan error {
	return ms.errCh
}

func proposalCreatedLog(t *testing.T, block, id uint64, creator common.Address, title string, end int64) types.Log {
	ev := contract.ABI().Events[contract.EventProposalCreated]
	data, err := ev.Inputs.NonIndexed().Pack(title, big.NewInt(end))
	require.Nil(t, err)
	return types.Log{
		Address:     common.HexToAddress(repo.DefaultContractAddr),
		Topics:      []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(id)), common.BytesToHash(creator.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func voteCastLog(t *testing.T, block, id uint64, voter common.Address, choice VoteChoice, comment string) types.Log {
	ev := contract.ABI().Events[contract.EventVoteCast]
	data, err := ev.Inputs.NonIndexed().Pack(uint8(choice), comment)
	require.Nil(t, err)
	return types.Log{
		Address:     common.HexToAddress(repo.DefaultContractAddr),
		Topics:      []common.Hash{ev.ID, common.BigToHash(new(big.Int).SetUint64(id)), common.BytesToHash(voter.Bytes())},
		Data:        data,
		BlockNumber: block,
	}
}

func newTestWatcher(t *testing.T, c *repo.Config, client LogClient, events chan contract.Event) *Watcher {
	logger := log.New()
	logger.SetLevel(log.ParseLevel("debug"))

	w, err := NewWatcher(context.Background(), c, client, logger, func(ctx context.Context, ev contract.Event) {
		events <- ev
	})
	require.Nil(t, err)
	w.resubscribeBackoff = time.Millisecond
	return w
}

func TestWatcher(t *testing.T) {
	c := repo.DefaultConfig(t.TempDir())
	c.Log.Level = "debug"
	voter := common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")

	client := &MockLogClient{
		history: []types.Log{proposalCreatedLog(t, 10, 0, voter, "Repaint stairwell", 1_700_000_000)},
	}
	events := make(chan contract.Event, 10)
	w := newTestWatcher(t, c, client, events)

	require.Nil(t, w.Start())
	assert.Equal(t, uint64(1), client.lastQuery().FromBlock.Uint64())
	assert.Equal(t, []common.Address{common.HexToAddress(c.ContractAddr)}, client.lastQuery().Addresses)

	ev := <-events
	created, ok := ev.(*contract.ProposalCreated)
	require.True(t, ok)
	assert.Equal(t, "Repaint stairwell", created.Title)
	assert.Equal(t, voter, created.Creator)
	assert.Equal(t, int64(1_700_000_000), created.EndTime.Int64())
	assert.Equal(t, uint64(11), w.NextFromBlock().Uint64())

	// undecodable logs are skipped
	client.push(types.Log{Topics: []common.Hash{common.HexToHash("0x01")}, BlockNumber: 11})
	client.push(voteCastLog(t, 12, 0, voter, FollowMajority, "fine by me"))

	ev = <-events
	cast, ok := ev.(*contract.VoteCast)
	require.True(t, ok)
	assert.Equal(t, uint64(0), cast.Proposal())
	assert.Equal(t, uint8(FollowMajority), cast.Option)
	assert.Equal(t, "fine by me", cast.Comment)
	assert.Eventually(t, func() bool {
		return w.NextFromBlock().Uint64() == 13
	}, time.Second, 10*time.Millisecond)

	require.Nil(t, w.Stop())
	require.Nil(t, w.Stop())

	// the cursor survives a restart
	w = newTestWatcher(t, c, client, events)
	require.Nil(t, w.Start())
	assert.Equal(t, uint64(13), client.lastQuery().FromBlock.Uint64())
	select {
	case ev := <-events:
		t.Fatalf("history before the cursor was replayed: %v", ev.Name())
	default:
	}
	require.Nil(t, w.Stop())
}

func TestWatcherResubscribe(t *testing.T) {
	c := repo.DefaultConfig(t.TempDir())
	voter := common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	client := &MockLogClient{}
	events := make(chan contract.Event, 10)
	w := newTestWatcher(t, c, client, events)
	require.Nil(t, w.Start())

	client.subscriptions()[0].errCh <- errors.New("connection reset")

	assert.Eventually(t, func() bool {
		return len(client.subscriptions()) == 2
	}, time.Second, 10*time.Millisecond)

	client.push(voteCastLog(t, 20, 1, voter, Agree, ""))
	ev := <-events
	assert.Equal(t, contract.EventVoteCast, ev.Name())
	assert.Equal(t, uint64(1), ev.Proposal())

	require.Nil(t, w.Stop())
}
