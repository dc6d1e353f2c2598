package core_test

import (
	"context"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/ledger"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

var (
	creator = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob     = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol   = common.HexToAddress("0x90F79bf6EB2c4f937b3c3fc9c4A7C8A4F31d7a7a")
	mallory = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Unix(1_700_000_000, 0)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testLogger() *logrus.Logger {
	logger := log.New()
	logger.SetLevel(logrus.DebugLevel)
	return logger
}

// seed creates a proposal open for days with the given whitelist.
func seed(t *testing.T, m *ledger.Memory, days int64, whitelist ...common.Address) uint64 {
	t.Helper()
	count, err := m.ProposalCount(context.Background())
	require.Nil(t, err)
	_, err = m.As(creator).CreateProposal(context.Background(), "title", "body", "summary", big.NewInt(days*core.SecondsPerDay), whitelist)
	require.Nil(t, err)
	return count
}

func castVote(t *testing.T, m *ledger.Memory, id uint64, voter common.Address, choice core.VoteChoice) {
	t.Helper()
	_, err := m.As(voter).Vote(context.Background(), id, choice, "")
	require.Nil(t, err)
}
