package ledger

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"math/big"
	"sync"
	"time"

	"github.com/axiomesh/ballot/contract"
	"github.com/axiomesh/ballot/core"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// Reasons the in-memory ledger rejects a call, matching the contract's require checks.
var (
	ErrProposalNotFound = errors.New("proposal does not exist")
	ErrEmptyWhitelist   = errors.New("whitelist is empty")
	ErrNotInWhitelist   = errors.New("voter is not whitelisted")
	ErrDuplicateVote    = errors.New("voter has already voted")
	ErrVotingEnded      = errors.New("voting has ended")
	ErrNoVoteRecorded   = errors.New("voter has not voted")
)

type memoryProposal struct {
	core.Proposal
	whitelist map[common.Address]bool
	voters    []common.Address
	choices   map[common.Address]core.VoteChoice
	comments  map[common.Address]string
	stats     [core.NumChoices]*big.Int
}

// Memory is an in-process stand-in for the Vote contract. Every write is
// confirmed immediately in its own block.
type Memory struct {
	mu        sync.RWMutex
	now       func() time.Time
	proposals []*memoryProposal
	block     uint64
	calls     map[string]int
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{
		now:   now,
		calls: make(map[string]int),
	}
}

// As binds the ledger to a transaction sender.
func (m *Memory) As(sender common.Address) *MemorySession {
	return &MemorySession{Memory: m, sender: sender}
}

// Calls returns how many times a contract method was invoked.
func (m *Memory) Calls(method string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.calls[method]
}

// Comment returns the comment stored with a vote.
func (m *Memory) Comment(id uint64, voter common.Address) (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if id >= uint64(len(m.proposals)) {
		return "", false
	}
	c, ok := m.proposals[id].comments[voter]
	return c, ok
}

var _ core.Ledger = (*MemorySession)(nil)

type MemorySession struct {
	*Memory
	sender common.Address
}

func (s *MemorySession) CreateProposal(ctx context.Context, title, body, changeSummary string, durationSeconds *big.Int, whitelist []common.Address) (*core.TxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[contract.MethodCreateProposal]++

	if len(whitelist) == 0 {
		return nil, ErrEmptyWhitelist
	}
	if durationSeconds == nil || durationSeconds.Sign() < 0 || !durationSeconds.IsInt64() {
		return nil, errors.Errorf("invalid duration %v", durationSeconds)
	}

	now := s.now()
	start := time.Unix(now.Unix(), 0)
	p := &memoryProposal{
		Proposal: core.Proposal{
			ID:            uint64(len(s.proposals)),
			Title:         title,
			Body:          body,
			ChangeSummary: changeSummary,
			Creator:       s.sender,
			StartTime:     start,
			EndTime:       start.Add(time.Duration(durationSeconds.Int64()) * time.Second),
			Active:        true,
			TotalVotes:    new(big.Int),
		},
		whitelist: make(map[common.Address]bool, len(whitelist)),
		choices:   make(map[common.Address]core.VoteChoice),
		comments:  make(map[common.Address]string),
	}
	for i := range p.stats {
		p.stats[i] = new(big.Int)
	}
	for _, addr := range whitelist {
		p.whitelist[addr] = true
	}
	s.proposals = append(s.proposals, p)

	return s.confirm(contract.MethodCreateProposal), nil
}

func (s *MemorySession) Vote(ctx context.Context, proposalID uint64, choice core.VoteChoice, comment string) (*core.TxResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls[contract.MethodVote]++

	p, err := s.get(proposalID)
	if err != nil {
		return nil, err
	}
	if !choice.Valid() {
		return nil, errors.Wrapf(core.ErrInvalidChoice, "ordinal %d", uint8(choice))
	}
	if !p.whitelist[s.sender] {
		return nil, ErrNotInWhitelist
	}
	if _, ok := p.choices[s.sender]; ok {
		return nil, ErrDuplicateVote
	}
	if !p.Open(s.now()) {
		return nil, ErrVotingEnded
	}

	p.choices[s.sender] = choice
	p.comments[s.sender] = comment
	p.voters = append(p.voters, s.sender)
	p.stats[choice].Add(p.stats[choice], big.NewInt(1))
	p.TotalVotes.Add(p.TotalVotes, big.NewInt(1))

	return s.confirm(contract.MethodVote), nil
}

func (m *Memory) ProposalCount(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodGetProposalCount]++
	return uint64(len(m.proposals)), nil
}

func (m *Memory) Proposal(ctx context.Context, id uint64) (*core.Proposal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodGetProposal]++

	p, err := m.get(id)
	if err != nil {
		return nil, err
	}
	out := p.Proposal
	out.TotalVotes = new(big.Int).Set(p.TotalVotes)
	return &out, nil
}

func (m *Memory) ProposalVoteStats(ctx context.Context, id uint64) ([core.NumChoices]*big.Int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodGetProposalVoteStats]++

	var out [core.NumChoices]*big.Int
	p, err := m.get(id)
	if err != nil {
		return out, err
	}
	for i, c := range p.stats {
		out[i] = new(big.Int).Set(c)
	}
	return out, nil
}

func (m *Memory) ProposalVoters(ctx context.Context, id uint64) ([]common.Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodGetProposalVoters]++

	p, err := m.get(id)
	if err != nil {
		return nil, err
	}
	return append([]common.Address(nil), p.voters...), nil
}

func (m *Memory) IsWhitelisted(ctx context.Context, id uint64, account common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodIsWhitelisted]++

	p, err := m.get(id)
	if err != nil {
		return false, err
	}
	return p.whitelist[account], nil
}

func (m *Memory) HasVoted(ctx context.Context, id uint64, account common.Address) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodHasVoted]++

	p, err := m.get(id)
	if err != nil {
		return false, err
	}
	_, ok := p.choices[account]
	return ok, nil
}

func (m *Memory) VoterChoice(ctx context.Context, id uint64, account common.Address) (core.VoteChoice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[contract.MethodGetVoterChoice]++

	p, err := m.get(id)
	if err != nil {
		return 0, err
	}
	c, ok := p.choices[account]
	if !ok {
		return 0, ErrNoVoteRecorded
	}
	return c, nil
}

func (m *Memory) get(id uint64) (*memoryProposal, error) {
	if id >= uint64(len(m.proposals)) {
		return nil, errors.Wrapf(ErrProposalNotFound, "id %d", id)
	}
	return m.proposals[id], nil
}

// confirm mines a pseudo block for one write, callers hold the lock.
func (m *Memory) confirm(method string) *core.TxResult {
	m.block++
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, m.block)
	return &core.TxResult{
		Hash:        common.Hash(sha256.Sum256(append([]byte(method), buf...))),
		BlockNumber: m.block,
		GasUsed:     21000,
	}
}
