package core

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNoProposalSelected = errors.New("no proposal selected")
	ErrNoOptionSelected   = errors.New("no vote option selected")
)

// Eligibility notices. They describe an expected state, not a failure.
var (
	ErrNotWhitelisted = errors.New("account is not in this proposal's whitelist")
	ErrAlreadyVoted   = errors.New("account has already voted on this proposal")
	ErrProposalClosed = errors.New("voting on this proposal has ended")
)

// IsEligibilityNotice reports whether err only says the account cannot vote.
func IsEligibilityNotice(err error) bool {
	return errors.Is(err, ErrNotWhitelisted) || errors.Is(err, ErrAlreadyVoted) || errors.Is(err, ErrProposalClosed)
}

func noticeFor(state VoteState) error {
	switch s := state.(type) {
	case NotWhitelisted:
		return ErrNotWhitelisted
	case AlreadyVoted:
		return errors.Wrapf(ErrAlreadyVoted, "recorded choice %s", s.Choice)
	case Closed:
		return errors.Wrapf(ErrProposalClosed, "ended at %s", s.EndTime.Format(time.RFC3339))
	default:
		return nil
	}
}

// ReadVoteState reads the proposal and the account's eligibility reads
// concurrently and resolves them into one VoteState.
func ReadVoteState(ctx context.Context, ledger Ledger, id uint64, account common.Address, now time.Time) (VoteState, *Proposal, error) {
	var (
		proposal    *Proposal
		whitelisted bool
		voted       bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		proposal, err = ledger.Proposal(gctx, id)
		return errors.Wrapf(err, "get proposal %d", id)
	})
	g.Go(func() (err error) {
		whitelisted, err = ledger.IsWhitelisted(gctx, id, account)
		return errors.Wrapf(err, "check whitelist of proposal %d", id)
	})
	g.Go(func() (err error) {
		voted, err = ledger.HasVoted(gctx, id, account)
		return errors.Wrapf(err, "check vote of proposal %d", id)
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}

	var choice VoteChoice
	if whitelisted && voted {
		c, err := ledger.VoterChoice(ctx, id, account)
		if err != nil {
			return nil, nil, errors.Wrapf(err, "get choice of proposal %d", id)
		}
		choice = c
	}

	return EvaluateVoteState(whitelisted, voted, choice, proposal.EndTime, now), proposal, nil
}

// ProposalCard is one entry of the vote board.
type ProposalCard struct {
	Proposal    *Proposal
	Whitelisted bool
	Voted       bool
	Active      bool
}

// VoteController holds the selection state of the vote page for one account.
type VoteController struct {
	ledger  Ledger
	account common.Address
	logger  *logrus.Logger
	opts    options

	mu       sync.Mutex
	selected *uint64
	choice   *VoteChoice
	comment  string

	busy atomic.Bool
}

func NewVoteController(ledger Ledger, account common.Address, logger *logrus.Logger, opts ...Option) *VoteController {
	return &VoteController{
		ledger:  ledger,
		account: account,
		logger:  logger,
		opts:    newOptions(opts),
	}
}

func (v *VoteController) Account() common.Address {
	return v.account
}

func (v *VoteController) Select(id uint64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.selected = &id
}

func (v *VoteController) Selected() (uint64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.selected == nil {
		return 0, false
	}
	return *v.selected, true
}

func (v *VoteController) Choose(choice VoteChoice) error {
	if !choice.Valid() {
		return errors.Wrapf(ErrInvalidChoice, "ordinal %d", uint8(choice))
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.choice = &choice
	return nil
}

func (v *VoteController) Choice() (VoteChoice, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.choice == nil {
		return 0, false
	}
	return *v.choice, true
}

func (v *VoteController) SetComment(comment string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.comment = comment
}

func (v *VoteController) Comment() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.comment
}

// Busy is true while a vote request is in flight.
func (v *VoteController) Busy() bool {
	return v.busy.Load()
}

// State resolves the vote state of the selected proposal.
func (v *VoteController) State(ctx context.Context) (VoteState, *Proposal, error) {
	id, ok := v.Selected()
	if !ok {
		return nil, nil, ErrNoProposalSelected
	}
	return ReadVoteState(ctx, v.ledger, id, v.account, v.opts.now())
}

// Submit casts the chosen vote on the selected proposal. Selection
// problems and eligibility notices return before any request is sent.
func (v *VoteController) Submit(ctx context.Context) (*TxResult, error) {
	v.mu.Lock()
	if v.selected == nil {
		v.mu.Unlock()
		return nil, ErrNoProposalSelected
	}
	if v.choice == nil {
		v.mu.Unlock()
		return nil, ErrNoOptionSelected
	}
	id, choice, comment := *v.selected, *v.choice, v.comment
	v.mu.Unlock()

	if !v.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer v.busy.Store(false)

	state, _, err := ReadVoteState(ctx, v.ledger, id, v.account, v.opts.now())
	if err != nil {
		v.logger.Errorf("read vote state of proposal %d failed: %s", id, err)
		return nil, errors.Wrap(err, "read vote state failed, please retry")
	}
	if notice := noticeFor(state); notice != nil {
		v.logger.WithFields(logrus.Fields{
			"proposal": id,
			"account":  v.account.Hex(),
			"state":    state.String(),
		}).Warn("vote not submitted")
		return nil, notice
	}

	res, err := v.ledger.Vote(ctx, id, choice, comment)
	if err != nil {
		v.logger.WithFields(logrus.Fields{
			"proposal": id,
			"choice":   choice.String(),
		}).Errorf("vote failed: %s", err)
		return nil, errors.Wrap(err, "vote failed, please retry")
	}

	v.logger.WithFields(logrus.Fields{
		"proposal": id,
		"choice":   choice.String(),
		"account":  v.account.Hex(),
	}).Info("vote cast")

	v.mu.Lock()
	v.choice = nil
	v.comment = ""
	v.mu.Unlock()

	return res, nil
}

// Board lists every proposal with the account's eligibility flags.
func (v *VoteController) Board(ctx context.Context) ([]ProposalCard, error) {
	count, err := v.ledger.ProposalCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get proposal count")
	}

	now := v.opts.now()
	var mu sync.Mutex
	cards := make([]ProposalCard, 0, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(v.opts.concurrency)
	for id := uint64(0); id < count; id++ {
		id := id
		g.Go(func() error {
			p, err := v.ledger.Proposal(gctx, id)
			if err != nil {
				return errors.Wrapf(err, "get proposal %d", id)
			}
			whitelisted, err := v.ledger.IsWhitelisted(gctx, id, v.account)
			if err != nil {
				return errors.Wrapf(err, "check whitelist of proposal %d", id)
			}
			voted, err := v.ledger.HasVoted(gctx, id, v.account)
			if err != nil {
				return errors.Wrapf(err, "check vote of proposal %d", id)
			}

			mu.Lock()
			cards = append(cards, ProposalCard{
				Proposal:    p,
				Whitelisted: whitelisted,
				Voted:       voted,
				Active:      p.Open(now),
			})
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(cards, func(i, j int) bool {
		return cards[i].Proposal.ID < cards[j].Proposal.ID
	})
	return cards, nil
}
