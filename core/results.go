package core

import (
	"context"
	"math/big"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

type ProposalSummary struct {
	Proposal        *Proposal
	Tally           Tally
	Active          bool
	AgreePercentage uint64
}

type VoterRow struct {
	// Index is 1-based
	Index  int
	Voter  common.Address
	Choice VoteChoice
}

type ProposalResult struct {
	Proposal    *Proposal
	Tally       Tally
	Percentages [NumChoices]uint64
	Active      bool
	Voters      []VoterRow
}

// VoterChoices indexes voter rows by address.
func VoterChoices(rows []VoterRow) map[common.Address]VoteChoice {
	return lo.SliceToMap(rows, func(r VoterRow) (common.Address, VoteChoice) {
		return r.Voter, r.Choice
	})
}

// ResultsReader builds the result views. Nothing is cached, every call
// reads the ledger again.
type ResultsReader struct {
	ledger Ledger
	logger *logrus.Logger
	opts   options
}

func NewResultsReader(ledger Ledger, logger *logrus.Logger, opts ...Option) *ResultsReader {
	return &ResultsReader{
		ledger: ledger,
		logger: logger,
		opts:   newOptions(opts),
	}
}

// Now is the reader's clock.
func (r *ResultsReader) Now() time.Time {
	return r.opts.now()
}

func (r *ResultsReader) Summary(ctx context.Context, id uint64) (*ProposalSummary, error) {
	p, tally, err := r.read(ctx, id)
	if err != nil {
		return nil, err
	}
	return &ProposalSummary{
		Proposal:        p,
		Tally:           tally,
		Active:          p.Open(r.opts.now()),
		AgreePercentage: tally.Percentage(Agree),
	}, nil
}

// Summaries reads every proposal concurrently and returns them ordered by id.
func (r *ResultsReader) Summaries(ctx context.Context) ([]ProposalSummary, error) {
	count, err := r.ledger.ProposalCount(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "get proposal count")
	}

	var mu sync.Mutex
	out := make([]ProposalSummary, 0, count)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for id := uint64(0); id < count; id++ {
		id := id
		g.Go(func() error {
			s, err := r.Summary(gctx, id)
			if err != nil {
				return err
			}
			mu.Lock()
			out = append(out, *s)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Proposal.ID < out[j].Proposal.ID
	})
	return out, nil
}

// Detail reads a proposal, its tally and every voter's recorded choice.
func (r *ResultsReader) Detail(ctx context.Context, id uint64) (*ProposalResult, error) {
	p, tally, err := r.read(ctx, id)
	if err != nil {
		return nil, err
	}

	voters, err := r.ledger.ProposalVoters(ctx, id)
	if err != nil {
		return nil, errors.Wrapf(err, "get voters of proposal %d", id)
	}

	rows := make([]VoterRow, len(voters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.concurrency)
	for i, voter := range voters {
		i, voter := i, voter
		g.Go(func() error {
			choice, err := r.ledger.VoterChoice(gctx, id, voter)
			if err != nil {
				return errors.Wrapf(err, "get choice of %s on proposal %d", voter.Hex(), id)
			}
			rows[i] = VoterRow{Index: i + 1, Voter: voter, Choice: choice}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !tally.Consistent() {
		r.logger.WithFields(logrus.Fields{
			"proposal": id,
			"sum":      tally.Sum().String(),
			"total":    tally.Total.String(),
		}).Warn("vote stats do not add up to total votes")
	}

	return &ProposalResult{
		Proposal:    p,
		Tally:       tally,
		Percentages: tally.Percentages(),
		Active:      p.Open(r.opts.now()),
		Voters:      rows,
	}, nil
}

func (r *ResultsReader) read(ctx context.Context, id uint64) (*Proposal, Tally, error) {
	var (
		p     *Proposal
		stats [NumChoices]*big.Int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		p, err = r.ledger.Proposal(gctx, id)
		return errors.Wrapf(err, "get proposal %d", id)
	})
	g.Go(func() (err error) {
		stats, err = r.ledger.ProposalVoteStats(gctx, id)
		return errors.Wrapf(err, "get vote stats of proposal %d", id)
	})
	if err := g.Wait(); err != nil {
		return nil, Tally{}, err
	}

	return p, NewTally(stats, p.TotalVotes), nil
}
