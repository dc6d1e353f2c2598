package core

import (
	"context"
	"math/big"
	"sync"
	"sync/atomic"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
)

const (
	SecondsPerDay = 24 * 60 * 60

	// AddressLength is the length of a 0x prefixed account identifier
	AddressLength = 42
)

var (
	ErrBusy             = errors.New("a submission is already in flight")
	ErrMissingField     = errors.New("title, body and change summary are required")
	ErrNoValidWhitelist = errors.New("at least one valid whitelist address is required")
	ErrInvalidDuration  = errors.New("duration must not be negative")
)

// ValidAddress is the format gate for whitelist entries.
func ValidAddress(s string) bool {
	return len(s) == AddressLength && common.IsHexAddress(s)
}

// FilterWhitelist keeps the well formed entries in their original order.
func FilterWhitelist(entries []string) []common.Address {
	valid := lo.Filter(entries, func(s string, _ int) bool {
		return ValidAddress(s)
	})
	return lo.Map(valid, func(s string, _ int) common.Address {
		return common.HexToAddress(s)
	})
}

// DurationSeconds converts whole days to the ledger's duration unit.
func DurationSeconds(days int) (*big.Int, error) {
	if days < 0 {
		return nil, errors.Wrapf(ErrInvalidDuration, "%d days", days)
	}
	return new(big.Int).Mul(big.NewInt(int64(days)), big.NewInt(SecondsPerDay)), nil
}

// ProposalRequest is a validated createProposal call.
type ProposalRequest struct {
	Title           string
	Body            string
	ChangeSummary   string
	DurationSeconds *big.Int
	Whitelist       []common.Address
}

// ProposalForm holds the transient state of the create proposal form.
type ProposalForm struct {
	ledger      Ledger
	logger      *logrus.Logger
	defaultDays int

	mu            sync.Mutex
	title         string
	body          string
	changeSummary string
	days          int
	whitelist     []string

	busy atomic.Bool
}

func NewProposalForm(ledger Ledger, logger *logrus.Logger, defaultDays int) *ProposalForm {
	f := &ProposalForm{
		ledger:      ledger,
		logger:      logger,
		defaultDays: defaultDays,
	}
	f.reset()
	return f
}

func (f *ProposalForm) SetTitle(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.title = v
}

func (f *ProposalForm) SetBody(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.body = v
}

func (f *ProposalForm) SetChangeSummary(v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changeSummary = v
}

func (f *ProposalForm) SetDays(days int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.days = days
}

// AddAddress appends an empty whitelist slot.
func (f *ProposalForm) AddAddress() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.whitelist = append(f.whitelist, "")
}

// RemoveAddress drops slot i, the last remaining slot is kept.
func (f *ProposalForm) RemoveAddress(i int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.whitelist) <= 1 || i < 0 || i >= len(f.whitelist) {
		return
	}
	f.whitelist = append(f.whitelist[:i:i], f.whitelist[i+1:]...)
}

// SetAddress fills slot i, out of range indexes are ignored.
func (f *ProposalForm) SetAddress(i int, v string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if i < 0 || i >= len(f.whitelist) {
		return
	}
	f.whitelist[i] = v
}

// SetWhitelist replaces all slots, an empty list leaves one empty slot.
func (f *ProposalForm) SetWhitelist(entries []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(entries) == 0 {
		f.whitelist = []string{""}
		return
	}
	f.whitelist = append([]string(nil), entries...)
}

func (f *ProposalForm) Whitelist() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.whitelist...)
}

func (f *ProposalForm) Title() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.title
}

func (f *ProposalForm) Body() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.body
}

func (f *ProposalForm) ChangeSummary() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.changeSummary
}

func (f *ProposalForm) Days() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.days
}

// Busy is true while a createProposal request is in flight.
func (f *ProposalForm) Busy() bool {
	return f.busy.Load()
}

func (f *ProposalForm) Validate() (*ProposalRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.validate()
}

func (f *ProposalForm) validate() (*ProposalRequest, error) {
	if f.title == "" || f.body == "" || f.changeSummary == "" {
		return nil, ErrMissingField
	}

	whitelist := FilterWhitelist(f.whitelist)
	if len(whitelist) == 0 {
		return nil, ErrNoValidWhitelist
	}

	duration, err := DurationSeconds(f.days)
	if err != nil {
		return nil, err
	}

	return &ProposalRequest{
		Title:           f.title,
		Body:            f.body,
		ChangeSummary:   f.changeSummary,
		DurationSeconds: duration,
		Whitelist:       whitelist,
	}, nil
}

// Submit sends one createProposal request. The form resets only on success.
func (f *ProposalForm) Submit(ctx context.Context) (*TxResult, error) {
	if !f.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer f.busy.Store(false)

	req, err := f.Validate()
	if err != nil {
		return nil, err
	}

	res, err := f.ledger.CreateProposal(ctx, req.Title, req.Body, req.ChangeSummary, req.DurationSeconds, req.Whitelist)
	if err != nil {
		f.logger.WithFields(logrus.Fields{
			"title":     req.Title,
			"whitelist": len(req.Whitelist),
		}).Errorf("create proposal failed: %s", err)
		return nil, errors.Wrap(err, "create proposal failed, please retry")
	}

	f.logger.WithFields(logrus.Fields{
		"title":     req.Title,
		"duration":  req.DurationSeconds.String(),
		"whitelist": len(req.Whitelist),
	}).Info("proposal created")

	f.mu.Lock()
	f.reset()
	f.mu.Unlock()

	return res, nil
}

func (f *ProposalForm) reset() {
	f.title = ""
	f.body = ""
	f.changeSummary = ""
	f.days = f.defaultDays
	f.whitelist = []string{""}
}
