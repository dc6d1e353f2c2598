package core

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

var ErrInvalidChoice = errors.New("invalid vote choice")

type VoteChoice uint8

const (
	// Agree supports the proposal
	Agree VoteChoice = iota

	// Disagree opposes the proposal
	Disagree

	// Abstain takes no side
	Abstain

	// FollowMajority counts with whichever side wins
	FollowMajority
)

// NumChoices is the size of the closed VoteChoice enumeration.
const NumChoices = 4

// AllChoices in wire order.
var AllChoices = [NumChoices]VoteChoice{Agree, Disagree, Abstain, FollowMajority}

var choiceNames = [NumChoices]string{"agree", "disagree", "abstain", "follow-majority"}

func (c VoteChoice) Valid() bool {
	return c < NumChoices
}

func (c VoteChoice) String() string {
	if !c.Valid() {
		return fmt.Sprintf("choice(%d)", uint8(c))
	}
	return choiceNames[c]
}

func (c VoteChoice) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, errors.Wrapf(ErrInvalidChoice, "ordinal %d", uint8(c))
	}
	return []byte(c.String()), nil
}

func (c *VoteChoice) UnmarshalText(text []byte) error {
	parsed, err := ParseVoteChoice(string(text))
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseVoteChoice accepts the choice name or its wire ordinal.
func ParseVoteChoice(s string) (VoteChoice, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range choiceNames {
		if s == name || s == fmt.Sprint(i) {
			return VoteChoice(i), nil
		}
	}
	switch s {
	case "followmajority", "follow_majority":
		return FollowMajority, nil
	}
	return 0, errors.Wrapf(ErrInvalidChoice, "%q", s)
}

// VoteChoiceFromOrdinal converts the ledger's uint8 representation.
func VoteChoiceFromOrdinal(o uint8) (VoteChoice, error) {
	c := VoteChoice(o)
	if !c.Valid() {
		return 0, errors.Wrapf(ErrInvalidChoice, "ordinal %d", o)
	}
	return c, nil
}

type Proposal struct {
	ID            uint64
	Title         string
	Body          string
	ChangeSummary string
	Creator       common.Address
	StartTime     time.Time
	EndTime       time.Time

	// Active is the flag stored by the contract, openness is derived from EndTime
	Active bool

	// TotalVotes counts cast votes, not whitelist size
	TotalVotes *big.Int
}

// IsProposalActive is the single open/closed predicate: a proposal is open
// strictly before its end time.
func IsProposalActive(end, now time.Time) bool {
	return now.Before(end)
}

// Open reports whether p accepts votes at now.
func (p *Proposal) Open(now time.Time) bool {
	return IsProposalActive(p.EndTime, now)
}

type TxResult struct {
	Hash        common.Hash
	BlockNumber uint64
	GasUsed     uint64
}

// VoteState is exactly one of NotWhitelisted, AlreadyVoted, Closed or Open.
type VoteState interface {
	voteState()
	String() string
}

type NotWhitelisted struct{}

type AlreadyVoted struct {
	Choice VoteChoice
}

type Closed struct {
	EndTime time.Time
}

type Open struct{}

func (NotWhitelisted) voteState() {}
func (AlreadyVoted) voteState()   {}
func (Closed) voteState()         {}
func (Open) voteState()           {}

func (NotWhitelisted) String() string { return "not-whitelisted" }
func (s AlreadyVoted) String() string { return "voted:" + s.Choice.String() }
func (Closed) String() string         { return "closed" }
func (Open) String() string           { return "open" }

// EvaluateVoteState resolves the eligibility reads into one state. Whitelist
// membership is checked first, then a recorded vote, then the voting window.
func EvaluateVoteState(whitelisted, voted bool, choice VoteChoice, end, now time.Time) VoteState {
	switch {
	case !whitelisted:
		return NotWhitelisted{}
	case voted:
		return AlreadyVoted{Choice: choice}
	case !IsProposalActive(end, now):
		return Closed{EndTime: end}
	default:
		return Open{}
	}
}
