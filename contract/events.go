package contract

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/pkg/errors"
)

var ErrUnknownEvent = errors.New("unknown vote contract event")

// Event is a decoded Vote contract log.
type Event interface {
	Name() string
	Proposal() uint64
	RawLog() types.Log
}

type ProposalCreated struct {
	ProposalID *big.Int
	Creator    common.Address
	Title      string
	EndTime    *big.Int
	Raw        types.Log
}

type VoteCast struct {
	ProposalID *big.Int
	Voter      common.Address
	Option     uint8
	Comment    string
	Raw        types.Log
}

func (e *ProposalCreated) Name() string      { return EventProposalCreated }
func (e *ProposalCreated) Proposal() uint64  { return e.ProposalID.Uint64() }
func (e *ProposalCreated) RawLog() types.Log { return e.Raw }

func (e *VoteCast) Name() string      { return EventVoteCast }
func (e *VoteCast) Proposal() uint64  { return e.ProposalID.Uint64() }
func (e *VoteCast) RawLog() types.Log { return e.Raw }

// EventTopics is the first topic position matching either contract event.
func EventTopics() [][]common.Hash {
	return [][]common.Hash{{
		parsed.Events[EventProposalCreated].ID,
		parsed.Events[EventVoteCast].ID,
	}}
}

// DecodeEvent decodes a log emitted by the Vote contract.
func DecodeEvent(l types.Log) (Event, error) {
	if len(l.Topics) == 0 {
		return nil, ErrUnknownEvent
	}
	ev, err := parsed.EventByID(l.Topics[0])
	if err != nil {
		return nil, errors.Wrapf(ErrUnknownEvent, "topic %s", l.Topics[0].Hex())
	}
	// both events index the proposal id and an account
	if len(l.Topics) != 3 {
		return nil, errors.Errorf("%s log has %d topics, want 3", ev.Name, len(l.Topics))
	}
	proposalID := new(big.Int).SetBytes(l.Topics[1].Bytes())
	account := common.BytesToAddress(l.Topics[2].Bytes())

	switch ev.Name {
	case EventProposalCreated:
		out := &ProposalCreated{ProposalID: proposalID, Creator: account, Raw: l}
		if err := parsed.UnpackIntoInterface(out, ev.Name, l.Data); err != nil {
			return nil, errors.Wrap(err, "unpack ProposalCreated")
		}
		return out, nil
	case EventVoteCast:
		out := &VoteCast{ProposalID: proposalID, Voter: account, Raw: l}
		if err := parsed.UnpackIntoInterface(out, ev.Name, l.Data); err != nil {
			return nil, errors.Wrap(err, "unpack VoteCast")
		}
		return out, nil
	default:
		return nil, errors.Wrapf(ErrUnknownEvent, "event %s", ev.Name)
	}
}
