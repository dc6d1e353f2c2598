package core

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Ledger is the read/write surface of the Vote contract. Reads are eventually
// consistent with the last confirmed write, callers re-fetch after writing.
type Ledger interface {
	CreateProposal(ctx context.Context, title, body, changeSummary string, durationSeconds *big.Int, whitelist []common.Address) (*TxResult, error)

	Vote(ctx context.Context, proposalID uint64, choice VoteChoice, comment string) (*TxResult, error)

	ProposalCount(ctx context.Context) (uint64, error)

	Proposal(ctx context.Context, id uint64) (*Proposal, error)

	// ProposalVoteStats returns counts indexed by VoteChoice
	ProposalVoteStats(ctx context.Context, id uint64) ([NumChoices]*big.Int, error)

	ProposalVoters(ctx context.Context, id uint64) ([]common.Address, error)

	IsWhitelisted(ctx context.Context, id uint64, account common.Address) (bool, error)

	HasVoted(ctx context.Context, id uint64, account common.Address) (bool, error)

	VoterChoice(ctx context.Context, id uint64, account common.Address) (VoteChoice, error)
}
