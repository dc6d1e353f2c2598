package contract

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const (
	MethodCreateProposal       = "createProposal"
	MethodVote                 = "vote"
	MethodGetProposalCount     = "getProposalCount"
	MethodGetProposal          = "getProposal"
	MethodGetProposalVoteStats = "getProposalVoteStats"
	MethodGetProposalVoters    = "getProposalVoters"
	MethodIsWhitelisted        = "isWhitelisted"
	MethodHasVoted             = "hasVoted"
	MethodGetVoterChoice       = "getVoterChoice"

	EventProposalCreated = "ProposalCreated"
	EventVoteCast        = "VoteCast"
)

// VoteABI is the interface of the deployed Vote contract.
const VoteABI = `[
	{
		"type": "function",
		"name": "createProposal",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "title", "type": "string"},
			{"name": "content", "type": "string"},
			{"name": "diffContent", "type": "string"},
			{"name": "duration", "type": "uint256"},
			{"name": "whitelist", "type": "address[]"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "vote",
		"stateMutability": "nonpayable",
		"inputs": [
			{"name": "proposalId", "type": "uint256"},
			{"name": "option", "type": "uint8"},
			{"name": "comment", "type": "string"}
		],
		"outputs": []
	},
	{
		"type": "function",
		"name": "getProposalCount",
		"stateMutability": "view",
		"inputs": [],
		"outputs": [{"name": "", "type": "uint256"}]
	},
	{
		"type": "function",
		"name": "getProposal",
		"stateMutability": "view",
		"inputs": [{"name": "proposalId", "type": "uint256"}],
		"outputs": [
			{"name": "id", "type": "uint256"},
			{"name": "title", "type": "string"},
			{"name": "content", "type": "string"},
			{"name": "diffContent", "type": "string"},
			{"name": "creator", "type": "address"},
			{"name": "startTime", "type": "uint256"},
			{"name": "endTime", "type": "uint256"},
			{"name": "isActive", "type": "bool"},
			{"name": "totalVotes", "type": "uint256"}
		]
	},
	{
		"type": "function",
		"name": "getProposalVoteStats",
		"stateMutability": "view",
		"inputs": [{"name": "proposalId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "uint256[4]"}]
	},
	{
		"type": "function",
		"name": "getProposalVoters",
		"stateMutability": "view",
		"inputs": [{"name": "proposalId", "type": "uint256"}],
		"outputs": [{"name": "", "type": "address[]"}]
	},
	{
		"type": "function",
		"name": "isWhitelisted",
		"stateMutability": "view",
		"inputs": [
			{"name": "proposalId", "type": "uint256"},
			{"name": "voter", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "hasVoted",
		"stateMutability": "view",
		"inputs": [
			{"name": "proposalId", "type": "uint256"},
			{"name": "voter", "type": "address"}
		],
		"outputs": [{"name": "", "type": "bool"}]
	},
	{
		"type": "function",
		"name": "getVoterChoice",
		"stateMutability": "view",
		"inputs": [
			{"name": "proposalId", "type": "uint256"},
			{"name": "voter", "type": "address"}
		],
		"outputs": [{"name": "", "type": "uint8"}]
	},
	{
		"type": "event",
		"name": "ProposalCreated",
		"anonymous": false,
		"inputs": [
			{"name": "proposalId", "type": "uint256", "indexed": true},
			{"name": "creator", "type": "address", "indexed": true},
			{"name": "title", "type": "string", "indexed": false},
			{"name": "endTime", "type": "uint256", "indexed": false}
		]
	},
	{
		"type": "event",
		"name": "VoteCast",
		"anonymous": false,
		"inputs": [
			{"name": "proposalId", "type": "uint256", "indexed": true},
			{"name": "voter", "type": "address", "indexed": true},
			{"name": "option", "type": "uint8", "indexed": false},
			{"name": "comment", "type": "string", "indexed": false}
		]
	}
]`

var parsed abi.ABI

func init() {
	var err error
	parsed, err = abi.JSON(strings.NewReader(VoteABI))
	if err != nil {
		panic(err)
	}
}

// ABI returns the parsed Vote contract interface.
func ABI() abi.ABI {
	return parsed
}
