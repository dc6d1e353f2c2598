package api

import (
	"math/big"

	"github.com/axiomesh/ballot/core"
	"github.com/ethereum/go-ethereum/common"
)

type proposalView struct {
	ID            uint64         `json:"id"`
	Title         string         `json:"title"`
	Body          string         `json:"body"`
	ChangeSummary string         `json:"change_summary"`
	Creator       common.Address `json:"creator"`
	StartTime     int64          `json:"start_time"`
	EndTime       int64          `json:"end_time"`
	TotalVotes    string         `json:"total_votes"`
	Active        bool           `json:"active"`
}

func newProposalView(p *core.Proposal, active bool) proposalView {
	return proposalView{
		ID:            p.ID,
		Title:         p.Title,
		Body:          p.Body,
		ChangeSummary: p.ChangeSummary,
		Creator:       p.Creator,
		StartTime:     p.StartTime.Unix(),
		EndTime:       p.EndTime.Unix(),
		TotalVotes:    bigString(p.TotalVotes),
		Active:        active,
	}
}

// counts are decimal strings, they are unbounded on the ledger
type tallyView struct {
	Agree          string `json:"agree"`
	Disagree       string `json:"disagree"`
	Abstain        string `json:"abstain"`
	FollowMajority string `json:"follow_majority"`
	Total          string `json:"total"`
}

func newTallyView(t core.Tally) tallyView {
	return tallyView{
		Agree:          t.Count(core.Agree).String(),
		Disagree:       t.Count(core.Disagree).String(),
		Abstain:        t.Count(core.Abstain).String(),
		FollowMajority: t.Count(core.FollowMajority).String(),
		Total:          bigString(t.Total),
	}
}

type summaryView struct {
	proposalView
	AgreePercentage uint64 `json:"agree_percentage"`
}

func newSummaryView(s *core.ProposalSummary) summaryView {
	return summaryView{
		proposalView:    newProposalView(s.Proposal, s.Active),
		AgreePercentage: s.AgreePercentage,
	}
}

type voterView struct {
	Index  int             `json:"index"`
	Voter  common.Address  `json:"voter"`
	Choice core.VoteChoice `json:"choice"`
}

type resultView struct {
	Proposal    proposalView      `json:"proposal"`
	Tally       tallyView         `json:"tally"`
	Percentages map[string]uint64 `json:"percentages"`
	Voters      []voterView       `json:"voters"`
}

func newResultView(r *core.ProposalResult) resultView {
	percentages := make(map[string]uint64, core.NumChoices)
	for _, c := range core.AllChoices {
		percentages[c.String()] = r.Percentages[c]
	}

	voters := make([]voterView, 0, len(r.Voters))
	for _, row := range r.Voters {
		voters = append(voters, voterView{Index: row.Index, Voter: row.Voter, Choice: row.Choice})
	}

	return resultView{
		Proposal:    newProposalView(r.Proposal, r.Active),
		Tally:       newTallyView(r.Tally),
		Percentages: percentages,
		Voters:      voters,
	}
}

type eligibilityView struct {
	Proposal uint64           `json:"proposal"`
	Account  common.Address   `json:"account"`
	State    string           `json:"state"`
	Choice   *core.VoteChoice `json:"choice,omitempty"`
	CanVote  bool             `json:"can_vote"`
}

func newEligibilityView(id uint64, account common.Address, state core.VoteState) eligibilityView {
	v := eligibilityView{
		Proposal: id,
		Account:  account,
	}
	switch s := state.(type) {
	case core.NotWhitelisted:
		v.State = "not_whitelisted"
	case core.AlreadyVoted:
		v.State = "voted"
		choice := s.Choice
		v.Choice = &choice
	case core.Closed:
		v.State = "closed"
	case core.Open:
		v.State = "open"
		v.CanVote = true
	}
	return v
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
