package main

import (
	"fmt"

	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/ledger"
	"github.com/urfave/cli/v2"
)

var voteCMD = &cli.Command{
	Name:  "vote",
	Usage: "The vote commands",
	Subcommands: []*cli.Command{
		{
			Name:      "cast",
			Usage:     "Cast a vote with the configured account",
			ArgsUsage: "<id>",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "choice", Usage: "agree, disagree, abstain or follow-majority", Required: true},
				&cli.StringFlag{Name: "comment", Usage: "Optional comment stored with the vote"},
			},
			Action: castVote,
		},
		{
			Name:      "status",
			Usage:     "Show whether an account can vote on a proposal",
			ArgsUsage: "<id>",
			Flags:     []cli.Flag{accountFlag},
			Action:    voteStatus,
		},
	},
}

func castVote(ctx *cli.Context) error {
	id, err := parseProposalID(ctx)
	if err != nil {
		return err
	}
	choice, err := core.ParseVoteChoice(ctx.String("choice"))
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.contract.CanWrite() {
		return ledger.ErrNoSigner
	}

	v := core.NewVoteController(s.contract, s.contract.Account(), s.logger, s.options()...)
	v.Select(id)
	if err := v.Choose(choice); err != nil {
		return err
	}
	v.SetComment(ctx.String("comment"))

	res, err := v.Submit(ctx.Context)
	if core.IsEligibilityNotice(err) {
		fmt.Printf("warning: %s\n", err)
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("voted %s on proposal %d, tx %s in block %d\n", choice, id, res.Hash.Hex(), res.BlockNumber)
	return nil
}

func voteStatus(ctx *cli.Context) error {
	id, err := parseProposalID(ctx)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	account, err := s.account(ctx)
	if err != nil {
		return err
	}

	v := core.NewVoteController(s.contract, account, s.logger, s.options()...)
	v.Select(id)
	state, p, err := v.State(ctx.Context)
	if err != nil {
		return err
	}

	fmt.Printf("#%d %s\n", p.ID, p.Title)
	switch st := state.(type) {
	case core.NotWhitelisted:
		fmt.Printf("%s is not in this proposal's whitelist\n", account.Hex())
	case core.AlreadyVoted:
		fmt.Printf("%s has voted %s\n", account.Hex(), st.Choice)
	case core.Closed:
		fmt.Printf("voting ended at %s\n", formatTime(st.EndTime))
	case core.Open:
		fmt.Printf("%s can vote until %s\n", account.Hex(), formatTime(p.EndTime))
	}
	return nil
}
