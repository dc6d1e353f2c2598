package main

import (
	"fmt"
	"strconv"

	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/ledger"
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
)

var proposalCMD = &cli.Command{
	Name:  "proposal",
	Usage: "The proposal manage commands",
	Subcommands: []*cli.Command{
		{
			Name:  "create",
			Usage: "Create a proposal open to the given whitelist",
			Flags: []cli.Flag{
				&cli.StringFlag{Name: "title", Usage: "Proposal title", Required: true},
				&cli.StringFlag{Name: "body", Usage: "Proposal body", Required: true},
				&cli.StringFlag{Name: "change-summary", Usage: "Summary of the proposed change", Required: true},
				&cli.IntFlag{Name: "days", Usage: "Voting duration in days, defaults to form.default_days"},
				&cli.StringSliceFlag{Name: "whitelist", Usage: "Accounts allowed to vote, repeat or comma separate", Required: true},
			},
			Action: createProposal,
		},
		{
			Name:   "list",
			Usage:  "List proposals with the account's eligibility",
			Flags:  []cli.Flag{accountFlag},
			Action: listProposals,
		},
		{
			Name:      "show",
			Usage:     "Show one proposal",
			ArgsUsage: "<id>",
			Action:    showProposal,
		},
	},
}

func createProposal(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	if !s.contract.CanWrite() {
		return ledger.ErrNoSigner
	}

	cfg := s.repo.Config.Form
	days := cfg.DefaultDays
	if ctx.IsSet("days") {
		days = ctx.Int("days")
	}
	if days < cfg.MinDays || days > cfg.MaxDays {
		return errors.Errorf("days must be within [%d, %d]", cfg.MinDays, cfg.MaxDays)
	}

	entries := ctx.StringSlice("whitelist")
	for _, e := range entries {
		if !core.ValidAddress(e) {
			fmt.Printf("warning: ignore invalid whitelist entry %q\n", e)
		}
	}

	form := core.NewProposalForm(s.contract, s.logger, cfg.DefaultDays)
	form.SetTitle(ctx.String("title"))
	form.SetBody(ctx.String("body"))
	form.SetChangeSummary(ctx.String("change-summary"))
	form.SetDays(days)
	form.SetWhitelist(entries)

	res, err := form.Submit(ctx.Context)
	if err != nil {
		return err
	}

	fmt.Printf("proposal created, tx %s in block %d\n", res.Hash.Hex(), res.BlockNumber)
	return nil
}

func listProposals(ctx *cli.Context) error {
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
	cards, err := v.Board(ctx.Context)
	if err != nil {
		return err
	}
	if len(cards) == 0 {
		fmt.Println("no proposals yet")
		return nil
	}

	table := newTable("ID", "Title", "Status", "Whitelisted", "Voted", "Votes", "Ends")
	for _, c := range cards {
		table.Append([]string{
			strconv.FormatUint(c.Proposal.ID, 10),
			c.Proposal.Title,
			openLabel(c.Active),
			yesNo(c.Whitelisted),
			yesNo(c.Voted),
			c.Proposal.TotalVotes.String(),
			formatTime(c.Proposal.EndTime),
		})
	}
	table.Render()
	fmt.Printf("account %s\n", account.Hex())
	return nil
}

func showProposal(ctx *cli.Context) error {
	id, err := parseProposalID(ctx)
	if err != nil {
		return err
	}

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	summary, err := core.NewResultsReader(s.contract, s.logger, s.options()...).Summary(ctx.Context, id)
	if err != nil {
		return err
	}

	p := summary.Proposal
	fmt.Printf("#%d %s [%s]\n", p.ID, p.Title, openLabel(summary.Active))
	fmt.Printf("Creator:  %s\n", p.Creator.Hex())
	fmt.Printf("Start:    %s\n", formatTime(p.StartTime))
	fmt.Printf("End:      %s\n", formatTime(p.EndTime))
	fmt.Printf("Votes:    %s (agree %s%%)\n", p.TotalVotes.String(), core.FormatPercentage(summary.AgreePercentage))
	fmt.Println()
	fmt.Println(p.Body)
	fmt.Println()
	fmt.Println("Change summary:")
	fmt.Println(p.ChangeSummary)
	return nil
}
