package main

import (
	"fmt"
	"strconv"

	"github.com/axiomesh/ballot/core"
	"github.com/urfave/cli/v2"
)

var resultsCMD = &cli.Command{
	Name:      "results",
	Usage:     "Show vote results of all proposals, or the detail of one",
	ArgsUsage: "[<id>]",
	Action:    results,
}

func results(ctx *cli.Context) error {
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.Close()

	r := core.NewResultsReader(s.contract, s.logger, s.options()...)
	if ctx.NArg() == 0 {
		return printSummaries(ctx, r)
	}

	id, err := parseProposalID(ctx)
	if err != nil {
		return err
	}
	return printDetail(ctx, r, id)
}

func printSummaries(ctx *cli.Context, r *core.ResultsReader) error {
	summaries, err := r.Summaries(ctx.Context)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Println("no proposals yet")
		return nil
	}

	table := newTable("ID", "Title", "Status", "Votes", "Agree", "Creator")
	for _, s := range summaries {
		table.Append([]string{
			strconv.FormatUint(s.Proposal.ID, 10),
			s.Proposal.Title,
			openLabel(s.Active),
			s.Proposal.TotalVotes.String(),
			core.FormatPercentage(s.AgreePercentage) + "%",
			s.Proposal.Creator.Hex(),
		})
	}
	table.Render()
	return nil
}

func printDetail(ctx *cli.Context, r *core.ResultsReader, id uint64) error {
	res, err := r.Detail(ctx.Context, id)
	if err != nil {
		return err
	}

	fmt.Printf("#%d %s [%s]\n", res.Proposal.ID, res.Proposal.Title, openLabel(res.Active))
	fmt.Printf("%s - %s\n\n", formatTime(res.Proposal.StartTime), formatTime(res.Proposal.EndTime))

	tally := newTable("Choice", "Votes", "Share")
	for _, c := range core.AllChoices {
		tally.Append([]string{
			c.String(),
			res.Tally.Count(c).String(),
			core.FormatPercentage(res.Percentages[c]) + "%",
		})
	}
	tally.SetFooter([]string{"total", res.Tally.Total.String(), ""})
	tally.Render()

	if len(res.Voters) == 0 {
		fmt.Println("no votes yet")
		return nil
	}

	voters := newTable("#", "Voter", "Choice")
	for _, row := range res.Voters {
		voters.Append([]string{strconv.Itoa(row.Index), row.Voter.Hex(), row.Choice.String()})
	}
	voters.Render()
	return nil
}
