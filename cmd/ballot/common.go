package main

import (
	"os"
	"strconv"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/ledger"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const timeLayout = "2006-01-02 15:04:05"

var accountFlag = &cli.StringFlag{
	Name:  "account",
	Usage: "Account to check eligibility for, defaults to the configured account",
}

// session is one connection to the node with the contract bound to the
// configured account.
type session struct {
	repo     *repo.Repo
	logger   *logrus.Logger
	client   *ethclient.Client
	contract *ledger.Contract
}

func openSession(ctx *cli.Context) (*session, error) {
	p, err := getRootPath(ctx)
	if err != nil {
		return nil, err
	}
	r, err := repo.Load(p)
	if err != nil {
		return nil, err
	}

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	client, err := ethclient.DialContext(ctx.Context, r.Config.DialUrl)
	if err != nil {
		return nil, errors.Wrapf(err, "dial %s", r.Config.DialUrl)
	}

	c, err := ledger.NewContract(client, r.Config, logger)
	if err != nil {
		client.Close()
		return nil, err
	}

	return &session{
		repo:     r,
		logger:   logger,
		client:   client,
		contract: c,
	}, nil
}

func (s *session) Close() {
	s.client.Close()
}

func (s *session) options() []core.Option {
	return []core.Option{core.WithConcurrency(s.repo.Config.Query.Concurrency)}
}

// account resolves the --account flag, falling back to the configured one.
func (s *session) account(ctx *cli.Context) (common.Address, error) {
	if v := ctx.String(accountFlag.Name); v != "" {
		if !core.ValidAddress(v) {
			return common.Address{}, errors.Errorf("invalid account %q", v)
		}
		return common.HexToAddress(v), nil
	}
	if acc := s.contract.Account(); acc != (common.Address{}) {
		return acc, nil
	}
	return common.Address{}, errors.New("no account configured, set account.address or pass --account")
}

func parseProposalID(ctx *cli.Context) (uint64, error) {
	if ctx.NArg() < 1 {
		return 0, errors.New("proposal id is required")
	}
	id, err := strconv.ParseUint(ctx.Args().First(), 10, 64)
	if err != nil {
		return 0, errors.Errorf("invalid proposal id %q", ctx.Args().First())
	}
	return id, nil
}

func newTable(header ...string) *tablewriter.Table {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader(header)
	table.SetAutoWrapText(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	return table
}

func formatTime(t time.Time) string {
	return t.Local().Format(timeLayout)
}

func openLabel(active bool) string {
	if active {
		return "open"
	}
	return "closed"
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}
	return "no"
}
