package main

import (
	"fmt"
	"os"
	"time"

	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.NewApp()
	app.Name = "Ballot"
	app.Usage = "Create and vote on whitelisted community proposals"
	app.Compiled = time.Now()

	cli.VersionPrinter = func(c *cli.Context) {
		printVersion()
	}

	// global flags
	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:  "repo",
			Usage: "Ballot storage repo path",
		},
	}

	app.Commands = []*cli.Command{
		configCMD,
		proposalCMD,
		voteCMD,
		resultsCMD,
		{
			Name:   "serve",
			Usage:  "Serve the read API and follow contract events",
			Action: serve,
		},
		{
			Name:    "version",
			Aliases: []string{"v"},
			Usage:   "Ballot version",
			Action: func(ctx *cli.Context) error {
				printVersion()
				return nil
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
