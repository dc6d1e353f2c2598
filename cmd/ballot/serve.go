package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/ballot"
	"github.com/axiomesh/ballot/api"
	"github.com/axiomesh/ballot/contract"
	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/ledger"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

const shutdownTimeout = 10 * time.Second

func serve(ctx *cli.Context) error {
	p, err := getRootPath(ctx)
	if err != nil {
		return err
	}
	r, err := repo.Load(p)
	if err != nil {
		return err
	}

	err = log.Initialize(
		log.WithReportCaller(r.Config.Log.ReportCaller),
		log.WithPersist(true),
		log.WithFilePath(filepath.Join(r.Config.RepoRoot, repo.LogsDirName)),
		log.WithFileName(r.Config.Log.Filename),
		log.WithMaxAge(r.Config.Log.MaxAge),
		log.WithRotationTime(r.Config.Log.RotationTime),
	)
	if err != nil {
		return fmt.Errorf("log initialize: %w", err)
	}

	printVersion()

	logger := log.New()
	logger.SetLevel(log.ParseLevel(r.Config.Log.Level))

	client, err := ethclient.DialContext(ctx.Context, r.Config.DialUrl)
	if err != nil {
		return err
	}

	c, err := ledger.NewContract(client, r.Config, logger)
	if err != nil {
		return fmt.Errorf("bind vote contract error: %w", err)
	}

	opts := []core.Option{core.WithConcurrency(r.Config.Query.Concurrency)}
	reader := core.NewResultsReader(c, logger, opts...)

	watcher, err := core.NewWatcher(ctx.Context, r.Config, client, logger, refreshSummary(reader, logger))
	if err != nil {
		return fmt.Errorf("new watcher error: %w", err)
	}

	server := api.NewServer(r.Config, c, logger, opts...)

	var wg sync.WaitGroup
	wg.Add(1)
	handleShutdown(watcher, server, client, &wg)

	if err := watcher.Start(); err != nil {
		return fmt.Errorf("start watcher failed: %w", err)
	}
	server.Start()

	fmt.Println("=============Ballot is ready=============")

	wg.Wait()

	return nil
}

// refreshSummary logs the up to date tally of the proposal an event touched.
func refreshSummary(reader *core.ResultsReader, logger *logrus.Logger) core.EventHandler {
	return func(ctx context.Context, ev contract.Event) {
		s, err := reader.Summary(ctx, ev.Proposal())
		if err != nil {
			logger.Warnf("refresh proposal %d after %s: %s", ev.Proposal(), ev.Name(), err)
			return
		}
		logger.WithFields(logrus.Fields{
			"proposal": s.Proposal.ID,
			"title":    s.Proposal.Title,
			"votes":    s.Tally.Total.String(),
			"agree":    core.FormatPercentage(s.AgreePercentage),
			"active":   s.Active,
		}).Info("proposal updated")
	}
}

func printVersion() {
	fmt.Printf("Ballot version: %s-%s-%s\n", ballot.CurrentVersion, ballot.CurrentBranch, ballot.CurrentCommit)
	fmt.Printf("App build date: %s\n", ballot.BuildDate)
	fmt.Printf("System version: %s\n", ballot.Platform)
	fmt.Printf("Golang version: %s\n", ballot.GoVersion)
	fmt.Println()
}

func handleShutdown(watcher *core.Watcher, server *api.Server, client *ethclient.Client, wg *sync.WaitGroup) {
	var stop = make(chan os.Signal, 2)
	signal.Notify(stop, syscall.SIGTERM)
	signal.Notify(stop, syscall.SIGINT)

	go func() {
		<-stop
		fmt.Println("received interrupt signal, shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Stop(ctx); err != nil {
			fmt.Printf("stop api server: %s\n", err)
		}
		if err := watcher.Stop(); err != nil {
			panic(err)
		}
		client.Close()
		wg.Done()
	}()
}
