package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/axiomesh/ballot"
	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	errBadProposalID = errors.New("proposal id must be a non-negative integer")
	errBadAddress    = errors.New("address must be 0x followed by 40 hex characters")
	errNoProposal    = errors.New("proposal does not exist")
)

// Server serves the proposal board and results as JSON. It is read only,
// nothing is signed or sent from here.
type Server struct {
	router  *gin.Engine
	httpSrv *http.Server
	ledger  core.Ledger
	results *core.ResultsReader
	logger  *logrus.Logger
}

func NewServer(config *repo.Config, ledger core.Ledger, logger *logrus.Logger, opts ...core.Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{
		ledger:  ledger,
		results: core.NewResultsReader(ledger, logger, opts...),
		logger:  logger,
	}

	g := gin.New()
	g.Use(s.logRequest(), gin.Recovery())
	s.attachRoutes(g)
	s.router = g

	s.httpSrv = &http.Server{
		Addr:         config.API.Listen,
		Handler:      g,
		ReadTimeout:  config.API.ReadTimeout,
		WriteTimeout: config.API.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) attachRoutes(g *gin.Engine) {
	g.GET("/version", s.version)

	p := g.Group("/proposals")
	p.GET("", s.listProposals)
	p.GET("/:id", s.getProposal)
	p.GET("/:id/results", s.getResults)
	p.GET("/:id/eligibility/:address", s.getEligibility)
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Start listens in the background. Listen errors other than a clean
// shutdown are logged.
func (s *Server) Start() {
	go func() {
		s.logger.Infof("api listening on %s", s.httpSrv.Addr)
		if err := s.httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("api server: %s", err)
		}
	}()
}

func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

func (s *Server) logRequest() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.WithFields(logrus.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).String(),
		}).Debug("api request")
	}
}

func (s *Server) version(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"version": ballot.CurrentVersion,
		"commit":  ballot.CurrentCommit,
		"branch":  ballot.CurrentBranch,
		"build":   ballot.BuildDate,
		"go":      ballot.GoVersion,
		"arch":    ballot.Platform,
	})
}

func (s *Server) listProposals(c *gin.Context) {
	summaries, err := s.results.Summaries(c.Request.Context())
	if err != nil {
		s.ledgerFailure(c, err)
		return
	}

	out := make([]summaryView, 0, len(summaries))
	for i := range summaries {
		out = append(out, newSummaryView(&summaries[i]))
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) getProposal(c *gin.Context) {
	id, ok := s.proposalID(c)
	if !ok {
		return
	}

	p, err := s.ledger.Proposal(c.Request.Context(), id)
	if err != nil {
		s.ledgerFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, newProposalView(p, p.Open(s.results.Now())))
}

func (s *Server) getResults(c *gin.Context) {
	id, ok := s.proposalID(c)
	if !ok {
		return
	}

	res, err := s.results.Detail(c.Request.Context(), id)
	if err != nil {
		s.ledgerFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, newResultView(res))
}

func (s *Server) getEligibility(c *gin.Context) {
	id, ok := s.proposalID(c)
	if !ok {
		return
	}

	address := c.Param("address")
	if !core.ValidAddress(address) {
		abort(c, http.StatusBadRequest, errBadAddress)
		return
	}
	account := common.HexToAddress(address)

	state, _, err := core.ReadVoteState(c.Request.Context(), s.ledger, id, account, s.results.Now())
	if err != nil {
		s.ledgerFailure(c, err)
		return
	}
	c.JSON(http.StatusOK, newEligibilityView(id, account, state))
}

// proposalID parses :id and checks it against the proposal count. It writes
// the error response itself and reports whether the handler may continue.
func (s *Server) proposalID(c *gin.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		abort(c, http.StatusBadRequest, errBadProposalID)
		return 0, false
	}

	count, err := s.ledger.ProposalCount(c.Request.Context())
	if err != nil {
		s.ledgerFailure(c, err)
		return 0, false
	}
	if id >= count {
		abort(c, http.StatusNotFound, errors.Wrapf(errNoProposal, "id %d", id))
		return 0, false
	}
	return id, true
}

func (s *Server) ledgerFailure(c *gin.Context, err error) {
	s.logger.WithFields(logrus.Fields{
		"path": c.Request.URL.Path,
	}).Errorf("ledger read failed: %s", err)
	abort(c, http.StatusBadGateway, errors.Wrap(err, "ledger read failed"))
}

func abort(c *gin.Context, code int, err error) {
	c.AbortWithStatusJSON(code, gin.H{"error": err.Error()})
}
