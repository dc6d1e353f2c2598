package api_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/axiomesh/axiom-kit/log"
	"github.com/axiomesh/ballot"
	"github.com/axiomesh/ballot/api"
	"github.com/axiomesh/ballot/core"
	"github.com/axiomesh/ballot/ledger"
	"github.com/axiomesh/ballot/repo"
	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	creator = common.HexToAddress("0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266")
	alice   = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	bob     = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	carol   = common.HexToAddress("0x90F79bf6EB2c4f937b3c3fc9c4A7C8A4F31d7a7a")
	mallory = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
)

var start = time.Unix(1_700_000_000, 0)

type brokenLedger struct {
	core.Ledger
}

func (brokenLedger) ProposalCount(context.Context) (uint64, error) {
	return 0, errors.New("connection refused")
}

func newServer(t *testing.T, l core.Ledger, now time.Time) *api.Server {
	config := repo.DefaultConfig(t.TempDir())
	return api.NewServer(config, l, log.New(), core.WithClock(func() time.Time { return now }))
}

func get(t *testing.T, s *api.Server, path string, out any) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	if out != nil {
		require.Nil(t, json.Unmarshal(rec.Body.Bytes(), out), rec.Body.String())
	}
	return rec.Code
}

// fixture has one open proposal with votes 2/1/0/1 and one closed proposal.
func fixture(t *testing.T) *ledger.Memory {
	mem := ledger.NewMemory(func() time.Time { return start })
	ctx := context.Background()

	_, err := mem.As(creator).CreateProposal(ctx, "upgrade", "raise gas limit", "gas_limit: 30M -> 40M", big.NewInt(7*core.SecondsPerDay), []common.Address{alice, bob, carol, mallory})
	require.Nil(t, err)
	_, err = mem.As(creator).CreateProposal(ctx, "instant", "zero length vote", "none", big.NewInt(0), []common.Address{alice})
	require.Nil(t, err)

	votes := []struct {
		voter  common.Address
		choice core.VoteChoice
	}{
		{alice, core.Agree},
		{bob, core.Agree},
		{carol, core.Disagree},
		{mallory, core.FollowMajority},
	}
	for _, v := range votes {
		_, err := mem.As(v.voter).Vote(ctx, 0, v.choice, "")
		require.Nil(t, err)
	}
	return mem
}

func TestVersion(t *testing.T) {
	s := newServer(t, ledger.NewMemory(nil).As(alice), start)

	var out map[string]string
	require.Equal(t, http.StatusOK, get(t, s, "/version", &out))
	assert.Equal(t, ballot.CurrentVersion, out["version"])
}

func TestListProposals(t *testing.T) {
	s := newServer(t, fixture(t).As(alice), start.Add(time.Hour))

	var out []struct {
		ID              uint64 `json:"id"`
		Title           string `json:"title"`
		Active          bool   `json:"active"`
		TotalVotes      string `json:"total_votes"`
		AgreePercentage uint64 `json:"agree_percentage"`
	}
	require.Equal(t, http.StatusOK, get(t, s, "/proposals", &out))
	require.Len(t, out, 2)

	assert.Equal(t, uint64(0), out[0].ID)
	assert.Equal(t, "upgrade", out[0].Title)
	assert.True(t, out[0].Active)
	assert.Equal(t, "4", out[0].TotalVotes)
	assert.Equal(t, uint64(50), out[0].AgreePercentage)

	assert.Equal(t, uint64(1), out[1].ID)
	assert.False(t, out[1].Active)
	assert.Equal(t, uint64(0), out[1].AgreePercentage)
}

func TestGetProposal(t *testing.T) {
	s := newServer(t, fixture(t).As(alice), start.Add(time.Hour))

	var out struct {
		ID            uint64         `json:"id"`
		ChangeSummary string         `json:"change_summary"`
		Creator       common.Address `json:"creator"`
		EndTime       int64          `json:"end_time"`
		Active        bool           `json:"active"`
	}
	require.Equal(t, http.StatusOK, get(t, s, "/proposals/0", &out))
	assert.Equal(t, "gas_limit: 30M -> 40M", out.ChangeSummary)
	assert.Equal(t, creator, out.Creator)
	assert.Equal(t, start.Unix()+7*core.SecondsPerDay, out.EndTime)
	assert.True(t, out.Active)

	// zero length proposal
	require.Equal(t, http.StatusOK, get(t, s, "/proposals/1", &out))
	assert.False(t, out.Active)
}

func TestGetResults(t *testing.T) {
	s := newServer(t, fixture(t).As(alice), start.Add(time.Hour))

	var out struct {
		Tally struct {
			Agree          string `json:"agree"`
			Disagree       string `json:"disagree"`
			Abstain        string `json:"abstain"`
			FollowMajority string `json:"follow_majority"`
			Total          string `json:"total"`
		} `json:"tally"`
		Percentages map[string]uint64 `json:"percentages"`
		Voters      []struct {
			Index  int             `json:"index"`
			Voter  common.Address  `json:"voter"`
			Choice core.VoteChoice `json:"choice"`
		} `json:"voters"`
	}
	require.Equal(t, http.StatusOK, get(t, s, "/proposals/0/results", &out))

	assert.Equal(t, "2", out.Tally.Agree)
	assert.Equal(t, "1", out.Tally.Disagree)
	assert.Equal(t, "0", out.Tally.Abstain)
	assert.Equal(t, "1", out.Tally.FollowMajority)
	assert.Equal(t, "4", out.Tally.Total)
	assert.Equal(t, map[string]uint64{
		"agree":           50,
		"disagree":        25,
		"abstain":         0,
		"follow-majority": 25,
	}, out.Percentages)

	require.Len(t, out.Voters, 4)
	for i, v := range out.Voters {
		assert.Equal(t, i+1, v.Index)
	}
	assert.Equal(t, alice, out.Voters[0].Voter)
	assert.Equal(t, core.Agree, out.Voters[0].Choice)
}

func TestGetEligibility(t *testing.T) {
	mem := fixture(t)
	s := newServer(t, mem.As(alice), start.Add(time.Hour))

	type eligibility struct {
		State   string           `json:"state"`
		Choice  *core.VoteChoice `json:"choice"`
		CanVote bool             `json:"can_vote"`
	}

	testcases := []struct {
		name    string
		path    string
		state   string
		canVote bool
	}{
		{"voted", "/proposals/0/eligibility/" + alice.Hex(), "voted", false},
		{"not whitelisted", "/proposals/0/eligibility/" + creator.Hex(), "not_whitelisted", false},
		{"closed", "/proposals/1/eligibility/" + alice.Hex(), "closed", false},
	}
	for _, tc := range testcases {
		t.Run(tc.name, func(t *testing.T) {
			var out eligibility
			require.Equal(t, http.StatusOK, get(t, s, tc.path, &out))
			assert.Equal(t, tc.state, out.State)
			assert.Equal(t, tc.canVote, out.CanVote)
		})
	}

	var out eligibility
	require.Equal(t, http.StatusOK, get(t, s, "/proposals/0/eligibility/"+alice.Hex(), &out))
	require.NotNil(t, out.Choice)
	assert.Equal(t, core.Agree, *out.Choice)

	_, err := mem.As(creator).CreateProposal(context.Background(), "next", "body", "summary", big.NewInt(core.SecondsPerDay), []common.Address{bob})
	require.Nil(t, err)
	out = eligibility{}
	require.Equal(t, http.StatusOK, get(t, s, "/proposals/2/eligibility/"+bob.Hex(), &out))
	assert.Equal(t, "open", out.State)
	assert.True(t, out.CanVote)
	assert.Nil(t, out.Choice)
}

func TestErrorStatus(t *testing.T) {
	s := newServer(t, fixture(t).As(alice), start)

	testcases := []struct {
		path string
		code int
	}{
		{"/proposals/abc", http.StatusBadRequest},
		{"/proposals/-1/results", http.StatusBadRequest},
		{"/proposals/2", http.StatusNotFound},
		{"/proposals/99/results", http.StatusNotFound},
		{"/proposals/0/eligibility/0x1234", http.StatusBadRequest},
		{"/proposals/0/eligibility/" + alice.Hex()[2:], http.StatusBadRequest},
	}
	for _, tc := range testcases {
		var out map[string]string
		assert.Equal(t, tc.code, get(t, s, tc.path, &out), tc.path)
		assert.NotEmpty(t, out["error"], tc.path)
	}

	broken := newServer(t, brokenLedger{Ledger: fixture(t).As(alice)}, start)
	for _, path := range []string{"/proposals", "/proposals/0", "/proposals/0/results"} {
		var out map[string]string
		assert.Equal(t, http.StatusBadGateway, get(t, broken, path, &out), path)
		assert.Contains(t, out["error"], "connection refused")
	}
}
