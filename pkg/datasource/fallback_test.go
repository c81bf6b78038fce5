package datasource

import (
	"context"
	"errors"
	"testing"

	"github.com/arbiter-protocol/arbiterx/pkg/db"
	"github.com/arbiter-protocol/arbiterx/pkg/protocol"
	"github.com/arbiter-protocol/arbiterx/pkg/rpc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// stubClient fakes the node RPC for chain source tests.
type stubClient struct {
	rpc.Client

	claims       map[string]*protocol.Claim
	claimsByAg   map[uint64][]string
	headErr      error
	claimByIDErr error
}

func (s *stubClient) Head(context.Context) (rpc.HeadResponse, error) {
	return rpc.HeadResponse{Block: 42}, s.headErr
}

func (s *stubClient) ClaimByID(_ context.Context, id string) (*protocol.Claim, error) {
	if s.claimByIDErr != nil {
		return nil, s.claimByIDErr
	}
	claim, ok := s.claims[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return claim, nil
}

func (s *stubClient) ClaimsByAgent(_ context.Context, agentID uint64) ([]string, error) {
	return s.claimsByAg[agentID], nil
}

func TestChainSourceDegradesGlobalListings(t *testing.T) {
	src := NewChainSource(&stubClient{}, zaptest.NewLogger(t), 2)
	defer src.Close()

	res, err := src.Agents(context.Background(), db.AgentFilter{})
	require.NoError(t, err, "unsupported queries degrade, they never error")
	assert.True(t, res.Degraded)
	assert.NotEmpty(t, res.Warning)
	assert.Empty(t, res.Data)

	claimsRes, err := src.Claims(context.Background(), db.ClaimFilter{})
	require.NoError(t, err)
	assert.True(t, claimsRes.Degraded)
}

func TestChainSourceHydratesAgentScopedClaims(t *testing.T) {
	approved := protocol.StatusApproved
	client := &stubClient{
		claims: map[string]*protocol.Claim{
			"1": {ID: "1", Status: protocol.StatusApproved},
			"2": {ID: "2", Status: protocol.StatusFiled},
		},
		claimsByAg: map[uint64][]string{7: {"1", "2"}},
	}
	src := NewChainSource(client, zaptest.NewLogger(t), 2)
	defer src.Close()

	res, err := src.Claims(context.Background(), db.ClaimFilter{AgentID: "0x0000000000000007"})
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Len(t, res.Data, 2)

	res, err = src.Claims(context.Background(), db.ClaimFilter{AgentID: "0x0000000000000007", Status: &approved})
	require.NoError(t, err)
	require.Len(t, res.Data, 1)
	assert.Equal(t, "1", res.Data[0].ID)
}

// flakySource fails until told otherwise.
type flakySource struct {
	DataSource
	fail  bool
	stats protocol.ProtocolStats
	name  string
}

func (f *flakySource) Name() string { return f.name }

func (f *flakySource) Stats(context.Context) (Result[protocol.ProtocolStats], error) {
	if f.fail {
		return Result[protocol.ProtocolStats]{}, errors.New("backend down")
	}
	return ok(f.stats), nil
}

func (f *flakySource) Healthy(context.Context) error {
	if f.fail {
		return errors.New("backend down")
	}
	return nil
}

func TestFallbackRescuesAndMarksDegraded(t *testing.T) {
	primary := &flakySource{fail: true, name: "store"}
	secondary := &flakySource{stats: protocol.ProtocolStats{TotalClaims: 9}, name: "chain"}
	fb := NewFallback(primary, secondary, zaptest.NewLogger(t))

	res, err := fb.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Degraded)
	assert.Equal(t, uint64(9), res.Data.TotalClaims)

	// Healthy primary answers are passed through untouched.
	primary.fail = false
	primary.stats = protocol.ProtocolStats{TotalClaims: 10}
	res, err = fb.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Degraded)
	assert.Equal(t, uint64(10), res.Data.TotalClaims)
}

func TestFallbackWithoutSecondarySurfacesError(t *testing.T) {
	primary := &flakySource{fail: true, name: "store"}
	fb := NewFallback(primary, nil, zaptest.NewLogger(t))

	_, err := fb.Stats(context.Background())
	require.Error(t, err)
	require.NoError(t, func() error { primary.fail = false; return fb.Healthy(context.Background()) }())
}
