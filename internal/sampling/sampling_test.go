package sampling

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"flowlab.dev/flowlab/internal/flowkey"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAssignsSequentialIDs(t *testing.T) {
	s := NewMemoryStore()
	id1 := s.Add(FlowSample{FlowID: flowkey.ID(1), ArrivalNS: []int64{0, 100}})
	id2 := s.Add(FlowSample{FlowID: flowkey.ID(2), ArrivalNS: []int64{0, 50}})

	require.Equal(t, int64(0), id1)
	require.Equal(t, int64(1), id2)
	require.EqualValues(t, 2, s.NumFlows())
}

func TestClientReturnsNilForUnknownFlow(t *testing.T) {
	c := NewClient(NewMemoryStore())
	require.Nil(t, c.GetFlowTS(99))
	require.Nil(t, c.GetFlowDelta(99))
	require.Nil(t, c.GetFlowMissMIN(99))
	require.Nil(t, c.GetFlowMissSim(99))
}

func TestClientRoundTripsStoredSample(t *testing.T) {
	s := NewMemoryStore()
	id := s.Add(FlowSample{
		FlowID:    flowkey.ID(7),
		ArrivalNS: []int64{0, 10, 30},
		Delta:     []int64{0, 10, -20},
		MissMIN:   []int64{2},
		MissSim:   []int64{1, 2},
	})
	c := NewClient(s)

	require.Equal(t, []int64{0, 10, 30}, c.GetFlowTS(id))
	require.Equal(t, []int64{0, 10, -20}, c.GetFlowDelta(id))
	require.Equal(t, []int64{2}, c.GetFlowMissMIN(id))
	require.Equal(t, []int64{1, 2}, c.GetFlowMissSim(id))
}

func TestServerHandlesNumFlowsAndFlowIDs(t *testing.T) {
	s := NewMemoryStore()
	s.Add(FlowSample{FlowID: flowkey.ID(1)})
	s.Add(FlowSample{FlowID: flowkey.ID(2)})

	srv := NewServer(s, nil, DefaultServerConfig(), ":0")

	req := httptest.NewRequest(http.MethodGet, "/sampling/num_flows", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"num_flows":2`)
}

func TestServerHandlesFlowTSByID(t *testing.T) {
	s := NewMemoryStore()
	id := s.Add(FlowSample{FlowID: flowkey.ID(1), ArrivalNS: []int64{0, 5, 15}})
	srv := NewServer(s, nil, DefaultServerConfig(), ":0")

	req := httptest.NewRequest(http.MethodGet, "/sampling/flow_ts/"+strconv.FormatInt(id, 10), nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "[0,5,15]")
}
