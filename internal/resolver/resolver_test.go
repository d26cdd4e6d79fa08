package resolver

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitaliisemenov/recsa-core/internal/config"
	"github.com/vitaliisemenov/recsa-core/internal/hosts"
	"github.com/vitaliisemenov/recsa-core/internal/types"
	"github.com/vitaliisemenov/recsa-core/internal/wire"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeHostsFile(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "hosts.txt")
	content := "0,localhost,127.0.0.1,19000\n1,localhost,127.0.0.1,19001\n2,localhost,127.0.0.1,19002\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func newTestResolver(t *testing.T, id int) *Resolver {
	t.Helper()
	cfg := &config.Config{
		Node: config.NodeConfig{
			ID:            id,
			APIPort:       19000 + id,
			NumberOfNodes: 3,
			HostsPath:     writeHostsFile(t),
		},
	}
	r, err := New(cfg, discardLogger())
	require.NoError(t, err)
	return r
}

func TestNewWiresModulesAndStartsBooting(t *testing.T) {
	r := newTestResolver(t, 0)
	assert.Equal(t, Booting, r.Status())
	assert.Equal(t, types.NodeID(0), r.Self())
	assert.NotNil(t, r.FD)
	assert.NotNil(t, r.RecSA)
	assert.NotNil(t, r.RecMA)
	assert.NotNil(t, r.Joining)
	assert.NotNil(t, r.ABD)
}

func TestStartConfigDefaultsToBottom(t *testing.T) {
	v := startConfig("")
	assert.True(t, v.IsBottom())
}

func TestStartConfigParsesInjectedSet(t *testing.T) {
	v := startConfig("0,1,2")
	require.True(t, v.IsReal())
	assert.True(t, v.Set.Contains(1))
	assert.True(t, v.Set.Contains(2))
}

func TestStartConfigIgnoresGarbageTokens(t *testing.T) {
	v := startConfig("x,y")
	assert.True(t, v.IsBottom())
}

func TestDispatchMessageRoutesFailureDetectorToken(t *testing.T) {
	r := newTestResolver(t, 0)
	require.NoError(t, r.DispatchMessage(context.Background(), wire.Message{Type: wire.FailureDetectorMessage, Sender: 1}))
	assert.True(t, r.FD.GetTrusted().Contains(0))
}

func TestDispatchMessageRoutesRecsaPayload(t *testing.T) {
	r := newTestResolver(t, 0)
	msg, err := wire.Encode(wire.RecsaMessage, 1, wire.RecsaPayload{FD: types.NewSet(0, 1)})
	require.NoError(t, err)
	require.NoError(t, r.DispatchMessage(context.Background(), msg))
}

func TestDispatchMessageDisambiguatesJoinRequestVsResponse(t *testing.T) {
	r := newTestResolver(t, 0)

	reqMsg, err := wire.Encode(wire.JoiningMechanismMessage, 1, wire.JoinRequest{Join: true})
	require.NoError(t, err)
	require.NoError(t, r.DispatchMessage(context.Background(), reqMsg))

	respMsg, err := wire.Encode(wire.JoiningMechanismMessage, 1, wire.JoinResponse{Pass: true})
	require.NoError(t, err)
	require.NoError(t, r.DispatchMessage(context.Background(), respMsg))
}

func TestGetDataIncludesEveryModule(t *testing.T) {
	r := newTestResolver(t, 0)
	data := r.GetData()
	for _, key := range []string{"id", "status", "fd", "recsa", "recma", "joining", "abd"} {
		assert.Contains(t, data, key)
	}
}

func TestRefreshGrowsTopologyAndFD(t *testing.T) {
	r := newTestResolver(t, 0)
	r.Refresh(hosts.Record{ID: 5, Hostname: "h", IP: "127.0.0.1", Port: 19005})
	assert.Contains(t, r.Nodes(), types.NodeID(5))
}

func TestKillClosesChannelIdempotently(t *testing.T) {
	r := newTestResolver(t, 0)
	r.Kill()
	r.Kill()
	select {
	case <-r.KillChan():
	case <-time.After(time.Second):
		t.Fatal("kill channel was not closed")
	}
}
