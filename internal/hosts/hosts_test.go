package hosts

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitaliisemenov/recsa-core/internal/types"
)

func TestParseToleratesStraySpaceAndDuplicates(t *testing.T) {
	input := "0,node0,10.0.0.1,8080\n1, node1,10.0.0.2,8081\n1,node1,10.0.0.99,8081\n\n"
	recs, err := Parse(strings.NewReader(input))
	require.NoError(t, err)

	require.Contains(t, recs, types.NodeID(0))
	require.Contains(t, recs, types.NodeID(1))
	assert.Equal(t, "10.0.0.99", recs[1].IP, "duplicate id resolves last-wins")
}

func TestParseRejectsMalformedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("0,node0,10.0.0.1\n"))
	assert.Error(t, err)
}

func TestParseFileMissingYieldsEmptyMap(t *testing.T) {
	recs, err := ParseFile("/nonexistent/path/hosts.txt")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRecordLineRoundTrip(t *testing.T) {
	rec := Record{ID: 3, Hostname: "node3", IP: "10.0.0.4", Port: 9000}
	recs, err := Parse(strings.NewReader(rec.Line() + "\n"))
	require.NoError(t, err)
	assert.Equal(t, rec, recs[3])
}
