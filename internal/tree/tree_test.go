package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atlas-desktop/trading-backend/internal/engineerr"
)

const momentumSymphony = `{
  "id": "root-1", "step": "root", "name": "momentum top2",
  "rebalance": {"frequency": "daily"},
  "children": [
    {
      "id": "filter-1", "step": "filter",
      "sort-by-fn": "cumulative-return", "sort-by-fn-params": {"window": 20},
      "select-fn": "top", "select-n": 2,
      "children": [
        {"id": "a1", "step": "asset", "ticker": "AAA", "exchange": "NYSE"},
        {"id": "a2", "step": "asset", "ticker": "BBB", "exchange": "NYSE"},
        {"id": "a3", "step": "asset", "ticker": "CCC", "exchange": "NYSE"}
      ]
    }
  ]
}`

func TestParseAndValidateMomentumSymphony(t *testing.T) {
	root, err := Parse([]byte(momentumSymphony))
	require.NoError(t, err)
	require.NoError(t, Validate(root))

	assert.Equal(t, KindRoot, root.Kind)
	assert.Equal(t, "daily", root.Policy.Frequency)
	assert.Len(t, root.Children, 1)
	assert.Equal(t, KindFilter, root.Children[0].Kind)
}

func TestValidateRejectsInvalidWindow(t *testing.T) {
	bad := `{
      "id": "root-1", "step": "root", "rebalance": {"frequency": "daily"},
      "children": [
        {"id": "f1", "step": "filter", "sort-by-fn": "cumulative-return",
         "sort-by-fn-params": {"window": 300}, "select-fn": "top", "select-n": 1,
         "children": [{"id": "a1", "step": "asset", "ticker": "AAA"}]}
      ]
    }`
	root, err := Parse([]byte(bad))
	require.NoError(t, err)

	err = Validate(root)
	require.Error(t, err)
	kind, ok := engineerr.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, engineerr.KindBounds, kind)
}

func TestValidateRejectsRootWithNoChildren(t *testing.T) {
	root := &Step{Kind: KindRoot}
	err := Validate(root)
	require.Error(t, err)
	kind, _ := engineerr.KindOf(err)
	assert.Equal(t, engineerr.KindStructure, kind)
}

func TestRoundTripParseSerialize(t *testing.T) {
	root, err := Parse([]byte(momentumSymphony))
	require.NoError(t, err)

	out, err := Serialize(root)
	require.NoError(t, err)

	reparsed, err := Parse(out)
	require.NoError(t, err)

	assert.Equal(t, root.Kind, reparsed.Kind)
	assert.Equal(t, root.Policy.Frequency, reparsed.Policy.Frequency)
	assert.Equal(t, len(root.Children), len(reparsed.Children))
}

func TestBuildManifestCollectsTickersAndMetrics(t *testing.T) {
	root, err := Parse([]byte(momentumSymphony))
	require.NoError(t, err)
	require.NoError(t, Validate(root))

	m := BuildManifest(root)
	assert.True(t, m.Tickers["AAA"])
	assert.True(t, m.Tickers["BBB"])
	assert.True(t, m.Tickers["CCC"])
	assert.NotEmpty(t, m.Requirements)
}
