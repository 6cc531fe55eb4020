package redisstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flagcore/flagcore/interfaces"
	"github.com/flagcore/flagcore/ldmodel"
)

func TestMarshalUnmarshalFlagRoundTrips(t *testing.T) {
	flag := &ldmodel.FeatureFlag{Key: "f1", Version: 3, On: true}
	item := interfaces.ItemDescriptor{Version: 3, Item: flag}

	raw, err := marshalItem(interfaces.Features, item)
	require.NoError(t, err)

	out, err := unmarshalItem(interfaces.Features, raw)
	require.NoError(t, err)
	assert.Equal(t, 3, out.Version)
	require.IsType(t, &ldmodel.FeatureFlag{}, out.Item)
	assert.Equal(t, "f1", out.Item.(*ldmodel.FeatureFlag).Key)
}

func TestMarshalUnmarshalTombstone(t *testing.T) {
	item := interfaces.ItemDescriptor{Version: 5}

	raw, err := marshalItem(interfaces.Segments, item)
	require.NoError(t, err)

	out, err := unmarshalItem(interfaces.Segments, raw)
	require.NoError(t, err)
	assert.Equal(t, 5, out.Version)
	assert.True(t, out.Deleted())
}
