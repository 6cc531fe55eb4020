package toposort

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func indexOf(s []string, v string) int {
	for i, x := range s {
		if x == v {
			return i
		}
	}
	return -1
}

func TestSortPlacesDependenciesFirst(t *testing.T) {
	items := []Item{
		{Key: "a", Dependencies: Neighbors{{Kind: KindFeatures, Key: "b"}: {}}},
		{Key: "b", Dependencies: nil},
		{Key: "c", Dependencies: Neighbors{{Kind: KindFeatures, Key: "a"}: {}}},
	}
	order := Sort(items, KindFeatures)
	assert.Len(t, order, 3)
	assert.Less(t, indexOf(order, "b"), indexOf(order, "a"))
	assert.Less(t, indexOf(order, "a"), indexOf(order, "c"))
}

func TestSortToleratesCycles(t *testing.T) {
	items := []Item{
		{Key: "a", Dependencies: Neighbors{{Kind: KindFeatures, Key: "b"}: {}}},
		{Key: "b", Dependencies: Neighbors{{Kind: KindFeatures, Key: "a"}: {}}},
	}
	order := Sort(items, KindFeatures)
	assert.ElementsMatch(t, []string{"a", "b"}, order)
}

func TestSortIgnoresCrossKindDependencies(t *testing.T) {
	items := []Item{
		{Key: "flag1", Dependencies: Neighbors{{Kind: KindSegments, Key: "seg1"}: {}}},
	}
	order := Sort(items, KindFeatures)
	assert.Equal(t, []string{"flag1"}, order)
}
