package events

import "testing"

func TestLRUCacheAddReportsPriorMembership(t *testing.T) {
	c := newLRUCache(2)
	if c.add("a") {
		t.Fatal("expected a to be new")
	}
	if !c.add("a") {
		t.Fatal("expected a to already be known")
	}
}

func TestLRUCacheEvictsOldest(t *testing.T) {
	c := newLRUCache(2)
	c.add("a")
	c.add("b")
	c.add("c") // evicts "a"
	if c.add("a") {
		t.Fatal("expected a to have been evicted")
	}
}

func TestLRUCacheClear(t *testing.T) {
	c := newLRUCache(2)
	c.add("a")
	c.clear()
	if c.add("a") {
		t.Fatal("expected a to be forgotten after clear")
	}
}
