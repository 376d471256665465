package util

import (
	"sort"
	"testing"
)

func TestNewMapHeap(t *testing.T) {
	mh := NewMapHeap[string]()

	if mh.Len() != 0 {
		t.Errorf("New heap should be empty, but has length %d", mh.Len())
	}
	if _, ok := mh.Peek(); ok {
		t.Error("Peek() on an empty heap should return false")
	}
}

func TestAddItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("c", 50)

	if mh.Len() != 3 {
		t.Errorf("Heap should have 3 items, but has %d", mh.Len())
	}
	for _, k := range []string{"a", "b", "c"} {
		if !mh.Contains(k) {
			t.Errorf("Heap should contain key %s", k)
		}
	}

	item, exists := mh.Peek()
	if !exists {
		t.Fatal("Peek() should return an item")
	}
	if item.Key != "c" || item.Priority != 50 {
		t.Errorf("Expected min item to be (c,50), got (%s,%d)", item.Key, item.Priority)
	}
}

func TestUpdateItem(t *testing.T) {
	mh := NewMapHeap[string]()

	mh.AddItem("a", 100)
	mh.AddItem("b", 200)
	mh.AddItem("a", 300)

	if mh.Len() != 2 {
		t.Errorf("Updating should not add an item, got length %d", mh.Len())
	}

	item, _ := mh.GetByKey("a")
	if item.Priority != 300 {
		t.Errorf("Expected priority 300 for a, got %d", item.Priority)
	}

	min, _ := mh.Peek()
	if min.Key != "b" {
		t.Errorf("Expected b to be the minimum after update, got %s", min.Key)
	}
}

func TestRemoveByKey(t *testing.T) {
	mh := NewMapHeap[string]()
	mh.AddItem("a", 1)
	mh.AddItem("b", 2)

	prio, ok := mh.RemoveByKey("a")
	if !ok || prio != 1 {
		t.Errorf("Expected to remove a with priority 1, got (%d,%v)", prio, ok)
	}
	if mh.Contains("a") {
		t.Error("a should be removed")
	}
	if _, ok := mh.RemoveByKey("a"); ok {
		t.Error("Removing a missing key should return false")
	}
}

func TestOrdering(t *testing.T) {
	mh := NewMapHeap[int]()
	prios := []int64{42, 7, 19, 3, 99, 23, 8, 61}
	for i, p := range prios {
		mh.AddItem(i, p)
	}

	var got []int64
	for mh.Len() > 0 {
		item, _ := mh.Peek()
		got = append(got, item.Priority)
		mh.RemoveByKey(item.Key)
	}

	if !sort.SliceIsSorted(got, func(i, j int) bool { return got[i] < got[j] }) {
		t.Errorf("Items not drained in priority order: %v", got)
	}
	if len(got) != len(prios) {
		t.Errorf("Expected %d items, got %d", len(prios), len(got))
	}
}
