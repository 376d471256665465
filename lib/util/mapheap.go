// Package util
//
// This file provides a keyed priority queue used to schedule expirations.
//
// The implementation combines a binary heap with a hash map:
//   - O(log n) for AddItem (insert or update) and RemoveByKey
//   - O(1) for Peek, Contains and GetByKey
//
// It is not thread-safe; callers must synchronize access.
//
// Example usage:
//
//	q := NewMapHeap[string]()
//	q.AddItem("session:1", deadline1)
//	q.AddItem("session:2", deadline2)
//
//	for {
//		item, ok := q.Peek()
//		if !ok || item.Priority > now {
//			break
//		}
//		q.RemoveByKey(item.Key)
//		// expire item.Key
//	}
package util

import (
	"container/heap"
	"fmt"
)

// Item is a single entry of the MapHeap
type Item[K comparable] struct {
	Key      K     // Unique identifier for the item
	Priority int64 // Lower values are popped first
	index    int   // Index in the heap, maintained by heap package
}

func (i *Item[K]) String() string {
	return fmt.Sprintf("{Key: %v, Priority: %d}", i.Key, i.Priority)
}

// MapHeap is a min-heap ordered by priority that also supports access by key
type MapHeap[K comparable] struct {
	items    []*Item[K]     // The actual heap slice
	itemsMap map[K]*Item[K] // Map for O(1) access by key
}

// NewMapHeap creates a new empty MapHeap
func NewMapHeap[K comparable]() *MapHeap[K] {
	return &MapHeap[K]{
		items:    make([]*Item[K], 0),
		itemsMap: make(map[K]*Item[K]),
	}
}

// Len returns the number of items in the queue (part of heap.Interface)
func (q *MapHeap[K]) Len() int { return len(q.items) }

// Less compares items by priority (part of heap.Interface)
func (q *MapHeap[K]) Less(i, j int) bool {
	return q.items[i].Priority < q.items[j].Priority
}

// Swap exchanges items at positions i and j (part of heap.Interface)
func (q *MapHeap[K]) Swap(i, j int) {
	q.items[i], q.items[j] = q.items[j], q.items[i]
	q.items[i].index = i
	q.items[j].index = j
}

// Push adds an item to the heap (part of heap.Interface, use AddItem instead)
func (q *MapHeap[K]) Push(x interface{}) {
	it := x.(*Item[K])
	it.index = len(q.items)
	q.items = append(q.items, it)
	q.itemsMap[it.Key] = it
}

// Pop removes and returns the minimum item (part of heap.Interface, use RemoveByKey instead)
func (q *MapHeap[K]) Pop() interface{} {
	old := q.items
	n := len(old)
	it := old[n-1]
	old[n-1] = nil // Avoid memory leak
	it.index = -1
	q.items = old[:n-1]
	delete(q.itemsMap, it.Key)
	return it
}

// AddItem adds a new item to the queue or updates the priority of an existing one
func (q *MapHeap[K]) AddItem(key K, priority int64) {
	if it, exists := q.itemsMap[key]; exists {
		it.Priority = priority
		heap.Fix(q, it.index)
		return
	}
	heap.Push(q, &Item[K]{Key: key, Priority: priority})
}

// RemoveByKey removes an item by its key and returns its priority
func (q *MapHeap[K]) RemoveByKey(key K) (int64, bool) {
	it, exists := q.itemsMap[key]
	if !exists {
		return 0, false
	}
	heap.Remove(q, it.index)
	return it.Priority, true
}

// Peek returns the item with the lowest priority without removing it
func (q *MapHeap[K]) Peek() (*Item[K], bool) {
	if len(q.items) == 0 {
		return nil, false
	}
	return q.items[0], true
}

// Contains checks if a key exists in the queue
func (q *MapHeap[K]) Contains(key K) bool {
	_, exists := q.itemsMap[key]
	return exists
}

// GetByKey retrieves an item by its key without removing it
func (q *MapHeap[K]) GetByKey(key K) (*Item[K], bool) {
	it, exists := q.itemsMap[key]
	return it, exists
}
