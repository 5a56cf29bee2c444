// Package queue provides FIFO queues for items handed between goroutines.
package queue

// Queue defines a FIFO of items of type T.
type Queue[T any] interface {
	// Enqueue adds an item to the tail of the queue.
	Enqueue(item T)
	// Dequeue removes and returns the item at the head of the queue.
	// ok is false if the queue is empty.
	Dequeue() (item T, ok bool)
	// Peek returns the item at the head of the queue without removing it.
	Peek() (item T, ok bool)
	// Reset drops every queued item.
	Reset()
	// IsEmpty returns true if the queue is empty.
	IsEmpty() bool
	// Length returns the number of items in the queue.
	Length() int
}
