// ABOUTME: Sample queue package
// ABOUTME: Bounded FIFO shared between the producer and the output callback
// Package queue holds the samples waiting to be played.
//
// A Queue is a fixed-size ring of float32 samples. It is not safe for
// concurrent use; package gate wraps it with a mutex and condition variable.
//
// Example:
//
//	q := queue.New(22050, queue.OverflowBlock)
//	appended, _ := q.Append(samples)
//	n := q.DrainInto(block)
package queue
