// Package queue holds requests deferred by admission control until they can
// be sent.
//
// A Manager is a bounded priority queue with a single drain loop. Enqueue
// returns a Ticket that resolves with the Processor's result, or with
// ErrAborted when the request is removed first:
//
//	q := queue.New(queue.Config{MaxSize: 100}, processor, sink)
//	q.Start(ctx)
//	defer q.Close()
//
//	ticket, err := q.Enqueue(queue.Request{Provider: "openai", Priority: 5})
//	if errors.Is(err, queue.ErrQueueFull) {
//	    return err
//	}
//	result, err := ticket.Wait(ctx)
package queue
