package queue

// readyHeap orders due jobs: highest priority first, arrival order within a
// priority.
type readyHeap[T any] []*Job[T]

func (h readyHeap[T]) Len() int { return len(h) }

func (h readyHeap[T]) Less(i, j int) bool {
	if h[i].priority != h[j].priority {
		return h[i].priority > h[j].priority
	}
	return h[i].seq < h[j].seq
}

func (h readyHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *readyHeap[T]) Push(x any) { *h = append(*h, x.(*Job[T])) }

func (h *readyHeap[T]) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}

// delayHeap orders not-yet-due jobs by wakeup time.
type delayHeap[T any] []*Job[T]

func (h delayHeap[T]) Len() int { return len(h) }

func (h delayHeap[T]) Less(i, j int) bool {
	if !h[i].runAt.Equal(h[j].runAt) {
		return h[i].runAt.Before(h[j].runAt)
	}
	return h[i].seq < h[j].seq
}

func (h delayHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *delayHeap[T]) Push(x any) { *h = append(*h, x.(*Job[T])) }

func (h *delayHeap[T]) Pop() any {
	old := *h
	n := len(old)
	job := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return job
}
