package crawler

// Frontier is the FIFO queue of URLs waiting to be fetched.
//
// A URL is queued at most once. Frontier only knows about its own contents;
// State combines it with the visited, failed and in-flight sets so that a
// URL that was already dealt with is never queued again.
//
// Frontier is not safe for concurrent use.
type Frontier struct {
	items  []string
	head   int
	queued map[string]struct{}
}

// NewFrontier creates a frontier holding urls in order, dropping duplicates.
func NewFrontier(urls ...string) *Frontier {
	f := &Frontier{
		items:  make([]string, 0, len(urls)),
		queued: make(map[string]struct{}, len(urls)),
	}
	for _, u := range urls {
		f.PushBack(u)
	}
	return f
}

// PushBack appends u unless it is already queued. It reports whether u was added.
func (f *Frontier) PushBack(u string) bool {
	if _, ok := f.queued[u]; ok {
		return false
	}
	f.queued[u] = struct{}{}
	f.items = append(f.items, u)
	return true
}

// PushFront puts u at the head of the queue. It is used to give back a URL
// that was popped but not processed. A u that is already queued is moved
// to the head.
func (f *Frontier) PushFront(u string) {
	if _, ok := f.queued[u]; ok {
		f.remove(u)
	}
	f.queued[u] = struct{}{}

	if f.head > 0 {
		f.head--
		f.items[f.head] = u
		return
	}
	f.items = append(f.items, "")
	copy(f.items[1:], f.items)
	f.items[0] = u
}

// PopFront removes and returns the head of the queue.
func (f *Frontier) PopFront() (string, bool) {
	if f.Len() == 0 {
		return "", false
	}
	u := f.items[f.head]
	f.items[f.head] = ""
	f.head++
	delete(f.queued, u)

	// Reclaim the consumed prefix once it dominates the backing array.
	if f.head > 64 && f.head*2 >= len(f.items) {
		f.items = append(make([]string, 0, len(f.items)-f.head), f.items[f.head:]...)
		f.head = 0
	}
	return u, true
}

// Len returns the number of queued URLs.
func (f *Frontier) Len() int {
	return len(f.items) - f.head
}

// Contains reports whether u is queued.
func (f *Frontier) Contains(u string) bool {
	_, ok := f.queued[u]
	return ok
}

// Items returns the queued URLs, head first.
func (f *Frontier) Items() []string {
	out := make([]string, f.Len())
	copy(out, f.items[f.head:])
	return out
}

func (f *Frontier) remove(u string) {
	for i := f.head; i < len(f.items); i++ {
		if f.items[i] == u {
			f.items = append(f.items[:i], f.items[i+1:]...)
			break
		}
	}
	delete(f.queued, u)
}
