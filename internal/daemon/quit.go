package daemon

import "sync"

// quitSignal is a close-once channel shared by the tray's shutdown paths
type quitSignal struct {
	once sync.Once
	ch   chan struct{}
}

func newQuitSignal() *quitSignal {
	return &quitSignal{ch: make(chan struct{})}
}

// Close closes the channel; later and concurrent calls are no-ops
func (q *quitSignal) Close() {
	q.once.Do(func() { close(q.ch) })
}

// Done is closed once Close has been called
func (q *quitSignal) Done() <-chan struct{} {
	return q.ch
}
