package chat

import (
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	closed []websocket.StatusCode
}

func (c *fakeConn) Close(code websocket.StatusCode, _ string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = append(c.closed, code)
	return nil
}

func (c *fakeConn) codes() []websocket.StatusCode {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]websocket.StatusCode(nil), c.closed...)
}

// slowConn blocks in Close until released, like a peer that never answers
// the close handshake.
type slowConn struct {
	release chan struct{}
	done    chan struct{}
}

func (c *slowConn) Close(websocket.StatusCode, string) error {
	<-c.release
	close(c.done)
	return nil
}

func (c *fakeConn) closeCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.closed)
}

func TestRegistry_NewConnectionReplacesOld(t *testing.T) {
	r := NewRegistry()
	first, second := &fakeConn{}, &fakeConn{}

	r.Register("sess_a", first)
	r.Register("sess_a", first)
	assert.Zero(t, first.closeCount(), "re-registering the same conn is a no-op")

	r.Register("sess_a", second)
	assert.Eventually(t, func() bool { return first.closeCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []websocket.StatusCode{websocket.StatusPolicyViolation}, first.codes())
	assert.Equal(t, 1, r.Len())

	r.Unregister("sess_a", first)
	assert.Equal(t, 1, r.Len(), "stale unregister keeps the live connection")
	r.Unregister("sess_a", second)
	assert.Zero(t, r.Len())
}

func TestRegistry_CloseAndCloseAll(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	r.Register("a", a)
	r.Register("b", b)

	r.Close("a", "session deleted")
	assert.Equal(t, 1, a.closeCount())
	r.Close("missing", "noop")

	r.CloseAll()
	assert.Equal(t, 1, b.closeCount())
	assert.Zero(t, r.Len())
}

func TestRegistry_SlowCloseDoesNotBlock(t *testing.T) {
	r := NewRegistry()
	old := &slowConn{release: make(chan struct{}), done: make(chan struct{})}
	r.Register("sess_a", old)

	registered := make(chan struct{})
	go func() {
		r.Register("sess_a", &fakeConn{})
		r.Register("sess_b", &fakeConn{})
		close(registered)
	}()

	select {
	case <-registered:
	case <-time.After(time.Second):
		t.Fatal("Register blocked on the replaced connection's close")
	}

	lenDone := make(chan int, 1)
	go func() { lenDone <- r.Len() }()
	select {
	case n := <-lenDone:
		assert.Equal(t, 2, n)
	case <-time.After(100 * time.Millisecond):
		t.Fatal("Len blocked while a replaced connection was closing")
	}

	close(old.release)
	select {
	case <-old.done:
	case <-time.After(time.Second):
		require.Fail(t, "replaced connection was never closed")
	}
}
