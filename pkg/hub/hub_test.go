package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type frame struct {
	typ  int
	data []byte
}

// fakeConn blocks reads until closed and records writes.
type fakeConn struct {
	writes    chan frame
	closed    chan struct{}
	closeOnce sync.Once
}

func newFakeConn() *fakeConn {
	return &fakeConn{writes: make(chan frame, 64), closed: make(chan struct{})}
}

func (c *fakeConn) SetReadLimit(int64) {}
func (c *fakeConn) SetReadDeadline(time.Time) error { return nil }
func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }
func (c *fakeConn) SetPongHandler(func(string) error) {}

func (c *fakeConn) ReadMessage() (int, []byte, error) {
	<-c.closed
	return 0, nil, errors.New("closed")
}

func (c *fakeConn) WriteMessage(typ int, data []byte) error {
	select {
	case <-c.closed:
		return errors.New("closed")
	default:
	}
	c.writes <- frame{typ: typ, data: data}
	return nil
}

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) next(t *testing.T) frame {
	t.Helper()
	select {
	case f := <-c.writes:
		return f
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
		return frame{}
	}
}

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	h := New("test", slog.New(slog.DiscardHandler))
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)
	require.Eventually(t, h.IsRunning, time.Second, 5*time.Millisecond)
	t.Cleanup(cancel)
	return h, cancel
}

func connectClient(t *testing.T, h *Hub, backlog ...Message) *fakeConn {
	t.Helper()
	conn := newFakeConn()
	c := NewClient(h, conn, backlog...)
	require.NotNil(t, c)
	go c.Run()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcast_ReachesEveryClient(t *testing.T) {
	h, _ := startHub(t)
	a := connectClient(t, h)
	b := connectClient(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.BroadcastJSON(map[string]string{"text": "hello"}))
	h.BroadcastBinary([]byte{0xff, 0xd8})

	for _, conn := range []*fakeConn{a, b} {
		f := conn.next(t)
		assert.Equal(t, websocket.TextMessage, f.typ)
		assert.JSONEq(t, `{"text":"hello"}`, string(f.data))

		f = conn.next(t)
		assert.Equal(t, websocket.BinaryMessage, f.typ)
		assert.Equal(t, []byte{0xff, 0xd8}, f.data)
	}
}

func TestClient_BacklogFirst(t *testing.T) {
	h, _ := startHub(t)
	conn := connectClient(t, h, NewJSONMessage([]byte(`"old"`)))
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	h.Broadcast(NewJSONMessage([]byte(`"new"`)))
	assert.Equal(t, `"old"`, string(conn.next(t).data))
	assert.Equal(t, `"new"`, string(conn.next(t).data))
}

func TestClient_DisconnectUnregisters(t *testing.T) {
	h, _ := startHub(t)
	conn := connectClient(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return h.ClientCount() == 0 }, time.Second, 5*time.Millisecond)
}

func TestRun_StopClosesClients(t *testing.T) {
	h, cancel := startHub(t)
	conn := connectClient(t, h)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()
	assert.Eventually(t, func() bool { return !h.IsRunning() }, time.Second, 5*time.Millisecond)
	select {
	case <-conn.closed:
	case <-time.After(2 * time.Second):
		t.Fatal("client connection not closed")
	}
	assert.Equal(t, 0, h.ClientCount())
	assert.Nil(t, NewClient(h, newFakeConn()))
}

func TestBroadcastJSON_EncodeError(t *testing.T) {
	h := New("test", nil)
	assert.Error(t, h.BroadcastJSON(make(chan int)))
}
