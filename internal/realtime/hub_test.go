package realtime

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	mu     sync.Mutex
	msgs   [][]byte
	fail   bool
	closed bool
}

func (c *fakeConn) WriteMessage(_ int, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("broken pipe")
	}
	c.msgs = append(c.msgs, data)
	return nil
}

func (c *fakeConn) SetWriteDeadline(time.Time) error { return nil }

func (c *fakeConn) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) last(t *testing.T) Message {
	t.Helper()
	c.mu.Lock()
	defer c.mu.Unlock()
	require.NotEmpty(t, c.msgs)
	var m Message
	require.NoError(t, json.Unmarshal(c.msgs[len(c.msgs)-1], &m))
	return m
}

func (c *fakeConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.msgs)
}

var wib = time.FixedZone("WIB", 7*60*60)

func newTestHub(t *testing.T) (*Hub, *queue.Service) {
	t.Helper()
	logger, _ := test.NewNullLogger()
	svc := queue.NewService(queue.NewMemoryStore(), queue.NewMemorySequencer(), queue.WithLocation(wib), queue.WithLogger(logger))
	t.Cleanup(svc.Wait)
	return NewHub(svc, wib, logger), svc
}

func addClient(h *Hub, conn *fakeConn) *client {
	cl := &client{conn: conn, closeChan: make(chan struct{}), lastPongTime: time.Now(), id: "test"}
	h.register(cl)
	return cl
}

func TestBroadcastSnapshot(t *testing.T) {
	h, svc := newTestHub(t)
	ctx := context.Background()

	counter, err := svc.RegisterCounter(ctx, "Loket 2")
	require.NoError(t, err)
	for _, id := range []string{"c-1", "c-2", "c-3"} {
		_, err := svc.CreateEntry(ctx, id, id == "c-3")
		require.NoError(t, err)
	}
	called, err := svc.AssignNext(ctx, counter.ID)
	require.NoError(t, err)

	conn := &fakeConn{}
	addClient(h, conn)
	h.Broadcast(queue.Change{EntryID: called.ID, NewStatus: models.StatusServing, CounterID: &counter.ID})
	h.broadcastNow()

	m := conn.last(t)
	assert.Equal(t, "queue_update", m.Type)
	assert.Equal(t, 2, m.WaitingCount)
	require.Len(t, m.Waiting, 2)
	assert.Equal(t, 1, m.Waiting[0].Position)
	assert.Equal(t, "#001", m.Waiting[0].Token)

	require.Len(t, m.Counters, 1)
	require.NotNil(t, m.Counters[0].CurrentToken)
	assert.Equal(t, "#003", *m.Counters[0].CurrentToken)
	assert.True(t, m.Counters[0].IsPriority)

	require.NotNil(t, m.CurrentlyPlaying)
	assert.Equal(t, called.ID, m.CurrentlyPlaying.EntryID)
	assert.Equal(t, []string{
		"audio/ting.mp3", "audio/nomor_antrian.mp3", "audio/tiga.mp3", "audio/ke_loket.mp3", "audio/dua.mp3",
	}, m.CurrentlyPlaying.AudioPaths)
}

func TestBroadcastDebounced(t *testing.T) {
	h, _ := newTestHub(t)
	h.broadcastDelay = 20 * time.Millisecond
	conn := &fakeConn{}
	addClient(h, conn)

	for i := 0; i < 10; i++ {
		h.Broadcast(queue.Change{})
	}
	assert.Eventually(t, func() bool { return conn.count() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, 1, conn.count())
}

func TestBrokenClientIsDropped(t *testing.T) {
	h, _ := newTestHub(t)
	good := &fakeConn{}
	bad := &fakeConn{fail: true}
	addClient(h, good)
	addClient(h, bad)
	require.Equal(t, 2, h.ClientCount())

	h.broadcastNow()

	assert.Eventually(t, func() bool { return h.ClientCount() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, 1, good.count())
}

func TestSendInitialUsesCache(t *testing.T) {
	h, svc := newTestHub(t)
	h.broadcastNow()

	_, err := svc.CreateEntry(context.Background(), "c-1", false)
	require.NoError(t, err)

	conn := &fakeConn{}
	cl := addClient(h, conn)
	h.sendInitial(cl)
	assert.Equal(t, 0, conn.last(t).WaitingCount)

	h.lastMu.Lock()
	h.lastTime = h.lastTime.Add(-48 * time.Hour)
	h.lastMu.Unlock()
	h.sendInitial(cl)
	assert.Equal(t, 1, conn.last(t).WaitingCount)
}

func TestUnregisterClosesConn(t *testing.T) {
	h, _ := newTestHub(t)
	conn := &fakeConn{}
	cl := addClient(h, conn)

	h.unregister(cl)
	assert.Equal(t, 0, h.ClientCount())
	assert.True(t, conn.closed)
	assert.True(t, cl.closed)

	h.writeToClient(cl, []byte(`{}`))
	assert.Equal(t, 0, conn.count())
}

func TestParseNumberToAudio(t *testing.T) {
	assert.Equal(t, []string{"audio/sebelas.mp3"}, parseNumberToAudio(11))
	assert.Equal(t, []string{"audio/tujuh.mp3", "audio/belas.mp3"}, parseNumberToAudio(17))
	assert.Equal(t, []string{"audio/dua.mp3", "audio/puluh.mp3", "audio/lima.mp3"}, parseNumberToAudio(25))
	assert.Equal(t, []string{"audio/seratus.mp3", "audio/lima.mp3"}, parseNumberToAudio(105))
	assert.Equal(t, []string{"audio/seribu.mp3", "audio/dua.mp3", "audio/ratus.mp3"}, parseNumberToAudio(1200))
	assert.Equal(t, 12, extractNumber("Loket 12"))
	assert.Equal(t, 0, extractNumber("Teller"))
}
