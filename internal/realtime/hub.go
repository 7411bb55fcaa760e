// Package realtime pushes queue snapshots to display boards over websocket.
package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"backend-loket/internal/models"
	"backend-loket/internal/queue"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

/*
|--------------------------------------------------------------------------
| Data Structure
|--------------------------------------------------------------------------
*/

// Source is the read side of queue.Service the hub needs.
type Source interface {
	ListCounters(ctx context.Context) ([]models.Counter, error)
	ListWaiting(ctx context.Context) ([]queue.WaitingEntry, error)
	GetEntry(ctx context.Context, id uuid.UUID) (models.QueueEntry, error)
}

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

type CounterView struct {
	CounterID      int64      `json:"counter_id"`
	Name           string     `json:"name"`
	IsActive       bool       `json:"is_active"`
	CurrentEntryID *uuid.UUID `json:"current_entry_id"`
	CurrentToken   *string    `json:"current_token"`
	IsPriority     bool       `json:"is_priority"`
}

type WaitingView struct {
	EntryID    uuid.UUID `json:"entry_id"`
	Token      string    `json:"token"`
	IsPriority bool      `json:"is_priority"`
	Position   int       `json:"position"`
}

type Announcement struct {
	EntryID     uuid.UUID `json:"entry_id"`
	Token       string    `json:"token"`
	CounterID   int64     `json:"counter_id"`
	CounterName string    `json:"counter_name"`
	AudioPaths  []string  `json:"audio_paths"`
}

type Message struct {
	Type             string        `json:"type"`
	Counters         []CounterView `json:"counters"`
	Waiting          []WaitingView `json:"waiting"`
	WaitingCount     int           `json:"waiting_count"`
	CurrentlyPlaying *Announcement `json:"currently_playing"`
	Timestamp        string        `json:"timestamp"`
}

// maxWaitingShown - papan display cuma muat 10 baris antrian berikutnya
const maxWaitingShown = 10

type client struct {
	conn         Conn
	writeMux     sync.Mutex
	closeChan    chan struct{}
	closed       bool
	lastPongTime time.Time
	id           string
}

// Hub is the queue.Broadcaster for display boards.
type Hub struct {
	src Source
	log *log.Entry
	now func() time.Time
	loc *time.Location

	clients        map[Conn]*client
	clientsMu      sync.RWMutex
	clientCounter  uint64 // atomic
	cleanupRunning bool

	// debounce: a burst of changes becomes one snapshot
	broadcastTimer   *time.Timer
	broadcastTimerMu sync.Mutex
	broadcastDelay   time.Duration

	// last snapshot, valid for the same business date
	lastMsg    []byte
	lastTime   time.Time
	lastCalled *uuid.UUID
	lastMu     sync.RWMutex
}

func NewHub(src Source, loc *time.Location, logger *log.Logger) *Hub {
	return &Hub{
		src:            src,
		log:            logger.WithField("component", "realtime"),
		now:            time.Now,
		loc:            loc,
		clients:        make(map[Conn]*client),
		broadcastDelay: 50 * time.Millisecond,
	}
}

/*
|--------------------------------------------------------------------------
| WebSocket Handler
|--------------------------------------------------------------------------
*/

func (h *Hub) Serve(c *websocket.Conn) {
	id := atomic.AddUint64(&h.clientCounter, 1)
	cl := &client{
		conn:         c,
		closeChan:    make(chan struct{}),
		lastPongTime: h.now(),
		id:           fmt.Sprintf("client-%d", id),
	}
	logger := h.log.WithField("client", cl.id)

	logger.WithField("remote", c.RemoteAddr().String()).Info("display connecting")
	h.register(cl)
	defer h.unregister(cl)

	c.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.SetPongHandler(func(string) error {
		cl.writeMux.Lock()
		cl.lastPongTime = h.now()
		cl.writeMux.Unlock()
		c.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	// data awal untuk client ini saja
	go func() {
		time.Sleep(100 * time.Millisecond)
		h.sendInitial(cl)
	}()

	ticker := time.NewTicker(20 * time.Second)
	defer ticker.Stop()

	go func() {
		for {
			select {
			case <-ticker.C:
				cl.writeMux.Lock()
				if cl.closed {
					cl.writeMux.Unlock()
					return
				}
				c.SetWriteDeadline(time.Now().Add(5 * time.Second))
				err := c.WriteMessage(websocket.PingMessage, nil)
				cl.writeMux.Unlock()

				if err != nil {
					logger.WithError(err).Warn("ping failed")
					return
				}
			case <-cl.closeChan:
				return
			}
		}
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure,
			) {
				logger.WithError(err).Warn("unexpected close")
			} else {
				logger.Debug("closed normally")
			}
			return
		}
	}
}

// Broadcast schedules a snapshot push. Safe to call from any goroutine.
func (h *Hub) Broadcast(change queue.Change) {
	if change.NewStatus == models.StatusServing && change.EntryID != uuid.Nil {
		id := change.EntryID
		h.lastMu.Lock()
		h.lastCalled = &id
		h.lastMu.Unlock()
	}

	h.broadcastTimerMu.Lock()
	defer h.broadcastTimerMu.Unlock()

	if h.broadcastTimer != nil {
		h.broadcastTimer.Reset(h.broadcastDelay)
		return
	}

	h.broadcastTimer = time.AfterFunc(h.broadcastDelay, func() {
		h.broadcastTimerMu.Lock()
		h.broadcastTimer = nil
		h.broadcastTimerMu.Unlock()

		h.broadcastNow()
	})
}

func (h *Hub) ClientCount() int {
	h.clientsMu.RLock()
	defer h.clientsMu.RUnlock()
	return len(h.clients)
}

/*
|--------------------------------------------------------------------------
| Client Management
|--------------------------------------------------------------------------
*/

func (h *Hub) register(cl *client) {
	h.clientsMu.Lock()
	h.clients[cl.conn] = cl
	total := len(h.clients)
	startCleanup := !h.cleanupRunning
	if startCleanup {
		h.cleanupRunning = true
	}
	h.clientsMu.Unlock()

	h.log.WithFields(log.Fields{"client": cl.id, "total": total}).Info("display registered")

	if startCleanup {
		go h.periodicCleanup()
	}
}

func (h *Hub) unregister(cl *client) {
	h.clientsMu.Lock()
	if _, exists := h.clients[cl.conn]; exists {
		cl.markClosed()
		delete(h.clients, cl.conn)
	}
	total := len(h.clients)
	h.clientsMu.Unlock()

	_ = cl.conn.Close()
	h.log.WithFields(log.Fields{"client": cl.id, "total": total}).Info("display unregistered")
}

func (cl *client) markClosed() {
	cl.writeMux.Lock()
	defer cl.writeMux.Unlock()
	cl.closeLocked()
}

func (cl *client) closeLocked() {
	if !cl.closed {
		cl.closed = true
		close(cl.closeChan)
	}
}

// periodicCleanup drops clients with no pong for 90s; it exits when no client is left.
func (h *Hub) periodicCleanup() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for range ticker.C {
		h.clientsMu.Lock()
		if len(h.clients) == 0 {
			h.cleanupRunning = false
			h.clientsMu.Unlock()
			h.log.Debug("no displays, stopping cleanup")
			return
		}

		now := h.now()
		removed := 0
		for conn, cl := range h.clients {
			cl.writeMux.Lock()
			stale := now.Sub(cl.lastPongTime) > 90*time.Second
			if stale {
				cl.closeLocked()
			}
			cl.writeMux.Unlock()

			if stale {
				delete(h.clients, conn)
				conn.Close()
				removed++
			}
		}
		remaining := len(h.clients)
		h.clientsMu.Unlock()

		if removed > 0 {
			h.log.WithFields(log.Fields{"removed": removed, "remaining": remaining}).Info("dead displays cleaned")
		}
	}
}

/*
|--------------------------------------------------------------------------
| Broadcast Logic
|--------------------------------------------------------------------------
*/

func (h *Hub) buildMessage(ctx context.Context) ([]byte, error) {
	counters, err := h.src.ListCounters(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list counters")
	}
	waiting, err := h.src.ListWaiting(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list waiting")
	}

	h.lastMu.RLock()
	var lastCalled uuid.UUID
	if h.lastCalled != nil {
		lastCalled = *h.lastCalled
	}
	h.lastMu.RUnlock()

	msg := Message{
		Type:         "queue_update",
		Counters:     make([]CounterView, 0, len(counters)),
		Waiting:      make([]WaitingView, 0, maxWaitingShown),
		WaitingCount: len(waiting),
		Timestamp:    h.now().In(h.loc).Format(time.RFC3339),
	}

	for _, c := range counters {
		view := CounterView{CounterID: c.ID, Name: c.Name, IsActive: c.IsActive, CurrentEntryID: c.CurrentQueueEntryID}
		if c.CurrentQueueEntryID != nil {
			entry, err := h.src.GetEntry(ctx, *c.CurrentQueueEntryID)
			if err != nil {
				h.log.WithField("counter_id", c.ID).WithError(err).Warn("current entry not readable")
			} else {
				token := entry.Token()
				view.CurrentToken = &token
				view.IsPriority = entry.IsPriority
				if entry.ID == lastCalled {
					msg.CurrentlyPlaying = &Announcement{
						EntryID:     entry.ID,
						Token:       token,
						CounterID:   c.ID,
						CounterName: c.Name,
						AudioPaths:  generateAudioPaths(entry.TokenNumber, c.Name),
					}
				}
			}
		}
		msg.Counters = append(msg.Counters, view)
	}

	for i, w := range waiting {
		if i == maxWaitingShown {
			break
		}
		msg.Waiting = append(msg.Waiting, WaitingView{
			EntryID:    w.ID,
			Token:      w.Token(),
			IsPriority: w.IsPriority,
			Position:   w.Position,
		})
	}

	return json.Marshal(msg)
}

// sendInitial uses the cached snapshot when it is from today.
func (h *Hub) sendInitial(cl *client) {
	h.lastMu.RLock()
	cached := h.lastMsg
	cacheTime := h.lastTime
	h.lastMu.RUnlock()

	now := h.now()
	if len(cached) > 0 && queue.BusinessDate(now, h.loc) == queue.BusinessDate(cacheTime, h.loc) {
		h.writeToClient(cl, cached)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	message, err := h.buildMessage(ctx)
	if err != nil {
		h.log.WithError(err).Error("initial snapshot failed")
		return
	}
	h.writeToClient(cl, message)
}

func (h *Hub) broadcastNow() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	message, err := h.buildMessage(ctx)
	if err != nil {
		h.log.WithError(err).Error("snapshot failed")
		return
	}

	h.lastMu.Lock()
	h.lastMsg = message
	h.lastTime = h.now()
	h.lastMu.Unlock()

	h.clientsMu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for _, cl := range h.clients {
		clients = append(clients, cl)
	}
	h.clientsMu.RUnlock()

	if len(clients) == 0 {
		return
	}

	// worker pool max 20 goroutine
	const maxWorkers = 20
	sem := make(chan struct{}, maxWorkers)
	var wg sync.WaitGroup

	for _, cl := range clients {
		wg.Add(1)
		sem <- struct{}{}
		go func(cl *client) {
			defer wg.Done()
			defer func() { <-sem }()
			h.writeToClient(cl, message)
		}(cl)
	}

	wg.Wait()
}

func (h *Hub) writeToClient(cl *client, message []byte) {
	cl.writeMux.Lock()
	defer cl.writeMux.Unlock()

	if cl.closed {
		return
	}

	cl.conn.SetWriteDeadline(time.Now().Add(3 * time.Second))
	if err := cl.conn.WriteMessage(websocket.TextMessage, message); err != nil {
		h.log.WithField("client", cl.id).WithError(err).Warn("write failed, dropping display")
		cl.closeLocked()

		// clientsMu is always taken before writeMux, so drop outside this lock
		go func() {
			h.clientsMu.Lock()
			delete(h.clients, cl.conn)
			h.clientsMu.Unlock()
			cl.conn.Close()
		}()
	}
}
