package nitram

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/martinschaer/nitram/internal/logger"
	"github.com/martinschaer/nitram/session"
)

// writeWait bounds how long a single control or data frame write may
// block before the connection is considered dead.
const writeWait = 10 * time.Second

// ServeConn drives one accepted connection's entire lifecycle: it opens
// the session, then runs the inbound dispatch loop and the outbound
// heartbeat/push loop as two goroutines sharing a last_seen cell, until
// either exits. It blocks until both have finished and the session has
// been removed exactly once.
func (e *Engine) ServeConn(conn *websocket.Conn) {
	connID := e.store.Open()
	e.tracker.mark(connID)
	conn.SetReadLimit(e.maxFrameSize)

	var mu sync.Mutex
	lastSeen := time.Now()
	setLastSeen := func() {
		mu.Lock()
		lastSeen = time.Now()
		mu.Unlock()
	}
	sinceLastSeen := func() time.Duration {
		mu.Lock()
		defer mu.Unlock()
		return time.Since(lastSeen)
	}

	var closeOnce sync.Once
	removeSession := func() {
		closeOnce.Do(func() {
			e.store.Close(connID)
			e.tracker.unmark(connID)
			logger.Conn().Debug().
				Str("conn", connID.String()).
				Int("remaining", e.store.Count()).
				Msg("session removed")
		})
	}

	// Inbound pings get an immediate pong (invariant (i): last_seen is
	// updated only by pong RECEIPT, a pong we send in reply to the
	// peer's ping does not count).
	conn.SetPingHandler(func(payload string) error {
		return conn.WriteControl(websocket.PongMessage, []byte(payload), time.Now().Add(writeWait))
	})
	conn.SetPongHandler(func(string) error {
		setLastSeen()
		return nil
	})

	done := make(chan struct{})
	outboundDone := make(chan struct{})
	go func() {
		defer close(outboundDone)
		e.outboundLoop(conn, connID, sinceLastSeen, removeSession, done)
	}()

	e.inboundLoop(conn, connID, removeSession)
	close(done)
	<-outboundDone
}

// inboundLoop reads frames until the stream ends, dispatching every
// text frame and writing back the response in the order requests
// arrived.
func (e *Engine) inboundLoop(conn *websocket.Conn, connID session.ConnID, removeSession func()) {
	defer func() {
		conn.Close()
		removeSession()
	}()

	for {
		messageType, data, err := conn.ReadMessage()
		if err != nil {
			logger.Conn().Debug().Err(err).Str("conn", connID.String()).Msg("inbound loop ending")
			return
		}
		if messageType != websocket.TextMessage {
			continue // other frame kinds ignored; gorilla already answered ping/close control frames
		}

		resp := e.Dispatch(connID, string(data))
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(resp)); err != nil {
			logger.Conn().Debug().Err(err).Str("conn", connID.String()).Msg("write failed, closing")
			return
		}
	}
}

// outboundLoop runs two independent tickers sharing this one goroutine:
// pingTicker (PingIntervalSeconds) sends the heartbeat ping and checks
// the pong timeout; pushTicker (PushIntervalMillis, §4.H
// server_messages_interval_millis) drains subscribed topics on its own
// cadence, which may be finer than the ping interval. Both tickers are
// read from the same select loop, so writes to conn are never
// interleaved across goroutines.
func (e *Engine) outboundLoop(conn *websocket.Conn, connID session.ConnID, sinceLastSeen func() time.Duration, removeSession func(), done <-chan struct{}) {
	pingTicker := time.NewTicker(time.Duration(e.pingInterval) * time.Second)
	defer pingTicker.Stop()
	pushTicker := time.NewTicker(time.Duration(e.PushIntervalMillis()) * time.Millisecond)
	defer pushTicker.Stop()
	timeout := time.Duration(e.timeout) * time.Second

	for {
		select {
		case <-done:
			return
		case <-pingTicker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				logger.Conn().Debug().Err(err).Str("conn", connID.String()).Msg("ping failed, closing")
				conn.Close()
				removeSession()
				return
			}

			if sinceLastSeen() > timeout {
				logger.Conn().Debug().Str("conn", connID.String()).Msg("pong timeout, closing")
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
					time.Now().Add(writeWait))
				conn.Close()
				removeSession()
				return
			}
		case <-pushTicker.C:
			batch := e.Drain(connID)
			if len(batch) == 0 {
				continue
			}
			data, err := json.Marshal(batch)
			if err != nil {
				logger.Conn().Error().Err(err).Msg("failed to marshal push batch")
				continue
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logger.Conn().Debug().Err(err).Str("conn", connID.String()).Msg("push write failed")
			}
		}
	}
}
