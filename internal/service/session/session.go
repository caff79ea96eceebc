// Package session pumps scan events from one broadcast subscription to one
// websocket client.
package session

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"kiosk/internal/logger"
	"kiosk/internal/service/broadcast"
)

// Options tunes keepalive and limits of a session.
type Options struct {
	PingInterval time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultOptions returns the settings used when a field is left zero.
func DefaultOptions() Options {
	return Options{
		PingInterval: 30 * time.Second,
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.PingInterval <= 0 {
		o.PingInterval = def.PingInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = def.ReadTimeout
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = def.WriteTimeout
	}
	return o
}

// Session pairs an outbound duty (subscription -> client) with an inbound
// duty (client liveness). Whichever ends first ends the other.
type Session struct {
	conn   *websocket.Conn
	sub    *broadcast.Subscription
	opts   Options
	logger *logger.Logger

	closeOnce sync.Once
}

// New creates a session over an upgraded connection. The session takes
// ownership of both conn and sub.
func New(conn *websocket.Conn, sub *broadcast.Subscription, opts Options, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		conn:   conn,
		sub:    sub,
		opts:   opts.withDefaults(),
		logger: log,
	}
}

// Run serves the client until it disconnects, a send fails, the broadcaster
// shuts down or ctx is cancelled. A clean end of any kind returns nil.
func (s *Session) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)
	go func() { errc <- s.writePump(ctx) }()
	go func() { errc <- s.readPump() }()

	err := <-errc
	cancel()
	s.shutdown()
	<-errc

	s.logger.Debug("Session %s ended: %d event(s) delivered, %d dropped", s.sub.ID(), s.sub.Delivered(), s.sub.Dropped())
	return err
}

// writePump forwards events in publish order and keeps the client alive with pings.
func (s *Session) writePump(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.PingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.writeClose(websocket.CloseGoingAway, "server shutting down")
			return nil

		case <-s.sub.Ready():
			if done, err := s.flush(); done || err != nil {
				return err
			}

		case <-s.sub.Done():
			if done, err := s.flush(); done || err != nil {
				return err
			}

		case <-ticker.C:
			deadline := time.Now().Add(s.opts.WriteTimeout)
			if err := s.conn.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
				return err
			}
		}
	}
}

// flush writes everything pending. done is true once the subscription is exhausted.
func (s *Session) flush() (done bool, err error) {
	for {
		msg, ok, err := s.sub.TryRecv()
		if errors.Is(err, broadcast.ErrSubscriptionClosed) {
			s.writeClose(websocket.CloseGoingAway, "stream ended")
			return true, nil
		}
		if !ok {
			return false, nil
		}

		s.conn.SetWriteDeadline(time.Now().Add(s.opts.WriteTimeout))
		if err := s.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return true, err
		}
	}
}

// readPump only watches for liveness. Pongs extend the read deadline, pings are
// answered by the default handler and data messages of any size are discarded
// without being buffered.
func (s *Session) readPump() error {
	s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(s.opts.ReadTimeout))
	})

	for {
		_, r, err := s.conn.NextReader()
		if err == nil {
			_, err = io.Copy(io.Discard, r)
		}
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				return nil
			}
			return err
		}
	}
}

func (s *Session) writeClose(code int, text string) {
	deadline := time.Now().Add(s.opts.WriteTimeout)
	s.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), deadline)
}

// shutdown releases both ends so the remaining duty returns promptly.
func (s *Session) shutdown() {
	s.closeOnce.Do(func() {
		s.sub.Close()
		s.conn.Close()
	})
}
