// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package subscriptions streams settlement events over websocket.
// Clients receive the pool stream snapshots once on connect and again
// after every announced settlement.
package subscriptions

import (
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/terahash/tera/api/restutil"
	"github.com/terahash/tera/api/types"
	"github.com/terahash/tera/co"
	"github.com/terahash/tera/ledger"
	"github.com/terahash/tera/log"
)

var logger = log.WithContext("pkg", "subscriptions")

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
)

// Event is one pool's stream snapshot at a settlement.
type Event struct {
	Pool   string        `json:"pool"`
	Time   uint64        `json:"time"`
	Stream *types.Stream `json:"stream"`
}

// Source names a settling ledger.
type Source struct {
	Name   string
	Ledger *ledger.Ledger
}

// Subscriptions fans settlement announcements out to websocket
// clients.
type Subscriptions struct {
	sources  []Source
	now      func() uint64
	latest   atomic.Pointer[[]Event]
	sig      co.Signal
	goes     co.Goes
	done     chan struct{}
	upgrader websocket.Upgrader
}

// New creates the subscriptions handler over the given ledgers.
func New(sources []Source, now func() uint64) *Subscriptions {
	return &Subscriptions{
		sources: sources,
		now:     now,
		done:    make(chan struct{}),
	}
}

// Announce snapshots the streams and wakes every connected client.
// The ledgers are not safe for concurrent use, so the caller must hold
// whatever lock serializes state access; connection goroutines only
// ever read the cached snapshot.
func (s *Subscriptions) Announce() {
	events, err := s.snapshot()
	if err != nil {
		logger.Warn("stream snapshot failed", "err", err)
		return
	}
	s.latest.Store(&events)
	s.sig.Broadcast()
}

// Close disconnects all clients and waits for their goroutines.
func (s *Subscriptions) Close() {
	close(s.done)
	s.sig.Broadcast()
	s.goes.Wait()
}

func (s *Subscriptions) snapshot() ([]Event, error) {
	now := s.now()
	events := make([]Event, 0, len(s.sources))
	for _, src := range s.sources {
		stream, err := src.Ledger.Stream()
		if err != nil {
			return nil, err
		}
		events = append(events, Event{
			Pool:   src.Name,
			Time:   now,
			Stream: types.ConvertStream(stream),
		})
	}
	return events, nil
}

func (s *Subscriptions) handleSettlements(w http.ResponseWriter, req *http.Request) error {
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// the upgrader already replied
		return nil
	}

	closed := make(chan struct{})
	s.goes.Go(func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	defer conn.Close()

	waiter := s.sig.NewWaiter()
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	send := func() error {
		events := []Event{}
		if latest := s.latest.Load(); latest != nil {
			events = *latest
		}
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		return conn.WriteJSON(events)
	}

	if err := send(); err != nil {
		return nil
	}
	for {
		select {
		case <-s.done:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			conn.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"))
			return nil
		case <-closed:
			return nil
		case <-waiter.C():
			if err := send(); err != nil {
				logger.Debug("dropping settlement subscriber", "err", err)
				return nil
			}
		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return nil
			}
		}
	}
}

// Mount attaches the handlers under pathPrefix.
func (s *Subscriptions) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/settlements").
		Methods(http.MethodGet).
		HandlerFunc(restutil.WrapHandlerFunc(s.handleSettlements))
}
