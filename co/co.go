// Copyright (c) 2025 The Terahash developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package co holds small concurrency helpers used by the server
// lifecycle and the settlement broadcaster.
package co

import "sync"

// Goes tracks goroutines so shutdown can wait for all of them.
type Goes struct {
	wg sync.WaitGroup
}

// Go runs f in a tracked goroutine.
func (g *Goes) Go(f func()) {
	g.wg.Add(1)
	go func() {
		defer g.wg.Done()
		f()
	}()
}

// Wait blocks until every tracked goroutine returned.
func (g *Goes) Wait() {
	g.wg.Wait()
}

// Done returns a channel closed once every tracked goroutine returned,
// for use in select loops.
func (g *Goes) Done() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		g.wg.Wait()
	}()
	return done
}

// Signal is a channel-based rendezvous point: goroutines select on a
// waiter's channel instead of blocking in sync.Cond. A read of true
// means a single wake-up, a closed channel means broadcast.
type Signal struct {
	mu sync.Mutex
	ch chan bool
}

func (s *Signal) init() {
	if s.ch == nil {
		s.ch = make(chan bool, 1)
	}
}

// Signal wakes one waiting goroutine, if any.
func (s *Signal) Signal() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	select {
	case s.ch <- true:
	default:
	}
}

// Broadcast wakes all waiting goroutines.
func (s *Signal) Broadcast() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	close(s.ch)
	s.ch = make(chan bool, 1)
}

// Waiter exposes the channel to select on.
type Waiter interface {
	C() <-chan bool
}

// NewWaiter returns a waiter following the signal across broadcasts.
func (s *Signal) NewWaiter() Waiter {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.init()
	ref := s.ch
	return waiterFunc(func() <-chan bool {
		ch := ref
		s.mu.Lock()
		ref = s.ch
		s.mu.Unlock()
		return ch
	})
}

type waiterFunc func() <-chan bool

func (w waiterFunc) C() <-chan bool {
	return w()
}
