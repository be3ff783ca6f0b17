package semaphore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"monitorsync/internal/logger"
	"monitorsync/internal/monitor"
	"monitorsync/internal/waitlist"
)

// acquirer は Acquire で待機中の呼び出しを表す
type acquirer struct {
	id   monitor.ID
	cond *monitor.Cond
	done bool // Release によって単位を受け取った
}

// Semaphore はシャットダウン可能な計数セマフォ
type Semaphore struct {
	mu           sync.Mutex
	units        int
	initial      int
	shuttingDown bool
	waiters      waitlist.List[*acquirer]
	terminated   *monitor.Cond
}

// New は units 個の単位を持つセマフォを作成する
func New(units int) *Semaphore {
	if units < 0 {
		panic(fmt.Sprintf("semaphore: negative units %d", units))
	}
	s := &Semaphore{
		units:   units,
		initial: units,
	}
	s.terminated = monitor.NewCond(&s.mu)
	return s
}

// Acquire は単位を一つ取得する
//
// 取得できれば true、timeout 内に取得できなければ false を返す。
// シャットダウン中なら monitor.ErrRejected、コンテキストが先に終了すれば
// monitor.ErrCancelled を返す。ただし終了と同時に単位を受け取っていた場合は
// 成功として扱う。
func (s *Semaphore) Acquire(ctx context.Context, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return false, monitor.ErrRejected
	}

	// fast path
	if s.units > 0 {
		s.units--
		return true, nil
	}

	w := &acquirer{id: monitor.NewID(), cond: monitor.NewCond(&s.mu)}
	node := s.waiters.Enqueue(w)
	deadline := monitor.After(timeout)

	for {
		err := w.cond.Wait(ctx, deadline)

		// Release が先にノードを取り外している
		if w.done {
			return true, nil
		}
		if err != nil {
			s.waiters.Remove(node)
			logger.Debug(w.id.Short(), "Acquire cancelled: %v", err)
			return false, monitor.Cancelled(err)
		}
		if s.shuttingDown {
			s.waiters.Remove(node)
			logger.Debug(w.id.Short(), "Acquire rejected by shutdown")
			return false, monitor.ErrRejected
		}
		if deadline.Expired() {
			s.waiters.Remove(node)
			return false, nil
		}
	}
}

// Release は単位を一つ返却する
// 待機者がいれば先頭の待機者へ直接引き渡す
func (s *Semaphore) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.units >= s.initial {
		panic("semaphore: released more units than acquired")
	}
	s.units++

	if s.shuttingDown {
		if s.units == s.initial {
			s.terminated.Broadcast()
		}
		return
	}

	if head := s.waiters.PullHead(); head != nil {
		s.units--
		w := head.Value
		w.done = true
		w.cond.Broadcast()
	}
}

// Shutdown は以降の Acquire を拒否し、待機中の呼び出しを起こす
// 二回目以降の呼び出しは何もしない
func (s *Semaphore) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdownLocked()
}

func (s *Semaphore) shutdownLocked() {
	if s.shuttingDown {
		return
	}
	s.shuttingDown = true

	for w := range s.waiters.All() {
		w.cond.Broadcast()
	}
	if s.units == s.initial {
		s.terminated.Broadcast()
	}

	logger.Debug("", "Semaphore shutting down (available: %d/%d, waiting: %d)",
		s.units, s.initial, s.waiters.Len())
}

// AwaitTermination は全ての単位が返却されるまで待機する
// 未シャットダウンなら Shutdown を開始する
func (s *Semaphore) AwaitTermination(ctx context.Context, timeout time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.shutdownLocked()

	deadline := monitor.After(timeout)
	for {
		if s.units == s.initial {
			return true, nil
		}
		if deadline.Expired() {
			return false, nil
		}
		if err := s.terminated.Wait(ctx, deadline); err != nil {
			if s.units == s.initial {
				return true, nil
			}
			return false, monitor.Cancelled(err)
		}
	}
}

// Available は現在取得可能な単位数を返す
func (s *Semaphore) Available() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.units
}

// Capacity は初期単位数を返す
func (s *Semaphore) Capacity() int {
	return s.initial
}

// Waiting は待機中の呼び出し数を返す
func (s *Semaphore) Waiting() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.waiters.Len()
}

// IsShutdown はシャットダウンが開始されたかを返す
func (s *Semaphore) IsShutdown() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shuttingDown
}

// String はセマフォの状態を返す
func (s *Semaphore) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("Semaphore(%d/%d, waiting=%d)", s.initial-s.units, s.initial, s.waiters.Len())
}
