package exchange

import (
	"context"
	"fmt"
	"sync"
	"time"

	"monitorsync/internal/logger"
	"monitorsync/internal/monitor"
	"monitorsync/internal/waitlist"
)

// offer は TrySend で待機中の生産者を表す
type offer[T any] struct {
	cond     *monitor.Cond
	item     T
	receiver monitor.ID
	claimed  bool
}

// request は TryReceive で待機中の消費者を表す
type request[T any] struct {
	id    monitor.ID
	cond  *monitor.Cond
	size  int
	items []T
	done  bool
}

// Batch は TryReceive の結果
type Batch[T any] struct {
	Receiver monitor.ID
	Items    []T
	size     int
}

// Complete は要求した数のアイテムが揃っているかを返す
func (b Batch[T]) Complete() bool {
	return b.size > 0 && len(b.Items) == b.size
}

// Exchange は生産者と消費者を FIFO で引き合わせる
type Exchange[T any] struct {
	mu       sync.Mutex
	offers   waitlist.List[*offer[T]]
	requests waitlist.List[*request[T]]
	closed   bool
}

// New は新しい Exchange を作成する
func New[T any]() *Exchange[T] {
	return &Exchange[T]{}
}

// TrySend はアイテムを一つ差し出し、消費者に受け取られるまで待機する
//
// 受け取った消費者の ID と true を返す。timeout 内に受け取られなければ
// false を返す。
func (e *Exchange[T]) TrySend(ctx context.Context, item T, timeout time.Duration) (monitor.ID, bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return monitor.ID{}, false, monitor.ErrRejected
	}

	// fast path: このアイテムで先頭の要求がちょうど揃う
	if head := e.requests.Head(); head != nil && head.Value.size == e.offers.Len()+1 {
		e.requests.PullHead()
		req := head.Value
		items := e.claimOffers(req.id, e.offers.Len())
		req.items = append(items, item)
		req.done = true
		req.cond.Broadcast()
		return req.id, true, nil
	}

	o := &offer[T]{cond: monitor.NewCond(&e.mu), item: item}
	node := e.offers.Enqueue(o)
	deadline := monitor.After(timeout)

	for {
		err := o.cond.Wait(ctx, deadline)

		if o.claimed {
			return o.receiver, true, nil
		}
		if err != nil {
			e.offers.Remove(node)
			return monitor.ID{}, false, monitor.Cancelled(err)
		}
		if e.closed {
			e.offers.Remove(node)
			return monitor.ID{}, false, monitor.ErrRejected
		}
		if deadline.Expired() {
			e.offers.Remove(node)
			return monitor.ID{}, false, nil
		}
	}
}

// TryReceive は n 個のアイテムをまとめて受け取る
//
// 揃えば完全なバッチを返す。timeout またはキャンセルで諦めた場合、
// 待機列の先頭にいたなら待機中のアイテムを短いバッチとして引き取る。
// 先頭以外の要求が諦めた場合は空のバッチを返し、アイテムは先頭の要求に残す。
// キャンセル時はその短いバッチと monitor.ErrCancelled を同時に返す。
func (e *Exchange[T]) TryReceive(ctx context.Context, n int, timeout time.Duration) (Batch[T], error) {
	if n <= 0 {
		return Batch[T]{}, fmt.Errorf("%w: batch size must be positive, got %d", monitor.ErrInvalidArgument, n)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return Batch[T]{}, monitor.ErrRejected
	}

	id := monitor.NewID()

	// fast path: 先行する要求がなく、アイテムが足りている
	if e.requests.Empty() && e.offers.Len() >= n {
		return Batch[T]{Receiver: id, Items: e.claimOffers(id, n), size: n}, nil
	}

	req := &request[T]{id: id, cond: monitor.NewCond(&e.mu), size: n}
	node := e.requests.Enqueue(req)
	deadline := monitor.After(timeout)

	for {
		err := req.cond.Wait(ctx, deadline)

		if req.done {
			return Batch[T]{Receiver: id, Items: req.items, size: n}, nil
		}
		if err != nil {
			items := e.withdraw(node)
			logger.Debug(id.Short(), "TryReceive cancelled with %d/%d items: %v", len(items), n, err)
			return Batch[T]{Receiver: id, Items: items, size: n}, monitor.Cancelled(err)
		}
		if e.closed {
			e.requests.Remove(node)
			return Batch[T]{Receiver: id, size: n}, monitor.ErrRejected
		}
		if deadline.Expired() {
			items := e.withdraw(node)
			return Batch[T]{Receiver: id, Items: items, size: n}, nil
		}
	}
}

// claimOffers は先頭から count 個の申し出を取り出し、生産者を起こす
func (e *Exchange[T]) claimOffers(receiver monitor.ID, count int) []T {
	items := make([]T, 0, count+1)
	for range count {
		o := e.offers.PullHead().Value
		o.receiver = receiver
		o.claimed = true
		o.cond.Broadcast()
		items = append(items, o.item)
	}
	return items
}

// withdraw は要求を取り下げる
// 先頭の要求だった場合は待機中の申し出を全て引き取る
func (e *Exchange[T]) withdraw(node *waitlist.Node[*request[T]]) []T {
	wasHead := e.requests.Head() == node
	e.requests.Remove(node)
	if !wasHead {
		return nil
	}
	return e.claimOffers(node.Value.id, e.offers.Len())
}

// Close は以降の呼び出しを拒否し、待機中の生産者と消費者を起こす
func (e *Exchange[T]) Close() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return
	}
	e.closed = true

	for o := range e.offers.All() {
		o.cond.Broadcast()
	}
	for r := range e.requests.All() {
		r.cond.Broadcast()
	}

	logger.Debug("", "Exchange closed (offers: %d, requests: %d)", e.offers.Len(), e.requests.Len())
}

// PendingOffers は待機中の生産者数を返す
func (e *Exchange[T]) PendingOffers() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.offers.Len()
}

// PendingRequests は待機中の消費者数を返す
func (e *Exchange[T]) PendingRequests() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.requests.Len()
}
