package monitor

import (
	"context"
	"sync"
	"time"
)

// Cond は期限とコンテキストに対応した条件変数
//
// Wait と Broadcast はどちらも L を保持した状態で呼び出すこと
type Cond struct {
	L sync.Locker

	ch chan struct{}
}

// NewCond は新しい条件変数を作成する
func NewCond(l sync.Locker) *Cond {
	return &Cond{L: l}
}

// Wait は L を解放して通知を待ち、戻る前に L を再取得する
//
// Broadcast による起床、期限切れの場合は nil を返す。どちらで戻ったかは
// 呼び出し側が状態を再確認して判断する。コンテキストが先に終了した場合は
// ctx.Err() を返す。
func (c *Cond) Wait(ctx context.Context, deadline Deadline) error {
	if deadline.Expired() {
		return nil
	}
	if c.ch == nil {
		c.ch = make(chan struct{})
	}
	ch := c.ch

	var expired <-chan time.Time
	if !deadline.infinite {
		timer := time.NewTimer(deadline.Remaining())
		defer timer.Stop()
		expired = timer.C
	}

	c.L.Unlock()
	defer c.L.Lock()

	select {
	case <-ch:
		return nil
	case <-expired:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Broadcast は待機中の全ゴルーチンを起こす
func (c *Cond) Broadcast() {
	if c.ch != nil {
		close(c.ch)
		c.ch = nil
	}
}
