package client

import (
	"context"
	"sync"
	"sync/atomic"
	"time"
)

// Participant はプリミティブに対してブロッキング呼び出しを繰り返す参加者
//
// 実行中の呼び出しは Cancel で外部から中断でき、SetDelay で次の保持時間を延ばせる。
type Participant struct {
	id string

	mu     sync.Mutex
	cancel context.CancelFunc

	delay atomic.Int64
	calls atomic.Uint64
}

func newParticipant(id string) *Participant {
	return &Participant{id: id}
}

// ID は参加者名を返す
func (p *Participant) ID() string {
	return p.id
}

// Cancel は実行中の呼び出しをキャンセルする
func (p *Participant) Cancel() bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cancel == nil {
		return false
	}
	p.cancel()
	p.cancel = nil
	return true
}

// SetDelay は次の保持時間に d を加える
func (p *Participant) SetDelay(d time.Duration) {
	p.delay.Add(int64(d))
}

// Calls は実行した呼び出し数を返す
func (p *Participant) Calls() uint64 {
	return p.calls.Load()
}

func (p *Participant) takeDelay() time.Duration {
	return time.Duration(p.delay.Swap(0))
}

// call はキャンセル可能なコンテキストで fn を実行する
func (p *Participant) call(ctx context.Context, fn func(ctx context.Context)) {
	callCtx, cancel := context.WithCancel(ctx)

	p.mu.Lock()
	p.cancel = cancel
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.cancel = nil
		p.mu.Unlock()
		cancel()
	}()

	p.calls.Add(1)
	fn(callCtx)
}

// hold は d と注入された遅延の合計だけ待つ。ctx の終了で打ち切る
func (p *Participant) hold(ctx context.Context, d time.Duration) {
	d += p.takeDelay()
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
	case <-timer.C:
	}
}
