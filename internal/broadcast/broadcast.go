package broadcast

import (
	"context"
	"sync"
	"time"

	"monitorsync/internal/monitor"
	"monitorsync/internal/waitlist"
)

// receiver は WaitForMessage で待機中の呼び出しを表す
type receiver[T any] struct {
	id        monitor.ID
	msg       T
	delivered bool
}

// Message は WaitForMessage の結果
// Receiver は SendToAll が返す ID と一致する
type Message[T any] struct {
	Receiver monitor.ID
	Value    T
}

// Broadcaster は待機中の全受信者に同じメッセージを配る
type Broadcaster[T any] struct {
	mu        sync.Mutex
	cond      *monitor.Cond
	receivers waitlist.List[*receiver[T]]
}

// New は新しい Broadcaster を作成する
func New[T any]() *Broadcaster[T] {
	b := &Broadcaster[T]{}
	b.cond = monitor.NewCond(&b.mu)
	return b
}

// WaitForMessage は次のブロードキャストを待つ
//
// メッセージを受け取れば true、timeout 内に届かなければ false を返す。
// 結果の Receiver はどの場合もこの呼び出しの ID を持つ。
func (b *Broadcaster[T]) WaitForMessage(ctx context.Context, timeout time.Duration) (Message[T], bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	r := &receiver[T]{id: monitor.NewID()}
	node := b.receivers.Enqueue(r)
	deadline := monitor.After(timeout)

	for {
		err := b.cond.Wait(ctx, deadline)

		if r.delivered {
			return Message[T]{Receiver: r.id, Value: r.msg}, true, nil
		}
		if err != nil {
			b.receivers.Remove(node)
			return Message[T]{Receiver: r.id}, false, monitor.Cancelled(err)
		}
		if deadline.Expired() {
			b.receivers.Remove(node)
			return Message[T]{Receiver: r.id}, false, nil
		}
	}
}

// SendToAll は待機中の全受信者にメッセージを渡し、通知した受信者の ID を登録順に返す
func (b *Broadcaster[T]) SendToAll(msg T) []monitor.ID {
	b.mu.Lock()
	defer b.mu.Unlock()

	ids := make([]monitor.ID, 0, b.receivers.Len())
	for head := b.receivers.PullHead(); head != nil; head = b.receivers.PullHead() {
		r := head.Value
		r.msg = msg
		r.delivered = true
		ids = append(ids, r.id)
	}
	if len(ids) > 0 {
		b.cond.Broadcast()
	}
	return ids
}

// Waiting は待機中の受信者数を返す
func (b *Broadcaster[T]) Waiting() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receivers.Len()
}
