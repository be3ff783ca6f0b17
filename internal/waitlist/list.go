package waitlist

import "iter"

// Node はリスト内の一つの待機者を表す
type Node[T any] struct {
	Value T

	next, prev *Node[T]
	list       *List[T]
}

// Linked はノードがまだリストに繋がっているかを返す
func (n *Node[T]) Linked() bool {
	return n.list != nil
}

// List は侵入型の双方向FIFOリスト
// ゼロ値は空のリストとしてそのまま使える
type List[T any] struct {
	head, tail *Node[T]
	len        int
}

// Enqueue は末尾に値を追加し、そのノードを返す
func (l *List[T]) Enqueue(v T) *Node[T] {
	n := &Node[T]{Value: v, list: l, prev: l.tail}
	if l.tail != nil {
		l.tail.next = n
	} else {
		l.head = n
	}
	l.tail = n
	l.len++
	return n
}

// Head は先頭ノードを返す（取り外さない）
func (l *List[T]) Head() *Node[T] {
	return l.head
}

// PullHead は先頭ノードを取り外して返す
// 空の場合は nil
func (l *List[T]) PullHead() *Node[T] {
	n := l.head
	if n == nil {
		return nil
	}
	l.unlink(n)
	return n
}

// Remove はノードをリストから取り外す
// 既に取り外されたノード、または別リストのノードに対しては何もしない
func (l *List[T]) Remove(n *Node[T]) {
	if n == nil || n.list != l {
		return
	}
	l.unlink(n)
}

func (l *List[T]) unlink(n *Node[T]) {
	if n.prev != nil {
		n.prev.next = n.next
	} else {
		l.head = n.next
	}
	if n.next != nil {
		n.next.prev = n.prev
	} else {
		l.tail = n.prev
	}
	n.next, n.prev, n.list = nil, nil, nil
	l.len--
}

// Len は要素数を返す
func (l *List[T]) Len() int {
	return l.len
}

// Empty はリストが空かどうかを返す
func (l *List[T]) Empty() bool {
	return l.len == 0
}

// All は先頭から順に値を列挙する
// 列挙中に現在の要素を Remove しても安全
func (l *List[T]) All() iter.Seq[T] {
	return func(yield func(T) bool) {
		for n := l.head; n != nil; {
			next := n.next
			if !yield(n.Value) {
				return
			}
			n = next
		}
	}
}

// Values は先頭から順に値をスライスで返す
func (l *List[T]) Values() []T {
	values := make([]T, 0, l.len)
	for v := range l.All() {
		values = append(values, v)
	}
	return values
}
