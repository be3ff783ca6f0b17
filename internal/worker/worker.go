package worker

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/hashicorp/go-multierror"

	"monitorsync/internal/logger"
	"monitorsync/internal/monitor"
	"monitorsync/internal/waitlist"
)

// Job はワーカーが実行するジョブを表す
type Job func()

// PoolConfig はワーカープールの設定
type PoolConfig struct {
	NumWorkers int    // ワーカー数（0でCPU数）
	Name       string // ログ出力用の名前
}

// DefaultPoolConfig はデフォルト設定を返す
func DefaultPoolConfig() PoolConfig {
	return PoolConfig{
		NumWorkers: 0, // CPU数
		Name:       "pool",
	}
}

// idleWorker はジョブを待って停止しているワーカー
type idleWorker struct {
	id   monitor.ID
	cond *monitor.Cond
	job  Job
}

// Pool はゴルーチンのプールを管理する
type Pool struct {
	name       string
	numWorkers int

	mu           sync.Mutex
	jobs         waitlist.List[Job]
	idle         waitlist.List[*idleWorker]
	active       int
	shuttingDown bool
	terminated   *monitor.Cond
	failures     *multierror.Error
}

// NewPool は新しいワーカープールを作成し、ワーカーを起動する
// numWorkers が 0 以下の場合は CPU 数を使用
func NewPool(numWorkers int) *Pool {
	config := DefaultPoolConfig()
	config.NumWorkers = numWorkers
	return NewPoolWithConfig(config)
}

// NewPoolWithConfig は設定を指定してワーカープールを作成し、ワーカーを起動する
func NewPoolWithConfig(config PoolConfig) *Pool {
	numWorkers := config.NumWorkers
	if numWorkers <= 0 {
		numWorkers = runtime.NumCPU()
	}
	name := config.Name
	if name == "" {
		name = "pool"
	}

	p := &Pool{
		name:       name,
		numWorkers: numWorkers,
		active:     numWorkers,
	}
	p.terminated = monitor.NewCond(&p.mu)

	for i := range numWorkers {
		go p.worker(i)
	}

	logger.Info(p.name, "WorkerPool started with %d workers", numWorkers)
	return p
}

// Execute はジョブをプールに送信する
// シャットダウン後は monitor.ErrRejected を返す
func (p *Pool) Execute(job Job) error {
	if job == nil {
		return fmt.Errorf("%w: nil job", monitor.ErrInvalidArgument)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.shuttingDown {
		return monitor.ErrRejected
	}

	// 待機中のワーカーに直接渡す
	if head := p.idle.PullHead(); head != nil {
		w := head.Value
		w.job = job
		w.cond.Broadcast()
		return nil
	}

	p.jobs.Enqueue(job)
	return nil
}

// worker は個々のワーカーゴルーチン
func (p *Pool) worker(index int) {
	self := &idleWorker{id: monitor.NewID(), cond: monitor.NewCond(&p.mu)}

	for {
		job, ok := p.next(self)
		if !ok {
			logger.Debug(p.name, "worker %d (%s) exited", index, self.id.Short())
			return
		}
		p.run(index, job)
	}
}

// next は次のジョブを取得する
// シャットダウン中でキューが空なら false を返し、ワーカーは終了する
func (p *Pool) next(self *idleWorker) (Job, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for {
		if head := p.jobs.PullHead(); head != nil {
			return head.Value, true
		}

		if p.shuttingDown {
			p.active--
			if p.active == 0 {
				p.terminated.Broadcast()
			}
			return nil, false
		}

		node := p.idle.Enqueue(self)
		// 期限もキャンセルもないので、Execute か Shutdown に起こされるまで戻らない
		_ = self.cond.Wait(context.Background(), monitor.Never())

		if job := self.job; job != nil {
			self.job = nil
			return job, true
		}
		p.idle.Remove(node)
	}
}

// run はロックの外でジョブを実行する
func (p *Pool) run(index int, job Job) {
	defer func() {
		if r := recover(); r != nil {
			err := fmt.Errorf("worker %d: job panicked: %v", index, r)
			logger.Warn(p.name, "%v", err)

			p.mu.Lock()
			p.failures = multierror.Append(p.failures, err)
			p.mu.Unlock()
		}
	}()

	job()
}

// ShutdownAndWait は新規ジョブの受付を停止し、全ワーカーの終了を待つ
//
// キュー内のジョブは全て実行される。コンテキストが先に終了した場合は
// monitor.ErrCancelled を返すが、その時点で全ワーカーが終了していれば nil を返す。
func (p *Pool) ShutdownAndWait(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.shuttingDown {
		p.shuttingDown = true
		logger.Info(p.name, "WorkerPool shutting down (queued: %d, idle: %d, active: %d)",
			p.jobs.Len(), p.idle.Len(), p.active)

		// 待機中のワーカーは全てキューが空であることを観測済み
		for head := p.idle.PullHead(); head != nil; head = p.idle.PullHead() {
			head.Value.cond.Broadcast()
		}
	}

	for p.active > 0 {
		if err := p.terminated.Wait(ctx, monitor.Never()); err != nil {
			if p.active == 0 {
				break
			}
			return monitor.Cancelled(err)
		}
	}

	logger.Info(p.name, "WorkerPool stopped")
	return nil
}

// Err は実行中にパニックしたジョブのエラーをまとめて返す
func (p *Pool) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.failures.ErrorOrNil()
}

// NumWorkers はワーカー数を返す
func (p *Pool) NumWorkers() int {
	return p.numWorkers
}

// QueueSize は現在のキューサイズを返す
func (p *Pool) QueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jobs.Len()
}

// ActiveWorkers はまだ終了していないワーカー数を返す
func (p *Pool) ActiveWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// IdleWorkers はジョブを待っているワーカー数を返す
func (p *Pool) IdleWorkers() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.idle.Len()
}

// IsShutdown はシャットダウンが開始されたかを返す
func (p *Pool) IsShutdown() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.shuttingDown
}
