package scanner

import (
	"sync"
	"time"

	"github.com/wonny/quantscan/internal/contracts"
	"github.com/wonny/quantscan/pkg/metrics"
)

const subscriberBuffer = 64

// progressTracker serializes progress writes and fans them out to subscribers.
// 스캔 실행 락과 분리되어 있어 스캔 중에도 조회가 막히지 않음
type progressTracker struct {
	mu      sync.Mutex
	current contracts.Progress
	subs    map[int]chan contracts.Progress
	nextID  int
	metrics *metrics.Recorder
	now     func() time.Time
}

func newProgressTracker(rec *metrics.Recorder, now func() time.Time) *progressTracker {
	return &progressTracker{
		current: contracts.Progress{
			State:      contracts.StateIdle,
			Strategies: map[string]int{},
			UpdatedAt:  now(),
		},
		subs:    make(map[int]chan contracts.Progress),
		metrics: rec,
		now:     now,
	}
}

func (p *progressTracker) snapshot() contracts.Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// update applies fn under the lock and notifies subscribers.
// 느린 구독자는 건너뜀 (최신 상태는 다음 알림에서 받음)
func (p *progressTracker) update(fn func(pr *contracts.Progress)) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fn(&p.current)
	p.current.UpdatedAt = p.now()
	p.metrics.SetProgress(p.current.Percent)

	for _, ch := range p.subs {
		select {
		case ch <- p.current.Clone():
		default:
		}
	}
}

func (p *progressTracker) start() {
	p.update(func(pr *contracts.Progress) {
		*pr = contracts.Progress{
			State:      contracts.StateRunning,
			Percent:    0,
			Message:    "스캔 시작",
			Strategies: map[string]int{},
			StartedAt:  p.now(),
		}
	})
}

func (p *progressTracker) step(percent int, message string) {
	p.update(func(pr *contracts.Progress) {
		pr.Percent = percent
		pr.Message = message
	})
}

func (p *progressTracker) finish(state contracts.ProgressState, message string, err error) {
	p.update(func(pr *contracts.Progress) {
		pr.State = state
		pr.Message = message
		if state == contracts.StateCompleted {
			pr.Percent = 100
		}
		if err != nil {
			pr.Error = err.Error()
		}
	})
}

// subscribe returns a channel receiving every update plus its cancel func
func (p *progressTracker) subscribe() (<-chan contracts.Progress, func()) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextID
	p.nextID++
	ch := make(chan contracts.Progress, subscriberBuffer)
	p.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			p.mu.Lock()
			defer p.mu.Unlock()
			delete(p.subs, id)
			close(ch)
		})
	}
}
