package jsruntime

import (
	"cmp"
	"time"

	"github.com/dop251/goja"
	"github.com/emirpasic/gods/queues/priorityqueue"
)

type timer struct {
	id   int64
	seq  uint64
	when time.Time
	fn   goja.Callable
	args []goja.Value
}

// timers is the cooperative timer loop behind setTimeout. It is only driven
// from the goroutine that owns the runtime.
type timers struct {
	queue  *priorityqueue.Queue
	active map[int64]*timer
	nextID int64
	seq    uint64
	now    func() time.Time
}

func newTimers() *timers {
	return &timers{
		queue: priorityqueue.NewWith(func(a, b interface{}) int {
			ta, tb := a.(*timer), b.(*timer)
			if c := ta.when.Compare(tb.when); c != 0 {
				return c
			}
			return cmp.Compare(ta.seq, tb.seq)
		}),
		active: make(map[int64]*timer),
		now:    time.Now,
	}
}

func (t *timers) add(fn goja.Callable, delay time.Duration, args []goja.Value) int64 {
	if delay < 0 {
		delay = 0
	}
	t.nextID++
	t.seq++
	tm := &timer{id: t.nextID, seq: t.seq, when: t.now().Add(delay), fn: fn, args: args}
	t.active[tm.id] = tm
	t.queue.Enqueue(tm)
	return tm.id
}

func (t *timers) cancel(id int64) {
	delete(t.active, id)
}

func (t *timers) pending() int {
	return len(t.active)
}

// next pops the earliest live timer. Cancelled timers are dropped lazily.
func (t *timers) next() (*timer, bool) {
	for {
		v, ok := t.queue.Dequeue()
		if !ok {
			return nil, false
		}
		tm := v.(*timer)
		if _, live := t.active[tm.id]; !live {
			continue
		}
		delete(t.active, tm.id)
		return tm, true
	}
}

func (t *timers) clear() {
	t.queue.Clear()
	clear(t.active)
}
