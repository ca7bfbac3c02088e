package halgpu

// disposal holds teardown work per sync index. Work queued while recording
// with index i runs the next time index i is selected, when the caller has
// waited for the frame that last used it.
type disposal struct {
	queues [][]func()
	index  int
}

func newDisposal(frames int) *disposal {
	return &disposal{queues: make([][]func(), frames)}
}

func (d *disposal) add(fn func()) {
	d.queues[d.index] = append(d.queues[d.index], fn)
}

// advance selects index i and runs its pending work.
func (d *disposal) advance(i int) {
	d.index = i
	q := d.queues[i]
	d.queues[i] = nil
	for _, fn := range q {
		fn()
	}
}

// pending returns the number of queued functions for index i.
func (d *disposal) pending(i int) int { return len(d.queues[i]) }

// drain runs every queue, oldest index first.
func (d *disposal) drain() {
	n := len(d.queues)
	for k := 1; k <= n; k++ {
		i := (d.index + k) % n
		q := d.queues[i]
		d.queues[i] = nil
		for _, fn := range q {
			fn()
		}
	}
}
