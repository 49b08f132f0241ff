package output

import "tracesched/record"

// PendingLen returns the number of synthetic records queued ahead of
// the next real pop: injected context-switch/syscall-trace sequences
// and region-of-interest window-crossing markers.
func (o *Output) PendingLen() int { return len(o.pendingSynthetic) }

// PushPending appends rec to the synthetic-record queue, to be
// delivered (in order) before the scheduler resumes popping the bound
// input's real stream.
func (o *Output) PushPending(rec record.Record) {
	o.pendingSynthetic = append(o.pendingSynthetic, rec)
}

// PopPending dequeues the next synthetic record, if any.
func (o *Output) PopPending() (record.Record, bool) {
	if len(o.pendingSynthetic) == 0 {
		return record.Record{}, false
	}
	rec := o.pendingSynthetic[0]
	o.pendingSynthetic = o.pendingSynthetic[1:]
	return rec, true
}
