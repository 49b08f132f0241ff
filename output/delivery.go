package output

import (
	"tracesched/errors"
	"tracesched/record"
)

// RecordDelivered updates the bookkeeping NextRecord needs after
// delivering rec to the consumer: the last-delivered record (for
// UnreadLastRecord) and whether it was synthesized during speculation,
// which makes it un-unreadable.
func (o *Output) RecordDelivered(rec record.Record, synthesizedDuringSpec bool) {
	o.lastDelivered = rec
	o.hasLastDelivered = true
	o.lastWasSpeculative = synthesizedDuringSpec
	o.consecutiveUnread = false
}

// LastDeliveredSynthetic reports whether the most recently delivered
// record was injected or synthesized (injected sequence, synthesized
// header or window marker, speculation NOP). WAIT and IDLE returns are
// not recorded as deliveries and leave it unchanged.
func (o *Output) LastDeliveredSynthetic() bool {
	return o.hasLastDelivered && o.lastDelivered.Synthetic
}

// LastDeliveredKernel reports whether the most recently delivered
// record belongs to an injected context-switch or syscall-trace
// sequence.
func (o *Output) LastDeliveredKernel() bool {
	return o.hasLastDelivered && o.lastDelivered.Kernel
}

// PrepareUnread validates and consumes an UnreadLastRecord call,
// returning the record to push back onto the input's lookahead. It
// fails if the last delivery was synthesized during speculation, or
// when called consecutively.
func (o *Output) PrepareUnread() (record.Record, error) {
	if o.consecutiveUnread {
		return record.Record{}, errors.ErrUnreadNotAvailable
	}
	if !o.hasLastDelivered {
		return record.Record{}, errors.ErrUnreadNotAvailable
	}
	if o.lastWasSpeculative {
		return record.Record{}, errors.ErrUnreadNotAvailable
	}
	rec := o.lastDelivered
	o.hasLastDelivered = false
	o.consecutiveUnread = true
	return rec, nil
}
