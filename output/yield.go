package output

// pendingBlockCheck/pendingBlockPreTs stage a MAYBE_BLOCKING_SYSCALL
// decision across the call boundary: the marker itself is delivered on
// one NextRecord call, but the gap that decides whether to block isn't
// known until the following TIMESTAMP marker is popped on a later call,
// and the post-syscall timestamp must still be delivered before the
// switch.

// SetPendingBlockCheck arms (or disarms) the deferred blocking-syscall
// decision, recording the pre-syscall timestamp to diff against once
// the post-syscall TIMESTAMP marker is popped.
func (o *Output) SetPendingBlockCheck(armed bool, preTimestamp uint64) {
	o.pendingBlockCheck = armed
	o.pendingBlockPreTs = preTimestamp
}

// PendingBlockCheck reports whether a blocking-syscall decision is
// armed, and the pre-syscall timestamp to diff against.
func (o *Output) PendingBlockCheck() (armed bool, preTimestamp uint64) {
	return o.pendingBlockCheck, o.pendingBlockPreTs
}
