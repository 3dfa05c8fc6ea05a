package cciefb

// Timer is a wrap-safe deadline armed against the platform's 32-bit
// microsecond monotonic counter. Generalizes the teacher's scattered
// (timeoutTimeUs, timeoutTimer) pairs (see pkg/sdo/client.go) into one
// reusable comparator, since CCIEFB needs the same pattern in the group
// engine, device engine, slave connection and SLMP pending requests.
type Timer struct {
	deadline uint32
	armed    bool
}

// Arm schedules the timer to expire periodUs after now.
func (t *Timer) Arm(now uint32, periodUs uint32) {
	t.deadline = now + periodUs
	t.armed = true
}

// Disarm clears the timer; Expired always reports false afterwards.
func (t *Timer) Disarm() {
	t.armed = false
}

// Armed reports whether the timer currently has a deadline set.
func (t *Timer) Armed() bool {
	return t.armed
}

// Expired reports whether now is at or past the armed deadline, tolerating
// a single 32-bit wraparound: expired(now) = (now - deadline) < 0x80000000.
// An unarmed timer never expires.
func (t *Timer) Expired(now uint32) bool {
	if !t.armed {
		return false
	}
	return Expired(now, t.deadline)
}

// Expired is the free function form of the wrap-safe comparator, usable
// when a caller only has a raw deadline value (e.g. loaded from a
// snapshot) rather than a Timer.
func Expired(now uint32, deadline uint32) bool {
	return (now - deadline) < 0x80000000
}
