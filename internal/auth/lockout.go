package auth

import "time"

// LockoutState is the state of one network origin in the lockout machine
type LockoutState int

const (
	// StateClear means no record, or zero attempts
	StateClear LockoutState = iota
	// StateWarned means at least one failure but below the threshold
	StateWarned
	// StateBlocked means blocked_until is in the future
	StateBlocked
	// StateExpired means a block has lapsed and must be reset before use
	StateExpired
)

func (s LockoutState) String() string {
	switch s {
	case StateClear:
		return "clear"
	case StateWarned:
		return "warned"
	case StateBlocked:
		return "blocked"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// LockoutPolicy holds the threshold and block window
type LockoutPolicy struct {
	Threshold int
	Window    time.Duration
}

// State classifies a record at time now. A nil record is Clear.
func (p LockoutPolicy) State(rec *LockoutRecord, now time.Time) LockoutState {
	if rec == nil {
		return StateClear
	}
	if rec.BlockedUntil != nil {
		if now.Before(*rec.BlockedUntil) {
			return StateBlocked
		}
		return StateExpired
	}
	if rec.Attempts <= 0 {
		return StateClear
	}
	return StateWarned
}

// Reset returns the record an expired block lazily resets to
func (p LockoutPolicy) Reset(rec LockoutRecord) LockoutRecord {
	rec.Attempts = 0
	rec.BlockedUntil = nil
	return rec
}

// RecordFailure applies one failed attempt. Reaching the threshold starts a block
// of Window from now.
func (p LockoutPolicy) RecordFailure(rec *LockoutRecord, origin string, now time.Time) LockoutRecord {
	next := LockoutRecord{Origin: origin}
	if rec != nil {
		next = *rec
		next.Origin = origin
	}

	next.Attempts++
	next.LastAttempt = now
	if next.Attempts >= p.Threshold {
		until := now.Add(p.Window)
		next.BlockedUntil = &until
	}
	return next
}

// Remaining is max(0, threshold - attempts)
func (p LockoutPolicy) Remaining(rec LockoutRecord) int {
	remaining := p.Threshold - rec.Attempts
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RetryAfter is how long a blocked record stays blocked
func (p LockoutPolicy) RetryAfter(rec LockoutRecord, now time.Time) time.Duration {
	if rec.BlockedUntil == nil {
		return 0
	}
	d := rec.BlockedUntil.Sub(now)
	if d < 0 {
		return 0
	}
	return d
}
