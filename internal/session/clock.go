package session

import "time"

// Clock supplies the current time. Deadlines are absolute timestamps taken
// from a single clock at the moment of each call, so there is no background
// timer: expiry is enforced lazily by the next operation that touches the
// question.
type Clock func() time.Time

func (c Clock) Now() time.Time {
	if c == nil {
		return time.Now()
	}
	return c()
}

// deadlineFor computes the answering cutoff for a question starting now.
func deadlineFor(now time.Time, limitSeconds int) time.Time {
	return now.Add(time.Duration(limitSeconds) * time.Second)
}
