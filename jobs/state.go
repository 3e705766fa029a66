package jobs

import "sync/atomic"

// JobState describes the chunk a job function is running for.
type JobState struct {
	// Index of this chunk within the job
	CurrentIteration int

	// Index of the last chunk of the job
	MaxIteration int

	completed *atomic.Int32
}

func (s JobState) IsLast() bool {
	return s.CurrentIteration == s.MaxIteration
}

// Completed returns the number of chunks of the job that have already completed.
func (s JobState) Completed() int {
	if s.completed == nil {
		return 0
	}

	return int(s.completed.Load())
}
