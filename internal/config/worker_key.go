package config

type WorkerKeyStruct struct {
	PersistAttemptsQueue string
	// RetryAttemptsSet holds attempts waiting out a backoff, scored by the
	// unix millisecond they become due.
	RetryAttemptsSet  string
	DeadAttemptsQueue string
}

var WorkerKey = &WorkerKeyStruct{
	PersistAttemptsQueue: "persist_attempts_queue",
	RetryAttemptsSet:     "retry_attempts_zset",
	DeadAttemptsQueue:    "dead_attempts_queue",
}
