package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// UserTokenKey holds the JTI of the user's current, non-revoked token.
func (r *CacheKeyStruct) UserTokenKey(userID int) string {
	return fmt.Sprintf("login:%d", userID)
}

// ExamDefinitionKey returns the cache key for a full exam definition (answer key included).
func (r *CacheKeyStruct) ExamDefinitionKey(examID string) string {
	return fmt.Sprintf("exam:%s:definition", examID)
}

// CourseExamKey maps a course to the id of its active exam.
func (r *CacheKeyStruct) CourseExamKey(courseID string) string {
	return fmt.Sprintf("course:%s:exam", courseID)
}

// LearnerActiveAttemptKey points at a learner's in-progress attempt for an exam.
func (r *CacheKeyStruct) LearnerActiveAttemptKey(examID string, learnerID int) string {
	return fmt.Sprintf("learner:%d:exam:%s:active_attempt", learnerID, examID)
}

// ExamMonitorChannel returns the Redis PubSub channel name for an exam monitor
func (r *CacheKeyStruct) ExamMonitorChannel(examID string) string {
	return fmt.Sprintf("exam:%s:monitor", examID)
}

// AttemptRecordedChannel carries the ids of attempts written by the retry
// worker so live sessions can stop reporting them as unrecorded.
func (r *CacheKeyStruct) AttemptRecordedChannel() string {
	return "attempts:recorded"
}

var CacheKey = NewCacheKeyStruct()
