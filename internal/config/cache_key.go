package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// ExaminerSessionKey returns the cache key holding an examiner's active JWT ID.
func (r *CacheKeyStruct) ExaminerSessionKey(examinerID int) string {
	return fmt.Sprintf("login:%d", examinerID)
}

// LevelPayloadKey returns the cache key for a test level's full payload
// (screens with images and questions).
func (r *CacheKeyStruct) LevelPayloadKey(level int) string {
	return fmt.Sprintf("level:%d:payload", level)
}

// LevelIndexKey returns the cache key for the ordered level index.
func (r *CacheKeyStruct) LevelIndexKey() string {
	return "levels:index"
}

// PatientAnswersKey returns the cache key for a patient's answered-question
// hash (question ID -> selected image ID) used for session resume.
func (r *CacheKeyStruct) PatientAnswersKey(patientID int) string {
	return fmt.Sprintf("patient:%d:answers", patientID)
}

// PatientNarrationChannel returns the PubSub channel carrying narration
// events for a patient's presentation surface.
func (r *CacheKeyStruct) PatientNarrationChannel(patientID int) string {
	return fmt.Sprintf("patient:%d:narration", patientID)
}

var CacheKey = NewCacheKeyStruct()
