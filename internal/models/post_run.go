// internal/models/post_run.go
package models

// PostRun records one invocation of the post creation workflow. OrphanedKeys
// lists objects that were uploaded but never committed to the post.
type PostRun struct {
	BaseModel
	UserUUID        string     `json:"user_uuid" gorm:"size:64;not null;index"`
	UserID          int64      `json:"user_id"`
	PostID          int64      `json:"post_id" gorm:"index"`
	State           string     `json:"state" gorm:"size:32;not null"`
	FailedStep      string     `json:"failed_step,omitempty" gorm:"size:32"`
	Error           string     `json:"error,omitempty" gorm:"type:text"`
	ImagesRequested int        `json:"images_requested"`
	ImagesUploaded  int        `json:"images_uploaded"`
	Pictures        StringList `json:"pictures" gorm:"type:text"`
	OrphanedKeys    StringList `json:"orphaned_keys" gorm:"type:text"`
	DurationMs      int64      `json:"duration_ms"`
}
