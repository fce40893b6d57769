package model

// ExaminerKind enumerates examiner privilege tiers.
type ExaminerKind string

const (
	ExaminerKindSuperadmin ExaminerKind = "SUPERADMIN"
	ExaminerKindAdmin      ExaminerKind = "ADMIN"
	ExaminerKindUser       ExaminerKind = "USER"
)

// Examiner is an authorized user who administers assessments. CreatedBy
// links an examiner to the admin who provisioned them; the access control
// service walks this chain to resolve patient visibility.
type Examiner struct {
	ID           int          `json:"id"`
	Email        string       `json:"email"`
	Name         string       `json:"name"`
	PasswordHash string       `json:"-"`
	Kind         ExaminerKind `json:"kind"`
	CreatedBy    *int         `json:"created_by,omitempty"`
}

// LoginRequest is the payload for examiner login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

// CreateExaminerRequest is the payload for provisioning an examiner account.
type CreateExaminerRequest struct {
	Email    string       `json:"email" binding:"required,email"`
	Name     string       `json:"name" binding:"required,min=1,max=255"`
	Password string       `json:"password" binding:"required,min=6,max=72"`
	Kind     ExaminerKind `json:"kind" binding:"required,oneof=ADMIN USER"`
}
