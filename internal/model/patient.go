package model

// Patient is a test subject. Score is the running aggregate maintained by
// the scoring aggregator (overwritten on every recompute, never incremented).
type Patient struct {
	ID          int    `json:"id"`
	ExaminerID  int    `json:"examiner_id"`
	Name        string `json:"name"`
	Age         *int   `json:"age,omitempty"`
	City        string `json:"city,omitempty"`
	FatherName  string `json:"father_name,omitempty"`
	MotherName  string `json:"mother_name,omitempty"`
	UniqueID    string `json:"unique_id,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	Score       int    `json:"score"`
}

// CreatePatientRequest is the payload for registering a patient.
type CreatePatientRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=255"`
	Age         *int   `json:"age" binding:"omitempty,min=0,max=150"`
	City        string `json:"city" binding:"omitempty,max=255"`
	FatherName  string `json:"father_name" binding:"omitempty,max=255"`
	MotherName  string `json:"mother_name" binding:"omitempty,max=255"`
	UniqueID    string `json:"unique_id" binding:"omitempty,max=64"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=32"`
}

// UpdatePatientRequest is the payload for editing patient details.
type UpdatePatientRequest struct {
	Name        string `json:"name" binding:"omitempty,min=1,max=255"`
	Age         *int   `json:"age" binding:"omitempty,min=0,max=150"`
	City        string `json:"city" binding:"omitempty,max=255"`
	FatherName  string `json:"father_name" binding:"omitempty,max=255"`
	MotherName  string `json:"mother_name" binding:"omitempty,max=255"`
	PhoneNumber string `json:"phone_number" binding:"omitempty,max=32"`
}
