package service

import (
	"context"

	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
)

// PatientService handles patient registry business logic. Every read and
// write goes through the access service's visibility chain.
type PatientService struct {
	patientRepo *repository.PatientRepository
	access      *AccessService
}

// NewPatientService creates a new PatientService.
func NewPatientService(patientRepo *repository.PatientRepository, access *AccessService) *PatientService {
	return &PatientService{patientRepo: patientRepo, access: access}
}

// Create registers a patient under the calling examiner.
func (s *PatientService) Create(ctx context.Context, examiner *model.Examiner, req *model.CreatePatientRequest) (*model.Patient, error) {
	p := &model.Patient{
		ExaminerID:  examiner.ID,
		Name:        req.Name,
		Age:         req.Age,
		City:        req.City,
		FatherName:  req.FatherName,
		MotherName:  req.MotherName,
		UniqueID:    req.UniqueID,
		PhoneNumber: req.PhoneNumber,
	}
	if err := s.patientRepo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// CheckUniqueID reports whether a unique identifier is still available for
// registration. The lookup spans all examiners; the identifier is global.
func (s *PatientService) CheckUniqueID(ctx context.Context, uniqueID string) (bool, error) {
	exists, err := s.patientRepo.ExistsByUniqueID(ctx, uniqueID)
	if err != nil {
		return false, err
	}
	return !exists, nil
}

// Get retrieves a patient inside the examiner's visibility.
func (s *PatientService) Get(ctx context.Context, examiner *model.Examiner, patientID int) (*model.Patient, error) {
	return s.access.GetAccessiblePatient(ctx, examiner, patientID)
}

// List retrieves the patients visible to the examiner, newest first.
func (s *PatientService) List(ctx context.Context, examiner *model.Examiner) ([]model.Patient, error) {
	return s.access.ListVisiblePatients(ctx, examiner)
}

// Update edits a visible patient's details. Zero-valued request fields keep
// the stored value.
func (s *PatientService) Update(ctx context.Context, examiner *model.Examiner, patientID int, req *model.UpdatePatientRequest) (*model.Patient, error) {
	p, err := s.access.GetAccessiblePatient(ctx, examiner, patientID)
	if err != nil {
		return nil, err
	}

	if req.Name != "" {
		p.Name = req.Name
	}
	if req.Age != nil {
		p.Age = req.Age
	}
	if req.City != "" {
		p.City = req.City
	}
	if req.FatherName != "" {
		p.FatherName = req.FatherName
	}
	if req.MotherName != "" {
		p.MotherName = req.MotherName
	}
	if req.PhoneNumber != "" {
		p.PhoneNumber = req.PhoneNumber
	}

	if err := s.patientRepo.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a visible patient together with responses and reports.
func (s *PatientService) Delete(ctx context.Context, examiner *model.Examiner, patientID int) error {
	if _, err := s.access.GetAccessiblePatient(ctx, examiner, patientID); err != nil {
		return err
	}
	return s.patientRepo.Delete(ctx, patientID)
}
