package service

import (
	"context"
	"errors"

	"github.com/pictalk/pictalk-backend/internal/model"
	"github.com/pictalk/pictalk-backend/internal/repository"
)

// ErrForbidden marks an access attempt outside the examiner's visibility.
var ErrForbidden = errors.New("patient not accessible to this examiner")

// AccessService resolves which patients an examiner may see. Superadmins see
// everyone; admins see their own patients plus those of examiners they
// provisioned; regular examiners see only their own.
type AccessService struct {
	examinerRepo *repository.ExaminerRepository
	patientRepo  *repository.PatientRepository
}

// NewAccessService creates a new AccessService.
func NewAccessService(examinerRepo *repository.ExaminerRepository, patientRepo *repository.PatientRepository) *AccessService {
	return &AccessService{examinerRepo: examinerRepo, patientRepo: patientRepo}
}

// GetAccessiblePatient loads a patient and verifies the examiner's right to
// it in one call. Returns ErrForbidden when the visibility chain does not
// reach the patient, repository.ErrNotFound when the patient does not exist.
func (s *AccessService) GetAccessiblePatient(ctx context.Context, examiner *model.Examiner, patientID int) (*model.Patient, error) {
	patient, err := s.patientRepo.GetByID(ctx, patientID)
	if err != nil {
		return nil, err
	}

	if examiner.Kind == model.ExaminerKindSuperadmin {
		return patient, nil
	}
	if patient.ExaminerID == examiner.ID {
		return patient, nil
	}
	if examiner.Kind == model.ExaminerKindAdmin {
		owner, err := s.examinerRepo.GetByID(ctx, patient.ExaminerID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return nil, err
		}
		if owner != nil && owner.CreatedBy != nil && *owner.CreatedBy == examiner.ID {
			return patient, nil
		}
	}
	return nil, ErrForbidden
}

// ListVisiblePatients returns the patients inside the examiner's visibility
// chain, newest first.
func (s *AccessService) ListVisiblePatients(ctx context.Context, examiner *model.Examiner) ([]model.Patient, error) {
	if examiner.Kind == model.ExaminerKindSuperadmin {
		return s.patientRepo.ListAll(ctx)
	}

	ids := []int{examiner.ID}
	if examiner.Kind == model.ExaminerKindAdmin {
		managed, err := s.examinerRepo.ListCreatedBy(ctx, examiner.ID)
		if err != nil {
			return nil, err
		}
		ids = append(ids, managed...)
	}
	return s.patientRepo.ListByExaminers(ctx, ids)
}
