package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/medtrack/adherence-api/internal/model"
	"github.com/medtrack/adherence-api/internal/repository"
	"github.com/medtrack/adherence-api/pkg/auth"
	apperrors "github.com/medtrack/adherence-api/pkg/errors"
	"github.com/medtrack/adherence-api/pkg/logger"
	"github.com/medtrack/adherence-api/pkg/security"
	"github.com/medtrack/adherence-api/pkg/validator"
)

type Service struct {
	patients repository.PatientRepository
	hasher   security.PasswordHasher
	jwt      auth.JWTService
	validate *validator.Validator
	logger   *logger.Logger
}

func NewService(
	patients repository.PatientRepository,
	hasher security.PasswordHasher,
	jwt auth.JWTService,
	logger *logger.Logger,
) *Service {
	return &Service{
		patients: patients,
		hasher:   hasher,
		jwt:      jwt,
		validate: validator.New(),
		logger:   logger,
	}
}

func (s *Service) Signup(ctx context.Context, req *model.SignupRequest) (*model.LoginResponse, error) {
	if err := s.validate.Validate(req); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	if _, err := s.patients.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperrors.Conflict("email already registered", nil)
	} else if !apperrors.IsNotFound(err) {
		return nil, fmt.Errorf("failed to check email: %w", err)
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, apperrors.BadRequest("invalid password", err)
	}

	tz := req.Timezone
	if tz == "" {
		tz = "UTC"
	}
	if _, err := time.LoadLocation(tz); err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("unknown timezone %q", tz), err)
	}

	patient := &model.Patient{
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
		Timezone:     tz,
	}
	if err := s.patients.Create(ctx, patient); err != nil {
		return nil, fmt.Errorf("failed to create patient: %w", err)
	}

	token, err := s.jwt.GenerateToken(patient.ID, patient.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.LoginResponse{Token: token, Patient: patient}, nil
}

func (s *Service) Login(ctx context.Context, req *model.LoginRequest) (*model.LoginResponse, error) {
	patient, err := s.patients.GetByEmail(ctx, req.Email)
	if err != nil {
		if apperrors.IsNotFound(err) {
			return nil, apperrors.Unauthorized(nil)
		}
		return nil, fmt.Errorf("failed to load patient: %w", err)
	}

	if err := s.hasher.Compare(patient.PasswordHash, req.Password); err != nil {
		return nil, apperrors.Unauthorized(nil)
	}

	now := time.Now()
	patient.LastLoginAt = &now
	if err := s.patients.Update(ctx, patient); err != nil {
		s.logger.Error(err, "failed to record login time",
			"patient_id", patient.ID.String())
	}

	token, err := s.jwt.GenerateToken(patient.ID, patient.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}
	return &model.LoginResponse{Token: token, Patient: patient}, nil
}
