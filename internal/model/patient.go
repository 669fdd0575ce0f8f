package model

import "time"

type Patient struct {
	Base
	Name           string     `db:"name" json:"name"`
	Email          string     `db:"email" json:"email"`
	PasswordHash   string     `db:"password_hash" json:"-"`
	Timezone       string     `db:"timezone" json:"timezone"`
	CaregiverEmail *string    `db:"caregiver_email" json:"caregiver_email,omitempty"`
	LastLoginAt    *time.Time `db:"last_login_at" json:"last_login_at,omitempty"`
}

type SignupRequest struct {
	Name     string `json:"name" binding:"required,max=100" validate:"required,max=100"`
	Email    string `json:"email" binding:"required,email" validate:"required,email"`
	Password string `json:"password" binding:"required,min=8" validate:"required,min=8"`
	Timezone string `json:"timezone"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type LoginResponse struct {
	Token   string   `json:"token"`
	Patient *Patient `json:"patient"`
}
