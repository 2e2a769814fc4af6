package api

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/formatexp/formatexp/pkg/credits"
)

var validate = validator.New()

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6,max=128"`
	Role     string `json:"role" validate:"max=60"`
	Center   string `json:"center" validate:"max=120"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token   string          `json:"token"`
	Account accountResponse `json:"account"`
}

type accountResponse struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	Email              string `json:"email"`
	Role               string `json:"role,omitempty"`
	Center             string `json:"center,omitempty"`
	Plan               string `json:"plan"`
	CreditsUsed        int    `json:"credits_used"`
	CreditsQuota       int    `json:"credits_quota"`
	CreditsRemaining   int    `json:"credits_remaining"`
	SubscriptionStatus string `json:"subscription_status"`
}

func toAccountResponse(acc *credits.Account) accountResponse {
	return accountResponse{
		ID:                 acc.ID,
		Name:               acc.Name,
		Email:              acc.Email,
		Role:               acc.Role,
		Center:             acc.Center,
		Plan:               string(acc.Plan),
		CreditsUsed:        acc.CreditsUsed,
		CreditsQuota:       credits.QuotaFor(acc.Plan),
		CreditsRemaining:   acc.Remaining(),
		SubscriptionStatus: string(acc.SubscriptionStatus),
	}
}

type generateRequest struct {
	Type       string `json:"type" validate:"required"`
	SourceText string `json:"source_text" validate:"required"`
	Difficulty string `json:"difficulty"`
	Questions  int    `json:"questions" validate:"min=0,max=100"`
	Title      string `json:"title" validate:"max=200"`
}

type generateResponse struct {
	OutputText       string            `json:"output_text"`
	Cost             int               `json:"cost"`
	CreditsUsed      int               `json:"credits_used"`
	CreditsQuota     int               `json:"credits_quota"`
	CreditsRemaining int               `json:"credits_remaining"`
	Material         *materialResponse `json:"material,omitempty"`
}

type materialResponse struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Type       string    `json:"type"`
	Difficulty string    `json:"difficulty,omitempty"`
	Questions  int       `json:"questions,omitempty"`
	Cost       int       `json:"cost"`
	OutputText string    `json:"output_text,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toMaterialResponse(rec *credits.MaterialRecord, includeOutput bool) *materialResponse {
	resp := &materialResponse{
		ID:         rec.ID,
		Title:      rec.Title,
		Type:       string(rec.Type),
		Difficulty: string(rec.Difficulty),
		Questions:  rec.Questions,
		Cost:       rec.Cost,
		CreatedAt:  rec.CreatedAt,
		UpdatedAt:  rec.UpdatedAt,
	}
	if includeOutput {
		resp.OutputText = rec.OutputText
	}
	return resp
}

type updateMaterialRequest struct {
	Title      *string `json:"title" validate:"omitempty,max=200"`
	OutputText *string `json:"output_text"`
}

type waitlistRequest struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Role    string `json:"role" validate:"max=60"`
	Center  string `json:"center" validate:"max=120"`
	Plan    string `json:"plan" validate:"max=30"`
	Consent bool   `json:"consent"`
	Source  string `json:"source" validate:"max=60"`
}

type checkoutRequest struct {
	Plan string `json:"plan" validate:"required,oneof=pro academia"`
}

type checkoutResponse struct {
	URL string `json:"url"`
}
