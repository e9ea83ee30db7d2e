package submissions

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Status tracks the admin review of a submission.
type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Submission is a provider self-registration waiting for admin review.
type Submission struct {
	ID           string     `json:"id"`
	BusinessName string     `json:"businessName"`
	ContactName  string     `json:"contactName"`
	Email        string     `json:"email"`
	Phone        string     `json:"phone"`
	Website      string     `json:"website,omitempty"`
	Description  string     `json:"description"`
	Address      string     `json:"address,omitempty"`
	City         string     `json:"city"`
	State        string     `json:"state"`
	ZIPCode      string     `json:"zipCode,omitempty"`
	ServiceArea  string     `json:"serviceArea,omitempty"`
	Status       Status     `json:"status"`
	ProviderID   *string    `json:"providerId,omitempty"`
	SubmittedAt  time.Time  `json:"submittedAt"`
	ReviewedAt   *time.Time `json:"reviewedAt,omitempty"`
}

// CreateRequest is the public listing application form.
type CreateRequest struct {
	BusinessName string `json:"businessName" validate:"required,min=2"`
	ContactName  string `json:"contactName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"required,min=7"`
	Website      string `json:"website"`
	Description  string `json:"description" validate:"required"`
	Address      string `json:"address"`
	City         string `json:"city" validate:"required"`
	State        string `json:"state" validate:"required,len=2"`
	ZIPCode      string `json:"zipCode" validate:"omitempty,min=5"`
	ServiceArea  string `json:"serviceArea"`
}

func (r *CreateRequest) Validate() error {
	r.BusinessName = strings.TrimSpace(r.BusinessName)
	r.ContactName = strings.TrimSpace(r.ContactName)
	r.Email = strings.TrimSpace(r.Email)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Website = strings.TrimSpace(r.Website)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.ZIPCode = strings.TrimSpace(r.ZIPCode)
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

var (
	ErrSubmissionNotFound = errors.New("submission not found")
	ErrNotPending         = errors.New("submission already reviewed")
	ErrInvalidSubmission  = errors.New("invalid submission")

	// ErrVerifiedConflict means a verified provider already owns the
	// submission's email or phone.
	ErrVerifiedConflict = errors.New("verified provider conflict")

	// ErrDuplicate means the business is already pending or listed.
	ErrDuplicate = errors.New("duplicate submission")
)

// ConflictError names the record a submission collides with.
type ConflictError struct {
	Err        error
	Name       string
	ProviderID string
	Field      string
}

func (e *ConflictError) Error() string {
	if errors.Is(e.Err, ErrVerifiedConflict) {
		return fmt.Sprintf("a verified provider already uses this %s: %s", e.Field, e.Name)
	}
	return fmt.Sprintf("already submitted or listed (%s match): %s", e.Field, e.Name)
}

func (e *ConflictError) Unwrap() error { return e.Err }

var validate = func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}()

// FieldError is one failed rule on the application form.
type FieldError struct {
	Field string `json:"field"`
	Rule  string `json:"rule"`
}

// ValidationError unwraps to ErrInvalidSubmission.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" ("+f.Rule+")")
	}
	return "invalid submission: " + strings.Join(parts, ", ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidSubmission }

func validationError(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalidSubmission, err)
	}
	out := &ValidationError{}
	for _, fe := range verrs {
		out.Fields = append(out.Fields, FieldError{Field: fe.Field(), Rule: fe.Tag()})
	}
	return out
}
