package leads

import (
	"strings"
	"time"
)

// Urgency is the patient-selected service speed. It drives the lead price.
type Urgency string

const (
	UrgencyStandard Urgency = "STANDARD"
	UrgencyStat     Urgency = "STAT"
)

// Status is the linear lead lifecycle: OPEN -> CLAIMED -> DELIVERED.
type Status string

const (
	StatusOpen      Status = "OPEN"
	StatusClaimed   Status = "CLAIMED"
	StatusDelivered Status = "DELIVERED"
)

func (s Status) rank() int {
	switch s {
	case StatusClaimed:
		return 1
	case StatusDelivered:
		return 2
	default:
		return 0
	}
}

// Outcome records why a lead ended up where it did. It is independent of Status.
type Outcome string

const (
	OutcomeAppointmentBooked    Outcome = "APPOINTMENT_BOOKED"
	OutcomeAppointmentCompleted Outcome = "APPOINTMENT_COMPLETED"
	OutcomeNoAnswer             Outcome = "NO_ANSWER"
	OutcomeVoicemail            Outcome = "VOICEMAIL"
	OutcomeDeclined             Outcome = "DECLINED"
	OutcomeNotInterested        Outcome = "NOT_INTERESTED"
	OutcomeWrongNumber          Outcome = "WRONG_NUMBER"
	OutcomeDuplicate            Outcome = "DUPLICATE"
	OutcomeOutsideServiceArea   Outcome = "OUTSIDE_SERVICE_AREA"
	OutcomeNoAvailability       Outcome = "NO_AVAILABILITY"
	OutcomeWrongService         Outcome = "WRONG_SERVICE"
	OutcomeScheduledCallback    Outcome = "SCHEDULED_CALLBACK"
)

var knownOutcomes = map[Outcome]struct{}{
	OutcomeAppointmentBooked: {}, OutcomeAppointmentCompleted: {}, OutcomeNoAnswer: {},
	OutcomeVoicemail: {}, OutcomeDeclined: {}, OutcomeNotInterested: {}, OutcomeWrongNumber: {},
	OutcomeDuplicate: {}, OutcomeOutsideServiceArea: {}, OutcomeNoAvailability: {},
	OutcomeWrongService: {}, OutcomeScheduledCallback: {},
}

// Valid reports whether o is one of the recorded outcome values.
func (o Outcome) Valid() bool {
	_, ok := knownOutcomes[o]
	return ok
}

// Lead is one patient service request.
type Lead struct {
	ID         string  `json:"id"`
	FullName   string  `json:"full_name"`
	Phone      string  `json:"phone"`
	Email      string  `json:"email,omitempty"`
	Address1   string  `json:"address1,omitempty"`
	City       string  `json:"city"`
	State      string  `json:"state"`
	ZIP        string  `json:"zip"`
	Urgency    Urgency `json:"urgency"`
	Notes      string  `json:"notes,omitempty"`
	Source     string  `json:"source"`
	PriceCents int     `json:"price_cents"`

	RoutedToID *string    `json:"routed_to_id,omitempty"`
	RoutedAt   *time.Time `json:"routed_at,omitempty"`

	ClaimedAt      *time.Time `json:"claimed_at,omitempty"`
	FirstContactAt *time.Time `json:"first_contact_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`

	Status        Status   `json:"status"`
	Outcome       *Outcome `json:"outcome,omitempty"`
	OutcomeNotes  string   `json:"outcome_notes,omitempty"`
	ProviderNotes string   `json:"provider_notes,omitempty"`
	CallAttempts  int      `json:"call_attempts"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// RoutedTo returns the routed provider id or "".
func (l *Lead) RoutedTo() string {
	if l.RoutedToID == nil {
		return ""
	}
	return *l.RoutedToID
}

// CreateLeadRequest represents the patient submission form
type CreateLeadRequest struct {
	FullName string  `json:"fullName" validate:"required,min=2"`
	Phone    string  `json:"phone" validate:"required,min=7"`
	Email    string  `json:"email" validate:"omitempty,email"`
	Address1 string  `json:"address1"`
	City     string  `json:"city" validate:"required"`
	State    string  `json:"state" validate:"required,len=2"`
	ZIP      string  `json:"zip" validate:"required,min=5"`
	Urgency  Urgency `json:"urgency" validate:"required,oneof=STANDARD STAT"`
	Notes    string  `json:"notes"`

	Source     string `json:"-"`
	PriceCents int    `json:"-"`
}

// Validate validates the create lead request
func (r *CreateLeadRequest) Validate() error {
	r.FullName = strings.TrimSpace(r.FullName)
	r.Phone = strings.TrimSpace(r.Phone)
	r.Email = strings.TrimSpace(r.Email)
	r.City = strings.TrimSpace(r.City)
	r.State = strings.ToUpper(strings.TrimSpace(r.State))
	r.ZIP = strings.TrimSpace(r.ZIP)
	r.Urgency = Urgency(strings.ToUpper(strings.TrimSpace(string(r.Urgency))))
	if err := validate.Struct(r); err != nil {
		return validationError(err)
	}
	return nil
}

// Pricing maps urgency to the per-lead charge.
type Pricing struct {
	StandardCents int
	StatCents     int
}

// DefaultPricing matches the published lead prices.
var DefaultPricing = Pricing{StandardCents: 2000, StatCents: 5000}

// PriceFor returns the charge for a lead of the given urgency.
func (p Pricing) PriceFor(u Urgency) int {
	if u == UrgencyStat {
		return p.StatCents
	}
	return p.StandardCents
}

// ListFilter narrows admin listings.
type ListFilter struct {
	Status     Status
	RoutedToID string
	Limit      int
	Offset     int
}
