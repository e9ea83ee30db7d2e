package providers

import (
	"regexp"
	"strings"
	"time"
)

// Status is the claim/verification state of a provider listing.
type Status string

const (
	StatusUnverified Status = "UNVERIFIED"
	StatusVerified   Status = "VERIFIED"
)

// DefaultServiceRadiusMiles applies when a provider never set a radius.
const DefaultServiceRadiusMiles = 25

// Coverage is one declared service area: a state, optionally narrowed to cities.
type Coverage struct {
	State  string   `json:"state"`
	Cities []string `json:"cities,omitempty"`
}

// Provider is a phlebotomy business listed in the directory.
type Provider struct {
	ID                 string     `json:"id"`
	Name               string     `json:"name"`
	Slug               string     `json:"slug"`
	Email              string     `json:"email,omitempty"`
	Phone              string     `json:"phone,omitempty"`
	ClaimEmail         string     `json:"-"`
	NotificationEmail  string     `json:"notification_email,omitempty"`
	Website            string     `json:"website,omitempty"`
	PrimaryCity        string     `json:"primary_city,omitempty"`
	PrimaryState       string     `json:"primary_state,omitempty"`
	ZIPCodes           string     `json:"zip_codes,omitempty"`
	ServiceRadiusMiles int        `json:"service_radius_miles"`
	Nationwide         bool       `json:"nationwide"`
	Coverage           []Coverage `json:"coverage,omitempty"`
	EligibleForLeads   bool       `json:"eligible_for_leads"`
	IsPhlebotomy       bool       `json:"is_phlebotomy"`
	NotifySMS          bool       `json:"notify_sms"`
	NotifyEmail        bool       `json:"notify_email"`
	Schedule           Schedule   `json:"schedule"`
	Status             Status     `json:"status"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// NotificationAddress picks the email a routed lead is sent to.
func (p *Provider) NotificationAddress() string {
	for _, addr := range []string{p.NotificationEmail, p.ClaimEmail, p.Email} {
		if addr = strings.TrimSpace(addr); addr != "" {
			return addr
		}
	}
	return ""
}

// RadiusMiles returns the service radius with the default applied.
func (p *Provider) RadiusMiles() float64 {
	if p.ServiceRadiusMiles <= 0 {
		return DefaultServiceRadiusMiles
	}
	return float64(p.ServiceRadiusMiles)
}

// CreateProviderRequest carries the fields needed to list a new provider.
type CreateProviderRequest struct {
	Name               string
	Email              string
	Phone              string
	ClaimEmail         string
	NotificationEmail  string
	Website            string
	PrimaryCity        string
	PrimaryState       string
	ZIPCodes           string
	ServiceRadiusMiles int
	Nationwide         bool
	Coverage           []Coverage
	EligibleForLeads   bool
	IsPhlebotomy       bool
	NotifySMS          bool
	NotifyEmail        bool
	Schedule           Schedule
	Status             Status
}

// Validate validates the create provider request
func (r *CreateProviderRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return ErrInvalidName
	}
	if r.ServiceRadiusMiles != 0 && (r.ServiceRadiusMiles < 1 || r.ServiceRadiusMiles > 200) {
		return ErrInvalidRadius
	}
	if len(r.Schedule.Days) > 0 {
		if err := r.Schedule.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (r *CreateProviderRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	if r.ServiceRadiusMiles == 0 {
		r.ServiceRadiusMiles = DefaultServiceRadiusMiles
	}
	if r.Status == "" {
		r.Status = StatusUnverified
	}
}

// Settings is the provider self-service availability block.
type Settings struct {
	Schedule           Schedule `json:"schedule"`
	ServiceRadiusMiles int      `json:"service_radius_miles"`
}

// Validate mirrors the provider settings form rules.
func (s Settings) Validate() error {
	if len(s.Schedule.Days) == 0 || s.Schedule.Start == "" || s.Schedule.End == "" {
		return ErrScheduleRequired
	}
	if s.ServiceRadiusMiles < 1 || s.ServiceRadiusMiles > 200 {
		return ErrInvalidRadius
	}
	return s.Schedule.Validate()
}

var slugUnsafe = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify builds the URL-safe slug for a provider name.
func Slugify(name string) string {
	slug := slugUnsafe.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
