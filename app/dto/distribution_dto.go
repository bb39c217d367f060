package dto

// TestLeadData carries a lead that is only persisted once an advertiser accepts it
type TestLeadData struct {
	FirstName   string  `json:"first_name" validate:"required,max=255"`
	LastName    string  `json:"last_name" validate:"required,max=255"`
	Email       string  `json:"email" validate:"required,email,max=255"`
	Phone       *string `json:"phone,omitempty" validate:"omitempty,max=32"`
	CountryCode *string `json:"country_code,omitempty" validate:"omitempty,len=2,alpha"`
	IP          *string `json:"ip,omitempty" validate:"omitempty,ip"`
	Custom1     *string `json:"custom1,omitempty" validate:"omitempty,max=1000"`
	Custom2     *string `json:"custom2,omitempty" validate:"omitempty,max=1000"`
	Custom3     *string `json:"custom3,omitempty" validate:"omitempty,max=1000"`
	OfferName   *string `json:"offer_name,omitempty" validate:"omitempty,max=255"`
	Comment     *string `json:"comment,omitempty" validate:"omitempty,max=2000"`
	AffiliateID *uint   `json:"affiliate_id,omitempty" validate:"omitempty,gt=0"`
}

// DistributeLeadRequest triggers a distribution run.
// Exactly one of lead_id, lead_uuid or test_mode+test_lead_data selects the lead;
// advertiser_id forces a single target and bypasses eligibility.
type DistributeLeadRequest struct {
	LeadID       *uint         `json:"lead_id,omitempty" validate:"omitempty,gt=0"`
	LeadUUID     *string       `json:"lead_uuid,omitempty" validate:"omitempty,uuid"`
	AdvertiserID *uint         `json:"advertiser_id,omitempty" validate:"omitempty,gt=0"`
	TestMode     bool          `json:"test_mode,omitempty"`
	TestLeadData *TestLeadData `json:"test_lead_data,omitempty" validate:"omitempty"`
}

// AttemptSummary is a compact view of one adapter call made during a run
type AttemptSummary struct {
	AdvertiserID   uint    `json:"advertiser_id"`
	AdvertiserName string  `json:"advertiser_name"`
	AdvertiserType string  `json:"advertiser_type"`
	Tier           string  `json:"tier"`
	Status         string  `json:"status"`
	Reason         *string `json:"reason,omitempty"`
	DurationMs     int64   `json:"duration_ms"`
}

// DistributeLeadResponse is the outcome of a distribution run
type DistributeLeadResponse struct {
	Success        bool             `json:"success"`
	Message        string           `json:"message"`
	State          string           `json:"state"`
	LeadUUID       string           `json:"lead_uuid"`
	LeadID         *uint            `json:"lead_id,omitempty"`
	AdvertiserID   *uint            `json:"advertiser_id,omitempty"`
	AdvertiserName *string          `json:"advertiser_name,omitempty"`
	ExternalLeadID *string          `json:"external_lead_id,omitempty"`
	AutologinURL   *string          `json:"autologin_url,omitempty"`
	Attempts       []AttemptSummary `json:"attempts"`
}

// EligibilityRequest asks for a dry run of the eligibility resolver for a stored lead
type EligibilityRequest struct {
	LeadID   *uint   `json:"lead_id,omitempty" validate:"omitempty,gt=0"`
	LeadUUID *string `json:"lead_uuid,omitempty" validate:"omitempty,uuid"`
}

// EligibleAdvertiserDTO is one candidate of a tier
type EligibleAdvertiserDTO struct {
	AdvertiserID uint   `json:"advertiser_id"`
	Name         string `json:"name"`
	Type         string `json:"type"`
	Weight       int    `json:"weight"`
	PriorityType string `json:"priority_type"`
}

// EligibilityResponse lists the primary and fallback tiers of a lead
type EligibilityResponse struct {
	LeadUUID    string                  `json:"lead_uuid"`
	Mode        string                  `json:"mode"`
	CountryCode string                  `json:"country_code,omitempty"`
	Primary     []EligibleAdvertiserDTO `json:"primary"`
	Fallback    []EligibleAdvertiserDTO `json:"fallback"`
}

// DistributionAttemptDTO is a stored attempt row
type DistributionAttemptDTO struct {
	ID             uint    `json:"id"`
	LeadID         *uint   `json:"lead_id,omitempty"`
	LeadUUID       string  `json:"lead_uuid"`
	AdvertiserID   uint    `json:"advertiser_id"`
	Tier           string  `json:"tier,omitempty"`
	Status         string  `json:"status"`
	Response       *string `json:"response,omitempty"`
	ExternalLeadID *string `json:"external_lead_id,omitempty"`
	AutologinURL   *string `json:"autologin_url,omitempty"`
	ErrorMessage   *string `json:"error_message,omitempty"`
	DurationMs     int64   `json:"duration_ms"`
	CreatedAt      string  `json:"created_at"`
	LastPolledAt   *string `json:"last_polled_at,omitempty"`
}

// ListAttemptsResponse is the attempt log of a lead
type ListAttemptsResponse struct {
	LeadUUID string                   `json:"lead_uuid"`
	Attempts []DistributionAttemptDTO `json:"attempts"`
}

// HealthResponse reports service and dependency health
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}
