// Package businessflow contains the business logic for the application.
package businessflow

import (
	"strconv"
	"time"

	"github.com/amirphl/lead-exchange/app/dto"
	"github.com/amirphl/lead-exchange/models"
	"github.com/mssola/user_agent"
	"github.com/sirupsen/logrus"
)

const RequestIDKey = "X-Request-ID"

// ClientMetadata holds client information attached to distribution logs
type ClientMetadata struct {
	IPAddress  string            `json:"ip_address"`
	UserAgent  string            `json:"user_agent"`
	DeviceInfo map[string]string `json:"device_info,omitempty"`
	Location   *LocationInfo     `json:"location,omitempty"`
	RequestID  string            `json:"request_id,omitempty"`
	SessionID  string            `json:"session_id,omitempty"`
	Additional map[string]string `json:"additional,omitempty"`
}

// LocationInfo holds geographical location information
type LocationInfo struct {
	Country   string `json:"country,omitempty"`
	Region    string `json:"region,omitempty"`
	City      string `json:"city,omitempty"`
	Latitude  string `json:"latitude,omitempty"`
	Longitude string `json:"longitude,omitempty"`
}

// NewClientMetadata creates a new ClientMetadata instance and parses the user agent into device info
func NewClientMetadata(ipAddress, userAgent string) *ClientMetadata {
	cm := &ClientMetadata{
		IPAddress:  ipAddress,
		UserAgent:  userAgent,
		DeviceInfo: make(map[string]string),
		Additional: make(map[string]string),
	}
	if userAgent != "" {
		ua := user_agent.New(userAgent)
		name, version := ua.Browser()
		if name != "" {
			cm.AddDeviceInfo("browser", name)
		}
		if version != "" {
			cm.AddDeviceInfo("browser_version", version)
		}
		if os := ua.OS(); os != "" {
			cm.AddDeviceInfo("os", os)
		}
		cm.AddDeviceInfo("mobile", strconv.FormatBool(ua.Mobile()))
		if ua.Bot() {
			cm.AddDeviceInfo("bot", "true")
		}
	}
	return cm
}

// AddDeviceInfo adds device information to the metadata
func (cm *ClientMetadata) AddDeviceInfo(key, value string) {
	if cm.DeviceInfo == nil {
		cm.DeviceInfo = make(map[string]string)
	}
	cm.DeviceInfo[key] = value
}

// AddAdditional adds additional custom information to the metadata
func (cm *ClientMetadata) AddAdditional(key, value string) {
	if cm.Additional == nil {
		cm.Additional = make(map[string]string)
	}
	cm.Additional[key] = value
}

// SetLocation sets location information
func (cm *ClientMetadata) SetLocation(location *LocationInfo) {
	cm.Location = location
}

// SetRequestID sets the request ID
func (cm *ClientMetadata) SetRequestID(requestID string) {
	cm.RequestID = requestID
}

// SetSessionID sets the session ID
func (cm *ClientMetadata) SetSessionID(sessionID string) {
	cm.SessionID = sessionID
}

// Fields renders the metadata as log fields
func (cm *ClientMetadata) Fields() logrus.Fields {
	if cm == nil {
		return logrus.Fields{}
	}
	fields := logrus.Fields{
		"ip_address": cm.IPAddress,
	}
	if cm.RequestID != "" {
		fields["request_id"] = cm.RequestID
	}
	for k, v := range cm.DeviceInfo {
		fields["ua_"+k] = v
	}
	return fields
}

// ToDistributionAttemptDTO converts a stored attempt to its API form
func ToDistributionAttemptDTO(a *models.DistributionAttempt) dto.DistributionAttemptDTO {
	out := dto.DistributionAttemptDTO{
		ID:             a.ID,
		LeadID:         a.LeadID,
		LeadUUID:       a.LeadUUID.String(),
		AdvertiserID:   a.AdvertiserID,
		Tier:           a.Tier.String(),
		Status:         a.Status.String(),
		Response:       a.Response,
		ExternalLeadID: a.ExternalLeadID,
		AutologinURL:   a.AutologinURL,
		ErrorMessage:   a.ErrorMessage,
		DurationMs:     a.DurationMs,
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
	}
	if a.LastPolledAt != nil {
		polled := a.LastPolledAt.UTC().Format(time.RFC3339)
		out.LastPolledAt = &polled
	}
	return out
}

// ToEligibleAdvertiserDTOs converts a tier to its API form
func ToEligibleAdvertiserDTOs(tier []Candidate) []dto.EligibleAdvertiserDTO {
	out := make([]dto.EligibleAdvertiserDTO, 0, len(tier))
	for _, c := range tier {
		out = append(out, dto.EligibleAdvertiserDTO{
			AdvertiserID: c.Advertiser.ID,
			Name:         c.Advertiser.Name,
			Type:         c.Advertiser.Type,
			Weight:       c.Weight,
			PriorityType: c.Priority.String(),
		})
	}
	return out
}
