package utils

import (
	"time"
)

// Distribution defaults
const (
	// DefaultDailyCap applies when neither the routing entry nor the advertiser sets a daily cap
	DefaultDailyCap = 100

	// DefaultWeight applies when a routing entry has no weight
	DefaultWeight = 100

	// HourlyWindow is the trailing window used for hourly caps
	HourlyWindow = time.Hour

	// DefaultResponseMaxLength bounds stored adapter responses
	DefaultResponseMaxLength = 4000

	// DefaultReasonMaxLength bounds stored rejection reasons
	DefaultReasonMaxLength = 500
)

// CORS and security constants
const (
	// CORSMaxAge is the maximum age for CORS preflight requests (24 hours)
	CORSMaxAge = 86400
)
