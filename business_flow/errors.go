// Package businessflow contains the lead routing use cases: eligibility, selection and distribution
package businessflow

import (
	"errors"
	"fmt"
)

// Business flow error constants
var (
	// Lookup errors
	ErrLeadNotFound       = errors.New("lead not found")
	ErrAdvertiserNotFound = errors.New("advertiser not found")
	ErrAffiliateNotFound  = errors.New("affiliate not found")

	// Trigger errors
	ErrInvalidTrigger         = errors.New("invalid distribution trigger")
	ErrInvalidLeadUUID        = errors.New("invalid lead uuid")
	ErrTestLeadDataRequired   = errors.New("test lead data is required in test mode")
	ErrLeadAlreadyDistributed = errors.New("lead already distributed")
	ErrAdvertiserInactive     = errors.New("advertiser is inactive")

	// Distribution outcomes
	ErrNoEligibleAdvertisers = errors.New("no eligible advertisers")
	ErrAllCandidatesFailed   = errors.New("all eligible advertisers rejected the lead")

	// Persistence
	ErrLeadPersistFailed = errors.New("lead accepted by advertiser but could not be stored")
)

type BusinessError struct {
	Code    string
	Message string
	Err     error
}

func (e *BusinessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *BusinessError) Unwrap() error {
	return e.Err
}

func NewBusinessError(code, message string, err error) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func NewBusinessErrorf(code, message string, err error, args ...any) *BusinessError {
	return &BusinessError{
		Code:    code,
		Message: fmt.Sprintf(message, args...),
		Err:     err,
	}
}

func IsLeadNotFound(err error) bool {
	return errors.Is(err, ErrLeadNotFound)
}

func IsAdvertiserNotFound(err error) bool {
	return errors.Is(err, ErrAdvertiserNotFound)
}

func IsAffiliateNotFound(err error) bool {
	return errors.Is(err, ErrAffiliateNotFound)
}

func IsInvalidTrigger(err error) bool {
	return errors.Is(err, ErrInvalidTrigger)
}

func IsInvalidLeadUUID(err error) bool {
	return errors.Is(err, ErrInvalidLeadUUID)
}

func IsTestLeadDataRequired(err error) bool {
	return errors.Is(err, ErrTestLeadDataRequired)
}

func IsLeadAlreadyDistributed(err error) bool {
	return errors.Is(err, ErrLeadAlreadyDistributed)
}

func IsAdvertiserInactive(err error) bool {
	return errors.Is(err, ErrAdvertiserInactive)
}

func IsNoEligibleAdvertisers(err error) bool {
	return errors.Is(err, ErrNoEligibleAdvertisers)
}

func IsAllCandidatesFailed(err error) bool {
	return errors.Is(err, ErrAllCandidatesFailed)
}

func IsLeadPersistFailed(err error) bool {
	return errors.Is(err, ErrLeadPersistFailed)
}

// IsNotFound reports whether err is any of the lookup errors
func IsNotFound(err error) bool {
	return IsLeadNotFound(err) || IsAdvertiserNotFound(err) || IsAffiliateNotFound(err)
}
