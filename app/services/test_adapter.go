package services

import (
	"context"
	"fmt"

	"github.com/amirphl/lead-exchange/models"
)

// TestAdapter accepts every lead without any network call
type TestAdapter struct{}

func NewTestAdapter() *TestAdapter { return &TestAdapter{} }

func (a *TestAdapter) Type() string { return models.AdvertiserTypeTest }

func (a *TestAdapter) Send(_ context.Context, lead *models.Lead, _ *models.Advertiser) (*SendOutcome, error) {
	id := "test-" + lead.UUID.String()
	return &SendOutcome{
		Success:        true,
		Response:       fmt.Sprintf(`{"status":"ok","test":true,"lead_id":%q}`, id),
		ExternalLeadID: id,
		StatusCode:     200,
	}, nil
}
