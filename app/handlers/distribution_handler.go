package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/amirphl/lead-exchange/app/dto"
	businessflow "github.com/amirphl/lead-exchange/business_flow"
	"github.com/amirphl/lead-exchange/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/sirupsen/logrus"
)

// DistributionHandlerInterface defines the contract for distribution handlers
type DistributionHandlerInterface interface {
	Distribute(c fiber.Ctx) error
	Eligibility(c fiber.Ctx) error
	ListAttempts(c fiber.Ctx) error
}

// DistributionHandler handles lead distribution HTTP requests
type DistributionHandler struct {
	flow      businessflow.DistributionFlow
	validator *validator.Validate
	timeout   time.Duration
	logger    logrus.FieldLogger
}

// NewDistributionHandler creates a new distribution handler
func NewDistributionHandler(flow businessflow.DistributionFlow, timeout time.Duration, logger logrus.FieldLogger) *DistributionHandler {
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &DistributionHandler{
		flow:      flow,
		validator: validator.New(),
		timeout:   timeout,
		logger:    logger,
	}
}

func (h *DistributionHandler) ErrorResponse(c fiber.Ctx, statusCode int, message, errorCode string, details any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: false,
		Message: message,
		Error: dto.ErrorDetail{
			Code:    errorCode,
			Details: details,
		},
	})
}

func (h *DistributionHandler) SuccessResponse(c fiber.Ctx, statusCode int, message string, data any) error {
	return c.Status(statusCode).JSON(dto.APIResponse{
		Success: true,
		Message: message,
		Data:    data,
	})
}

// Distribute Lead
// @Summary Distribute a lead
// @Description Route a stored lead, force a resend to one advertiser, or submit a test-mode lead that is stored only when accepted. Business outcomes are returned with status 200.
// @Tags Distribution
// @Accept json
// @Produce json
// @Param request body dto.DistributeLeadRequest true "Distribution trigger"
// @Success 200 {object} dto.APIResponse{data=dto.DistributeLeadResponse} "Distribution finished"
// @Failure 400 {object} dto.APIResponse "Validation error or invalid trigger"
// @Failure 404 {object} dto.APIResponse "Lead, advertiser or affiliate not found"
// @Failure 409 {object} dto.APIResponse "Lead already distributed"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/distribution/distribute [post]
func (h *DistributionHandler) Distribute(c fiber.Ctx) error {
	var req dto.DistributeLeadRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.validationError(c, err)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/distribution/distribute")
	defer cancel()

	result, err := h.flow.Distribute(ctx, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to distribute lead", "DISTRIBUTION_FAILED")
	}

	// Both outcomes use 200; success mirrors the business result.
	return c.Status(fiber.StatusOK).JSON(dto.APIResponse{
		Success: result.Success,
		Message: result.Message,
		Data:    result,
	})
}

// Eligibility preview
// @Summary Preview lead eligibility
// @Description Resolve the primary and fallback advertiser tiers of a stored lead without sending it
// @Tags Distribution
// @Accept json
// @Produce json
// @Param request body dto.EligibilityRequest true "Lead reference"
// @Success 200 {object} dto.APIResponse{data=dto.EligibilityResponse} "Eligibility resolved"
// @Failure 400 {object} dto.APIResponse "Validation error"
// @Failure 404 {object} dto.APIResponse "Lead or affiliate not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/distribution/eligibility [post]
func (h *DistributionHandler) Eligibility(c fiber.Ctx) error {
	var req dto.EligibilityRequest
	if err := c.Bind().JSON(&req); err != nil {
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid request body", "INVALID_REQUEST", err.Error())
	}

	if err := h.validator.Struct(&req); err != nil {
		return h.validationError(c, err)
	}

	ctx, cancel := h.createRequestContext(c, "/api/v1/distribution/eligibility")
	defer cancel()

	result, err := h.flow.Eligibility(ctx, &req, h.metadata(c))
	if err != nil {
		return h.flowError(c, err, "Failed to resolve eligibility", "ELIGIBILITY_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Eligibility resolved", result)
}

// ListAttempts of a lead
// @Summary List distribution attempts
// @Description List every advertiser delivery attempt recorded for a lead
// @Tags Distribution
// @Produce json
// @Param uuid path string true "Lead UUID"
// @Success 200 {object} dto.APIResponse{data=dto.ListAttemptsResponse} "Attempts retrieved"
// @Failure 400 {object} dto.APIResponse "Invalid lead uuid"
// @Failure 404 {object} dto.APIResponse "Lead not found"
// @Failure 500 {object} dto.APIResponse "Internal server error"
// @Router /api/v1/distribution/leads/{uuid}/attempts [get]
func (h *DistributionHandler) ListAttempts(c fiber.Ctx) error {
	leadUUID := c.Params("uuid")

	ctx, cancel := h.createRequestContext(c, "/api/v1/distribution/leads/"+leadUUID+"/attempts")
	defer cancel()

	result, err := h.flow.ListAttempts(ctx, leadUUID)
	if err != nil {
		return h.flowError(c, err, "Failed to list attempts", "LIST_ATTEMPTS_FAILED")
	}

	return h.SuccessResponse(c, fiber.StatusOK, "Attempts retrieved successfully", result)
}

func (h *DistributionHandler) validationError(c fiber.Ctx, err error) error {
	var validationErrors []string
	var fieldErrors validator.ValidationErrors
	if errors.As(err, &fieldErrors) {
		for _, fe := range fieldErrors {
			validationErrors = append(validationErrors, getValidationErrorMessage(fe))
		}
	}
	return h.ErrorResponse(c, fiber.StatusBadRequest, "Validation failed", "VALIDATION_ERROR", validationErrors)
}

// flowError maps flow errors to HTTP statuses
func (h *DistributionHandler) flowError(c fiber.Ctx, err error, fallbackMessage, fallbackCode string) error {
	switch {
	case businessflow.IsInvalidTrigger(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid distribution trigger", "INVALID_TRIGGER", err.Error())
	case businessflow.IsTestLeadDataRequired(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "test_lead_data is required in test mode", "TEST_LEAD_DATA_REQUIRED", nil)
	case businessflow.IsInvalidLeadUUID(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Invalid lead uuid", "INVALID_LEAD_UUID", nil)
	case businessflow.IsAdvertiserInactive(err):
		return h.ErrorResponse(c, fiber.StatusBadRequest, "Advertiser is inactive", "ADVERTISER_INACTIVE", nil)
	case businessflow.IsLeadNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Lead not found", "LEAD_NOT_FOUND", nil)
	case businessflow.IsAdvertiserNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Advertiser not found", "ADVERTISER_NOT_FOUND", nil)
	case businessflow.IsAffiliateNotFound(err):
		return h.ErrorResponse(c, fiber.StatusNotFound, "Affiliate not found", "AFFILIATE_NOT_FOUND", nil)
	case businessflow.IsLeadAlreadyDistributed(err):
		return h.ErrorResponse(c, fiber.StatusConflict, "Lead already distributed", "LEAD_ALREADY_DISTRIBUTED", nil)
	}

	code := fallbackCode
	var be *businessflow.BusinessError
	if errors.As(err, &be) && be.Code != "" {
		code = be.Code
	}
	h.logger.WithError(err).WithFields(logrus.Fields{
		"path":       c.Path(),
		"request_id": requestID(c),
		"code":       code,
	}).Error(fallbackMessage)
	return h.ErrorResponse(c, fiber.StatusInternalServerError, fallbackMessage, code, nil)
}

func (h *DistributionHandler) metadata(c fiber.Ctx) *businessflow.ClientMetadata {
	metadata := businessflow.NewClientMetadata(c.IP(), c.Get("User-Agent"))
	metadata.SetRequestID(requestID(c))
	return metadata
}

// requestID prefers the caller's id and falls back to the one generated by the requestid middleware
func requestID(c fiber.Ctx) string {
	if id := c.Get(businessflow.RequestIDKey); id != "" {
		return id
	}
	return c.GetRespHeader(businessflow.RequestIDKey)
}

func (h *DistributionHandler) createRequestContext(c fiber.Ctx, endpoint string) (context.Context, context.CancelFunc) {
	return h.createRequestContextWithTimeout(c, endpoint, h.timeout)
}

func (h *DistributionHandler) createRequestContextWithTimeout(c fiber.Ctx, endpoint string, timeout time.Duration) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	ctx = context.WithValue(ctx, utils.RequestIDKey, requestID(c))
	ctx = context.WithValue(ctx, utils.UserAgentKey, c.Get("User-Agent"))
	ctx = context.WithValue(ctx, utils.IPAddressKey, c.IP())
	ctx = context.WithValue(ctx, utils.EndpointKey, endpoint)
	ctx = context.WithValue(ctx, utils.TimeoutKey, timeout)
	ctx = context.WithValue(ctx, utils.CancelFuncKey, cancel)
	return ctx, cancel
}
