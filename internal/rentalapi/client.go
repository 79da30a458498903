package rentalapi

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// Config holds the connection settings of the rental API
type Config struct {
	BaseURL    string
	Token      string
	Timeout    time.Duration
	RetryCount int
}

// Client talks to the rental management REST API
type Client struct {
	http   *resty.Client
	logger *zap.Logger
}

// NewClient creates a new API client. Only GET requests are retried.
func NewClient(cfg Config, logger *zap.Logger) *Client {
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetHeader("Accept", "application/json").
		SetError(&APIError{})

	if cfg.Timeout > 0 {
		httpClient.SetTimeout(cfg.Timeout)
	}
	if cfg.Token != "" {
		httpClient.SetAuthToken(cfg.Token)
	}
	if cfg.RetryCount > 0 {
		httpClient.
			SetRetryCount(cfg.RetryCount).
			SetRetryWaitTime(200 * time.Millisecond).
			AddRetryCondition(func(resp *resty.Response, err error) bool {
				if resp == nil || resp.Request == nil || resp.Request.Method != http.MethodGet {
					return false
				}
				return err != nil || resp.StatusCode() >= http.StatusInternalServerError
			})
	}

	return &Client{http: httpClient, logger: logger}
}

// ListActiveContracts returns every active contract
func (c *Client) ListActiveContracts(ctx context.Context) ([]ContractSummary, error) {
	var out listEnvelope[ContractSummary]
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("status", "active").
		SetResult(&out).
		Get("/contracts")
	if err := check(resp, err, "list active contracts"); err != nil {
		return nil, err
	}

	c.logger.Debug("listed active contracts", zap.Int("count", len(out.Data)))
	return out.Data, nil
}

// ListContractServices returns the services attached to a contract
func (c *Client) ListContractServices(ctx context.Context, contractID string) ([]ServiceInstance, error) {
	var out listEnvelope[ServiceInstance]
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("contractId", contractID).
		SetResult(&out).
		Get("/contracts/{contractId}/services")
	if err := check(resp, err, "list contract services"); err != nil {
		return nil, err
	}

	c.logger.Debug("listed contract services",
		zap.String("contract_id", contractID),
		zap.Int("count", len(out.Data)),
	)
	return out.Data, nil
}

// UpdateMeterReading sends a partial reading update for one service
func (c *Client) UpdateMeterReading(ctx context.Context, contractID, serviceID string, update MeterReadingUpdate) error {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParams(map[string]string{
			"contractId": contractID,
			"serviceId":  serviceID,
		}).
		SetHeader("Content-Type", "application/json").
		SetBody(update).
		Patch("/contracts/{contractId}/services/{serviceId}/meter-reading")
	if err := check(resp, err, "update meter reading"); err != nil {
		return err
	}

	c.logger.Debug("meter reading updated",
		zap.String("contract_id", contractID),
		zap.String("service_id", serviceID),
	)
	return nil
}

// GetOrCreateInspectionReport opens the checkout inspection report of a request
func (c *Client) GetOrCreateInspectionReport(ctx context.Context, requestID string) (*Report, error) {
	var out itemEnvelope[Report]
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("requestId", requestID).
		SetResult(&out).
		Post("/maintenance-requests/{requestId}/inspection-report")
	if err := check(resp, err, "get or create inspection report"); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// SaveInspectionReport persists the report as one document
func (c *Client) SaveInspectionReport(ctx context.Context, requestID string, req SaveReportRequest) (*Report, error) {
	var out itemEnvelope[Report]
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("requestId", requestID).
		SetHeader("Content-Type", "application/json").
		SetBody(req).
		SetResult(&out).
		Put("/maintenance-requests/{requestId}/inspection-report")
	if err := check(resp, err, "save inspection report"); err != nil {
		return nil, err
	}

	c.logger.Debug("inspection report saved",
		zap.String("request_id", requestID),
		zap.Float64("total_damage_cost", out.Data.TotalDamageCost),
	)
	return &out.Data, nil
}

func check(resp *resty.Response, err error, op string) error {
	if err != nil {
		return fmt.Errorf("failed to %s: %w", op, err)
	}
	if !resp.IsError() {
		return nil
	}

	apiErr := &APIError{}
	if parsed, ok := resp.Error().(*APIError); ok && parsed != nil {
		*apiErr = *parsed
	}
	apiErr.StatusCode = resp.StatusCode()
	if apiErr.Code == "" {
		apiErr.Code = codeForStatus(resp.StatusCode())
	}
	if apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(resp.Body()))
	}
	if apiErr.Message == "" {
		apiErr.Message = resp.Status()
	}
	return fmt.Errorf("failed to %s: %w", op, apiErr)
}
