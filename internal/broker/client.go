package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/0xhank/casper/internal/infrastructure/config"
	"github.com/0xhank/casper/internal/infrastructure/monitoring"
	"github.com/0xhank/casper/internal/infrastructure/resilience"
)

// Broker exposes the external tool platform: connection management, action
// discovery, and action execution. Implementations treat the platform as a
// black box keyed by entity id.
type Broker interface {
	// GetConnection returns the entity's connection for an app, or
	// ErrNotConnected when none exists.
	GetConnection(ctx context.Context, entityID, appName string) (*Connection, error)

	// ListConnections returns every connection the entity holds.
	ListConnections(ctx context.Context, entityID string) ([]Connection, error)

	// InitiateConnection starts an authorization round-trip for an app and
	// returns the URL the user must visit to complete it.
	InitiateConnection(ctx context.Context, entityID, appName string) (string, error)

	// GetActions resolves action names to their full definitions.
	GetActions(ctx context.Context, actions []string) ([]ActionDefinition, error)

	// ExecuteAction runs one action with the given arguments on behalf of
	// the entity and returns the platform's raw response.
	ExecuteAction(ctx context.Context, entityID, action string, args json.RawMessage) (*InvocationResult, error)
}

// Composio is the REST implementation of Broker
type Composio struct {
	rest    *resty.Client
	breaker *resilience.Breaker
	metrics *monitoring.Metrics
	logger  *zap.Logger
}

var _ Broker = (*Composio)(nil)

// NewComposio creates a broker client from configuration
func NewComposio(cfg config.BrokerConfig, metrics *monitoring.Metrics, logger *zap.Logger) *Composio {
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(30 * time.Second).
		SetHeader("X-API-Key", cfg.APIKey).
		SetHeader("Content-Type", "application/json")

	breaker := resilience.New("tool-broker", resilience.Settings{
		MaxRequests: 5,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= 10 ||
				(counts.Requests >= 20 && float64(counts.TotalFailures)/float64(counts.Requests) > 0.7)
		},
	})

	return &Composio{
		rest:    rest,
		breaker: breaker,
		metrics: metrics,
		logger:  logger.Named("broker"),
	}
}

type connectionEnvelope struct {
	Items []connectionRecord `json:"items"`
}

type connectionRecord struct {
	ID       string `json:"id"`
	AppName  string `json:"appName"`
	EntityID string `json:"entityId"`
	Status   string `json:"status"`
}

// GetConnection looks up the entity's connection to one app
func (c *Composio) GetConnection(ctx context.Context, entityID, appName string) (*Connection, error) {
	resp, err := c.execute(ctx, "get_connection", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("entityId", entityID).
			SetQueryParam("appNames", appName).
			Get("/connectedAccounts")
	})
	if err != nil {
		return nil, err
	}

	var envelope connectionEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}

	for _, record := range envelope.Items {
		if record.AppName != appName {
			continue
		}
		return &Connection{
			ID:       record.ID,
			AppName:  record.AppName,
			EntityID: record.EntityID,
			Status:   record.Status,
		}, nil
	}
	return nil, ErrNotConnected
}

// ListConnections returns every connection the entity holds
func (c *Composio) ListConnections(ctx context.Context, entityID string) ([]Connection, error) {
	resp, err := c.execute(ctx, "list_connections", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("entityId", entityID).
			Get("/connectedAccounts")
	})
	if err != nil {
		return nil, err
	}

	var envelope connectionEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode connections: %w", err)
	}

	connections := make([]Connection, 0, len(envelope.Items))
	for _, record := range envelope.Items {
		connections = append(connections, Connection{
			ID:       record.ID,
			AppName:  record.AppName,
			EntityID: record.EntityID,
			Status:   record.Status,
		})
	}
	return connections, nil
}

type initiateRequest struct {
	EntityID string `json:"entityId"`
	AppName  string `json:"appName"`
}

type initiateResponse struct {
	RedirectURL string `json:"redirectUrl"`
}

// InitiateConnection starts an authorization round-trip for the app
func (c *Composio) InitiateConnection(ctx context.Context, entityID, appName string) (string, error) {
	resp, err := c.execute(ctx, "initiate_connection", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(initiateRequest{EntityID: entityID, AppName: appName}).
			Post("/connectedAccounts")
	})
	if err != nil {
		return "", err
	}

	var initiated initiateResponse
	if err := json.Unmarshal(resp.Body(), &initiated); err != nil {
		return "", fmt.Errorf("failed to decode initiation response: %w", err)
	}
	if initiated.RedirectURL == "" {
		return "", fmt.Errorf("broker returned no redirect url for %s", appName)
	}

	c.logger.Info("connection initiated",
		zap.String("entity_id", entityID),
		zap.String("app", appName),
	)
	return initiated.RedirectURL, nil
}

type actionsEnvelope struct {
	Items []ActionDefinition `json:"items"`
}

// GetActions resolves action names to their full definitions
func (c *Composio) GetActions(ctx context.Context, actions []string) ([]ActionDefinition, error) {
	if len(actions) == 0 {
		return nil, nil
	}

	resp, err := c.execute(ctx, "get_actions", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetQueryParam("actions", strings.Join(actions, ",")).
			Get("/actions")
	})
	if err != nil {
		return nil, err
	}

	var envelope actionsEnvelope
	if err := json.Unmarshal(resp.Body(), &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode actions: %w", err)
	}
	return envelope.Items, nil
}

type executeRequest struct {
	EntityID  string          `json:"entityId"`
	Input     json.RawMessage `json:"input"`
	RequestID string          `json:"requestId"`
}

// ExecuteAction runs one action on behalf of the entity
func (c *Composio) ExecuteAction(ctx context.Context, entityID, action string, args json.RawMessage) (*InvocationResult, error) {
	if len(args) == 0 {
		args = json.RawMessage("{}")
	}

	body := executeRequest{
		EntityID:  entityID,
		Input:     args,
		RequestID: uuid.NewString(),
	}

	start := time.Now()
	resp, err := c.execute(ctx, "execute_action", func(r *resty.Request) (*resty.Response, error) {
		return r.
			SetBody(body).
			Post("/actions/" + action + "/execute")
	})
	if err != nil {
		c.metrics.RecordToolInvocation(action, "error")
		return nil, err
	}

	c.metrics.RecordToolInvocation(action, "ok")
	c.logger.Debug("action executed",
		zap.String("action", action),
		zap.String("entity_id", entityID),
		zap.Duration("duration", time.Since(start)),
	)

	return &InvocationResult{
		Action:   action,
		Response: json.RawMessage(resp.Body()),
	}, nil
}

// execute performs one REST round with breaker protection and records the
// outcome. Requests are never retried; a failed round surfaces immediately.
func (c *Composio) execute(ctx context.Context, operation string, fn func(*resty.Request) (*resty.Response, error)) (*resty.Response, error) {
	result, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := fn(c.rest.R().SetContext(ctx))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() >= http.StatusBadRequest {
			return nil, fmt.Errorf("broker %s returned %d: %s", operation, resp.StatusCode(), resp.String())
		}
		return resp, nil
	})

	if err == resilience.ErrCircuitOpen {
		c.metrics.RecordBrokerCall(operation, "circuit_open")
		return nil, fmt.Errorf("tool broker unavailable: circuit breaker open")
	}
	if err != nil {
		c.metrics.RecordBrokerCall(operation, "error")
		c.logger.Error("broker call failed",
			zap.String("operation", operation),
			zap.Error(err),
		)
		return nil, err
	}

	c.metrics.RecordBrokerCall(operation, "ok")
	return result.(*resty.Response), nil
}
