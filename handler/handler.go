package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"github.com/google/uuid"

	"fallback-chat/internal/domain"
	"fallback-chat/internal/usecase"
)

const correlationHeader = "X-Correlation-Id"

// Generator is the use case behind both transports.
type Generator interface {
	Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error)
}

type generateRequest struct {
	Message string            `json:"message"`
	History []domain.ChatTurn `json:"history"`
	Image   string            `json:"image"`
}

type generateResponse struct {
	Response  string `json:"response"`
	Source    string `json:"source"`
	Model     string `json:"model,omitempty"`
	RequestID string `json:"requestId"`
	Failed    bool   `json:"failed"`
}

type errorResponse struct {
	Error  string `json:"error"`
	Reason string `json:"reason,omitempty"`
}

type Handler struct {
	generator Generator
	logger    *slog.Logger
}

func NewHandler(generator Generator, logger *slog.Logger) (*Handler, error) {
	if generator == nil {
		return nil, errors.New("handler: generator must not be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{generator: generator, logger: logger}, nil
}

var newCorrelationID = func() string {
	return uuid.NewString()
}

// Handle serves API Gateway proxy events for POST /generate.
func (h *Handler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	correlationID := headerValue(event.Headers, correlationHeader)
	if correlationID == "" {
		correlationID = newCorrelationID()
	}

	status, payload := h.process(ctx, correlationID, []byte(event.Body))
	body, err := json.Marshal(payload)
	if err != nil {
		h.logger.ErrorContext(ctx, "marshal response", "correlation_id", correlationID, "err", err)
		status = http.StatusInternalServerError
		body = []byte(`{"error":"INTERNAL_ERROR"}`)
	}
	return events.APIGatewayProxyResponse{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":    "application/json",
			correlationHeader: correlationID,
		},
		Body: string(body),
	}, nil
}

// process decodes a wire request, runs generation and returns the HTTP status
// with the value to encode as the response body.
func (h *Handler) process(ctx context.Context, correlationID string, body []byte) (int, any) {
	var in generateRequest
	if len(strings.TrimSpace(string(body))) == 0 {
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidRequest), Reason: "empty_body"}
	}
	if err := json.Unmarshal(body, &in); err != nil {
		h.logger.WarnContext(ctx, "invalid request body", "correlation_id", correlationID, "err", err)
		return http.StatusBadRequest, errorResponse{Error: string(usecase.ErrorInvalidRequest), Reason: "invalid_body"}
	}

	ctx = usecase.WithRequestID(ctx, correlationID)
	res, err := h.generator.Generate(ctx, domain.GenerationRequest{
		Message: in.Message,
		History: in.History,
		Image:   in.Image,
	})
	if err != nil {
		return h.errorStatus(ctx, correlationID, err)
	}
	return http.StatusOK, generateResponse{
		Response:  res.ResponseText,
		Source:    string(res.Source),
		Model:     res.Model,
		RequestID: res.RequestID,
		Failed:    res.Failed,
	}
}

func (h *Handler) errorStatus(ctx context.Context, correlationID string, err error) (int, any) {
	var ucErr *usecase.Error
	if errors.As(err, &ucErr) {
		if ucErr.Code == usecase.ErrorInvalidRequest {
			return http.StatusBadRequest, errorResponse{Error: string(ucErr.Code), Reason: ucErr.Reason}
		}
		h.logger.ErrorContext(ctx, "generate failed", "correlation_id", correlationID, "code", string(ucErr.Code), "reason", ucErr.Reason, "err", err)
		return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
	}
	h.logger.ErrorContext(ctx, "generate failed", "correlation_id", correlationID, "err", err)
	return http.StatusInternalServerError, errorResponse{Error: string(usecase.ErrorInternal)}
}

func headerValue(headers map[string]string, name string) string {
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
