package usecase

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"fallback-chat/internal/domain"
)

// ModelClient is the external generative-model collaborator. Implementations
// may be shared across concurrent requests.
type ModelClient interface {
	Generate(ctx context.Context, model string, prompt domain.Prompt) (string, error)
}

type httpStatusCoder interface {
	HTTPStatusCode() int
}

type Options struct {
	PrimaryModel  string
	FallbackModel string
	PromptStyle   domain.PromptStyle
	Template      Template
	// AttemptTimeout bounds each model call. Zero means no timeout; an expired
	// primary attempt moves on to the fallback model.
	AttemptTimeout time.Duration
	Logger         *slog.Logger
	Observers      []Observer
}

// GenerateService runs the primary attempt and, on any failure, a single
// fallback attempt with the same prompt. It holds no per-request state.
type GenerateService struct {
	client         ModelClient
	primaryModel   string
	fallbackModel  string
	style          domain.PromptStyle
	tmpl           Template
	attemptTimeout time.Duration
	logger         *slog.Logger
	observers      []Observer
	now            func() time.Time
}

func NewGenerateService(client ModelClient, opts Options) (*GenerateService, error) {
	if client == nil {
		return nil, errors.New("usecase: model client must not be nil")
	}
	primary := strings.TrimSpace(opts.PrimaryModel)
	if primary == "" {
		return nil, errors.New("usecase: primary model must not be empty")
	}
	fallback := strings.TrimSpace(opts.FallbackModel)
	if fallback == "" {
		return nil, errors.New("usecase: fallback model must not be empty")
	}
	style := opts.PromptStyle
	switch style {
	case "":
		style = domain.PromptStyleChat
	case domain.PromptStyleChat, domain.PromptStyleSingle:
	default:
		return nil, errors.New("usecase: unknown prompt style " + string(style))
	}
	if opts.AttemptTimeout < 0 {
		return nil, errors.New("usecase: attempt timeout must not be negative")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if primary == fallback {
		logger.Warn("primary and fallback model are identical", "model", primary)
	}

	observers := []Observer{NewLogObserver(logger)}
	for _, o := range opts.Observers {
		if o != nil {
			observers = append(observers, o)
		}
	}

	return &GenerateService{
		client:         client,
		primaryModel:   primary,
		fallbackModel:  fallback,
		style:          style,
		tmpl:           opts.Template.withDefaults(),
		attemptTimeout: opts.AttemptTimeout,
		logger:         logger,
		observers:      observers,
		now:            time.Now,
	}, nil
}

type attemptOutcome struct {
	answer  string
	latency time.Duration
	status  int
	err     *Error
}

// Generate returns exactly one result per valid request. Only InvalidRequest is
// returned as an error; exhausting both models yields a failed result value.
func (s *GenerateService) Generate(ctx context.Context, req domain.GenerationRequest) (domain.GenerationResult, error) {
	if strings.TrimSpace(req.Message) == "" && strings.TrimSpace(req.Image) == "" {
		return domain.GenerationResult{}, newError(ErrorInvalidRequest, "empty_request", nil)
	}
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = newRequestID()
	}

	prompt := BuildPrompt(req, s.style, s.tmpl)

	primary := s.attempt(ctx, s.primaryModel, prompt, ErrorPrimaryModelFailure)
	if primary.err == nil {
		s.emit(ctx, requestID, domain.EventPrimarySuccess, s.primaryModel, primary)
		return domain.GenerationResult{
			ResponseText: primary.answer,
			Source:       domain.SourcePrimary,
			Model:        s.primaryModel,
			RequestID:    requestID,
		}, nil
	}

	if ctxErr := ctx.Err(); ctxErr != nil {
		return s.fail(ctx, requestID, s.primaryModel, primary, newError(ErrorTotalGenerationFailure, "canceled", primary.err)), nil
	}

	s.emit(ctx, requestID, domain.EventFallbackTriggered, s.primaryModel, primary)

	fallback := s.attempt(ctx, s.fallbackModel, prompt, ErrorFallbackModelFailure)
	if fallback.err == nil {
		s.emit(ctx, requestID, domain.EventFallbackSuccess, s.fallbackModel, fallback)
		return domain.GenerationResult{
			ResponseText: fallback.answer,
			Source:       domain.SourceFallback,
			Model:        s.fallbackModel,
			RequestID:    requestID,
		}, nil
	}

	cause := fallback.err
	if cause.Code != ErrorFallbackModelFailure {
		cause = newError(ErrorFallbackModelFailure, cause.Reason, cause)
	}
	return s.fail(ctx, requestID, s.fallbackModel, fallback, newError(ErrorTotalGenerationFailure, "fallback_failed", cause)), nil
}

func (s *GenerateService) attempt(ctx context.Context, model string, prompt domain.Prompt, code ErrorCode) attemptOutcome {
	attemptCtx := ctx
	if s.attemptTimeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, s.attemptTimeout)
		defer cancel()
	}

	start := s.now()
	raw, err := s.client.Generate(attemptCtx, model, prompt)
	out := attemptOutcome{latency: s.now().Sub(start)}
	if err != nil {
		out.status, _ = upstreamStatusCode(err)
		reason := "model_error"
		switch {
		case errors.Is(err, context.DeadlineExceeded):
			reason = "timeout"
		case errors.Is(err, context.Canceled):
			reason = "canceled"
		}
		out.err = newError(code, reason, err)
		return out
	}

	answer, err := parseStructuredAnswer(raw)
	if err != nil {
		reason := "malformed_output"
		switch {
		case errors.Is(err, errEmptyOutput):
			reason = "empty_output"
		case errors.Is(err, errFallbackRequested):
			reason = "model_requested_fallback"
		}
		out.err = newError(ErrorMalformedOutput, reason, err)
		return out
	}
	out.answer = answer.Response
	return out
}

func (s *GenerateService) fail(ctx context.Context, requestID, model string, last attemptOutcome, err *Error) domain.GenerationResult {
	s.logger.ErrorContext(ctx, "generation failed",
		"request_id", requestID,
		"model", model,
		"reason", err.Reason,
		"err", err,
	)
	evt := last
	evt.err = err
	s.emit(ctx, requestID, domain.EventTotalFailure, model, evt)
	return domain.GenerationResult{
		ResponseText: FailureMessage,
		Source:       domain.SourceNone,
		RequestID:    requestID,
		Failed:       true,
	}
}

func (s *GenerateService) emit(ctx context.Context, requestID string, kind domain.EventKind, model string, out attemptOutcome) {
	evt := domain.GenerationEvent{
		RequestID:  requestID,
		Kind:       kind,
		Model:      model,
		StatusCode: out.status,
		Latency:    out.latency,
		OccurredAt: s.now().UTC(),
	}
	if out.err != nil {
		evt.Reason = out.err.Reason
	}
	// Events are still recorded when the caller has gone away.
	obsCtx := context.WithoutCancel(ctx)
	for _, o := range s.observers {
		if err := o.Observe(obsCtx, evt); err != nil {
			s.logger.WarnContext(ctx, "generation observer failed", "request_id", requestID, "event", string(kind), "err", err)
		}
	}
}

func upstreamStatusCode(err error) (int, bool) {
	var statusErr httpStatusCoder
	if !errors.As(err, &statusErr) {
		return 0, false
	}
	return statusErr.HTTPStatusCode(), true
}

type requestIDKey struct{}

// WithRequestID attaches an externally chosen id (e.g. a correlation id) that
// Generate uses instead of minting a new one.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, strings.TrimSpace(id))
}

func RequestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

var newRequestID = func() string {
	return uuid.NewString()
}
