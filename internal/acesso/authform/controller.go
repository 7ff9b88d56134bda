// Package authform implements the login/signup form controller: observable form cells, the
// two submit operations and the mapping of provider failures to user-facing messages.
package authform

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"finitefield.org/acesso/internal/acesso/authclient"
	"finitefield.org/acesso/internal/acesso/reactive"
)

const metricNamespace = "finitefield.org/acesso/internal/acesso/authform"

// Operation identifies which submit action produced an outcome.
type Operation string

const (
	OperationLogin  Operation = "login"
	OperationSignup Operation = "signup"
)

// AuthenticatedFunc is the side effect fired once per successful attempt.
type AuthenticatedFunc func(ctx context.Context, op Operation, sess *authclient.Session)

// FormState is a point-in-time copy of the controller cells.
type FormState struct {
	Email        string
	Password     string
	ErrorMessage *string
	IsLoading    bool
}

// Outcome describes how an attempt resolved.
type Outcome struct {
	Operation Operation
	Session   *authclient.Session
	Code      authclient.Code
	Err       error
}

// Succeeded reports whether the attempt produced a session.
func (o Outcome) Succeeded() bool {
	return o.Err == nil && o.Session != nil
}

// Controller owns the form cells and drives the client calls.
//
// The loading cell gates the submit controls but is not a lock: calling Login or Signup while
// another attempt is in flight is not rejected.
type Controller struct {
	client        authclient.Client
	mapper        ErrorMapper
	authenticated AuthenticatedFunc
	logger        *zap.Logger
	attempts      metric.Int64Counter
	tracer        trace.Tracer

	email        *reactive.Cell[string]
	password     *reactive.Cell[string]
	errorMessage *reactive.Cell[*string]
	loading      *reactive.Cell[bool]
}

// Option customises a Controller.
type Option func(*Controller)

// WithErrorMapper selects the language used for failure messages.
func WithErrorMapper(mapper ErrorMapper) Option {
	return func(c *Controller) {
		c.mapper = mapper
	}
}

// WithAuthenticated registers the success side effect.
func WithAuthenticated(fn AuthenticatedFunc) Option {
	return func(c *Controller) {
		c.authenticated = fn
	}
}

// WithTracer records a span per attempt on the supplied tracer instead of the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(c *Controller) {
		if tracer != nil {
			c.tracer = tracer
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Controller) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMeter records attempt counters on the supplied meter instead of the global provider.
func WithMeter(meter metric.Meter) Option {
	return func(c *Controller) {
		if meter != nil {
			c.attempts = newAttemptCounter(meter, c.logger)
		}
	}
}

// NewController constructs a controller with empty credentials, no error and loading unset.
func NewController(client authclient.Client, opts ...Option) (*Controller, error) {
	if client == nil {
		return nil, fmt.Errorf("authform: %w", authclient.ErrNotConfigured)
	}
	c := &Controller{
		client:       client,
		mapper:       NewErrorMapper(nil, defaultLanguage),
		logger:       zap.NewNop(),
		tracer:       otel.Tracer(metricNamespace),
		email:        reactive.NewCell(""),
		password:     reactive.NewCell(""),
		errorMessage: reactive.NewCell[*string](nil),
		loading:      reactive.NewCell(false),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.attempts == nil {
		c.attempts = newAttemptCounter(otel.GetMeterProvider().Meter(metricNamespace), c.logger)
	}
	return c, nil
}

// Email exposes the email cell for binding.
func (c *Controller) Email() *reactive.Cell[string] { return c.email }

// Password exposes the password cell for binding.
func (c *Controller) Password() *reactive.Cell[string] { return c.password }

// ErrorMessage exposes the error cell; nil means no message is shown.
func (c *Controller) ErrorMessage() *reactive.Cell[*string] { return c.errorMessage }

// Loading exposes the loading cell.
func (c *Controller) Loading() *reactive.Cell[bool] { return c.loading }

// SetEmail writes the email cell.
func (c *Controller) SetEmail(email string) { c.email.Set(email) }

// SetPassword writes the password cell.
func (c *Controller) SetPassword(password string) { c.password.Set(password) }

// Snapshot copies the current cell values.
func (c *Controller) Snapshot() FormState {
	state := FormState{
		Email:     c.email.Get(),
		Password:  c.password.Get(),
		IsLoading: c.loading.Get(),
	}
	if msg := c.errorMessage.Get(); msg != nil {
		copied := *msg
		state.ErrorMessage = &copied
	}
	return state
}

// Login signs in with the current email and password.
func (c *Controller) Login(ctx context.Context) Outcome {
	return c.submit(ctx, OperationLogin, c.client.SignIn)
}

// Signup creates an account with the current email and password.
func (c *Controller) Signup(ctx context.Context) Outcome {
	return c.submit(ctx, OperationSignup, c.client.CreateAccount)
}

type authCall func(ctx context.Context, email, password string) (*authclient.Session, error)

func (c *Controller) submit(ctx context.Context, op Operation, call authCall) (outcome Outcome) {
	outcome.Operation = op
	email := c.email.Get()
	password := c.password.Get()
	logger := c.logger.With(zap.String("operation", string(op)), zap.String("email", maskEmail(email)))

	ctx, span := c.tracer.Start(ctx, "authform."+string(op),
		trace.WithAttributes(attribute.String("operation", string(op))),
	)
	defer span.End()

	c.errorMessage.Set(nil)
	c.loading.Set(true)
	defer c.loading.Set(false)

	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("auth call panicked", zap.Any("panic", rec))
			outcome.Session = nil
			outcome.Code = authclient.CodeUnknown
			outcome.Err = authclient.NewAuthError(authclient.CodeUnknown, "panic", fmt.Errorf("%v", rec))
			c.fail(outcome.Err)
			c.record(ctx, outcome)
		}
	}()

	logger.Debug("auth attempt started")
	sess, err := call(ctx, email, password)
	if err == nil && sess == nil {
		err = authclient.NewAuthError(authclient.CodeUnknown, "empty-session", nil)
	}
	if err != nil {
		outcome.Err = err
		outcome.Code = authclient.CodeOf(err)
		logger.Info("auth attempt rejected", zap.String("code", outcome.Code.String()), zap.Error(err))
		c.fail(err)
		c.record(ctx, outcome)
		return outcome
	}

	outcome.Session = sess
	logger.Info("auth attempt succeeded", zap.String("uid", sess.UID))
	c.notifyAuthenticated(ctx, op, sess, logger)
	c.record(ctx, outcome)
	return outcome
}

// notifyAuthenticated runs the success hook. A panicking hook is logged and does not turn the
// attempt into a failure.
func (c *Controller) notifyAuthenticated(ctx context.Context, op Operation, sess *authclient.Session, logger *zap.Logger) {
	if c.authenticated == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			logger.Error("authenticated hook panicked", zap.Any("panic", rec))
		}
	}()
	c.authenticated(ctx, op, sess)
}

func (c *Controller) fail(err error) {
	msg := c.mapper.MapErr(err)
	c.errorMessage.Set(&msg)
}

func (c *Controller) record(ctx context.Context, outcome Outcome) {
	result := "success"
	if !outcome.Succeeded() {
		result = outcome.Code.String()
	}

	span := trace.SpanFromContext(ctx)
	span.SetAttributes(attribute.String("outcome", result))
	if outcome.Err != nil {
		span.RecordError(outcome.Err)
		span.SetStatus(otelcodes.Error, result)
	}

	if c.attempts == nil {
		return
	}
	c.attempts.Add(context.WithoutCancel(ctx), 1, metric.WithAttributes(
		attribute.String("operation", string(outcome.Operation)),
		attribute.String("outcome", result),
	))
}

func newAttemptCounter(meter metric.Meter, logger *zap.Logger) metric.Int64Counter {
	counter, err := meter.Int64Counter(
		"acesso.form.attempts",
		metric.WithDescription("Login and signup attempts by outcome"),
	)
	if err != nil {
		logger.Warn("authform: unable to register attempt metric", zap.Error(err))
		return nil
	}
	return counter
}

// maskEmail keeps the domain and the first rune of the local part.
func maskEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		if email == "" {
			return ""
		}
		return "***"
	}
	_, size := utf8.DecodeRuneInString(email)
	return email[:size] + "***" + email[at:]
}
