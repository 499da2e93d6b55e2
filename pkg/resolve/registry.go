package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/sync/errgroup"

	"github.com/aretw0/promptloom/internal/logging"
	"github.com/aretw0/promptloom/pkg/domain"
)

// Request is the input of a single resolution.
type Request struct {
	Variable domain.ProjectVariable
	// URL is the trimmed resolver URL.
	URL string
	// MaxMessages is the caller's cap on chat history, zero when unset.
	MaxMessages int
	// MaxMessagesCap is the configured ceiling on chat history.
	MaxMessagesCap int
}

// Value is what a resolver produced.
type Value struct {
	Text  string
	Debug map[string]any
	// Messages are extra diagnostics, reported after the variable's own.
	Messages []domain.TraceMessage
}

// Resolver produces the value of a dynamic variable.
type Resolver interface {
	Resolve(ctx context.Context, req Request) (Value, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, req Request) (Value, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, req Request) (Value, error) {
	return f(ctx, req)
}

// DefaultConcurrency bounds parallel resolutions in ResolveAll.
const DefaultConcurrency = 4

// Registry dispatches variables to resolvers by URL scheme.
type Registry struct {
	byScheme       map[string]Resolver
	maxBytes       int
	maxMessagesCap int
	concurrency    int
	now            func() time.Time
	logger         *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithResolver registers r for scheme, replacing any previous one.
func WithResolver(scheme string, r Resolver) Option {
	return func(reg *Registry) {
		reg.Register(scheme, r)
	}
}

// WithMaxValueBytes overrides domain.MaxResolvedValueBytes.
func WithMaxValueBytes(n int) Option {
	return func(reg *Registry) {
		if n > 0 {
			reg.maxBytes = n
		}
	}
}

// WithMaxMessagesCap lowers the chat history ceiling below
// domain.MaxMessagesCap. Larger values are ignored.
func WithMaxMessagesCap(n int) Option {
	return func(reg *Registry) {
		if n > 0 && n <= domain.MaxMessagesCap {
			reg.maxMessagesCap = n
		}
	}
}

// WithConcurrency bounds the number of variables resolved at once.
func WithConcurrency(n int) Option {
	return func(reg *Registry) {
		if n > 0 {
			reg.concurrency = n
		}
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(reg *Registry) {
		if logger != nil {
			reg.logger = logger
		}
	}
}

// WithClock injects the time source used for durations.
func WithClock(now func() time.Time) Option {
	return func(reg *Registry) {
		if now != nil {
			reg.now = now
		}
	}
}

// NewRegistry creates a registry with the neo4j and milvus schemes reserved
// as not enabled. Other schemes are added with WithResolver.
func NewRegistry(opts ...Option) *Registry {
	reg := &Registry{
		byScheme:       make(map[string]Resolver),
		maxBytes:       domain.MaxResolvedValueBytes,
		maxMessagesCap: domain.MaxMessagesCap,
		concurrency:    DefaultConcurrency,
		now:            time.Now,
		logger:         logging.NewNop(),
	}
	reg.Register("neo4j", NotEnabled())
	reg.Register("milvus", NotEnabled())
	for _, opt := range opts {
		opt(reg)
	}
	return reg
}

// Register binds a scheme (without "://") to r.
func (r *Registry) Register(scheme string, res Resolver) {
	r.byScheme[strings.ToLower(strings.TrimSpace(scheme))] = res
}

// Schemes lists the registered schemes.
func (r *Registry) Schemes() []string {
	out := make([]string, 0, len(r.byScheme))
	for s := range r.byScheme {
		out = append(out, s)
	}
	return out
}

// Scheme extracts the scheme of a resolver URL, "" when there is none.
func Scheme(url string) string {
	i := strings.Index(url, "://")
	if i < 0 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(url[:i]))
}

// ResolveAll resolves vars in order and returns the variables to render with
// plus their diagnostics, in variable order: one per variable, followed by
// any the resolver added. Variables that fail to resolve are dropped.
func (r *Registry) ResolveAll(ctx context.Context, vars []domain.ProjectVariable, maxMessages int) ([]domain.ProjectVariable, []domain.TraceMessage) {
	type outcome struct {
		value domain.ProjectVariable
		ok    bool
		msgs  []domain.TraceMessage
	}
	results := make([]outcome, len(vars))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.concurrency)
	for i, v := range vars {
		g.Go(func() error {
			value, ok, msgs := r.resolveOne(gctx, v, maxMessages)
			results[i] = outcome{value: value, ok: ok, msgs: msgs}
			return nil
		})
	}
	_ = g.Wait()

	resolved := make([]domain.ProjectVariable, 0, len(vars))
	messages := make([]domain.TraceMessage, 0, len(vars))
	for _, res := range results {
		if res.ok {
			resolved = append(resolved, res.value)
		}
		messages = append(messages, res.msgs...)
	}
	return resolved, messages
}

func (r *Registry) resolveOne(ctx context.Context, v domain.ProjectVariable, maxMessages int) (domain.ProjectVariable, bool, []domain.TraceMessage) {
	started := r.now()
	elapsed := func() int64 { return r.now().Sub(started).Milliseconds() }

	if !v.IsDynamic() {
		clamped, truncated := ClampUTF8(v.Value, r.maxBytes)
		v.Value = clamped
		return v, true, []domain.TraceMessage{{
			Severity: domain.SeverityInfo,
			Code:     domain.CodeVariableStatic,
			Message:  fmt.Sprintf("Variable %s uses its static value", v.Name),
			Details: map[string]any{
				"variableId":       v.ID,
				"variableName":     v.Name,
				"type":             string(domain.VariableStatic),
				"durationMs":       elapsed(),
				"outputBytesLimit": r.maxBytes,
				"truncated":        truncated,
			},
		}}
	}

	url := strings.TrimSpace(v.Resolver)
	scheme := Scheme(url)
	value, err := r.dispatch(ctx, scheme, Request{
		Variable:       v,
		URL:            url,
		MaxMessages:    maxMessages,
		MaxMessagesCap: r.maxMessagesCap,
	})
	if err != nil {
		r.logger.Warn("Variable resolution failed", "variable", v.Name, "scheme", scheme, "err", err)
		return v, false, []domain.TraceMessage{{
			Severity: domain.SeverityWarn,
			Code:     domain.CodeVariableResolveFailed,
			Message:  fmt.Sprintf("Variable %s failed to resolve: %v", v.Name, err),
			Details: map[string]any{
				"variableId":   v.ID,
				"variableName": v.Name,
				"type":         string(domain.VariableDynamic),
				"scheme":       scheme,
				"resolver":     redact(url),
				"durationMs":   elapsed(),
				"errorCode":    ErrorCode(err),
				"errorMessage": err.Error(),
			},
		}}
	}

	clamped, truncated := ClampUTF8(value.Text, r.maxBytes)
	v.Value = clamped
	details := map[string]any{
		"variableId":       v.ID,
		"variableName":     v.Name,
		"type":             string(domain.VariableDynamic),
		"scheme":           scheme,
		"resolver":         redact(url),
		"durationMs":       elapsed(),
		"valueBytes":       len(clamped),
		"outputBytesLimit": r.maxBytes,
		"truncated":        truncated,
	}
	if value.Debug != nil {
		details["debug"] = value.Debug
	}
	msgs := []domain.TraceMessage{{
		Severity: domain.SeverityInfo,
		Code:     domain.CodeVariableResolved,
		Message:  fmt.Sprintf("Variable %s resolved", v.Name),
		Details:  details,
	}}
	for _, m := range value.Messages {
		if m.Details == nil {
			m.Details = map[string]any{}
		}
		m.Details["variableId"] = v.ID
		m.Details["variableName"] = v.Name
		msgs = append(msgs, m)
	}
	return v, true, msgs
}

func (r *Registry) dispatch(ctx context.Context, scheme string, req Request) (Value, error) {
	if req.URL == "" {
		return Value{}, ErrResolverMissing
	}
	res, ok := r.byScheme[scheme]
	if !ok {
		return Value{}, fmt.Errorf("%w: %q", ErrUnsupportedScheme, scheme)
	}
	return res.Resolve(ctx, req)
}

// ClampUTF8 cuts s to at most maxBytes without splitting a rune.
func ClampUTF8(s string, maxBytes int) (string, bool) {
	if maxBytes <= 0 || len(s) <= maxBytes {
		return s, false
	}
	cut := maxBytes
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut], true
}

// redact hides credentials embedded in a resolver URL.
func redact(url string) string {
	i := strings.Index(url, "://")
	if i < 0 {
		return url
	}
	rest := url[i+3:]
	at := strings.LastIndex(rest, "@")
	if at < 0 {
		return url
	}
	return url[:i+3] + "<redacted>@" + rest[at+1:]
}

// NotEnabled returns a resolver that always fails with ErrFeatureNotEnabled.
func NotEnabled() Resolver {
	return ResolverFunc(func(ctx context.Context, req Request) (Value, error) {
		return Value{}, ErrFeatureNotEnabled
	})
}

// Standard returns the options registering the chat and SQL resolvers.
func Standard(sessions SessionLoader, dataSources DataSources) []Option {
	sqlRes := NewSQLResolver(dataSources)
	opts := []Option{
		WithResolver("sqlite", sqlRes),
		WithResolver("sqlite3", sqlRes),
		WithResolver("postgres", sqlRes),
		WithResolver("postgresql", sqlRes),
		WithResolver("sql", sqlRes),
	}
	if sessions != nil {
		opts = append(opts, WithResolver("chat", NewChatResolver(sessions)))
	}
	return opts
}
