package resolve

import (
	"context"
	"errors"

	"github.com/aretw0/promptloom/pkg/domain"
)

var (
	// ErrResolverMissing is returned for a dynamic variable without a resolver URL.
	ErrResolverMissing = errors.New("resolver_missing")
	// ErrUnsupportedScheme is returned when no resolver is registered for the scheme.
	ErrUnsupportedScheme = errors.New("unsupported resolver scheme")
	// ErrReadOnlyRequired is returned for SQL that is not a SELECT or WITH query.
	ErrReadOnlyRequired = errors.New("readonly_required")
	// ErrFeatureNotEnabled is returned by resolvers compiled out of this build.
	ErrFeatureNotEnabled = errors.New("feature_not_enabled")
	// ErrEmptyQuery is returned when a query variable has no query text.
	ErrEmptyQuery = errors.New("query must not be empty")
	// ErrDataSourceNotFound is returned for an unknown sql:// data source.
	ErrDataSourceNotFound = domain.ErrDataSourceNotFound
)

// ErrorCode maps a resolver error to the stable code reported in trace details.
func ErrorCode(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrResolverMissing):
		return "resolver_missing"
	case errors.Is(err, ErrUnsupportedScheme):
		return "unsupported_scheme"
	case errors.Is(err, ErrReadOnlyRequired):
		return "readonly_required"
	case errors.Is(err, ErrFeatureNotEnabled):
		return "feature_not_enabled"
	case errors.Is(err, ErrEmptyQuery):
		return "empty_query"
	case errors.Is(err, ErrDataSourceNotFound):
		return "datasource_not_found"
	case errors.Is(err, domain.ErrSessionNotFound):
		return "session_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "canceled"
	}
	return "unknown"
}
