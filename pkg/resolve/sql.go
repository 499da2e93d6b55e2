package resolve

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"  // registers the "postgres" driver
	_ "modernc.org/sqlite" // registers the "sqlite" driver
)

// DataSources looks up the connection URL behind a sql://<id> resolver.
// Unknown IDs yield an error wrapping ErrDataSourceNotFound.
type DataSources interface {
	LookupDataSource(ctx context.Context, id string) (string, error)
}

// StaticDataSources serves a fixed map of data source IDs to URLs.
type StaticDataSources map[string]string

// LookupDataSource returns the URL registered under id.
func (m StaticDataSources) LookupDataSource(ctx context.Context, id string) (string, error) {
	url, ok := m[id]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrDataSourceNotFound, id)
	}
	return url, nil
}

// SQLResolver answers sqlite://, postgres:// and sql:// variables with the
// first row of a read-only query. The variable value is the query.
type SQLResolver struct {
	// DataSources resolves sql://<id> to a connection URL. Nil knows no IDs.
	DataSources DataSources
	// Timeout bounds one query. Zero means no extra deadline.
	Timeout time.Duration

	open func(driver, dsn string) (*sql.DB, error)
}

// NewSQLResolver creates a resolver for the given named data sources.
func NewSQLResolver(dataSources DataSources) *SQLResolver {
	return &SQLResolver{DataSources: dataSources, Timeout: 10 * time.Second, open: sql.Open}
}

// Resolve runs the query and formats the first row.
func (s *SQLResolver) Resolve(ctx context.Context, req Request) (Value, error) {
	query := strings.TrimSpace(req.Variable.Value)
	if query == "" {
		return Value{}, ErrEmptyQuery
	}
	if !IsReadOnlyQuery(query) {
		return Value{}, ErrReadOnlyRequired
	}

	url := req.URL
	debug := map[string]any{}
	if Scheme(url) == "sql" {
		id := strings.TrimPrefix(url, "sql://")
		if s.DataSources == nil {
			return Value{}, fmt.Errorf("%w: %s", ErrDataSourceNotFound, id)
		}
		target, err := s.DataSources.LookupDataSource(ctx, id)
		if err != nil {
			return Value{}, err
		}
		url = target
		debug["dataSourceId"] = id
	} else {
		debug["url"] = "<redacted>"
	}

	driver, dsn, err := DriverFor(url)
	if err != nil {
		return Value{}, err
	}

	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	open := s.open
	if open == nil {
		open = sql.Open
	}
	db, err := open(driver, dsn)
	if err != nil {
		return Value{}, fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	defer db.Close()

	text, err := FirstRow(ctx, db, query)
	if err != nil {
		return Value{}, err
	}
	debug["driver"] = driver
	return Value{Text: text, Debug: debug}, nil
}

// IsReadOnlyQuery accepts queries starting with SELECT or WITH.
func IsReadOnlyQuery(query string) bool {
	lower := strings.ToLower(strings.TrimSpace(query))
	return strings.HasPrefix(lower, "select") || strings.HasPrefix(lower, "with")
}

// DriverFor maps a connection URL to a database/sql driver name and DSN.
func DriverFor(url string) (driver, dsn string, err error) {
	switch Scheme(url) {
	case "sqlite", "sqlite3":
		path := url[strings.Index(url, "://")+3:]
		if path == "" {
			return "", "", errors.New("sqlite resolver needs a database path")
		}
		return "sqlite", path, nil
	case "postgres", "postgresql":
		return "postgres", url, nil
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, Scheme(url))
}

// FirstRow returns the first row of query. A single column is returned as
// is; several columns are joined by tabs. No rows yields "".
func FirstRow(ctx context.Context, db *sql.DB, query string) (string, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return "", fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return "", fmt.Errorf("failed to read columns: %w", err)
	}
	if !rows.Next() {
		return "", rows.Err()
	}

	values := make([]any, len(cols))
	ptrs := make([]any, len(cols))
	for i := range values {
		ptrs[i] = &values[i]
	}
	if err := rows.Scan(ptrs...); err != nil {
		return "", fmt.Errorf("failed to scan row: %w", err)
	}

	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = formatValue(v)
	}
	return strings.Join(parts, "\t"), nil
}

func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case []byte:
		return string(val)
	case string:
		return val
	case time.Time:
		return val.Format(time.RFC3339)
	}
	return fmt.Sprint(v)
}
