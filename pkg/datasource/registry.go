package datasource

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/aretw0/promptloom/internal/logging"
	"github.com/aretw0/promptloom/pkg/adapters/memory"
	"github.com/aretw0/promptloom/pkg/domain"
	"github.com/aretw0/promptloom/pkg/persistence/middleware"
	"github.com/aretw0/promptloom/pkg/ports"
	"github.com/aretw0/promptloom/pkg/resolve"
)

var (
	// ErrInvalid is returned for a data source with a missing name, an
	// unsupported driver or a URL that does not match its driver.
	ErrInvalid = errors.New("invalid data source")
	// ErrReadOnly is returned when changing a data source from the configuration file.
	ErrReadOnly = errors.New("data source is read-only")
)

// DefaultPingTimeout bounds Test.
const DefaultPingTimeout = 5 * time.Second

// Input is the body of a new data source.
type Input struct {
	Name   string
	Driver string
	URL    string
}

// Patch changes the set fields of a data source.
type Patch struct {
	Name   *string
	Driver *string
	URL    *string
}

// Registry manages stored data sources and resolves sql://<id> URLs.
type Registry struct {
	store  ports.DataSourceStore
	cipher *middleware.Cipher
	static resolve.StaticDataSources

	logger      *slog.Logger
	now         func() time.Time
	newID       func() string
	pingTimeout time.Duration
	open        func(driver, dsn string) (*sql.DB, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithStatic serves the given ID to URL map as read-only data sources.
func WithStatic(m map[string]string) Option {
	return func(r *Registry) {
		r.static = resolve.StaticDataSources(m)
	}
}

// WithLogger sets the registry logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) {
		r.logger = logger
	}
}

// WithClock sets the UpdatedAt source.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		r.now = now
	}
}

// WithIDGenerator sets the ID source for new data sources.
func WithIDGenerator(gen func() string) Option {
	return func(r *Registry) {
		r.newID = gen
	}
}

// WithPingTimeout overrides DefaultPingTimeout.
func WithPingTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.pingTimeout = d
		}
	}
}

// NewRegistry creates a Registry over store. URLs are sealed with cipher.
func NewRegistry(store ports.DataSourceStore, cipher *middleware.Cipher, opts ...Option) *Registry {
	r := &Registry{
		store:       store,
		cipher:      cipher,
		logger:      logging.NewNop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return "ds_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12] },
		pingTimeout: DefaultPingTimeout,
		open:        sql.Open,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Create validates in, seals its URL and stores it under a new ID.
func (r *Registry) Create(ctx context.Context, in Input) (domain.DataSourceView, error) {
	name, driver, err := check(in.Name, in.Driver, in.URL)
	if err != nil {
		return domain.DataSourceView{}, err
	}
	sealed, err := r.cipher.Seal([]byte(in.URL))
	if err != nil {
		return domain.DataSourceView{}, fmt.Errorf("failed to seal data source url: %w", err)
	}
	d := domain.DataSource{
		ID:        r.newID(),
		Name:      name,
		Driver:    driver,
		URLEnc:    sealed,
		UpdatedAt: r.now(),
	}
	if err := r.store.Save(ctx, d); err != nil {
		return domain.DataSourceView{}, fmt.Errorf("failed to save data source: %w", err)
	}
	r.logger.Info("Data source created", "datasource_id", d.ID, "driver", d.Driver)
	return d.View(), nil
}

// Update applies p to a stored data source. A changed driver without a new
// URL is checked against the stored URL.
func (r *Registry) Update(ctx context.Context, id string, p Patch) (domain.DataSourceView, error) {
	d, err := r.store.Load(ctx, id)
	if errors.Is(err, domain.ErrDataSourceNotFound) {
		if _, ok := r.static[id]; ok {
			return domain.DataSourceView{}, fmt.Errorf("%w: %s", ErrReadOnly, id)
		}
	}
	if err != nil {
		return domain.DataSourceView{}, err
	}

	name, driver := d.Name, d.Driver
	if p.Name != nil {
		name = *p.Name
	}
	if p.Driver != nil {
		driver = *p.Driver
	}
	var url string
	if p.URL != nil {
		url = *p.URL
	} else {
		plain, err := r.cipher.Open(d.URLEnc)
		if err != nil {
			return domain.DataSourceView{}, fmt.Errorf("failed to open data source url: %w", err)
		}
		url = string(plain)
	}

	name, driver, err = check(name, driver, url)
	if err != nil {
		return domain.DataSourceView{}, err
	}
	sealed, err := r.cipher.Seal([]byte(url))
	if err != nil {
		return domain.DataSourceView{}, fmt.Errorf("failed to seal data source url: %w", err)
	}
	d.Name, d.Driver, d.URLEnc, d.UpdatedAt = name, driver, sealed, r.now()
	if err := r.store.Save(ctx, d); err != nil {
		return domain.DataSourceView{}, fmt.Errorf("failed to save data source: %w", err)
	}
	r.logger.Info("Data source updated", "datasource_id", d.ID)
	return d.View(), nil
}

// Get returns the public view of a stored or configured data source.
func (r *Registry) Get(ctx context.Context, id string) (domain.DataSourceView, error) {
	d, err := r.store.Load(ctx, id)
	if err == nil {
		return d.View(), nil
	}
	if !errors.Is(err, domain.ErrDataSourceNotFound) {
		return domain.DataSourceView{}, err
	}
	url, ok := r.static[id]
	if !ok {
		return domain.DataSourceView{}, fmt.Errorf("%w: %s", domain.ErrDataSourceNotFound, id)
	}
	return staticView(id, url), nil
}

// Delete removes a stored data source.
func (r *Registry) Delete(ctx context.Context, id string) error {
	if _, err := r.store.Load(ctx, id); err != nil {
		if errors.Is(err, domain.ErrDataSourceNotFound) {
			if _, ok := r.static[id]; ok {
				return fmt.Errorf("%w: %s", ErrReadOnly, id)
			}
		}
		return err
	}
	if err := r.store.Delete(ctx, id); err != nil {
		return err
	}
	r.logger.Info("Data source deleted", "datasource_id", id)
	return nil
}

// List returns stored and configured data sources, most recently updated
// first, then by ID.
func (r *Registry) List(ctx context.Context) ([]domain.DataSourceView, error) {
	stored, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(stored))
	out := make([]domain.DataSourceView, 0, len(stored)+len(r.static))
	for _, d := range stored {
		seen[d.ID] = true
		out = append(out, d.View())
	}
	for id, url := range r.static {
		if !seen[id] {
			out = append(out, staticView(id, url))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].UpdatedAt.Equal(out[j].UpdatedAt) {
			return out[i].UpdatedAt.After(out[j].UpdatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// LookupDataSource returns the plain connection URL for id. It implements
// resolve.DataSources.
func (r *Registry) LookupDataSource(ctx context.Context, id string) (string, error) {
	d, err := r.store.Load(ctx, id)
	if errors.Is(err, domain.ErrDataSourceNotFound) {
		return r.static.LookupDataSource(ctx, id)
	}
	if err != nil {
		return "", err
	}
	plain, err := r.cipher.Open(d.URLEnc)
	if err != nil {
		return "", fmt.Errorf("failed to open data source url: %w", err)
	}
	return string(plain), nil
}

// Test opens the data source and pings it.
func (r *Registry) Test(ctx context.Context, id string) error {
	url, err := r.LookupDataSource(ctx, id)
	if err != nil {
		return err
	}
	driver, dsn, err := resolve.DriverFor(url)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, r.pingTimeout)
	defer cancel()

	db, err := r.open(driver, dsn)
	if err != nil {
		return fmt.Errorf("failed to open %s database: %w", driver, err)
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to reach %s database: %w", driver, err)
	}
	return nil
}

// check trims the name and derives the driver from url when empty.
func check(name, driver, url string) (string, string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", "", fmt.Errorf("%w: name is required", ErrInvalid)
	}
	if strings.TrimSpace(url) == "" {
		return "", "", fmt.Errorf("%w: url is required", ErrInvalid)
	}
	want, _, err := resolve.DriverFor(url)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	driver = strings.ToLower(strings.TrimSpace(driver))
	switch driver {
	case "":
	case "sqlite", "sqlite3":
		driver = "sqlite"
	case "postgres", "postgresql":
		driver = "postgres"
	default:
		return "", "", fmt.Errorf("%w: unsupported driver %q", ErrInvalid, driver)
	}
	if driver == "" {
		driver = want
	}
	if driver != want {
		return "", "", fmt.Errorf("%w: driver %s does not match a %s url", ErrInvalid, driver, want)
	}
	return name, driver, nil
}

func staticView(id, url string) domain.DataSourceView {
	driver, _, _ := resolve.DriverFor(url)
	return domain.DataSourceView{ID: id, Name: id, Driver: driver, URL: domain.RedactedURL, ReadOnly: true}
}

// NewEphemeral returns a Registry over an in-memory store sealed with a
// random key. Nothing it holds survives the process.
func NewEphemeral(opts ...Option) *Registry {
	c, err := middleware.NewCipher(middleware.EncryptionConfig{ActiveKey: RandomKey()})
	if err != nil {
		panic(err) // RandomKey always returns 32 bytes
	}
	return NewRegistry(memory.NewDataSourceStore(), c, opts...)
}
