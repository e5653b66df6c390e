package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/port/driven"
)

// Session authenticates against a commons and holds fetched datasets and
// their flattened tables in memory for its lifetime.
//
// Construction performs no I/O; callers invoke Authenticate explicitly and
// may call it again to replace the headers. A Session is not safe for
// concurrent use.
type Session struct {
	source     driven.CredentialSource
	api        driven.SubmissionAPI
	tableStore driven.TableStore
	apiVersion string
	logger     *slog.Logger

	headers  model.AuthHeaders
	baseURL  string
	datasets map[string]*model.Dataset
	tables   map[string]*model.Table
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) { s.logger = logger }
}

// WithAPIVersion sets the default submission API version for fetches.
func WithAPIVersion(version string) Option {
	return func(s *Session) { s.apiVersion = version }
}

// WithTableStore enables ExportTables.
func WithTableStore(store driven.TableStore) Option {
	return func(s *Session) { s.tableStore = store }
}

// NewSession creates an unauthenticated Session.
func NewSession(source driven.CredentialSource, api driven.SubmissionAPI, opts ...Option) *Session {
	s := &Session{
		source:     source,
		api:        api,
		apiVersion: model.DefaultAPIVersion,
		logger:     slog.Default(),
		datasets:   make(map[string]*model.Dataset),
		tables:     make(map[string]*model.Table),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Authenticate loads the credential, derives the service base URL, and
// exchanges the credential for an access token. On success the headers are
// replaced and a copy is returned; on failure the session state is left as
// it was and the error is returned after logging.
func (s *Session) Authenticate(ctx context.Context) (model.AuthHeaders, error) {
	cred, err := s.source.LoadCredential(ctx)
	if err != nil {
		s.logger.Error("authentication failed: credential could not be loaded", "error", err)
		return nil, err
	}

	baseURL, err := s.api.ResolveBaseURL(cred)
	if err != nil {
		s.logger.Error("authentication failed: service URL could not be derived from api_key", "error", err)
		return nil, err
	}

	token, err := s.api.RequestAccessToken(ctx, baseURL, cred)
	if err != nil {
		s.logAuthError(baseURL, err)
		return nil, err
	}

	s.headers = model.NewAuthHeaders(token)
	s.baseURL = baseURL
	s.logger.Info("authenticated", "base_url", baseURL, "key_id", cred.KeyID())
	return s.headers.Clone(), nil
}

func (s *Session) logAuthError(baseURL string, err error) {
	var (
		httpErr *model.HTTPError
		missing *model.MissingFieldError
	)
	switch {
	case errors.As(err, &httpErr):
		s.logger.Error("HTTP error occurred during authentication",
			"base_url", baseURL, "status_code", httpErr.StatusCode, "error", err)
	case errors.As(err, &missing):
		s.logger.Error("authentication response is missing a field",
			"base_url", baseURL, "field", missing.Field, "error", err)
	default:
		s.logger.Error("request error occurred during authentication",
			"base_url", baseURL, "error", err)
	}
}

// Authenticated reports whether a previous Authenticate call succeeded.
func (s *Session) Authenticated() bool { return s.headers != nil }

// Headers returns a copy of the current auth headers, or nil before
// authentication.
func (s *Session) Headers() model.AuthHeaders { return s.headers.Clone() }

// BaseURL returns the service base URL resolved by Authenticate.
func (s *Session) BaseURL() string { return s.baseURL }

// FetchOption adjusts a single fetch.
type FetchOption func(*model.ExportQuery)

// FetchAPIVersion overrides the session's API version for one fetch.
func FetchAPIVersion(version string) FetchOption {
	return func(q *model.ExportQuery) { q.APIVersion = version }
}

// FetchData exports one node and stores the raw JSON under
// "<program>/<project>/<node_label>", replacing any earlier fetch and its
// derived table. Every failure is logged before it is returned.
func (s *Session) FetchData(ctx context.Context, program, project, nodeLabel string, opts ...FetchOption) (*model.Dataset, error) {
	key := model.DatasetKey{Program: program, Project: project, NodeLabel: nodeLabel}
	if err := key.Validate(); err != nil {
		s.logger.Error("fetch rejected: invalid dataset key", "error", err)
		return nil, err
	}
	if !s.Authenticated() {
		s.logger.Error("fetch rejected: session not authenticated", "key", key.String())
		return nil, model.ErrNotAuthenticated
	}

	q := model.ExportQuery{Key: key, APIVersion: s.apiVersion}
	for _, opt := range opts {
		opt(&q)
	}

	ds, err := s.api.Export(ctx, s.baseURL, s.headers, q)
	if err != nil {
		s.logger.Error("fetch failed",
			"key", key.String(),
			"api_version", q.Version(),
			"status_code", model.StatusCode(err),
			"error", err,
		)
		return nil, err
	}

	s.datasets[key.String()] = ds
	delete(s.tables, key.String())
	s.logger.Info("data fetched and stored", "key", key.String(), "bytes", len(ds.Raw))
	return ds, nil
}

// FetchJSON fetches a node and returns the decoded JSON body.
func (s *Session) FetchJSON(ctx context.Context, program, project, nodeLabel string, opts ...FetchOption) (map[string]any, error) {
	ds, err := s.FetchData(ctx, program, project, nodeLabel, opts...)
	if err != nil {
		return nil, err
	}
	return ds.Value, nil
}

// FetchTable fetches a node and returns its flattened table, which is also
// kept in the session.
func (s *Session) FetchTable(ctx context.Context, program, project, nodeLabel string, opts ...FetchOption) (*model.Table, error) {
	ds, err := s.FetchData(ctx, program, project, nodeLabel, opts...)
	if err != nil {
		return nil, err
	}
	return s.Table(ds.Key.String())
}

// Dataset returns the stored dataset for key.
func (s *Session) Dataset(key string) (*model.Dataset, bool) {
	ds, ok := s.datasets[key]
	return ds, ok
}

// Keys returns the keys of all stored datasets in sorted order.
func (s *Session) Keys() []string {
	keys := make([]string, 0, len(s.datasets))
	for k := range s.datasets {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table returns the flattened table for key, computing it from the stored
// dataset when it has not been derived yet.
func (s *Session) Table(key string) (*model.Table, error) {
	if t, ok := s.tables[key]; ok {
		return t, nil
	}
	ds, ok := s.datasets[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s", model.ErrDatasetNotFound, key)
	}
	t, err := FlattenDataset(ds)
	if err != nil {
		return nil, err
	}
	s.tables[key] = t
	return t, nil
}

// DataToTables flattens every stored dataset. It stops at the first dataset
// that cannot be flattened.
func (s *Session) DataToTables() error {
	for _, key := range s.Keys() {
		s.logger.Info("converting dataset to table", "key", key)
		delete(s.tables, key)
		if _, err := s.Table(key); err != nil {
			return err
		}
	}
	return nil
}

// ExportTables writes the table of every stored dataset to the configured
// TableStore and returns the export IDs in key order.
func (s *Session) ExportTables(ctx context.Context) ([]string, error) {
	if s.tableStore == nil {
		return nil, errors.New("no table store configured")
	}

	var ids []string
	for _, key := range s.Keys() {
		t, err := s.Table(key)
		if err != nil {
			return ids, err
		}
		id, err := s.tableStore.SaveTable(ctx, s.datasets[key].Key, t)
		if err != nil {
			return ids, fmt.Errorf("export %s: %w", key, err)
		}
		s.logger.Info("table exported", "key", key, "export_id", id, "rows", t.Len())
		ids = append(ids, id)
	}
	return ids, nil
}
