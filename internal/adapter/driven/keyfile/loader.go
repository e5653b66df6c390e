// Package keyfile implements the CredentialSource port over a key file on
// disk, repairing relaxed JSON that lacks quoting.
package keyfile

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
	"github.com/AustralianBioCommons/gen3metadata/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.CredentialSource = (*Loader)(nil)

// Loader reads a credential from a key file on every call, so edits to the
// file are picked up by the next authentication.
type Loader struct {
	path   string
	logger *slog.Logger
}

// NewLoader creates a Loader for the file at path.
func NewLoader(path string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{path: path, logger: logger}
}

// LoadCredential reads and parses the key file.
func (l *Loader) LoadCredential(ctx context.Context) (model.Credential, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(l.path)
	if err != nil {
		return nil, fmt.Errorf("read key file %s: %w", l.path, err)
	}

	cred, repaired, err := parse(data)
	if err != nil {
		l.logger.Error("key file could not be parsed", "path", l.path, "error", err)
		return nil, fmt.Errorf("key file %s: %w", l.path, err)
	}
	if repaired {
		l.logger.Warn("key file is not strict JSON; using repaired form", "path", l.path)
	}

	l.logger.Debug("key file loaded", "path", l.path, "key_id", cred.KeyID())
	return cred, nil
}
