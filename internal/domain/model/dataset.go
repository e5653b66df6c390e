package model

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// DefaultAPIVersion is the submission API version used when none is given.
const DefaultAPIVersion = "v0"

// DatasetKey identifies a node export within a project.
type DatasetKey struct {
	Program   string
	Project   string
	NodeLabel string
}

// String returns the "<program>/<project>/<node_label>" form used as the
// store key.
func (k DatasetKey) String() string {
	return k.Program + "/" + k.Project + "/" + k.NodeLabel
}

// Validate rejects keys with empty or slash-containing components, which
// would make the store key ambiguous.
func (k DatasetKey) Validate() error {
	fields := [...]struct{ name, value string }{
		{"program", k.Program},
		{"project", k.Project},
		{"node_label", k.NodeLabel},
	}
	for _, f := range fields {
		if f.value == "" {
			return fmt.Errorf("dataset key: %s is empty", f.name)
		}
		if strings.Contains(f.value, "/") {
			return fmt.Errorf("dataset key: %s %q contains '/'", f.name, f.value)
		}
	}
	return nil
}

// ExportQuery describes a single node export request.
type ExportQuery struct {
	Key        DatasetKey
	APIVersion string
}

// Version returns APIVersion, falling back to DefaultAPIVersion.
func (q ExportQuery) Version() string {
	if q.APIVersion == "" {
		return DefaultAPIVersion
	}
	return q.APIVersion
}

// Dataset is the raw JSON body of a node export. Raw keeps the exact bytes
// (and therefore field order); Value is the decoded form.
type Dataset struct {
	Key       DatasetKey
	Raw       json.RawMessage
	Value     map[string]any
	FetchedAt time.Time
}

// NewDataset decodes raw into a Dataset. The body must be a JSON object.
func NewDataset(key DatasetKey, raw []byte, fetchedAt time.Time) (*Dataset, error) {
	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, fmt.Errorf("decode dataset %s: %w", key, err)
	}
	return &Dataset{
		Key:       key,
		Raw:       append(json.RawMessage(nil), raw...),
		Value:     value,
		FetchedAt: fetchedAt,
	}, nil
}
