package driven

import (
	"context"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// CredentialSource defines the driven port for obtaining the API key record.
type CredentialSource interface {
	// LoadCredential returns the decoded credential. Implementations wrap
	// model.ErrMalformedCredential when the source cannot be parsed.
	LoadCredential(ctx context.Context) (model.Credential, error)
}
