package driven

import (
	"context"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// SubmissionAPI defines the driven port for the remote metadata submission
// service. Each method performs at most one request; none retry.
type SubmissionAPI interface {
	// ResolveBaseURL returns the service base URL for the credential, either
	// a configured override or the issuer embedded in the api_key token.
	ResolveBaseURL(cred model.Credential) (string, error)

	// RequestAccessToken exchanges the credential for an access token.
	RequestAccessToken(ctx context.Context, baseURL string, cred model.Credential) (string, error)

	// Export fetches one node export as raw JSON.
	Export(ctx context.Context, baseURL string, headers model.AuthHeaders, q model.ExportQuery) (*model.Dataset, error)
}
