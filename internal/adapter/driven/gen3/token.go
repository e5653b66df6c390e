package gen3

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"

	"github.com/AustralianBioCommons/gen3metadata/internal/domain/model"
)

// fenceMount is the path the auth service is served under. Its issuer claim
// carries it; the commons base URL does not.
const fenceMount = "/user"

// IssuerURL derives the commons base URL from the iss claim of the api_key
// token. Only the payload segment is decoded; the header and signature are
// left to the service, which verifies the key on the token exchange.
func IssuerURL(cred model.Credential) (string, error) {
	apiKey, err := cred.APIKey()
	if err != nil {
		return "", err
	}

	parts := strings.Split(apiKey, ".")
	if len(parts) != 3 {
		return "", fmt.Errorf("%w: api_key has %d segments, want 3", model.ErrTokenDecode, len(parts))
	}

	// DecodeSegment expects unpadded base64url.
	payload, err := jwt.DecodeSegment(strings.TrimRight(parts[1], "="))
	if err != nil {
		return "", fmt.Errorf("%w: payload segment: %w", model.ErrTokenDecode, err)
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return "", fmt.Errorf("%w: payload segment: %w", model.ErrTokenDecode, err)
	}

	raw, ok := claims["iss"]
	if !ok {
		return "", &model.MissingFieldError{Field: "iss", Context: "api_key payload"}
	}
	iss, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("%w: iss claim is %T, want string", model.ErrTokenDecode, raw)
	}

	return baseURLFromIssuer(iss), nil
}

// baseURLFromIssuer strips a trailing slash and the auth service mount from
// the issuer. Anything else is returned as issued.
func baseURLFromIssuer(iss string) string {
	return strings.TrimSuffix(strings.TrimRight(iss, "/"), fenceMount)
}
