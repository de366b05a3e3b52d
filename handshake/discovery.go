package handshake

import (
	"context"

	"github.com/coreos/go-oidc/v3/oidc"
	pkgerrors "github.com/pkg/errors"
	"golang.org/x/oauth2"
)

// DiscoverEndpoint resolves the IdP's authorization and token endpoints from
// its discovery document. Only the endpoint metadata is consumed; token and
// JWKS verification are out of scope for this handshake subset.
func DiscoverEndpoint(ctx context.Context, issuerURL string) (oauth2.Endpoint, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return oauth2.Endpoint{}, pkgerrors.Wrapf(err, "[DiscoverEndpoint] discovering %s", issuerURL)
	}
	return provider.Endpoint(), nil
}
