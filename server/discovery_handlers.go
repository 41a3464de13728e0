package server

import (
	"encoding/json"
	"net/http"

	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/jrsteele09/go-token-exchange/token"
	"github.com/rs/zerolog/log"
)

// WellKnownOpenIDConfig serves the OIDC discovery document
func (s *Server) WellKnownOpenIDConfig() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		baseURL := s.config.GetBaseURL()

		resp := map[string]any{
			"issuer":         baseURL,
			"token_endpoint": baseURL + RouteOAuth2Token,
			"jwks_uri":       baseURL + RouteWellKnownJWKS,

			"response_types_supported": []string{"code", "code id_token"},
			"grant_types_supported":    []string{"authorization_code"},
			"subject_types_supported":  []string{"public"},

			"id_token_signing_alg_values_supported": []string{s.signer.GetSigningMethod().Alg()},

			"token_endpoint_auth_methods_supported": []string{
				"client_secret_basic",
				"client_secret_post",
				"none", // public clients
			},

			"claims_supported": []string{"iss", "sub", "aud", "azp", "exp", "iat", "auth_time", "nonce"},
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(resp)
	}
}

// JWKS returns the JSON Web Key Set used to validate tokens. Symmetric keys are
// never published, so HMAC deployments serve an empty set.
func (s *Server) JWKS() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		jwks := &token.JWKS{Keys: []token.JWK{}}
		if provider, ok := s.signer.(token.JWKSProvider); ok {
			var err error
			jwks, err = provider.GetJWKS()
			if err != nil {
				log.Err(err).Msg("failed to build JWKS")
				writeJSONError(w, oauth2.ErrorServerError, "failed to build key set", http.StatusInternalServerError)
				return
			}
		}

		w.Header().Set("Content-Type", contentTypeJSON)
		w.Header().Set("Cache-Control", "public, max-age=3600") // Cache for 1 hour
		_ = json.NewEncoder(w).Encode(jwks)
	}
}

// Health reports liveness.
func (s *Server) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	}
}
