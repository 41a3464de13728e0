package server

import (
	"encoding/json"
	"net/http"
	"net/url"

	"github.com/jrsteele09/go-token-exchange/exchange"
	"github.com/jrsteele09/go-token-exchange/internal/metrics"
	"github.com/jrsteele09/go-token-exchange/oauth2"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	contentTypeJSON = "application/json; charset=utf-8"
	contentTypeText = "text/plain; charset=utf-8"

	tokenTypeBearer = "Bearer"
)

// errInvalidRequest marks malformed token requests that never reach the exchange.
type errInvalidRequest string

func (e errInvalidRequest) Error() string { return string(e) }

// parseTokenRequest reads the form body and client authentication. Clients may
// authenticate with HTTP Basic or with client_id/client_secret form fields, but
// not both.
func parseTokenRequest(r *http.Request) (oauth2.AccessTokenRequest, error) {
	if err := r.ParseForm(); err != nil {
		return oauth2.AccessTokenRequest{}, errInvalidRequest("failed to parse form data")
	}

	req := oauth2.AccessTokenRequest{
		GrantType:    oauth2.GrantType(r.PostForm.Get("grant_type")),
		ClientID:     r.PostForm.Get("client_id"),
		ClientSecret: r.PostForm.Get("client_secret"),
		Code:         r.PostForm.Get("code"),
		RedirectURI:  r.PostForm.Get("redirect_uri"),
	}
	if req.GrantType == "" {
		return req, errInvalidRequest("grant_type is required")
	}

	if basicID, basicSecret, ok := r.BasicAuth(); ok {
		if req.ClientSecret != "" {
			return req, errInvalidRequest("multiple client authentication methods")
		}
		// RFC 6749 §2.3.1: credentials are form-encoded before base64.
		id, err := url.QueryUnescape(basicID)
		if err != nil {
			return req, errInvalidRequest("malformed client credentials")
		}
		secret, err := url.QueryUnescape(basicSecret)
		if err != nil {
			return req, errInvalidRequest("malformed client credentials")
		}
		if req.ClientID != "" && req.ClientID != id {
			return req, errInvalidRequest("client_id does not match the authenticated client")
		}
		req.ClientID = id
		req.ClientSecret = secret
	}
	return req, nil
}

// Token exchanges an authorization code for tokens.
func (s *Server) Token() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := s.tracer.Start(r.Context(), "oauth2.token", trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		req, err := parseTokenRequest(r)
		span.SetAttributes(
			attribute.String("oauth2.grant_type", string(req.GrantType)),
			attribute.String("oauth2.client_id", req.ClientID),
		)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			s.metrics.RecordExchange(string(oauth2.ErrorInvalidRequest))
			writeJSONError(w, oauth2.ErrorInvalidRequest, err.Error(), http.StatusBadRequest)
			return
		}

		details, err := s.exchange.Token(ctx, req)
		if err != nil {
			s.writeExchangeError(w, span, req, err)
			return
		}

		span.SetAttributes(attribute.Bool("oauth2.id_token", details.HasIDToken()))
		s.metrics.RecordExchange("")
		s.metrics.RecordTokenIssued(metrics.TokenTypeAccess)
		log.Info().Str("client_id", req.ClientID).Bool("id_token", details.HasIDToken()).Msg("token issued")

		setNoStore(w)
		if !details.HasIDToken() {
			w.Header().Set("Content-Type", contentTypeText)
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(details.AccessToken))
			return
		}

		s.metrics.RecordTokenIssued(metrics.TokenTypeID)
		w.Header().Set("Content-Type", contentTypeJSON)
		_ = json.NewEncoder(w).Encode(oauth2.TokenResponse{
			AccessToken: details.AccessToken,
			IDToken:     *details.IDToken,
			TokenType:   tokenTypeBearer,
			ExpiresIn:   int(s.accessTokenExpiry.Seconds()),
		})
	}
}

func (s *Server) writeExchangeError(w http.ResponseWriter, span trace.Span, req oauth2.AccessTokenRequest, err error) {
	tokenErr, ok := exchange.AsAccessTokenError(err)
	if !ok {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exchange failed")
		s.metrics.RecordExchange(string(oauth2.ErrorServerError))
		log.Err(err).Str("client_id", req.ClientID).Msg("token exchange failed")
		writeJSONError(w, oauth2.ErrorServerError, "internal server error", http.StatusInternalServerError)
		return
	}

	span.SetAttributes(attribute.String("oauth2.error", string(tokenErr.ErrorCode())))
	span.SetStatus(codes.Error, tokenErr.Description())
	s.metrics.RecordExchange(string(tokenErr.ErrorCode()))
	log.Warn().
		Str("client_id", req.ClientID).
		Str("error", string(tokenErr.ErrorCode())).
		Str("reason", tokenErr.Description()).
		Msg("token request rejected")

	status := exchange.HTTPStatus(err)
	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Basic realm="token"`)
	}
	writeJSONError(w, tokenErr.ErrorCode(), tokenErr.Description(), status)
}

func setNoStore(w http.ResponseWriter) {
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Pragma", "no-cache")
}

func writeJSONError(w http.ResponseWriter, errorCode oauth2.ErrorCode, description string, statusCode int) {
	setNoStore(w)
	w.Header().Set("Content-Type", contentTypeJSON)
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(oauth2.ErrorResponse{
		Error:            errorCode,
		ErrorDescription: description,
	})
}
