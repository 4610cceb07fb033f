// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package identity

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/rondo/internal/gate/session"
	"github.com/taibuivan/rondo/internal/platform/constants"
	"github.com/taibuivan/rondo/internal/platform/middleware"
	requestutil "github.com/taibuivan/rondo/internal/platform/request"
	"github.com/taibuivan/rondo/internal/platform/respond"
	"github.com/taibuivan/rondo/internal/platform/sec"
	"github.com/taibuivan/rondo/internal/platform/validate"
)

// TokenProvider mints the short-lived access tokens handed to credentialed
// clients for the authenticated HTTP surface.
type TokenProvider interface {
	GenerateAccessToken(userID, username string, rank sec.Rank, ttl time.Duration) (string, error)
}

// Handler implements the HTTP delivery layer for the identity flows.
type Handler struct {
	resolver *Resolver
	tokens   TokenProvider
}

// NewHandler constructs a new identity [Handler].
func NewHandler(resolver *Resolver, tokens TokenProvider) *Handler {
	return &Handler{resolver: resolver, tokens: tokens}
}

// Routes returns a [chi.Router] configured with the identity endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Post("/login", handler.login)
	router.Post("/register", handler.register)

	return router
}

// loginRequest defines the expected JSON payload for login attempts. An
// empty password and session token selects the guest flow.
type loginRequest struct {
	Name         string `json:"name"`
	Password     string `json:"password"`
	SessionToken string `json:"session_token"`
	Room         string `json:"room"`
}

// identityResponse is the success payload for both identity endpoints.
type identityResponse struct {
	*Result
	AccessToken string `json:"access_token,omitempty"`
}

/*
POST /api/v1/auth/login.

Description: Resolves an identity for the calling address, as a guest when
no credential is supplied, otherwise against the stored credential or a
previously issued session token.

Request:
  - body: loginRequest

Response:
  - 200: identityResponse: The resolved identity, rank, and tokens
  - 400: Validation: Missing name or invalid payload
  - 401: ErrUnauthorized: Credential verification failed
  - 409: ErrConflict: Name collision
  - 429: ErrRateLimited: Guest interval not yet elapsed
*/
func (handler *Handler) login(writer http.ResponseWriter, request *http.Request) {
	var input loginRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("name", input.Name).MaxLen("name", input.Name, 20)
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.New(middleware.RealIP(request))
	sess.Room = input.Room

	result, err := handler.resolver.Login(request.Context(), sess, LoginInput{
		Name:         input.Name,
		Password:     input.Password,
		SessionToken: input.SessionToken,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.buildResponse(result))
}

// registerRequest defines the expected JSON payload for registration.
type registerRequest struct {
	Name     string `json:"name"`
	Password string `json:"password"`
	Room     string `json:"room"`
}

/*
POST /api/v1/auth/register.

Description: Creates an account and immediately logs it in, so the client
ends up authenticated in one round trip.

Request:
  - body: registerRequest

Response:
  - 200: identityResponse: An authenticated identity for the new account
  - 400: Validation: Empty password or invalid name
  - 409: ErrConflict: Name already registered
*/
func (handler *Handler) register(writer http.ResponseWriter, request *http.Request) {
	var input registerRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	sess := session.New(middleware.RealIP(request))
	sess.Room = input.Room

	result, err := handler.resolver.Register(request.Context(), sess, RegisterInput{
		Name:     input.Name,
		Password: input.Password,
	})
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, handler.buildResponse(result))
}

// buildResponse attaches a short-lived access token to credentialed
// results. Guests get no access token; their identity lives only in the
// session they resolved it on.
func (handler *Handler) buildResponse(result *Result) *identityResponse {
	response := &identityResponse{Result: result}

	if result.Authed {
		accessToken, err := handler.tokens.GenerateAccessToken(
			result.AccountID,
			result.Name,
			result.Rank,
			constants.AccessTokenTTL,
		)
		if err == nil {
			response.AccessToken = accessToken
		}
	}

	return response
}
