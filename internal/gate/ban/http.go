// Copyright (c) 2026 Rondo. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package ban

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/rondo/internal/platform/apperr"
	requestutil "github.com/taibuivan/rondo/internal/platform/request"
	"github.com/taibuivan/rondo/internal/platform/respond"
	"github.com/taibuivan/rondo/internal/platform/validate"
)

// Handler implements the HTTP admin surface for the global ban list.
//
// # Security
//
// Every route here must be mounted behind the moderator rank gate; the
// handler itself assumes the caller is already authorized.
type Handler struct {
	cache *Cache
	store Store
}

// NewHandler constructs a new ban [Handler].
func NewHandler(cache *Cache, store Store) *Handler {
	return &Handler{cache: cache, store: store}
}

// Routes returns a [chi.Router] configured with the ban admin endpoints.
func (handler *Handler) Routes() chi.Router {
	router := chi.NewRouter()

	router.Get("/", handler.listBans)
	router.Post("/", handler.addBan)
	router.Delete("/{address}", handler.removeBan)
	router.Post("/refresh", handler.refresh)

	return router
}

/*
GET /api/v1/admin/bans.

Description: Returns the full ban table directly from storage, bypassing
the cache so operators always see the authoritative list.

Response:
  - 200: []Ban: All ban entries
  - 403: ErrForbidden: Insufficient rank
*/
func (handler *Handler) listBans(writer http.ResponseWriter, request *http.Request) {
	bans, err := handler.store.ListBans(request.Context())
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.OK(writer, bans)
}

// addBanRequest defines the expected JSON payload for new bans.
type addBanRequest struct {
	Address string `json:"address"`
	Note    string `json:"note"`
}

/*
POST /api/v1/admin/bans.

Description: Persists a new ban and applies it to the live cache in the
same call, so the next matching connection is rejected immediately.

Request:
  - body: addBanRequest

Response:
  - 201: Ban: The stored entry
  - 400: Validation: Missing or oversized fields
  - 409: ErrConflict: Address already banned
*/
func (handler *Handler) addBan(writer http.ResponseWriter, request *http.Request) {
	var input addBanRequest
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("address", input.Address).
		MaxLen("address", input.Address, 64).
		MaxLen("note", input.Note, 255)

	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	ban := &Ban{Address: input.Address, Note: input.Note}
	if err := handler.cache.AddBan(request.Context(), ban); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, ban)
}

/*
DELETE /api/v1/admin/bans/{address}.

Description: Removes the ban for the exact address from storage and from
the live cache.

Request:
  - address: string (Exact banned value)

Response:
  - 204: No Content: Ban removed
  - 404: ErrNotFound: No ban for this address
*/
func (handler *Handler) removeBan(writer http.ResponseWriter, request *http.Request) {
	address := chi.URLParam(request, "address")
	if address == "" {
		respond.Error(writer, request, apperr.NotFound("Ban for this address"))
		return
	}

	if err := handler.cache.RemoveBan(request.Context(), address); err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.NoContent(writer)
}

/*
POST /api/v1/admin/bans/refresh.

Description: Forces an immediate cache reload from storage. Used after
bans are edited directly in the database.

Response:
  - 204: No Content: Cache reloaded
  - 503: ErrServiceUnavailable: Storage unreachable
*/
func (handler *Handler) refresh(writer http.ResponseWriter, request *http.Request) {
	if err := handler.cache.Refresh(request.Context()); err != nil {
		respond.Error(writer, request, apperr.ServiceUnavailable("Ban storage is unreachable"))
		return
	}

	respond.NoContent(writer)
}
