package client

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/transport"

	userDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/user"
)

type ServiceAPI interface {
	Create(ctx context.Context, creator *userDatamodel.User, dto CreateClientDTO) (*ClientResponse, error)
	Get(ctx context.Context, viewer *userDatamodel.User, id int64) (*ClientResponse, error)
	Update(ctx context.Context, editor *userDatamodel.User, id int64, dto UpdateClientDTO) (*ClientResponse, error)
	ListEnrollments(ctx context.Context, viewer *userDatamodel.User, id int64) ([]EnrollmentView, error)
	SetFieldValue(ctx context.Context, editor *userDatamodel.User, clientID int64, dto SetFieldValueDTO) error
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
	}
}

func (h *Handler) clientID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (h *Handler) CreateClient(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	var dto CreateClientDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	response, err := h.Service.Create(r.Context(), user, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, response)
}

func (h *Handler) GetClient(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	id, ok := h.clientID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	response, err := h.Service.Get(r.Context(), user, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) UpdateClient(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	id, ok := h.clientID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	var dto UpdateClientDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	response, err := h.Service.Update(r.Context(), user, id, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) ListClientPrograms(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	id, ok := h.clientID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	enrollments, err := h.Service.ListEnrollments(r.Context(), user, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, EnrollmentsResponse{Enrollments: enrollments})
}

func (h *Handler) SetClientField(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	id, ok := h.clientID(r)
	if !ok {
		h.WriteError(w, http.StatusBadRequest, "invalid client id")
		return
	}

	var dto SetFieldValueDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	if err := h.Service.SetFieldValue(r.Context(), user, id, dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
