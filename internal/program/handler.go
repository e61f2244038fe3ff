package program

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
	ListVisible(ctx context.Context, user *userDatamodel.User) ([]ProgramResponse, error)
	GetByID(ctx context.Context, user *userDatamodel.User, id int64) (*ProgramResponse, error)
	Create(ctx context.Context, user *userDatamodel.User, dto CreateProgramDTO) (*ProgramResponse, error)
	Update(ctx context.Context, user *userDatamodel.User, id int64, dto UpdateProgramDTO) (*ProgramResponse, error)
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

func (h *Handler) ListPrograms(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	programs, err := h.Service.ListVisible(r.Context(), user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ProgramsResponse{Programs: programs})
}

func (h *Handler) GetProgram(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	response, err := h.Service.GetByID(r.Context(), user, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) CreateProgram(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	var dto CreateProgramDTO
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

func (h *Handler) UpdateProgram(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	var dto UpdateProgramDTO
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
