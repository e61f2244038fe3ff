package export

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi"

	"github.com/nonprofit-tech/casevault/internal"
	"github.com/nonprofit-tech/casevault/internal/access"
	"github.com/nonprofit-tech/casevault/internal/report"
	"github.com/nonprofit-tech/casevault/internal/transport"

	exportDatamodel "github.com/nonprofit-tech/casevault/internal/core/datamodel/export"
)

type Handler struct {
	*transport.BaseHandler
	Broker  *Broker
	Builder *report.Builder
	Stats   report.StatsRepository
}

func NewHandler(baseHandler *transport.BaseHandler, broker *Broker, builder *report.Builder, stats report.StatsRepository) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Broker:      broker,
		Builder:     builder,
		Stats:       stats,
	}
}

func (h *Handler) toResponse(link *exportDatamodel.ExportLink) LinkResponse {
	return LinkResponse{
		ID:          link.ID,
		Kind:        link.Kind,
		IsElevated:  link.IsElevated,
		ContainsPII: link.ContainsPII,
		CreatedAt:   link.CreatedAt,
		ExpiresAt:   link.ExpiresAt,
		AvailableAt: h.Broker.AvailableAt(link),
		Revoked:     link.Revoked,
		RevokedAt:   link.RevokedAt,
	}
}

// CreateExport builds the report content for the requested kind and hands
// it to the broker. The builder does its own permission checks, so a user
// who cannot run the export never produces a file at all.
func (h *Handler) CreateExport(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())

	var dto CreateExportDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.WriteError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	kind, err := access.ParseExportKind(dto.Kind)
	if err != nil {
		h.WriteError(w, http.StatusBadRequest, "unknown export kind")
		return
	}
	if dto.ProgramID == nil {
		h.WriteError(w, http.StatusBadRequest, "program_id is required")
		return
	}
	programID := *dto.ProgramID

	var (
		content     []byte
		clientCount int
		containsPII bool
	)
	switch kind {
	case access.ExportKindClientData:
		built, err := h.Builder.BuildClientData(r.Context(), user, programID)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if content, err = json.Marshal(built); err != nil {
			h.HandleServiceError(w, err)
			return
		}
		clientCount = len(built.Rows)
		containsPII = true
	default:
		built, err := h.Builder.BuildAggregate(r.Context(), user, kind, programID)
		if err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if content, err = json.Marshal(built); err != nil {
			h.HandleServiceError(w, err)
			return
		}
		if clientCount, err = h.Stats.EnrolledCount(r.Context(), programID); err != nil {
			h.HandleServiceError(w, err)
			return
		}
		containsPII = false
	}

	link, err := h.Broker.Create(r.Context(), user, CreateParams{
		Content:          content,
		Kind:             kind,
		ClientCount:      clientCount,
		IncludesRawNotes: dto.IncludeRawNotes,
		ContainsPII:      &containsPII,
	})
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, h.toResponse(link))
}

func (h *Handler) DownloadExport(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	content, link, err := h.Broker.Download(r.Context(), user, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", link.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(content); err != nil {
		h.Logger.Error("failed to stream export content", "link_id", link.ID, "error", err)
	}
}

func (h *Handler) RevokeExport(w http.ResponseWriter, r *http.Request) {
	user := internal.UserFromContext(r.Context())
	id := chi.URLParam(r, "id")

	alreadyRevoked, err := h.Broker.Revoke(r.Context(), user, id)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, RevokeResponse{
		ID:             id,
		Revoked:        true,
		AlreadyRevoked: alreadyRevoked,
	})
}
