package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/api/respond"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/services"
)

type FolderHandler struct {
	svc *services.FolderService
}

func NewFolderHandler(svc *services.FolderService) *FolderHandler { return &FolderHandler{svc: svc} }

// ListFolders GET /api/folders
func (h *FolderHandler) ListFolders(w http.ResponseWriter, r *http.Request) {
	folders, err := h.svc.List(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, model.FolderList{Folders: folders})
}

// CreateFolder POST /api/folders
func (h *FolderHandler) CreateFolder(w http.ResponseWriter, r *http.Request) {
	var req model.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	f, err := h.svc.Create(r.Context(), userID(r), req)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, f)
}

// RenameFolder PATCH /api/folders/{folderId}
func (h *FolderHandler) RenameFolder(w http.ResponseWriter, r *http.Request) {
	var req model.FolderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	f, err := h.svc.Rename(r.Context(), userID(r), mux.Vars(r)["folderId"], req)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, f)
}

// DeleteFolder DELETE /api/folders/{folderId}
func (h *FolderHandler) DeleteFolder(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), userID(r), mux.Vars(r)["folderId"]); err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type TagHandler struct {
	svc *services.TagService
}

func NewTagHandler(svc *services.TagService) *TagHandler { return &TagHandler{svc: svc} }

// ListTags GET /api/tags
func (h *TagHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.svc.List(r.Context(), userID(r))
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, model.TagList{Tags: tags})
}

// CreateTag POST /api/tags
func (h *TagHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req model.TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	t, err := h.svc.Create(r.Context(), userID(r), req)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusCreated, t)
}

// RelabelTag PATCH /api/tags/{tagId}
func (h *TagHandler) RelabelTag(w http.ResponseWriter, r *http.Request) {
	var req model.TagRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	t, err := h.svc.Relabel(r.Context(), userID(r), mux.Vars(r)["tagId"], req)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, t)
}

// DeleteTag DELETE /api/tags/{tagId}
func (h *TagHandler) DeleteTag(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), userID(r), mux.Vars(r)["tagId"]); err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
