package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/api/respond"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/model"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/services"
)

// ThreadHandler is a thin HTTP transport over ThreadService.
type ThreadHandler struct {
	svc *services.ThreadService
}

func NewThreadHandler(svc *services.ThreadService) *ThreadHandler { return &ThreadHandler{svc: svc} }

// pageParams reads limit, startingAfter and endingBefore. A cursor that is
// present but empty is kept so validation can reject it.
func pageParams(r *http.Request) (model.PageParams, error) {
	var p model.PageParams
	q := r.URL.Query()
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: limit must be an integer", model.ErrValidation)
		}
		p.Limit = n
	}
	if q.Has("startingAfter") {
		v := q.Get("startingAfter")
		p.StartingAfter = &v
	}
	if q.Has("endingBefore") {
		v := q.Get("endingBefore")
		p.EndingBefore = &v
	}
	return p, nil
}

// ListThreads GET /api/threads
func (h *ThreadHandler) ListThreads(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	h.page(w, r, p)
}

// ListFolderThreads GET /api/folders/{folderId}/threads
func (h *ThreadHandler) ListFolderThreads(w http.ResponseWriter, r *http.Request) {
	p, err := pageParams(r)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	folderID := mux.Vars(r)["folderId"]
	p.FolderID = &folderID
	h.page(w, r, p)
}

func (h *ThreadHandler) page(w http.ResponseWriter, r *http.Request, p model.PageParams) {
	page, err := h.svc.Page(r.Context(), userID(r), p)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, page)
}

// CreateThread POST /api/threads
func (h *ThreadHandler) CreateThread(w http.ResponseWriter, r *http.Request) {
	var req model.CreateThreadRequest
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

// GetThread GET /api/threads/{threadId}
func (h *ThreadHandler) GetThread(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), userID(r), mux.Vars(r)["threadId"])
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, t)
}

// DeleteThread DELETE /api/threads/{threadId}
func (h *ThreadHandler) DeleteThread(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), userID(r), mux.Vars(r)["threadId"]); err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// MoveThread PUT /api/threads/{threadId}/folder
func (h *ThreadHandler) MoveThread(w http.ResponseWriter, r *http.Request) {
	var req model.MoveThreadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respond.WriteBadRequest(w, "Invalid JSON")
		return
	}
	t, err := h.svc.Move(r.Context(), userID(r), mux.Vars(r)["threadId"], req.FolderID)
	if err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	respond.WriteJSON(w, http.StatusOK, t)
}

// AddTag PUT /api/threads/{threadId}/tags/{tagId}
func (h *ThreadHandler) AddTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.AddTag(r.Context(), userID(r), vars["threadId"], vars["tagId"]); err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RemoveTag DELETE /api/threads/{threadId}/tags/{tagId}
func (h *ThreadHandler) RemoveTag(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.RemoveTag(r.Context(), userID(r), vars["threadId"], vars["tagId"]); err != nil {
		respond.WriteServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
