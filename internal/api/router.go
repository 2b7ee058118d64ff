package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/api/recovery"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/auth"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/services"
	"github.com/rabbit-tale-co/ai-t3-clone-sub001/internal/store"
)

// Deps are the collaborators of the HTTP API.
type Deps struct {
	Store      store.Store
	Authorizer auth.Authorizer
	Health     HealthStatus
	Limits     services.PageLimits
}

// NewRouter wires every route. /api/health and /metrics are public; all
// other routes require a bearer token.
func NewRouter(d Deps) *mux.Router {
	root := mux.NewRouter()
	root.Use(recovery.Middleware, AccessLog)

	healthHandler := NewHealthHandler(d.Health)
	root.HandleFunc("/api/health", healthHandler.CheckHealth).Methods("GET")
	root.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := root.PathPrefix("/api").Subrouter()
	api.Use(Authenticate(d.Authorizer))

	// Threads
	threads := NewThreadHandler(services.NewThreadService(d.Store, d.Limits))
	api.HandleFunc("/threads", threads.ListThreads).Methods("GET")
	api.HandleFunc("/threads", threads.CreateThread).Methods("POST")
	api.HandleFunc("/threads/{threadId}", threads.GetThread).Methods("GET")
	api.HandleFunc("/threads/{threadId}", threads.DeleteThread).Methods("DELETE")
	api.HandleFunc("/threads/{threadId}/folder", threads.MoveThread).Methods("PUT")
	api.HandleFunc("/threads/{threadId}/tags/{tagId}", threads.AddTag).Methods("PUT")
	api.HandleFunc("/threads/{threadId}/tags/{tagId}", threads.RemoveTag).Methods("DELETE")

	// Folders
	folders := NewFolderHandler(services.NewFolderService(d.Store))
	api.HandleFunc("/folders", folders.ListFolders).Methods("GET")
	api.HandleFunc("/folders", folders.CreateFolder).Methods("POST")
	api.HandleFunc("/folders/{folderId}", folders.RenameFolder).Methods("PATCH")
	api.HandleFunc("/folders/{folderId}", folders.DeleteFolder).Methods("DELETE")
	api.HandleFunc("/folders/{folderId}/threads", threads.ListFolderThreads).Methods("GET")

	// Tags
	tags := NewTagHandler(services.NewTagService(d.Store))
	api.HandleFunc("/tags", tags.ListTags).Methods("GET")
	api.HandleFunc("/tags", tags.CreateTag).Methods("POST")
	api.HandleFunc("/tags/{tagId}", tags.RelabelTag).Methods("PATCH")
	api.HandleFunc("/tags/{tagId}", tags.DeleteTag).Methods("DELETE")

	return root
}
