package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/quillpost/apiserver/internal/logging"
	"github.com/quillpost/apiserver/internal/services"
	"github.com/quillpost/apiserver/types"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	postService *services.PostService
	logger      logging.Logger
}

// NewPostHandler constructs a handler with the provided service.
func NewPostHandler(postService *services.PostService, logger logging.Logger) *PostHandler {
	return &PostHandler{postService: postService, logger: logger}
}

// PostRouter registers post routes on the given router. Reads are public;
// writes go through authMiddleware.
func PostRouter(r chi.Router, handler *PostHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Get("/", handler.ListPosts)
	r.With(authMiddleware).Post("/", handler.CreatePost)
	r.Route("/{postID}", func(r chi.Router) {
		r.Get("/", handler.GetPost)
		r.With(authMiddleware).Put("/", handler.UpdatePost)
		r.With(authMiddleware).Delete("/", handler.DeletePost)
	})
}

func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	posts, err := h.postService.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, PostListResponse{Posts: posts})
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	id, ok := parsePostID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgPostNotFound)
		return
	}

	post, err := h.postService.Get(r.Context(), id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			writeError(w, http.StatusNotFound, msgPostNotFound)
			return
		}
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, PostResponse{Post: post})
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	principal, err := services.RequirePrincipal(principalFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	var req PostUpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	post, err := h.postService.Create(r.Context(), principal, req.Title, req.Body)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, PostCreatedResponse{Message: "Post created successfully.", Post: post})
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	principal, err := services.RequirePrincipal(principalFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	var req PostUpsertRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, msgMissingFields)
		return
	}

	id, ok := parsePostID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgPostNotFound)
		return
	}

	if err := h.postService.Update(r.Context(), principal, id, req.Title, req.Body); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Post updated successfully.")
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	principal, err := services.RequirePrincipal(principalFromContext(r.Context()))
	if err != nil {
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
		return
	}

	id, ok := parsePostID(r)
	if !ok {
		writeError(w, http.StatusNotFound, msgPostNotFound)
		return
	}

	if err := h.postService.Delete(r.Context(), principal, id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeMessage(w, http.StatusOK, "Post deleted successfully.")
}

func (h *PostHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, msgMissingFields)
	case errors.Is(err, services.ErrNotFound):
		writeError(w, http.StatusNotFound, msgPostNotFound)
	case errors.Is(err, services.ErrForbidden):
		writeError(w, http.StatusForbidden, msgNotOwner)
	case errors.Is(err, services.ErrUnauthenticated):
		writeError(w, http.StatusUnauthorized, msgNotAuthenticated)
	default:
		h.internalError(w, r, err)
	}
}

func (h *PostHandler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger.Error(r.Context(), "post request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	writeError(w, http.StatusInternalServerError, msgServerError)
}

// PostUpsertRequest is the body of create and update requests.
type PostUpsertRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

type PostListResponse struct {
	Posts []types.Post `json:"posts"`
}

type PostResponse struct {
	Post types.Post `json:"post"`
}

type PostCreatedResponse struct {
	Message string     `json:"message"`
	Post    types.Post `json:"post"`
}

// parsePostID reads the {postID} URL parameter. Anything that is not a
// positive integer cannot name a post.
func parsePostID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "postID"), 10, 64)
	if err != nil || id < 1 {
		return 0, false
	}
	return id, true
}
