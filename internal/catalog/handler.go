// internal/catalog/handler.go
package catalog

import (
	"encoding/json"
	"net/http"

	"bookcatalog/internal/eventstore"
	"bookcatalog/internal/log"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

type Handler struct {
	service Service
	limiter *rate.Limiter
}

// NewHandler wraps service in an HTTP driver. A nil limiter disables rate
// limiting.
func NewHandler(service Service, limiter *rate.Limiter) *Handler {
	return &Handler{service: service, limiter: limiter}
}

// Routes returns the router for the catalog API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.rateLimit)

	r.Route("/items", func(r chi.Router) {
		r.Post("/", h.handleAddItem)
		r.Get("/", h.handleListItems)
		r.Route("/{isbn}", func(r chi.Router) {
			r.Get("/", h.handleGetItem)
			r.Delete("/", h.handleRemoveItem)
			r.Post("/checkout", h.handleCheckOut)
			r.Post("/return", h.handleReturn)
			r.Get("/events", h.handleHistory)
		})
	})
	r.Get("/search", h.handleSearch)

	return r
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.limiter != nil && !h.limiter.Allow() {
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type outcomeResponse struct {
	Outcome Outcome `json:"outcome"`
}

// StatusFor maps an outcome to the HTTP status the driver answers with.
func StatusFor(outcome Outcome) int {
	switch outcome {
	case Inserted:
		return http.StatusCreated
	case Deleted:
		return http.StatusNoContent
	case NotFound:
		return http.StatusNotFound
	case DuplicateKey, AlreadyCheckedOut, AlreadyAvailable:
		return http.StatusConflict
	default:
		return http.StatusOK
	}
}

func (h *Handler) handleAddItem(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ISBN   string `json:"isbn"`
		Title  string `json:"title"`
		Author string `json:"author"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome, err := h.service.Insert(r.Context(), NewItem(req.Title, req.Author, req.ISBN))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, StatusFor(outcome), outcomeResponse{Outcome: outcome})
}

func (h *Handler) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.List(r.Context())
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) handleGetItem(w http.ResponseWriter, r *http.Request) {
	item, outcome, err := h.service.Get(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if outcome == NotFound {
		writeJSON(w, http.StatusNotFound, outcomeResponse{Outcome: outcome})
		return
	}

	writeJSON(w, http.StatusOK, item)
}

func (h *Handler) handleRemoveItem(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Delete(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if outcome == Deleted {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	writeJSON(w, StatusFor(outcome), outcomeResponse{Outcome: outcome})
}

func (h *Handler) handleCheckOut(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.CheckOut(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, StatusFor(outcome), outcomeResponse{Outcome: outcome})
}

func (h *Handler) handleReturn(w http.ResponseWriter, r *http.Request) {
	outcome, err := h.service.Return(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, StatusFor(outcome), outcomeResponse{Outcome: outcome})
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	events, err := h.service.History(r.Context(), chi.URLParam(r, "isbn"))
	if err != nil {
		h.internalError(w, r, err)
		return
	}
	if events == nil {
		events = []eventstore.Event{}
	}

	writeJSON(w, http.StatusOK, events)
}

func (h *Handler) handleSearch(w http.ResponseWriter, r *http.Request) {
	var (
		items []Item
		err   error
	)

	q := r.URL.Query()
	switch {
	case q.Has("title"):
		items, _, err = h.service.FindByTitle(r.Context(), q.Get("title"))
	case q.Has("author"):
		items, _, err = h.service.FindByCreator(r.Context(), q.Get("author"))
	default:
		http.Error(w, "missing search query: use title or author", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.internalError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) internalError(w http.ResponseWriter, r *http.Request, err error) {
	log.ErrorErr(log.CatHTTP, "request failed", err,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
	)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.ErrorErr(log.CatHTTP, "failed to encode response", err)
	}
}
