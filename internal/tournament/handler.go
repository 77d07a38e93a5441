package tournament

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/koustreak/quizmeet/internal/outcome"
)

const maxBodyBytes = 1 << 20

// Handler exposes a Service over HTTP.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// Routes returns the router to mount at /api/tournaments.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.list)
	r.Post("/", h.create)
	r.Get("/filter", h.between)
	r.Get("/today", h.current)
	r.Route("/{id}", func(r chi.Router) {
		r.Get("/", h.get)
		r.Put("/", h.update)
		r.Delete("/", h.delete)
	})
	return r
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	page, err := pageFrom(r)
	if err != nil {
		reject[[]Tournament](w, err.Error())
		return
	}
	write(w, h.svc.List(r.Context(), page))
}

// between takes from_date and to_date as Unix milliseconds.
func (h *Handler) between(w http.ResponseWriter, r *http.Request) {
	from, err := millisParam(r, "from_date")
	if err != nil {
		reject[[]Tournament](w, err.Error())
		return
	}
	to, err := millisParam(r, "to_date")
	if err != nil {
		reject[[]Tournament](w, err.Error())
		return
	}
	if from.After(to.Time) {
		reject[[]Tournament](w, "from_date must not be after to_date")
		return
	}
	write(w, h.svc.Between(r.Context(), from, to))
}

func (h *Handler) current(w http.ResponseWriter, r *http.Request) {
	write(w, h.svc.Current(r.Context()))
}

func (h *Handler) get(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam[Tournament](w, r)
	if !ok {
		return
	}
	write(w, h.svc.Get(r.Context(), id))
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	c, ok := changeset(w, r)
	if !ok {
		return
	}
	write(w, h.svc.Create(r.Context(), c))
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam[Tournament](w, r)
	if !ok {
		return
	}
	c, ok := changeset(w, r)
	if !ok {
		return
	}
	write(w, h.svc.Update(r.Context(), id, c))
}

func (h *Handler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := idParam[Deleted](w, r)
	if !ok {
		return
	}
	write(w, h.svc.Delete(r.Context(), id))
}

func changeset(w http.ResponseWriter, r *http.Request) (Changeset, bool) {
	var c Changeset
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		reject[Tournament](w, "invalid request body: "+err.Error())
		return Changeset{}, false
	}
	if err := c.Validate(); err != nil {
		reject[Tournament](w, err.Error())
		return Changeset{}, false
	}
	return c, true
}

func idParam[T any](w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		reject[T](w, "invalid tournament id")
		return uuid.Nil, false
	}
	return id, true
}

func pageFrom(r *http.Request) (Page, error) {
	var p Page
	q := r.URL.Query()
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Page{}, &paramError{"page"}
		}
		p.Page = n
	}
	if v := q.Get("page_size"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return Page{}, &paramError{"page_size"}
		}
		p.PageSize = n
	}
	return p.Normalize(), nil
}

func millisParam(r *http.Request, name string) (Date, error) {
	ms, err := strconv.ParseInt(r.URL.Query().Get(name), 10, 64)
	if err != nil {
		return Date{}, &paramError{name}
	}
	return DateOf(time.UnixMilli(ms)), nil
}

type paramError struct {
	name string
}

func (e *paramError) Error() string {
	return "invalid query parameter " + e.name
}

// reject answers a request that never reached storage.
func reject[T any](w http.ResponseWriter, msg string) {
	write(w, outcome.Envelope[T]{Code: http.StatusBadRequest, Message: msg})
}

func write[T any](w http.ResponseWriter, env outcome.Envelope[T]) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(env.Code)
	_ = json.NewEncoder(w).Encode(env)
}
