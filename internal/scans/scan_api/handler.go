package scan_api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-scanner/internal/codes"
	"ms-scanner/internal/models"
	"ms-scanner/internal/scans"
)

const maxPersonLength = 255

type Handler struct {
	Service *scans.ScanService
}

func NewHandler(service *scans.ScanService) *Handler {
	return &Handler{Service: service}
}

// categoryResponse carries the scan-screen presentation of a category.
type categoryResponse struct {
	Name            string `json:"name"`
	Color           string `json:"color"`
	BackgroundColor string `json:"background-color"`
}

type actionResponse struct {
	ID     int64             `json:"id"`
	Time   time.Time         `json:"time"`
	Type   models.ActionType `json:"type"`
	Person string            `json:"person"`
	Point  *string           `json:"point"`
}

type codeResponse struct {
	Numero        string            `json:"numero"`
	TicketEventID int64             `json:"ticket_event_id"`
	Canceled      bool              `json:"canceled"`
	FullName      string            `json:"full_name"`
	Gender        string            `json:"gender"`
	Category      categoryResponse  `json:"category"`
	Meta          map[string]string `json:"meta"`
	Events        []actionResponse  `json:"events"`
	Occupancy     *int              `json:"occupancy,omitempty"`
}

// person extracts and validates the operator identity parameter. Empty or
// oversized means the scanner app is misconfigured, not that the code is
// bad.
func person(r *http.Request) (string, bool) {
	p := r.URL.Query().Get("person")
	if p == "" || len(p) > maxPersonLength {
		return "", false
	}
	return p, true
}

// GetCode handles GET /code/{code}: records a SCAN and returns the
// registration with its visible history. Every code problem is a plain 404
// so gate staff cannot tell a forged ticket from a canceled one.
func (h *Handler) GetCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	operator, ok := person(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	code := chi.URLParam(r, "code")
	point := h.Service.ResolvePoint(ctx, r.URL.Query().Get("point"), r.URL.Query().Get("event"))
	eventID := h.Service.ResolveEventID(ctx, r.URL.Query().Get("event"))

	reg, err := h.Service.ScanCode(ctx, code, operator, point, eventID)
	if err != nil {
		if errors.Is(err, codes.ErrInvalidCode) {
			http.Error(w, "Not Found", http.StatusNotFound)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	occupancy, err := h.Service.Occupancy(ctx, point)
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	resp := codeResponse{
		Numero:        reg.Numero,
		TicketEventID: reg.EventID,
		Canceled:      reg.Canceled,
		FullName:      reg.FullName,
		Gender:        reg.Gender,
		Meta:          reg.MetaMap(),
		Events:        make([]actionResponse, 0, len(reg.Actions)),
		Occupancy:     occupancy,
	}
	if reg.Category != nil {
		resp.Category = categoryResponse{
			Name:            reg.Category.Name,
			Color:           reg.Category.Color,
			BackgroundColor: reg.Category.BackgroundColor,
		}
	}
	for _, action := range reg.Actions {
		item := actionResponse{
			ID:     action.ID,
			Time:   action.Time,
			Type:   action.Type,
			Person: action.Person,
		}
		if action.Point != nil {
			item.Point = &action.Point.Name
		}
		resp.Events = append(resp.Events, item)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// PostCode handles POST /code/{code}: records an ENTRANCE or CANCEL.
func (h *Handler) PostCode(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	operator, ok := person(r)
	if !ok {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	actionType := models.ActionType(r.PostFormValue("type"))
	if actionType != models.ActionEntrance && actionType != models.ActionCancel {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	point := h.Service.ResolvePoint(ctx, r.URL.Query().Get("point"), r.URL.Query().Get("event"))
	if point == nil {
		// State changes must be attributable to a gate.
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	code := chi.URLParam(r, "code")
	if _, err := h.Service.MarkRegistration(ctx, code, actionType, operator, point); err != nil {
		switch {
		case errors.Is(err, codes.ErrInvalidCode):
			http.Error(w, "Not Found", http.StatusNotFound)
		case errors.Is(err, scans.ErrInvalidActionType):
			http.Error(w, "Bad Request", http.StatusBadRequest)
		default:
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
		return
	}

	w.Write([]byte("OK"))
}

// PostSeq handles POST /seq: stamps a new sequence boundary for a point,
// resetting its live occupancy counter.
func (h *Handler) PostSeq(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	pointID, err := strconv.ParseInt(r.PostFormValue("point"), 10, 64)
	if err != nil {
		http.Error(w, "Bad Request", http.StatusBadRequest)
		return
	}

	if _, err := h.Service.CreateSequence(r.Context(), pointID); err != nil {
		if errors.Is(err, scans.ErrUnknownPoint) {
			http.Error(w, "Bad Request", http.StatusBadRequest)
			return
		}
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	w.Write([]byte("OK"))
}
