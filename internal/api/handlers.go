package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/weatherapp/backend/internal/weather"
)

var validate = validator.New()

// Handlers holds the dependencies for all HTTP handlers.
type Handlers struct {
	svc WeatherService
	log *slog.Logger
}

// NewHandlers constructs Handlers with all required dependencies.
func NewHandlers(svc WeatherService, log *slog.Logger) *Handlers {
	return &Handlers{svc: svc, log: log}
}

// writeJSON encodes v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error onto an HTTP status and JSON body.
func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	var vErr *weather.ValidationError
	var conflictErr *weather.ConflictError
	var cErr *weather.CollaboratorError

	switch {
	case errors.As(err, &vErr):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": vErr.Message})
	case errors.Is(err, weather.ErrConflict):
		msg := weather.ErrConflict.Error()
		if errors.As(err, &conflictErr) {
			msg = conflictErr.Message
		}
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
	case errors.Is(err, weather.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
	case errors.As(err, &cErr):
		h.log.Error("collaborator call failed", "provider", cErr.Provider, "err", err)
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream provider failed"})
	default:
		h.log.Error("request failed", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

// decodeValid decodes the request body into dst and runs validator tags.
// Writes a 400 and returns false on failure.
func (h *Handlers) decodeValid(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return false
	}
	return true
}

// pathID parses the named chi URL parameter as an int64 id.
func pathID(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

// pagination reads skip/limit query parameters with the 0/100 defaults.
// Negative values are rejected; Postgres refuses them in OFFSET/LIMIT.
func pagination(r *http.Request) (skip, limit int, err error) {
	skip, limit = 0, 100
	if s := r.URL.Query().Get("skip"); s != "" {
		if skip, err = strconv.Atoi(s); err != nil {
			return 0, 0, err
		}
	}
	if l := r.URL.Query().Get("limit"); l != "" {
		if limit, err = strconv.Atoi(l); err != nil {
			return 0, 0, err
		}
	}
	if skip < 0 || limit < 0 {
		return 0, 0, errors.New("negative pagination value")
	}
	return skip, limit, nil
}

// ---- locations ----

type createLocationRequest struct {
	City    string   `json:"city" validate:"required"`
	Country string   `json:"country"`
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
}

// CreateLocation handles POST /locations/.
func (h *Handlers) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req createLocationRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	loc, err := h.svc.CreateLocation(r.Context(), weather.CreateLocationInput{
		City:    req.City,
		Country: req.Country,
		Lat:     req.Lat,
		Lon:     req.Lon,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

// ListLocations handles GET /locations/?skip&limit.
func (h *Handlers) ListLocations(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "skip and limit must be non-negative integers"})
		return
	}

	locs, err := h.svc.ListLocations(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if locs == nil {
		locs = []*weather.Location{}
	}

	writeJSON(w, http.StatusOK, locs)
}

// DeleteLocation handles DELETE /locations/{location_id}.
func (h *Handlers) DeleteLocation(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "location_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location_id must be an integer"})
		return
	}

	loc, err := h.svc.DeleteLocation(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, loc)
}

// ---- weather infos ----

type ingestRequest struct {
	City      string `json:"city" validate:"required"`
	Country   string `json:"country"`
	StartDate string `json:"start_date" validate:"required,datetime=2006-01-02"`
	EndDate   string `json:"end_date" validate:"required,datetime=2006-01-02"`
}

// IngestInfos handles POST /weather_infos/.
func (h *Handlers) IngestInfos(w http.ResponseWriter, r *http.Request) {
	var req ingestRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	infos, err := h.svc.IngestRange(r.Context(), weather.IngestInput{
		City:      req.City,
		Country:   req.Country,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, infos)
}

// ListInfos handles GET /weather_infos/?skip&limit.
func (h *Handlers) ListInfos(w http.ResponseWriter, r *http.Request) {
	skip, limit, err := pagination(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "skip and limit must be non-negative integers"})
		return
	}

	infos, err := h.svc.ListInfos(r.Context(), skip, limit)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if infos == nil {
		infos = []*weather.Info{}
	}

	writeJSON(w, http.StatusOK, infos)
}

// GetInfo handles GET /weather_infos/{info_id}.
func (h *Handlers) GetInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "info_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "info_id must be an integer"})
		return
	}

	info, err := h.svc.GetInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

type updateInfoRequest struct {
	Temperature        *float64 `json:"temperature"`
	WeatherDescription *string  `json:"weather_description"`
	RawData            *string  `json:"raw_data"`
}

// UpdateInfo handles PUT /weather_infos/{info_id}. Absent fields are left
// untouched.
func (h *Handlers) UpdateInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "info_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "info_id must be an integer"})
		return
	}

	var req updateInfoRequest
	if !h.decodeValid(w, r, &req) {
		return
	}

	info, err := h.svc.UpdateInfo(r.Context(), id, weather.InfoUpdate{
		Temperature:        req.Temperature,
		WeatherDescription: req.WeatherDescription,
		RawData:            req.RawData,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// DeleteInfo handles DELETE /weather_infos/{info_id}.
func (h *Handlers) DeleteInfo(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "info_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "info_id must be an integer"})
		return
	}

	info, err := h.svc.DeleteInfo(r.Context(), id)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// InfoByLocDate handles GET /weather_infos/by_loc_date/{location_id}?look_up_date.
func (h *Handlers) InfoByLocDate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "location_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location_id must be an integer"})
		return
	}

	info, err := h.svc.InfoByLocationDate(r.Context(), id, r.URL.Query().Get("look_up_date"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, info)
}

// InfosByLocDateRange handles GET /weather_infos/by_loc_date_range/{location_id}?start_date&end_date.
func (h *Handlers) InfosByLocDateRange(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "location_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location_id must be an integer"})
		return
	}

	q := r.URL.Query()
	infos, err := h.svc.InfosByLocationDateRange(r.Context(), id, q.Get("start_date"), q.Get("end_date"))
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, infos)
}

// ---- export ----

// ExportJSON handles GET /export/json.
func (h *Handlers) ExportJSON(w http.ResponseWriter, r *http.Request) {
	entries, err := h.svc.Export(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, entries)
}

// ---- videos ----

const defaultMaxResults = 3

// LocationVideos handles GET /videos/{location_id}?max_results.
func (h *Handlers) LocationVideos(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "location_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "location_id must be an integer"})
		return
	}

	maxResults := defaultMaxResults
	if mr := r.URL.Query().Get("max_results"); mr != "" {
		maxResults, err = strconv.Atoi(mr)
		if err != nil || maxResults < 1 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "max_results must be a positive integer"})
			return
		}
	}

	lookup, err := h.svc.LocationVideos(r.Context(), id, maxResults)
	if err != nil {
		h.writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, lookup)
}
