package api

import (
	"context"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/bluecrab/gis-backend/internal/analytics"
	"github.com/bluecrab/gis-backend/internal/survey"
	"github.com/bluecrab/gis-backend/internal/surveyimport"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

const maxUpload = 10 << 20 // 10 MiB

// Handler serves the data-layer contract to the UI process.
type Handler struct {
	store   *survey.Store
	agg     *analytics.Aggregator
	pending *pendingImports
	log     *zap.Logger
}

func (h *Handler) listRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := h.store.GetAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}

	q := r.URL.Query()
	if q.Has("q") || q.Has("band") || q.Has("year") {
		f, err := analytics.ParseFilter(q.Get("year"), "")
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		recs = analytics.SearchRecords(recs, q.Get("q"), q.Get("band"), f.Year)
	}
	if recs == nil {
		recs = []survey.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (h *Handler) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.store.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (h *Handler) createRecord(w http.ResponseWriter, r *http.Request) {
	var in survey.NewRecord
	if !decode(w, r, &in) {
		return
	}
	h.insert(r.Context(), w, in)
}

func (h *Handler) createManual(w http.ResponseWriter, r *http.Request) {
	var in survey.ManualEntry
	if !decode(w, r, &in) {
		return
	}
	rec, err := in.Record()
	if err != nil {
		writeError(w, err)
		return
	}
	h.insert(r.Context(), w, rec)
}

func (h *Handler) insert(ctx context.Context, w http.ResponseWriter, in survey.NewRecord) {
	id, err := h.store.Insert(ctx, in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"id": id})
}

func (h *Handler) createBatch(w http.ResponseWriter, r *http.Request) {
	var in []survey.NewRecord
	if !decode(w, r, &in) {
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(h.store.InsertMany(r.Context(), in)))
}

func (h *Handler) updateRecord(w http.ResponseWriter, r *http.Request) {
	var in survey.RecordUpdate
	if !decode(w, r, &in) {
		return
	}
	if err := h.store.Update(r.Context(), chi.URLParam(r, "id"), in); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteRecord(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteSelected(w http.ResponseWriter, r *http.Request) {
	var in struct {
		IDs []string `json:"ids"`
	}
	if !decode(w, r, &in) {
		return
	}
	n, err := h.store.DeleteMany(r.Context(), in.IDs)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) deleteAll(w http.ResponseWriter, r *http.Request) {
	if ok, _ := strconv.ParseBool(r.URL.Query().Get("confirm")); !ok {
		badRequest(w, "refusing to delete all records without confirm=true")
		return
	}
	n, err := h.store.DeleteAll(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"deleted": n})
}

func (h *Handler) listObservers(w http.ResponseWriter, r *http.Request) {
	obs, err := h.store.ListObservers(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if obs == nil {
		obs = []survey.Observer{}
	}
	writeJSON(w, http.StatusOK, obs)
}

func (h *Handler) resolveObserver(w http.ResponseWriter, r *http.Request) {
	var in survey.ObserverInput
	if !decode(w, r, &in) {
		return
	}
	id, err := h.store.ResolveObserver(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (h *Handler) listLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.store.ListLocations(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	if locs == nil {
		locs = []survey.Location{}
	}
	writeJSON(w, http.StatusOK, locs)
}

func (h *Handler) resolveLocation(w http.ResponseWriter, r *http.Request) {
	var in survey.LocationInput
	if !decode(w, r, &in) {
		return
	}
	id, err := h.store.ResolveLocation(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

type previewResponse struct {
	Token   string             `json:"token"`
	Rows    int                `json:"rows"`
	Columns []string           `json:"columns"`
	Preview []surveyimport.Row `json:"preview"`
}

// previewImport accepts a CSV either as the raw body or as the "file" field
// of a multipart form.
func (h *Handler) previewImport(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)

	body := r.Body
	if mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type")); strings.HasPrefix(mt, "multipart/") {
		f, _, err := r.FormFile("file")
		if err != nil {
			badRequest(w, "missing file field: "+err.Error())
			return
		}
		defer f.Close()
		body = f
	}

	raw, err := surveyimport.ParseCSV(body)
	if err != nil {
		if errors.Is(err, surveyimport.ErrNoRows) {
			writeError(w, survey.NewValidationError("validate csv", err.Error()))
			return
		}
		badRequest(w, err.Error())
		return
	}
	v, err := surveyimport.ValidateAndPreview(raw)
	if err != nil {
		writeError(w, err)
		return
	}

	token := h.pending.put(v)
	h.log.Info("csv validated", zap.String("token", token), zap.Int("rows", len(v.Rows)))
	writeJSON(w, http.StatusOK, previewResponse{
		Token:   token,
		Rows:    len(v.Rows),
		Columns: v.Columns,
		Preview: v.Preview(),
	})
}

func (h *Handler) commitImport(w http.ResponseWriter, r *http.Request) {
	v, ok := h.pending.take(chi.URLParam(r, "token"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "unknown or expired import", Kind: "not_found"})
		return
	}
	writeJSON(w, http.StatusOK, toBatchResponse(surveyimport.Commit(r.Context(), h.store, v)))
}
