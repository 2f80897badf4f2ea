package api

import (
	"encoding/json"
	"net/http"

	"github.com/bluecrab/gis-backend/internal/survey"
)

type errorBody struct {
	Error   string   `json:"error"`
	Kind    string   `json:"kind,omitempty"`
	Details []string `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// writeError maps the data-layer error kind to a status code.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch survey.KindOf(err) {
	case "validation":
		status = http.StatusUnprocessableEntity
	case "not_found":
		status = http.StatusNotFound
	}
	writeJSON(w, status, errorBody{
		Error:   err.Error(),
		Kind:    survey.KindOf(err),
		Details: survey.Details(err),
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: msg})
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20) // 1 MiB
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

type itemResult struct {
	Index int    `json:"index"`
	ID    string `json:"id,omitempty"`
	Error string `json:"error,omitempty"`
	Kind  string `json:"kind,omitempty"`
}

type batchResponse struct {
	Inserted int          `json:"inserted"`
	Failed   int          `json:"failed"`
	Items    []itemResult `json:"items"`
}

func toBatchResponse(res survey.BatchResult) batchResponse {
	out := batchResponse{Items: make([]itemResult, len(res.Items))}
	for i, it := range res.Items {
		out.Items[i] = itemResult{Index: it.Index, ID: it.ID}
		if it.Err != nil {
			out.Items[i].Error = it.Err.Error()
			out.Items[i].Kind = survey.KindOf(it.Err)
			out.Failed++
		} else {
			out.Inserted++
		}
	}
	return out
}
