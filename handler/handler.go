// Package handler provides the HTTP routing for the mock server.
package handler

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"

	"jsonmock/store"
)

// endpointDocs is the static endpoint description map served on the
// info page. It advertises GET /:collection/:id even though requests to
// that path return the full collection; the id segment is ignored on
// reads and the single-item route has never existed.
var endpointDocs = map[string]string{
	"GET /":                    "This info page",
	"GET /:collection":         "List all records in a collection",
	"GET /:collection/:id":     "Get a single record",
	"POST /:collection":        "Create a record",
	"PUT /:collection/:id":     "Update a record",
	"DELETE /:collection/:id":  "Delete a record",
	"OPTIONS /:collection/:id": "CORS preflight",
}

// Handler holds the server dependencies.
type Handler struct {
	store store.Store
}

// New creates a Handler over the given store.
func New(s store.Store) *Handler {
	return &Handler{store: s}
}

// ServeHTTP dispatches on method and path shape. Routing quirks are
// part of the observable contract: the root path answers every method
// with the info page, GET ignores any id segment, and any method not
// explicitly handled is treated as a read.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Fixed headers on every response, including errors and preflight.
	hdr := w.Header()
	hdr.Set("Content-Type", "application/json")
	hdr.Set("Access-Control-Allow-Origin", "*")
	hdr.Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
	hdr.Set("Access-Control-Allow-Headers", "Content-Type")

	if r.URL.Path == "/" {
		h.info(w)
		return
	}
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusOK, nil)
		return
	}

	collection, id := parsePath(r.URL.Path)

	body, err := readBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON")
		return
	}

	switch r.Method {
	case http.MethodPost:
		rec, err := h.store.Create(collection, body)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, rec)
	case http.MethodPut:
		rec, err := h.store.Update(collection, id, body)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodDelete:
		if err := h.store.Delete(collection, id); err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusNoContent, nil)
	default:
		// GET and any unregistered method both list the collection.
		records, err := h.store.List(collection)
		if err != nil {
			h.storeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	}
}

// parsePath splits the URL path into collection name and numeric id.
// A missing or non-integer id segment yields NaN, which matches no
// record.
func parsePath(path string) (collection string, id float64) {
	segments := strings.Split(strings.Trim(path, "/"), "/")
	collection = segments[0]
	id = math.NaN()
	if len(segments) > 1 {
		if n, err := strconv.ParseInt(segments[1], 10, 64); err == nil {
			id = float64(n)
		}
	}
	return collection, id
}

// readBody buffers the full request body. An empty body is an empty
// object; a non-empty body that is not valid JSON is an error.
func readBody(r *http.Request) (store.Record, error) {
	defer r.Body.Close()
	b, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if len(b) == 0 {
		return store.Record{}, nil
	}
	var body store.Record
	if err := json.Unmarshal(b, &body); err != nil {
		return nil, err
	}
	return body, nil
}

func (h *Handler) info(w http.ResponseWriter) {
	names, err := h.store.Collections()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if names == nil {
		names = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"name":                  "jsonmock",
		"available_collections": names,
		"endpoints":             endpointDocs,
	})
}

// storeError maps store errors to responses. The two not-found cases
// share a status code and differ only in message text.
func (h *Handler) storeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrCollectionNotFound):
		writeError(w, http.StatusNotFound, "Collection not found")
	case errors.Is(err, store.ErrItemNotFound):
		writeError(w, http.StatusNotFound, "Item not found")
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// writeJSON sends v pretty-printed. A nil payload sends the status and
// headers with an empty body.
func writeJSON(w http.ResponseWriter, status int, v any) {
	if v == nil {
		w.WriteHeader(status)
		return
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	w.Write(b)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
