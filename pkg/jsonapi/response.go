package jsonapi

import (
	"encoding/json"
	"net/http"
)

var versionObject = &JSONAPI{Version: Version}

// WriteDocument writes doc with the JSON:API media type.
func WriteDocument(w http.ResponseWriter, status int, doc Document) {
	if doc.JSONAPI == nil {
		doc.JSONAPI = versionObject
	}
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(doc)
}

// WriteResource writes a single resource response.
func WriteResource(w http.ResponseWriter, status int, r Resource) {
	WriteDocument(w, status, Document{Data: r})
}

// WriteCollection writes a collection with its size in meta.total.
// A nil collection is written as an empty array.
func WriteCollection(w http.ResponseWriter, status int, resources []Resource) {
	if resources == nil {
		resources = []Resource{}
	}
	WriteDocument(w, status, Document{Data: resources, Meta: Meta{"total": len(resources)}})
}

// WriteError writes an error response with one or more errors.
// The HTTP status is derived from the first error's status field.
func WriteError(w http.ResponseWriter, errs ...Error) {
	if len(errs) == 0 {
		errs = []Error{ErrInternal("")}
	}

	status := errs[0].StatusCode()
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteDocument(w, status, Document{Errors: errs})
}

// WriteMeta writes a response with only metadata (no data).
func WriteMeta(w http.ResponseWriter, status int, meta Meta) {
	WriteDocument(w, status, Document{Meta: meta})
}

// WriteNoContent writes a 204 No Content response.
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// WriteBadRequest is a convenience for 400 errors.
func WriteBadRequest(w http.ResponseWriter, detail string) {
	WriteError(w, ErrBadRequest(detail))
}
