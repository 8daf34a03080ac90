package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/txn2/configs-api/pkg/configs"
)

// errorResponse is the body of every error response.
type errorResponse struct {
	Error string `json:"error"`
}

// configRequest is the body of create and update requests.
type configRequest struct {
	Name     string          `json:"name" example:"data-src"`
	Metadata json.RawMessage `json:"metadata" swaggertype:"object"`
}

// listConfigs handles GET /configs.
//
// @Summary      List configs
// @Description  Returns every stored config ordered by name.
// @Tags         Configs
// @Produce      json
// @Success      200  {array}   configstore.Record
// @Failure      503  {object}  errorResponse
// @Router       /configs [get]
func (h *Handler) listConfigs(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.List(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// createConfig handles POST /configs.
//
// @Summary      Create config
// @Description  Creates a config. Missing metadata is stored as an empty object.
// @Tags         Configs
// @Accept       json
// @Produce      json
// @Param        body  body  configRequest  true  "Config to create"
// @Success      201  {object}  configstore.Record
// @Failure      400  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /configs [post]
func (h *Handler) createConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Create(r.Context(), configs.Input(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

// getConfig handles GET /configs/{name}.
//
// @Summary      Get config
// @Description  Returns a single config by name.
// @Tags         Configs
// @Produce      json
// @Param        name  path  string  true  "Config name"
// @Success      200  {object}  configstore.Record
// @Failure      404  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /configs/{name} [get]
func (h *Handler) getConfig(w http.ResponseWriter, r *http.Request) {
	rec, found, err := h.svc.Get(r.Context(), r.PathValue(pathParamName))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, configs.ErrNotFound.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// updateConfig handles PUT /configs/{name}.
//
// @Summary      Update config
// @Description  Replaces the metadata of an existing config. The name cannot change.
// @Tags         Configs
// @Accept       json
// @Produce      json
// @Param        name  path  string         true  "Config name"
// @Param        body  body  configRequest  true  "Replacement metadata"
// @Success      200  {object}  configstore.Record
// @Failure      400  {object}  errorResponse
// @Failure      404  {object}  errorResponse
// @Failure      409  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /configs/{name} [put]
func (h *Handler) updateConfig(w http.ResponseWriter, r *http.Request) {
	req, ok := decodeBody(w, r)
	if !ok {
		return
	}

	rec, err := h.svc.Update(r.Context(), r.PathValue(pathParamName), configs.Input(req))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// deleteConfig handles DELETE /configs/{name}.
//
// @Summary      Delete config
// @Description  Deletes a config. Deleting a missing config succeeds.
// @Tags         Configs
// @Param        name  path  string  true  "Config name"
// @Success      204
// @Failure      503  {object}  errorResponse
// @Router       /configs/{name} [delete]
func (h *Handler) deleteConfig(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), r.PathValue(pathParamName)); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// searchConfigs handles GET /search.
//
// @Summary      Search configs
// @Description  Returns configs matching a single root.segment.field=value predicate,
// @Description  e.g. /search?metadata.monitoring.enabled=true. Values compare as text.
// @Tags         Configs
// @Produce      json
// @Success      200  {array}   configstore.Record
// @Failure      400  {object}  errorResponse
// @Failure      503  {object}  errorResponse
// @Router       /search [get]
func (h *Handler) searchConfigs(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.Search(r.Context(), r.URL.Query())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// decodeBody reads a config request, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request) (configRequest, bool) {
	var req configRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid request body")
		return req, false
	}
	return req, true
}
