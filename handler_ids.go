package main

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/prettylog/blogpipe/internal/gid"
	"github.com/prettylog/blogpipe/middleware"
)

const maxIDsPerRequest = 1000

type IDResponse struct {
	ID  string `json:"id"`
	GID string `json:"gid,omitempty"`
}

type ParsedIDResponse struct {
	ID        string `json:"id"`
	Timestamp int64  `json:"timestamp"`
	MachineID int    `json:"machine_id"`
	Sequence  int    `json:"sequence"`
	Datetime  string `json:"datetime"`
}

func (cfg *apiConfig) handlerIDsCreate(w http.ResponseWriter, r *http.Request) {
	reqID := middleware.GetRequestID(r.Context())

	type parameters struct {
		Count     int    `json:"count"`
		Type      string `json:"type"`
		MachineID *int   `json:"machine_id"`
	}
	params := parameters{Count: 1}
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			respondWithError(w, http.StatusBadRequest, "Please provide a valid request body", err)
			return
		}
	}
	if params.Count < 1 || params.Count > maxIDsPerRequest {
		respondWithError(w, http.StatusBadRequest, "count must be between 1 and "+strconv.Itoa(maxIDsPerRequest), nil)
		return
	}
	entity := gid.EntityType(params.Type)
	if params.Type != "" && !entity.IsValid() {
		respondWithError(w, http.StatusBadRequest, "Unknown entity type", nil)
		return
	}

	gen := cfg.gidGen
	if params.MachineID != nil {
		if cfg.shards == nil || !cfg.owned[*params.MachineID] {
			respondWithError(w, http.StatusBadRequest, "machine_id is not served by this instance", nil)
			return
		}
		shard, err := cfg.shards.Get(*params.MachineID)
		if err != nil {
			respondWithError(w, http.StatusBadRequest, "Invalid machine_id", err)
			return
		}
		gen = shard
	}

	ids := make([]IDResponse, 0, params.Count)
	for i := 0; i < params.Count; i++ {
		id, err := gen.Generate()
		if err != nil {
			if errors.Is(err, gid.ErrClockRegression) {
				slog.ErrorContext(r.Context(), "id minting refused: clock moved backwards",
					"request_id", reqID,
					"error", err,
				)
				respondWithError(w, http.StatusServiceUnavailable, "Clock moved backwards, retry later", nil)
				return
			}
			respondWithError(w, http.StatusInternalServerError, "Unable to generate id", err)
			return
		}
		resp := IDResponse{ID: strconv.FormatUint(id, 10)}
		if params.Type != "" {
			resp.GID = gid.New(entity, id).String()
		}
		ids = append(ids, resp)
	}

	slog.DebugContext(r.Context(), "ids minted", "request_id", reqID, "count", len(ids))
	respondWithJSON(w, http.StatusCreated, ids)
}

func (cfg *apiConfig) handlerIDsParse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(pathParam(r, "*"))
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "Invalid id", err)
		return
	}
	c := gid.Parse(id)
	respondWithJSON(w, http.StatusOK, ParsedIDResponse{
		ID:        strconv.FormatUint(id, 10),
		Timestamp: c.Timestamp,
		MachineID: c.MachineID,
		Sequence:  c.Sequence,
		Datetime:  c.Formatted,
	})
}

// pathParam returns the decoded value of a route parameter. chi matches on
// the escaped path, so %2F-encoded gid:// strings arrive still escaped.
func pathParam(r *http.Request, name string) string {
	raw := chi.URLParam(r, name)
	if v, err := url.PathUnescape(raw); err == nil {
		return v
	}
	return raw
}

// parseIDParam accepts a decimal id, a gid:// string or its base64 form.
func parseIDParam(raw string) (uint64, error) {
	if strings.HasPrefix(raw, gid.Prefix) {
		g, err := gid.ParseGID(raw)
		return g.ID, err
	}
	if id, err := strconv.ParseUint(raw, 10, 64); err == nil {
		return id, nil
	}
	g, err := gid.ParseBase64(raw)
	return g.ID, err
}
