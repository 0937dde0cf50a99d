package api

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"

	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/functions"
	"github.com/MultiX0/dbgate/models"
	"github.com/MultiX0/dbgate/utils"
)

// decodeRequest parses a QueryRequest body, keeping numbers as json.Number so
// numeric literals survive coercion exactly.
func decodeRequest(r *http.Request) (models.QueryRequest, error) {
	var req models.QueryRequest
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(&req); err != nil {
		return req, errs.InvalidArgf("invalid request format")
	}
	return req, nil
}

// FetchData streams matching rows as NDJSON, one object per line. With
// pretty set, each object is indented over several lines and followed by a
// newline.
func (s *APIServer) FetchData(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	flusher, _ := w.(http.Flusher)
	streaming := false

	emit := func(row functions.Row) error {
		line, err := json.Marshal(row)
		if err != nil {
			return err
		}
		if req.Pretty {
			var indented bytes.Buffer
			if err := json.Indent(&indented, line, "", "  "); err != nil {
				return err
			}
			line = indented.Bytes()
		}

		if !streaming {
			w.Header().Set("Content-Type", "application/x-ndjson")
			w.WriteHeader(http.StatusOK)
			streaming = true
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
		if flusher != nil {
			flusher.Flush()
		}
		return nil
	}

	if err := s.engine.FetchData(r.Context(), req, emit); err != nil {
		if !streaming {
			utils.RespondError(w, err)
			return
		}
		// rows already sent stay valid; the stream just ends here
		log.Printf("stream aborted for table %s: %v", req.Table, err)
		return
	}

	if !streaming {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.WriteHeader(http.StatusOK)
	}
}

func (s *APIServer) FetchCount(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	count, err := s.engine.FetchCount(r.Context(), req)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"value": count})
}

func (s *APIServer) DeleteData(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	deleted, err := s.engine.DeleteData(r.Context(), req)
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	if deleted == 0 {
		utils.RespondError(w, errs.NotFoundf("no rows matched the delete filters"))
		return
	}

	utils.WriteJSON(w, http.StatusOK, deleted)
}

func (s *APIServer) TableSchema(w http.ResponseWriter, r *http.Request) {
	req, err := decodeRequest(r)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	schema, err := s.engine.TableSchema(r.Context(), req)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, schema)
}
