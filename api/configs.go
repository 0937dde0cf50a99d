package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/MultiX0/dbgate/errs"
	"github.com/MultiX0/dbgate/models"
	"github.com/MultiX0/dbgate/utils"
)

func (s *APIServer) ListConfigs(w http.ResponseWriter, r *http.Request) {
	configs, err := s.configs.List(r.Context())
	if err != nil {
		utils.RespondError(w, err)
		return
	}
	if configs == nil {
		configs = []models.DatabaseConfig{}
	}

	utils.WriteJSON(w, http.StatusOK, configs)
}

func (s *APIServer) GetConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	config, err := s.configs.GetByID(r.Context(), id)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, config)
}

func (s *APIServer) CreateConfig(w http.ResponseWriter, r *http.Request) {
	var config models.DatabaseConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		utils.RespondError(w, errs.InvalidArgf("invalid request format"))
		return
	}

	created, err := s.configs.Create(r.Context(), config)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, created)
}

func (s *APIServer) UpdateConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	var config models.DatabaseConfig
	if err := json.NewDecoder(r.Body).Decode(&config); err != nil {
		utils.RespondError(w, errs.InvalidArgf("invalid request format"))
		return
	}

	updated, err := s.configs.Update(r.Context(), id, config)
	if err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, updated)
}

func (s *APIServer) DeleteConfig(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	if err := s.configs.Delete(r.Context(), id); err != nil {
		utils.RespondError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
