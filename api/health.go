package api

import (
	"net/http"

	"github.com/MultiX0/dbgate/utils"
)

func (s *APIServer) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.configs.Ping(r.Context()); err != nil {
		utils.RespondError(w, err)
		return
	}

	utils.WriteJSON(w, http.StatusOK, map[string]any{"ok": true})
}
