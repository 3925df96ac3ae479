package httpapi

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gatekeeper-bot/gatekeeper/internal/application/history"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/verification"
)

func (s *Server) queryHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var params history.QueryParams

	if v := q.Get("chat_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid chat_id")
			return
		}
		params.ChatID = &id
	}
	if v := q.Get("user_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user_id")
			return
		}
		params.UserID = &id
	}
	if v := q.Get("verdict"); v != "" {
		if !verification.ValidVerdict(verification.Verdict(strings.ToUpper(v))) {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "unknown verdict")
			return
		}
		params.Verdict = &v
	}
	if v := q.Get("since"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "since must be RFC3339")
			return
		}
		params.Since = &ts
	}
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid limit")
			return
		}
		params.Limit = n
	}

	result, err := s.historySvc.Query(r.Context(), params)
	if err != nil {
		s.logger.Error().Err(err).Msg("history query failed")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "history query failed")
		return
	}
	respondJSON(w, http.StatusOK, result)
}
