package httpapi

import (
	"errors"
	"net/http"

	"github.com/gatekeeper-bot/gatekeeper/internal/application/groups"
	"github.com/gatekeeper-bot/gatekeeper/internal/domain/group"
)

type groupUpsertRequest struct {
	Title     string  `json:"title,omitempty"`
	Allowed   *bool   `json:"allowed,omitempty"`
	Topic     *string `json:"topic,omitempty"`
	Prescreen *string `json:"prescreen,omitempty"`
}

func (s *Server) listGroups(w http.ResponseWriter, r *http.Request) {
	cfgs, err := s.groupsSvc.List(r.Context())
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to list groups")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to list groups")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"groups": cfgs,
		"count":  len(cfgs),
	})
}

func (s *Server) putGroup(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseChatIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid chat id")
		return
	}
	var req groupUpsertRequest
	if err := decodeBody(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}

	cfg, err := s.groupsSvc.Upsert(r.Context(), groups.UpsertInput{
		ChatID:    chatID,
		Title:     req.Title,
		Allowed:   req.Allowed,
		Topic:     req.Topic,
		Prescreen: req.Prescreen,
	})
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, cfg)
}

func (s *Server) deleteGroup(w http.ResponseWriter, r *http.Request) {
	chatID, err := parseChatIDParam(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid chat id")
		return
	}
	if err := s.groupsSvc.Delete(r.Context(), chatID); err != nil {
		if errors.Is(err, group.ErrNotFound) {
			respondError(w, http.StatusNotFound, "NOT_FOUND", "group not found")
			return
		}
		s.logger.Error().Err(err).Int64("chat_id", chatID).Msg("failed to delete group")
		respondError(w, http.StatusInternalServerError, "INTERNAL", "failed to delete group")
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"deleted": chatID})
}
