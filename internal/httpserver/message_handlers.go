package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"marketchat/internal/domain"
	"marketchat/internal/service"
)

type messageCreateRequest struct {
	Content string `json:"content"`
}

type messageCreateResponse struct {
	Message   any  `json:"message"`
	Delivered bool `json:"delivered"`
}

func handleCreateMessage(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID, ok := conversationIDParam(w, r)
		if !ok {
			return
		}
		var req messageCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		msg, delivered, err := msgSvc.Send(r.Context(), CurrentUserID(r), convID, req.Content)
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusCreated, messageCreateResponse{
			Message:   msg,
			Delivered: delivered > 0,
		})
	}
}

func handleListMessages(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID, ok := conversationIDParam(w, r)
		if !ok {
			return
		}

		var beforeID int64
		if s := r.URL.Query().Get("before"); s != "" {
			beforeID, _ = strconv.ParseInt(s, 10, 64)
		}
		var limit int
		if s := r.URL.Query().Get("limit"); s != "" {
			limit, _ = strconv.Atoi(s)
		}

		msgs, err := msgSvc.History(r.Context(), CurrentUserID(r), convID, beforeID, limit)
		if err != nil {
			writeError(w, log, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

func handleMarkConversationRead(msgSvc *service.MessageService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convID, ok := conversationIDParam(w, r)
		if !ok {
			return
		}
		if err := msgSvc.MarkRead(r.Context(), CurrentUserID(r), convID); err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
	}
}
