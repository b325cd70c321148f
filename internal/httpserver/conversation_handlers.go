package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"marketchat/internal/service"
)

type conversationCreateRequest struct {
	ItemID   int64 `json:"item_id"`
	SellerID int64 `json:"seller_id"`
}

func handleCreateConversation(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req conversationCreateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid JSON body"})
			return
		}

		conv, created, err := convSvc.CreateOrGet(r.Context(), CurrentUserID(r), req.ItemID, req.SellerID)
		if err != nil {
			writeError(w, log, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, conv)
	}
}

func handleListConversations(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := convSvc.ListForUser(r.Context(), CurrentUserID(r))
		if err != nil {
			writeError(w, log, err)
			return
		}
		if views == nil {
			views = []*service.ConversationView{}
		}
		writeJSON(w, http.StatusOK, views)
	}
}

func handleGetConversation(convSvc *service.ConversationService, log *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := conversationIDParam(w, r)
		if !ok {
			return
		}
		conv, err := convSvc.Get(r.Context(), id, CurrentUserID(r))
		if err != nil {
			writeError(w, log, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

func conversationIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	idStr := chi.URLParam(r, "conversationID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid conversation id"})
		return 0, false
	}
	return id, true
}
