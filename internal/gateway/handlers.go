package gateway

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/matheus3301/crewchat/internal/feed"
	"github.com/matheus3301/crewchat/internal/message"
	"github.com/matheus3301/crewchat/internal/messaging"
)

const maxPageSize = 500

func queryLimit(r *http.Request, def int) int {
	n, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || n <= 0 {
		return def
	}
	return min(n, maxPageSize)
}

func (h *handlers) handleMe(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, currentUser(r))
}

func (h *handlers) handleListConversations(w http.ResponseWriter, r *http.Request) {
	convs, err := h.Directory.Conversations(r.Context(), currentUser(r))
	if err != nil {
		writeError(w, err)
		return
	}
	if convs == nil {
		convs = []message.Conversation{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"conversations": convs})
}

func (h *handlers) handleListMessages(w http.ResponseWriter, r *http.Request) {
	limit := queryLimit(r, 50)
	msgs, err := h.Client.History(r.Context(), currentUser(r), chi.URLParam(r, "conversationID"), r.URL.Query().Get("before"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if msgs == nil {
		msgs = []message.Message{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"messages": msgs, "has_more": len(msgs) == limit})
}

type sendRequest struct {
	Content          string               `json:"content"`
	ReplyToMessageID string               `json:"reply_to_message_id"`
	Attachments      []message.Attachment `json:"attachments"`
	Wait             bool                 `json:"wait"`
}

type sendResponse struct {
	Message message.Message `json:"message"`
	Error   *errorBody      `json:"error,omitempty"`
}

func (h *handlers) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	d, err := h.Client.Send(r.Context(), currentUser(r), messaging.SendRequest{
		ConversationID:   chi.URLParam(r, "conversationID"),
		Content:          req.Content,
		ReplyToMessageID: req.ReplyToMessageID,
		Attachments:      req.Attachments,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	h.respondDelivery(w, r, d, req.Wait)
}

func (h *handlers) handleRetryMessage(w http.ResponseWriter, r *http.Request) {
	d, err := h.Client.Retry(r.Context(), currentUser(r), chi.URLParam(r, "conversationID"), chi.URLParam(r, "key"))
	if err != nil {
		writeError(w, err)
		return
	}
	wait, _ := strconv.ParseBool(r.URL.Query().Get("wait"))
	h.respondDelivery(w, r, d, wait)
}

// respondDelivery answers 202 with the pending message, or with the outcome
// once the delivery resolves when wait is set. A failed delivery is reported
// in the body next to the failed message.
func (h *handlers) respondDelivery(w http.ResponseWriter, r *http.Request, d *messaging.Delivery, wait bool) {
	if !wait {
		writeJSON(w, http.StatusAccepted, sendResponse{Message: d.Pending()})
		return
	}
	m, err := d.Wait(r.Context())
	if err != nil {
		if r.Context().Err() != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, sendResponse{
			Message: m,
			Error:   &errorBody{Error: err.Error(), Kind: message.KindOf(err)},
		})
		return
	}
	writeJSON(w, http.StatusCreated, sendResponse{Message: m})
}

func (h *handlers) handleFeed(w http.ResponseWriter, r *http.Request) {
	msgs, err := h.Client.Snapshot(r.Context(), currentUser(r), chi.URLParam(r, "conversationID"))
	if err != nil {
		writeError(w, err)
		return
	}
	opts := h.opts.Feed
	if r.URL.Query().Get("separators") == "day" {
		opts.Mode = feed.SeparatorCalendarDay
	}
	items := feed.Build(msgs, time.Now(), opts)
	if items == nil {
		items = []feed.Item{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *handlers) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := queryLimit(r, 50)
	results, err := h.DB.SearchMessages(r.Context(), currentUser(r).UID, q.Get("q"), q.Get("conversation_id"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	type result struct {
		Message message.Message `json:"message"`
		Snippet string          `json:"snippet"`
	}
	out := make([]result, 0, len(results))
	for _, res := range results {
		out = append(out, result{Message: res.Message, Snippet: res.Snippet})
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": out, "has_more": len(results) == limit})
}

func (h *handlers) handleOpenDirect(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	conv, err := h.Directory.OpenDirect(r.Context(), currentUser(r), req.UserID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *handlers) handleOpenCrewChannel(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Channel string `json:"channel"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	conv, err := h.Directory.OpenCrewChannel(r.Context(), currentUser(r), chi.URLParam(r, "crewID"), req.Channel)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, conv)
}

func (h *handlers) handleJoinCrew(w http.ResponseWriter, r *http.Request) {
	var req struct {
		InviteToken string `json:"invite_token"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	member, conv, err := h.Directory.Join(r.Context(), currentUser(r), req.InviteToken)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"member": member, "conversation": conv})
}

func (h *handlers) handleCreateInvite(w http.ResponseWriter, r *http.Request) {
	var req struct {
		TTLSeconds int64 `json:"ttl_seconds"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	token, expires, err := h.Directory.CreateInvite(r.Context(), currentUser(r), chi.URLParam(r, "crewID"), time.Duration(req.TTLSeconds)*time.Second)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"token": token, "expires_at": expires})
}

func (h *handlers) handleListMembers(w http.ResponseWriter, r *http.Request) {
	members, err := h.Directory.Members(r.Context(), currentUser(r), chi.URLParam(r, "crewID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if members == nil {
		members = []message.Member{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

func (h *handlers) requireMember(w http.ResponseWriter, r *http.Request, crewID string) bool {
	id := currentUser(r)
	ok, err := h.Directory.IsMember(r.Context(), id, crewID)
	if err != nil {
		writeError(w, err)
		return false
	}
	if !ok {
		writeError(w, message.NotAuthorized("presence", "%s is not a member of crew %s", id.UID, crewID))
		return false
	}
	return true
}

func (h *handlers) handleListPresence(w http.ResponseWriter, r *http.Request) {
	crewID := chi.URLParam(r, "crewID")
	if !h.requireMember(w, r, crewID) {
		return
	}
	recs, err := h.Tracker.List(r.Context(), crewID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"records": recs})
}

func (h *handlers) handleSetPresence(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Online bool `json:"online"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, err)
		return
	}
	crewID := chi.URLParam(r, "crewID")
	if !h.requireMember(w, r, crewID) {
		return
	}
	rec, err := h.Tracker.SetOnlineStatus(r.Context(), currentUser(r).UID, crewID, req.Online)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}
