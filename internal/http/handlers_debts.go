package http

import (
	"net/http"

	"spendly/internal/core"
)

// handlePendingDebts lists every unsettled debt owed to the user, newest
// transaction first, with friend and transaction context attached.
func (s *Server) handlePendingDebts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	debts, err := s.store.PendingDebts(r.Context(), uid)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, debts)
}

// handleFriendDebts is the full history with one friend, settled rows
// included.
func (s *Server) handleFriendDebts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, http.MethodGet)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	friendID := r.URL.Query().Get("friend_id")
	if friendID == "" {
		s.respondError(r.Context(), w, core.Invalidf("missing friend_id parameter"))
		return
	}
	debts, err := s.store.FriendDebts(r.Context(), uid, friendID)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, debts)
}

func (s *Server) handleSettleDebt(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req struct {
		DebtID string `json:"debt_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	if req.DebtID == "" {
		s.respondError(r.Context(), w, core.Invalidf("missing debt_id"))
		return
	}

	result, err := s.settlements.SettleOne(r.Context(), uid, req.DebtID)
	s.invalidate(uid)
	if err != nil {
		// The debt may be settled even when the credit write failed; give
		// the caller both halves of the story.
		if len(result.Settled) > 0 {
			writePartial(w, result, err.Error())
			return
		}
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSettleAll(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req struct {
		FriendID string `json:"friend_id"`
	}
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	if req.FriendID == "" {
		s.respondError(r.Context(), w, core.Invalidf("missing friend_id"))
		return
	}

	result, err := s.settlements.SettleAllForFriend(r.Context(), uid, req.FriendID)
	s.invalidate(uid)
	if err != nil {
		if len(result.Settled) > 0 {
			writePartial(w, result, err.Error())
			return
		}
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}
