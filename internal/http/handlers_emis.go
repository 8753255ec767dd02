package http

import (
	"context"
	"net/http"

	"spendly/internal/core"
)

// handleEmis lists, creates, and deletes installment plans. Deleting a
// plan cascades to its payments; the generated transactions stay in the
// ledger as history.
func (s *Server) handleEmis(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		activeOnly := r.URL.Query().Get("active") == "true"
		emis, err := s.store.Emis(r.Context(), uid, activeOnly)
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, emis)
	case http.MethodPost:
		var req struct {
			Title       string  `json:"title"`
			Amount      float64 `json:"amount"`
			TotalMonths int     `json:"total_months"`
			StartMonth  int     `json:"start_month"`
			StartYear   int     `json:"start_year"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		if req.StartMonth == 0 && req.StartYear == 0 {
			p := core.PeriodOf(s.now())
			req.StartMonth, req.StartYear = p.Month, p.Year
		}
		emi, err := s.store.AddEmi(r.Context(), core.Emi{
			UserID:      uid,
			Title:       req.Title,
			Amount:      req.Amount,
			TotalMonths: req.TotalMonths,
			StartMonth:  req.StartMonth,
			StartYear:   req.StartYear,
			IsActive:    true,
		})
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusCreated, emi)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.respondError(r.Context(), w, core.Invalidf("missing id parameter"))
			return
		}
		if err := s.store.DeleteEmi(r.Context(), uid, id); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.invalidate(uid)
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

type emiPeriodRequest struct {
	EmiID string `json:"emi_id"`
	Month int    `json:"month"`
	Year  int    `json:"year"`
}

func (s *Server) handlePayEmi(w http.ResponseWriter, r *http.Request) {
	s.emiMutation(w, r, s.emis.PayMonth)
}

func (s *Server) handleUnpayEmi(w http.ResponseWriter, r *http.Request) {
	s.emiMutation(w, r, s.emis.UnpayMonth)
}

func (s *Server) emiMutation(w http.ResponseWriter, r *http.Request, op func(ctx context.Context, userID, emiID string, p core.Period) (core.Emi, error)) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, http.MethodPost)
		return
	}
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req emiPeriodRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	if req.EmiID == "" {
		s.respondError(r.Context(), w, core.Invalidf("missing emi_id"))
		return
	}
	p := core.Period{Month: req.Month, Year: req.Year}
	if req.Month == 0 && req.Year == 0 {
		p = core.PeriodOf(s.now())
	}

	emi, err := op(r.Context(), uid, req.EmiID, p)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidate(uid)
	writeJSON(w, http.StatusOK, emi)
}
