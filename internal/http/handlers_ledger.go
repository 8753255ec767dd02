package http

import (
	"net/http"
	"time"

	"spendly/internal/core"
	"spendly/internal/services"
)

// handleTransactions serves the month ledger: list, create a (possibly
// split) transaction, delete one.
func (s *Server) handleTransactions(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		s.listTransactions(w, r)
	case http.MethodPost:
		s.createTransaction(w, r)
	case http.MethodDelete:
		s.deleteTransaction(w, r)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) listTransactions(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	p, err := parsePeriod(r, core.PeriodOf(s.now()))
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	txns, err := s.store.MonthTransactions(r.Context(), uid, p)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, txns)
}

type shareRequest struct {
	FriendID string  `json:"friend_id"`
	Amount   float64 `json:"amount"`
}

type createTransactionRequest struct {
	Title       string         `json:"title"`
	TotalAmount float64        `json:"total_amount"`
	MyAmount    float64        `json:"my_amount"`
	Category    string         `json:"category"`
	Note        string         `json:"note"`
	Date        string         `json:"date"` // YYYY-MM-DD, defaults to today
	Shares      []shareRequest `json:"shares"`
	TagIDs      []string       `json:"tag_ids"`
}

func (s *Server) createTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	var req createTransactionRequest
	if err := decodeBody(r, &req); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	date := req.Date
	if date == "" {
		date = s.now().Format("2006-01-02")
	}
	day, err := time.Parse("2006-01-02", date)
	if err != nil {
		s.respondError(r.Context(), w, core.Invalidf("invalid date %q", req.Date))
		return
	}
	category := req.Category
	if category == "" {
		category = core.CategoryGeneral
	}

	in := services.SplitInput{
		Transaction: core.Transaction{
			UserID:      uid,
			Title:       req.Title,
			TotalAmount: req.TotalAmount,
			MyAmount:    req.MyAmount,
			Category:    category,
			Note:        req.Note,
			Date:        date,
			Month:       int(day.Month()),
			Year:        day.Year(),
		},
	}
	for _, share := range req.Shares {
		in.Shares = append(in.Shares, services.DebtShare{FriendID: share.FriendID, Amount: share.Amount})
	}

	created, err := s.settlements.CreateSplit(r.Context(), in)
	if err != nil {
		s.respondError(r.Context(), w, err)
		return
	}

	if len(req.TagIDs) > 0 {
		if err := s.store.TagTransaction(r.Context(), uid, created.ID, req.TagIDs); err != nil {
			s.logger.WarnContext(r.Context(), "Transaction created but tags not attached", "transaction_id", created.ID, "error", err)
		}
	}

	s.invalidate(uid)
	writeJSON(w, http.StatusCreated, created)
}

func (s *Server) deleteTransaction(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	id := r.URL.Query().Get("id")
	if id == "" {
		s.respondError(r.Context(), w, core.Invalidf("missing id parameter"))
		return
	}
	if err := s.store.DeleteTransaction(r.Context(), uid, id); err != nil {
		s.respondError(r.Context(), w, err)
		return
	}
	s.invalidate(uid)
	writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
}

func (s *Server) handleTags(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		tags, err := s.store.Tags(r.Context(), uid)
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, tags)
	case http.MethodPost:
		var req struct {
			Name  string `json:"name"`
			Color string `json:"color"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		tag, err := s.store.CreateTag(r.Context(), core.Tag{UserID: uid, Name: req.Name, Color: req.Color})
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusCreated, tag)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.respondError(r.Context(), w, core.Invalidf("missing id parameter"))
			return
		}
		if err := s.store.DeleteTag(r.Context(), uid, id); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.invalidate(uid)
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

func (s *Server) handleFriends(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		friends, err := s.store.Friends(r.Context(), uid)
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, friends)
	case http.MethodPost:
		var req struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		friend, err := s.store.AddFriend(r.Context(), core.Friend{UserID: uid, Name: req.Name, Email: req.Email})
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusCreated, friend)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.respondError(r.Context(), w, core.Invalidf("missing id parameter"))
			return
		}
		if err := s.store.DeleteFriend(r.Context(), uid, id); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.invalidate(uid)
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}

// handleBudget reads or sets the base budget for a month. PUT is an
// upsert keyed on (user, month, year).
func (s *Server) handleBudget(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := parsePeriod(r, core.PeriodOf(s.now()))
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		budget, err := s.store.Budget(r.Context(), uid, p)
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		if budget == nil {
			writeJSON(w, http.StatusOK, nil)
			return
		}
		writeJSON(w, http.StatusOK, budget)
	case http.MethodPut:
		var req struct {
			Month  int     `json:"month"`
			Year   int     `json:"year"`
			Amount float64 `json:"amount"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		budget, err := s.store.SetBudget(r.Context(), core.Budget{UserID: uid, Month: req.Month, Year: req.Year, Amount: req.Amount})
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.invalidate(uid)
		writeJSON(w, http.StatusOK, budget)
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPut)
	}
}

func (s *Server) handleWinnings(w http.ResponseWriter, r *http.Request) {
	uid, ok := userID(w, r)
	if !ok {
		return
	}
	switch r.Method {
	case http.MethodGet:
		p, err := parsePeriod(r, core.PeriodOf(s.now()))
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		winnings, err := s.store.Winnings(r.Context(), uid, p)
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		writeJSON(w, http.StatusOK, winnings)
	case http.MethodPost:
		var req struct {
			Title  string  `json:"title"`
			Amount float64 `json:"amount"`
			Month  int     `json:"month"`
			Year   int     `json:"year"`
		}
		if err := decodeBody(r, &req); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		if req.Month == 0 && req.Year == 0 {
			p := core.PeriodOf(s.now())
			req.Month, req.Year = p.Month, p.Year
		}
		winning, err := s.store.AddWinning(r.Context(), core.Winning{UserID: uid, Title: req.Title, Amount: req.Amount, Month: req.Month, Year: req.Year})
		if err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.invalidate(uid)
		writeJSON(w, http.StatusCreated, winning)
	case http.MethodDelete:
		id := r.URL.Query().Get("id")
		if id == "" {
			s.respondError(r.Context(), w, core.Invalidf("missing id parameter"))
			return
		}
		if err := s.store.DeleteWinning(r.Context(), uid, id); err != nil {
			s.respondError(r.Context(), w, err)
			return
		}
		s.invalidate(uid)
		writeJSON(w, http.StatusOK, map[string]string{"deleted": id})
	default:
		methodNotAllowed(w, http.MethodGet, http.MethodPost, http.MethodDelete)
	}
}
