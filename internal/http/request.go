package http

import (
	"encoding/json"
	"net/http"
	"strconv"

	"spendly/internal/core"
)

const maxBodyBytes = 1 << 20

// userID reads the caller identity from the X-User-ID header. The API sits
// behind an authenticating proxy; an absent header is rejected here as a
// last line of defense.
func userID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := r.Header.Get("X-User-ID")
	if id == "" {
		writeError(w, http.StatusUnauthorized, "missing X-User-ID header")
		return "", false
	}
	return id, true
}

// parsePeriod reads month and year query parameters, defaulting to the
// current month when both are absent.
func parsePeriod(r *http.Request, now core.Period) (core.Period, error) {
	monthStr := r.URL.Query().Get("month")
	yearStr := r.URL.Query().Get("year")
	if monthStr == "" && yearStr == "" {
		return now, nil
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		return core.Period{}, core.Invalidf("invalid month %q", monthStr)
	}
	year, err := strconv.Atoi(yearStr)
	if err != nil {
		return core.Period{}, core.Invalidf("invalid year %q", yearStr)
	}

	p := core.Period{Month: month, Year: year}
	if err := p.Validate(); err != nil {
		return core.Period{}, err
	}
	return p, nil
}

// decodeBody unmarshals the JSON request body into dst, rejecting unknown
// fields and oversized payloads.
func decodeBody(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return core.Invalidf("invalid request body: %v", err)
	}
	return nil
}
