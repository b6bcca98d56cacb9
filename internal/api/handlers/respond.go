package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/wonny/limitup/internal/contracts"
)

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}

// queryDate parses an optional date query parameter (YYYYMMDD or YYYY-MM-DD)
func queryDate(r *http.Request, key string, loc *time.Location) (time.Time, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return time.Time{}, nil
	}
	for _, layout := range []string{contracts.DateLayout, "2006-01-02"} {
		if d, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid '%s' date %q (expected YYYYMMDD or YYYY-MM-DD)", key, raw)
}

// queryInt parses an optional non-negative integer query parameter
func queryInt(r *http.Request, key string, def int) (int, error) {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid '%s' %q", key, raw)
	}
	return n, nil
}
