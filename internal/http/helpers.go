package http

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"tally/internal/analytics"
	"tally/internal/core"
)

const maxBodyBytes = 1 << 20

// decodeJSON reads and decodes the request body, rejecting unknown
// fields and bodies over 1 MiB.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("decode request body: %w", err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeDomainError maps validation sentinels to 422 and everything else
// to 500.
func writeDomainError(w http.ResponseWriter, err error) {
	for _, sentinel := range []error{
		core.ErrInvalidAmount, core.ErrAmountTooLarge, core.ErrInvalidDate,
		core.ErrFutureDate, core.ErrEmptyCategory, core.ErrEmptyName,
		core.ErrInvalidMonth, core.ErrSameAccount,
	} {
		if errors.Is(err, sentinel) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
	}
	writeError(w, http.StatusInternalServerError, err.Error())
}

// parseWindow builds a window descriptor from period/startDate/endDate
// query parameters. An absent or unknown period means no filter.
func parseWindow(r *http.Request) analytics.Window {
	q := r.URL.Query()
	period := strings.TrimSpace(q.Get("period"))

	switch analytics.WindowKind(period) {
	case analytics.WindowToday, analytics.WindowWeek, analytics.WindowMonth, analytics.WindowYear:
		return analytics.Window{Kind: analytics.WindowKind(period)}
	case analytics.WindowCustom:
		return analytics.Window{
			Kind:  analytics.WindowCustom,
			Start: strings.TrimSpace(q.Get("startDate")),
			End:   strings.TrimSpace(q.Get("endDate")),
		}
	default:
		return analytics.Window{Kind: analytics.WindowAll}
	}
}

// monthParam returns the month query parameter, defaulting to the
// current month, and validates the YYYY-MM shape.
func monthParam(r *http.Request) (string, error) {
	month := strings.TrimSpace(r.URL.Query().Get("month"))
	if month == "" {
		month = core.DateOf(time.Now()).MonthKey()
	}
	if _, err := core.ParseMonth(month); err != nil {
		return "", err
	}
	return month, nil
}

// parseAmount converts a decimal string ("12.34") into Money.
func parseAmount(s string) (core.Money, error) {
	cents, err := core.ParseDecimalToCents(s)
	if err != nil {
		return core.Money{}, err
	}
	return core.Money{Cents: cents}, nil
}

// sanitizeInput trims whitespace and strips control characters.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}

// clientIP extracts the caller's address, preferring proxy headers.
func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		if i := strings.IndexByte(ip, ','); i >= 0 {
			ip = ip[:i]
		}
		return strings.TrimSpace(ip)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// generateRequestID creates a unique request ID for tracing.
func generateRequestID() string {
	bytes := make([]byte, 8)
	if _, err := rand.Read(bytes); err != nil {
		return fmt.Sprintf("req_%d", time.Now().UnixNano())
	}
	return "req_" + hex.EncodeToString(bytes)
}
