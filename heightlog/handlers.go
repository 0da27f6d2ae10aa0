package heightlog

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/hazyhaar/hubframe/idgen"
	"github.com/hazyhaar/hubframe/origin"
	"github.com/hazyhaar/hubframe/shield"
)

// maxHeight rejects values no real document reaches.
const maxHeight = 1_000_000

// epochMillis accepts the beacon's decimal string as well as a number.
type epochMillis int64

func (e *epochMillis) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	if len(b) == 0 || string(b) == "null" {
		*e = 0
		return nil
	}
	n, err := strconv.ParseInt(string(b), 10, 64)
	if err != nil {
		return err
	}
	*e = epochMillis(n)
	return nil
}

type reportRequest struct {
	ID         string      `json:"id"`
	Height     *int        `json:"height"`
	IsExpanded bool        `json:"isExpanded"`
	TS         epochMillis `json:"ts"`
}

// reporterOrigin is the Origin header, falling back to the referrer.
func reporterOrigin(r *http.Request) (o origin.Origin, present bool) {
	if raw := r.Header.Get("Origin"); raw != "" {
		o, _ = origin.Parse(raw)
		return o, true
	}
	if ref := r.Referer(); ref != "" {
		o, _ = origin.Parse(ref)
		return o, o.IsKnown()
	}
	return origin.Unknown, false
}

func (s *Service) cors(w http.ResponseWriter, r *http.Request) bool {
	w.Header().Add("Vary", "Origin")
	o, present := reporterOrigin(r)
	if !present {
		return len(s.allowed) == 0
	}
	if !o.IsKnown() || !s.originAllowed(o) {
		return false
	}
	if raw := r.Header.Get("Origin"); raw != "" {
		w.Header().Set("Access-Control-Allow-Origin", raw)
	}
	return true
}

func (s *Service) handlePreflight(w http.ResponseWriter, r *http.Request) {
	if !s.cors(w, r) {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
	w.Header().Set("Access-Control-Max-Age", "600")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Service) handleReport(w http.ResponseWriter, r *http.Request) {
	log := shield.GetLogger(r.Context())
	if !s.cors(w, r) {
		metricReports.WithLabelValues("forbidden").Inc()
		jsonErr(w, "origin not allowed", http.StatusForbidden)
		return
	}

	var req reportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		metricReports.WithLabelValues("invalid").Inc()
		jsonErr(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Height == nil || *req.Height < 0 || *req.Height > maxHeight {
		metricReports.WithLabelValues("invalid").Inc()
		jsonErr(w, "height out of range", http.StatusBadRequest)
		return
	}

	id, err := idgen.Parse(req.ID)
	if err != nil {
		id = s.cfg.IDs()
	}
	o, _ := reporterOrigin(r)
	rep := Report{
		ID:         id,
		Origin:     o.String(),
		Height:     *req.Height,
		IsExpanded: req.IsExpanded,
		ClientTS:   int64(req.TS),
		ReceivedAt: s.cfg.Now().UnixMilli(),
		UserAgent:  truncate(r.UserAgent(), 256),
	}

	inserted, err := s.store.Insert(r.Context(), rep)
	if err != nil {
		metricReports.WithLabelValues("error").Inc()
		log.Error("heightlog: store report", "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !inserted {
		metricReports.WithLabelValues("duplicate").Inc()
		writeJSON(w, http.StatusOK, map[string]string{"id": id, "status": "duplicate"})
		return
	}

	metricReports.WithLabelValues("stored").Inc()
	metricHeight.Observe(float64(rep.Height))
	s.hub.Broadcast(rep)
	log.Debug("heightlog: report stored", "id", id, "origin", rep.Origin, "height", rep.Height, "expanded", rep.IsExpanded)
	writeJSON(w, http.StatusAccepted, map[string]string{"id": id, "status": "ok"})
}

func (s *Service) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := Filter{Origin: q.Get("origin")}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			f.Limit = n
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			f.Offset = n
		}
	}
	if v := q.Get("since"); v != "" {
		if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
			f.Since = time.UnixMilli(ms)
		}
	}

	reports, err := s.store.Recent(r.Context(), f)
	if err != nil {
		shield.GetLogger(r.Context()).Error("heightlog: list reports", "error", err)
		jsonErr(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reports)
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func jsonErr(w http.ResponseWriter, msg string, code int) {
	writeJSON(w, code, map[string]string{"error": msg})
}
