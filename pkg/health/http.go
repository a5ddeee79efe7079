package health

import (
	"encoding/json"
	"net/http"
)

// LivenessHandler returns an HTTP handler for the liveness probe.
func (h *Checker) LivenessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, h.CheckLiveness(r.Context()))
	}
}

// ReadinessHandler returns an HTTP handler for the readiness probe.
func (h *Checker) ReadinessHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, h.CheckReadiness(r.Context()))
	}
}

// Handler returns an HTTP handler combining liveness and readiness.
func (h *Checker) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		live := h.CheckLiveness(r.Context())
		ready := h.CheckReadiness(r.Context())

		combined := &Status{
			Healthy: live.Healthy && ready.Healthy,
			Checks:  append(append([]CheckResult{}, live.Checks...), ready.Checks...),
		}
		writeStatus(w, combined)
	}
}

func writeStatus(w http.ResponseWriter, status *Status) {
	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(status)
}
