package api

import "net/http"

func RegisterRoutes(mux *http.ServeMux, h *Handler) http.Handler {
	// Read surface
	mux.HandleFunc("/view", onlyMethod(http.MethodGet, h.GetView))
	mux.HandleFunc("/quote", onlyMethod(http.MethodGet, h.GetQuote))
	mux.HandleFunc("/winners", onlyMethod(http.MethodGet, h.GetWinners))
	mux.HandleFunc("/allowance", onlyMethod(http.MethodGet, h.GetAllowance))

	// Write surface
	mux.HandleFunc("/approve", onlyMethod(http.MethodPost, h.Approve))
	mux.HandleFunc("/revoke", onlyMethod(http.MethodPost, h.Revoke))
	mux.HandleFunc("/buy", onlyMethod(http.MethodPost, h.Buy))

	// Observability
	mux.HandleFunc("/metrics", onlyMethod(http.MethodGet, h.GetMetrics))
	mux.HandleFunc("/health", onlyMethod(http.MethodGet, h.GetHealth))
	mux.HandleFunc("/logs", onlyMethod(http.MethodGet, h.GetLogs))

	// Admin
	mux.HandleFunc("/admin/endpoints", onlyMethod(http.MethodGet, h.GetEndpoints))

	return Chain(
		mux,
		RecoveryMiddleware,
		LoggingMiddleware,
	)
}

func onlyMethod(method string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != method {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		next(w, r)
	}
}
