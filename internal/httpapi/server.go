package httpapi

import "net/http"

// NewMux builds the demo server's route table. Kept as a free function
// rather than a method so cmd/ashctl can mount it under http.ListenAndServe
// without depending on this package's internals.
func NewMux(h *Handlers) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/contexts", h.HandleIssueContext)
	mux.HandleFunc("/v1/verify", h.HandleVerify)
	mux.HandleFunc("/v1/status", h.HandleStatus)
	mux.HandleFunc("/healthz", h.HandleHealth)
	return mux
}
