package forms

import (
	"encoding/json"
	"net/http"

	"formguard/middleware/ratelimit"
	"formguard/middleware/ratelimit/domain"
)

// Response é o envelope JSON das rotas de formulário.
type Response struct {
	Success    bool         `json:"success"`
	Message    string       `json:"message,omitempty"`
	Error      string       `json:"error,omitempty"`
	Details    []FieldError `json:"details,omitempty"`
	RetryAfter int          `json:"retryAfter,omitempty"`
}

const (
	msgValidationFailed = "Validation failed"
	msgInvalidBody      = "Invalid request body"
	msgInternal         = "Something went wrong. Please try again later."
	msgMethodNotAllowed = "Method not allowed"

	msgContactSuccess    = "Thank you for your message. We'll get back to you soon!"
	msgNewsletterSuccess = "Thanks %s! You've been added to our newsletter."
)

var rateLimitMessages = map[domain.Endpoint]string{
	domain.EndpointContact:    "Too many requests. Please wait before submitting again.",
	domain.EndpointNewsletter: "Too many requests. Please wait before signing up again.",
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// MethodNotAllowed responde 405 para qualquer método diferente de POST.
func MethodNotAllowed(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, struct {
		Error string `json:"error"`
	}{Error: msgMethodNotAllowed})
}

// RateLimitReject monta o 429 JSON do endpoint.
func RateLimitReject(endpoint domain.Endpoint) ratelimit.RejectFunc {
	msg, ok := rateLimitMessages[endpoint]
	if !ok {
		msg = "Too many requests. Please try again later."
	}
	return func(w http.ResponseWriter, _ *http.Request, dec domain.Decision) {
		writeJSON(w, http.StatusTooManyRequests, Response{
			Success:    false,
			Error:      msg,
			RetryAfter: ratelimit.RetryAfterSeconds(dec.RetryAfter),
		})
	}
}

// ShieldReject é o 429 JSON do escudo token-bucket, comum a todas as rotas.
func ShieldReject() ratelimit.RejectFunc {
	return RateLimitReject("")
}

// InternalError responde 500 genérico; o detalhe fica só no log.
func InternalError(w http.ResponseWriter, _ *http.Request, _ error) {
	writeJSON(w, http.StatusInternalServerError, Response{Success: false, Error: msgInternal})
}
