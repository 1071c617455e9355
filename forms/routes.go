package forms

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Guards são os middlewares de rate limit de cada formulário (ver Guard).
// Um guard nil deixa a rota sem limite.
type Guards struct {
	Contact    func(http.Handler) http.Handler
	Newsletter func(http.Handler) http.Handler
}

// Routes monta /contact e /newsletter (montar em /api). Só POST passa pelo
// rate limit; outros métodos recebem 405 sem consumir orçamento.
func Routes(h *Handler, g Guards) chi.Router {
	r := chi.NewRouter()
	r.MethodNotAllowed(MethodNotAllowed)

	r.With(optional(g.Contact)...).Post("/contact", h.Contact)
	r.With(optional(g.Newsletter)...).Post("/newsletter", h.Newsletter)
	return r
}

func optional(mw func(http.Handler) http.Handler) []func(http.Handler) http.Handler {
	if mw == nil {
		return nil
	}
	return []func(http.Handler) http.Handler{mw}
}
