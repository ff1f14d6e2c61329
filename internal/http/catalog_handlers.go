package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

func (a *App) overviewHandler(w http.ResponseWriter, r *http.Request) {
	ov, err := a.Catalog.Overview(r.Context())
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ov)
}

func (a *App) productHandler(w http.ResponseWriter, r *http.Request) {
	p, err := a.Catalog.Product(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (a *App) categoryHandler(w http.ResponseWriter, r *http.Request) {
	page, err := a.Catalog.Category(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}
