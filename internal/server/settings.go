package server

import (
	"errors"
	"net/http"
	"strings"

	"epicshelf/pkg/dict"
	"epicshelf/pkg/domain"
	"epicshelf/pkg/settings"
)

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request, _ domain.User) {
	device := deviceID(r)
	switch r.Method {
	case http.MethodGet:
		st, err := s.app.GetSettings(device)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse(st))
	case http.MethodPut:
		var st settings.Settings
		if !decodeJSON(w, r, &st) {
			return
		}
		saved, err := s.app.UpdateSettings(device, st)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		writeJSON(w, http.StatusOK, settingsResponse(saved))
	default:
		methodNotAllowed(w)
	}
}

// settingsResponse pairs the stored ids with their resolved style values
// so clients never need the lookup tables.
func settingsResponse(st settings.Settings) map[string]any {
	return map[string]any{
		"settings": st,
		"resolved": map[string]any{
			"theme":      st.ResolveTheme(),
			"font":       st.ResolveFont(),
			"fontSize":   st.ResolveFontSize(),
			"lineHeight": st.ResolveLineHeight(),
			"textAlign":  st.ResolveTextAlign(),
			"textColor":  st.ResolveTextColor(),
		},
	}
}

// /dictionary/{word}
func (s *Server) handleDictionary(w http.ResponseWriter, r *http.Request, _ domain.User) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w)
		return
	}
	word := strings.TrimPrefix(r.URL.Path, "/dictionary/")
	if word == "" || strings.Contains(word, "/") {
		notFound(w, "not found")
		return
	}
	def, err := s.app.LookupWord(r.Context(), word)
	if err != nil {
		writeDictError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, def)
}

func writeDictError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, dict.ErrInvalidWord):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, dict.ErrNotFound):
		writeError(w, http.StatusNotFound, dict.ErrNotFound.Error())
	case errors.Is(err, dict.ErrLookupFailed):
		writeError(w, http.StatusBadGateway, dict.ErrLookupFailed.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
