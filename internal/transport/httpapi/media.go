package httpapi

import "net/http"

type uploadResponse struct {
	URL string `json:"url"`
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	url, err := s.app.Media.Save(r.Context(), r.Body)
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.logger.Debug().Ctx(r.Context()).Str("url", url).Msg("media stored")
	writeJSON(w, http.StatusCreated, uploadResponse{URL: url})
}

func (s *Server) handleMedia(w http.ResponseWriter, r *http.Request) {
	f, err := s.app.Media.Open(r.PathValue("name"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
