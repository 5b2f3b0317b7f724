package adapthttp

import (
	"net/http"

	"movierec/internal/domain"
)

func (s *Server) handleListMovies(status domain.Status, op string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := identityFrom(r.Context())
		page, err := s.movies.List(r.Context(), id.UserID, pageQuery(r, status))
		if err != nil {
			s.fail(w, r, op, err)
			return
		}
		writeJSON(w, http.StatusOK, page)
	}
}

func (s *Server) handleGetMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := idParam(r, "movieId")
	if err != nil {
		s.fail(w, r, "GetMovie", err)
		return
	}
	m, err := s.movies.Get(r.Context(), identityFrom(r.Context()).UserID, movieID)
	if err != nil {
		s.fail(w, r, "GetMovie", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

type existsResponse struct {
	Exists bool          `json:"exists"`
	Movie  *domain.Movie `json:"movie,omitempty"`
}

func (s *Server) handleMovieExists(w http.ResponseWriter, r *http.Request) {
	externalID, err := idParam(r, "externalId")
	if err != nil {
		s.fail(w, r, "MovieExists", err)
		return
	}
	m, err := s.movies.FindByExternalID(r.Context(), identityFrom(r.Context()).UserID, externalID)
	if err != nil {
		s.fail(w, r, "MovieExists", err)
		return
	}
	writeJSON(w, http.StatusOK, existsResponse{Exists: m != nil, Movie: m})
}

func (s *Server) handleAddMovie(w http.ResponseWriter, r *http.Request) {
	var draft domain.MovieDraft
	if err := parseJSON(w, r, &draft); err != nil {
		s.fail(w, r, "AddMovie", err)
		return
	}
	m, err := s.movies.Add(r.Context(), identityFrom(r.Context()).UserID, draft)
	if err != nil {
		s.fail(w, r, "AddMovie", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleUpdateMovie(w http.ResponseWriter, r *http.Request) {
	var upd domain.MovieUpdate
	if err := parseJSON(w, r, &upd); err != nil {
		s.fail(w, r, "UpdateMovie", err)
		return
	}
	m, err := s.movies.Update(r.Context(), identityFrom(r.Context()).UserID, upd)
	if err != nil {
		s.fail(w, r, "UpdateMovie", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleDeleteMovie(w http.ResponseWriter, r *http.Request) {
	movieID, err := idParam(r, "movieId")
	if err != nil {
		s.fail(w, r, "DeleteMovie", err)
		return
	}
	m, err := s.movies.Delete(r.Context(), identityFrom(r.Context()).UserID, movieID)
	if err != nil {
		s.fail(w, r, "DeleteMovie", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}
