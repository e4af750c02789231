package lib

import "net/http"

func (s *Server) respondWithError(w http.ResponseWriter, message string) {
	s.respondWithStatus(w, message, http.StatusInternalServerError)
}

func (s *Server) respondWithStatus(w http.ResponseWriter, msg string, status int) {
	s.respondJSON(w, status, errorResponse{Error: msg})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}
