package admin

import (
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/sellcomet/eddlicense/internal/cmn/config"
	"github.com/sellcomet/eddlicense/internal/cmn/logger"
	"github.com/sellcomet/eddlicense/internal/cmn/logger/tag"
)

// dummyHash is compared against when the user is unknown so that the
// response time does not reveal which usernames exist.
var dummyHash = []byte("$2a$12$K8gHXqrFdFvMwJBG0VlJGuAGz3FwBmTm8xnNQblN2tCxrQgPLmwHa")

// basicAuth admits requests whose credentials match a configured admin.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if ok && s.authenticate(user, pass) {
			next.ServeHTTP(w, r)
			return
		}
		if ok {
			logger.Debug(r.Context(), "Admin authentication failed", tag.User(user))
		}
		w.Header().Add("WWW-Authenticate", `Basic realm="`+config.AppName+`"`)
		w.WriteHeader(http.StatusUnauthorized)
	})
}

func (s *Server) authenticate(user, pass string) bool {
	hash, found := s.admins[user]
	if !found {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(pass))
		return false
	}
	return bcrypt.CompareHashAndPassword(hash, []byte(pass)) == nil
}
