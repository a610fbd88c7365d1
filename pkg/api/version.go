package api

import (
	"fmt"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rescache/rescache/pkg/utils/version"
)

// VersionHandler exposes version routes.
type VersionHandler struct{}

// Append adds version routes to the specified router.
func (v VersionHandler) Append(router *mux.Router) {
	router.Methods(http.MethodGet).Path("/version").
		HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprintln(w, version.Print("rescache"))
		})
}
