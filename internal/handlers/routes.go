// internal/handlers/routes.go
package handlers

import (
	"net/http"

	"github.com/julienschmidt/httprouter"
	"github.com/sirupsen/logrus"

	"github.com/ewczhang/poisoncake/internal/middleware"
)

// Routes assembles the HTTP surface: the websocket endpoint, health and
// banner pages, and the join-QR endpoint. externalURL is the address
// clients reach the service on, used to build join links.
func Routes(logger *logrus.Logger, gs *GameServer, externalURL, version string) http.Handler {
	router := httprouter.New()

	router.HandlerFunc(http.MethodGet, "/", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("poisoncake v" + version + "\n"))
	})
	router.HandlerFunc(http.MethodGet, "/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("ok\n"))
	})
	router.HandlerFunc(http.MethodGet, "/ws", WSHandler(logger, gs))
	router.GET("/rooms/:code/qr", QRHandler(gs, externalURL))

	return middleware.LogMiddleware(logger)(router)
}
