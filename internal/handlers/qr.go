// internal/handlers/qr.go
package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"
)

const qrSize = 256

// QRHandler serves a PNG QR code encoding the join link for a live room,
// so a second screen can join by pointing a phone at the first.
func QRHandler(gs *GameServer, externalURL string) httprouter.Handle {
	base := strings.TrimRight(externalURL, "/")
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		code := strings.ToUpper(ps.ByName("code"))
		if _, ok := gs.Store.Get(code); !ok {
			http.Error(w, "room not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(base+"/#"+code, qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "failed to render QR code", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(png)))
		w.Write(png)
	}
}
