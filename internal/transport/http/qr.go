package http

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/julienschmidt/httprouter"
	qrcode "github.com/skip2/go-qrcode"

	"watchparty-quiz/internal/domain"
)

const qrSize = 320

// joinQR renders a PNG QR code of the room's join link so guests can scan
// it from the shared screen.
func (a *API) joinQR(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	room, err := a.service.RoomByCode(r.Context(), ps.ByName("code"))
	if err != nil {
		writeError(w, err)
		return
	}

	png, err := qrcode.Encode(a.joinLink(r, room), qrcode.Medium, qrSize)
	if err != nil {
		a.log.Error("qr generation failed", "room_id", room.ID, "err", err)
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	_, _ = w.Write(png)
}

func (a *API) joinLink(r *http.Request, room domain.Room) string {
	base := strings.TrimSuffix(a.publicURL, "/")
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
			scheme = proto
		}
		base = scheme + "://" + r.Host
	}
	return base + "/join?code=" + url.QueryEscape(room.Code)
}
