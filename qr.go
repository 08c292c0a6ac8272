/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"
)

const qrSize = 320

// shareURL rebuilds the public link for a session from the request that
// asked for its QR code.
func shareURL(cfg *Config, r *http.Request, id string) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	return scheme + "://" + r.Host + cfg.prefix + "/api/sessions/" + id
}

// serveQR generates a PNG QR code pointing at the session's share link.
func serveQR(gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		id := ps.ByName("id")
		if !gm.store.Exists(id) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}

		png, err := qrcode.Encode(shareURL(gm.cfg, r, id), qrcode.Medium, qrSize)
		if err != nil {
			http.Error(w, "qr generation failed", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "image/png")
		securityHeaders(gm.cfg, w)

		written, err := w.Write(png)
		if err != nil {
			errs <- err

			return
		}

		logf(gm.cfg, "SERVE: QR code for %s (%s) to %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}
