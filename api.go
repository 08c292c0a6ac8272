/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Seednode/whosetune/internal/game"
	"github.com/julienschmidt/httprouter"
)

const maxRequestBody = 64 << 10

type createRequest struct {
	Admin    string              `json:"admin"`
	Settings *game.SettingsPatch `json:"settings,omitempty"`
}

type createResponse struct {
	SessionID string `json:"sessionId"`
}

func writeJSON(cfg *Config, w http.ResponseWriter, status int, v any) (int, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return 0, err
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	return w.Write(append(data, '\n'))
}

// serveCreate opens a new session. Settings left out of the request fall
// back to the server defaults.
func serveCreate(gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		startTime := time.Now()

		var req createRequest
		dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBody))
		if err := dec.Decode(&req); err != nil {
			serverError(gm.cfg, w, r, fmt.Errorf("decode request: %v: %w", err, game.ErrInvalidInput))
			return
		}

		settings := game.Settings{ItemsPerMember: gm.cfg.itemsPerMember}
		if req.Settings != nil && req.Settings.ItemsPerMember != nil {
			settings.ItemsPerMember = *req.Settings.ItemsPerMember
		}

		id, err := gm.store.Create(req.Admin, settings)
		if err != nil {
			serverError(gm.cfg, w, r, err)
			return
		}

		written, err := writeJSON(gm.cfg, w, http.StatusCreated, createResponse{SessionID: id})
		if err != nil {
			errs <- err

			return
		}

		logf(gm.cfg, "SERVE: Created session %s (%s) for %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

// serveState returns the session as seen by the viewer query parameter. An
// empty or unknown viewer gets the public view.
func serveState(gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		id := ps.ByName("id")

		snap, err := gm.store.Snapshot(id, r.URL.Query().Get("viewer"))
		if err != nil {
			serverError(gm.cfg, w, r, err)
			return
		}

		written, err := writeJSON(gm.cfg, w, http.StatusOK, snap)
		if err != nil {
			errs <- err

			return
		}

		logf(gm.cfg, "SERVE: State of %s (%s) to %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func serveNominations(gm *GameManager, errs chan<- error) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		startTime := time.Now()

		id := ps.ByName("id")

		noms, err := gm.store.Nominations(id)
		if err != nil {
			serverError(gm.cfg, w, r, err)
			return
		}

		written, err := writeJSON(gm.cfg, w, http.StatusOK, noms)
		if err != nil {
			errs <- err

			return
		}

		logf(gm.cfg, "SERVE: Nominations for %s (%s) to %s in %s",
			id,
			humanReadableSize(int64(written)),
			realIP(r),
			time.Since(startTime).Round(time.Microsecond),
		)
	}
}

func registerGame(gm *GameManager, path string, mux *httprouter.Router, errs chan<- error) {
	mux.POST(path, serveCreate(gm, errs))
	mux.GET(path+"/:id", serveState(gm, errs))
	mux.GET(path+"/:id/state", serveState(gm, errs))
	mux.GET(path+"/:id/nominations", serveNominations(gm, errs))
	mux.GET(path+"/:id/ws", serveWS(gm))
	mux.GET(path+"/:id/qr", serveQR(gm, errs))
}
