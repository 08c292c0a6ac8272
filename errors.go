/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package main

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/Seednode/whosetune/internal/game"
)

func logf(cfg *Config, format string, args ...any) {
	if !cfg.verbose {
		return
	}

	log.Printf("%s | "+format, append([]any{time.Now().Format(logDate)}, args...)...)
}

func logErr(err error) {
	log.Printf("%s | ERROR: %v", time.Now().Format(logDate), err)
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, game.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, game.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, game.ErrInvalidInput),
		errors.Is(err, game.ErrSelfVote),
		errors.Is(err, game.ErrOwnerCannotVote),
		errors.Is(err, game.ErrOwnerCannotMark):
		return http.StatusBadRequest
	case errors.Is(err, game.ErrWrongPhase),
		errors.Is(err, game.ErrNotReady),
		errors.Is(err, game.ErrNoActiveRound),
		errors.Is(err, game.ErrDuplicateItem):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func serverError(cfg *Config, w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logErr(err)
	} else {
		logf(cfg, "SERVE: Rejected %s %s from %s: %v", r.Method, r.URL.Path, realIP(r), err)
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	securityHeaders(cfg, w)
	w.WriteHeader(status)

	_ = json.NewEncoder(w).Encode(errorResponse{Error: game.Code(err), Message: err.Error()})
}
