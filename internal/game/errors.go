/*
Copyright © 2026 Seednode <seednode@seedno.de>
*/

package game

import "errors"

var (
	ErrNotFound        = errors.New("not found")
	ErrUnauthorized    = errors.New("admin rights required")
	ErrWrongPhase      = errors.New("not allowed in current phase")
	ErrNotReady        = errors.New("not every member is ready")
	ErrNoActiveRound   = errors.New("no active round")
	ErrSelfVote        = errors.New("cannot vote for yourself")
	ErrOwnerCannotVote = errors.New("item owner cannot vote")
	ErrOwnerCannotMark = errors.New("item owner cannot appreciate their own item")
	ErrDuplicateItem   = errors.New("item already submitted")
	ErrInvalidInput    = errors.New("invalid input")
)

var codes = []struct {
	err  error
	code string
}{
	{ErrNotFound, "not_found"},
	{ErrUnauthorized, "unauthorized"},
	{ErrWrongPhase, "wrong_phase"},
	{ErrNotReady, "not_ready"},
	{ErrNoActiveRound, "no_active_round"},
	{ErrSelfVote, "self_vote"},
	{ErrOwnerCannotVote, "owner_cannot_vote"},
	{ErrOwnerCannotMark, "owner_cannot_mark"},
	{ErrDuplicateItem, "duplicate_item"},
	{ErrInvalidInput, "invalid_input"},
}

// Code returns the stable wire name for err, or "internal" if err does not
// wrap one of the package's sentinel errors. A nil error has no code.
func Code(err error) string {
	if err == nil {
		return ""
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return "internal"
}
