// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package handlers

import (
	"net/http"
	"strconv"

	"github.com/davidtorcivia/song-voter/middleware"
	"github.com/davidtorcivia/song-voter/session"
	"github.com/davidtorcivia/song-voter/voting"
)

// pathID parses a numeric path parameter, writing a 400 on failure
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil || id <= 0 {
		middleware.ErrorResponse(w, http.StatusBadRequest, "Invalid "+name)
		return 0, false
	}
	return id, true
}

// callerFrom describes the request's client for the voting service
func callerFrom(r *http.Request) voting.Caller {
	c := voting.Caller{IP: middleware.GetClientIP(r)}
	if sess := session.FromContext(r.Context()); sess != nil {
		c.Session = sess
		c.IsAdmin = sess.IsAdmin()
	}
	return c
}

// adminID returns the logged-in admin's ID, or nil
func adminID(r *http.Request) *int64 {
	if sess := session.FromContext(r.Context()); sess != nil {
		return sess.AdminID
	}
	return nil
}
