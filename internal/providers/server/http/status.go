package http

import (
	"context"
	"net/http"
	"strings"

	"github.com/tim-schneider/nexsync/server"
)

// Status probes the health endpoint and derives edition and version from
// the Server response header, which reads like "Nexus/3.61.0-02 (PRO)".
// A server that hides the header yields an empty status; gated resource
// types then skip instead of guessing.
func (g *Gateway) Status(ctx context.Context) (server.ServerStatus, error) {
	_, headers, err := g.execute(ctx, http.MethodGet, statusPath, nil)
	if err != nil {
		return server.ServerStatus{}, err
	}
	return parseServerHeader(headers.Get("Server")), nil
}

func parseServerHeader(header string) server.ServerStatus {
	fields := strings.Fields(strings.TrimSpace(header))
	if len(fields) == 0 {
		return server.ServerStatus{}
	}

	var status server.ServerStatus
	if version, found := strings.CutPrefix(fields[0], "Nexus/"); found {
		// The version carries a build counter suffix ("3.61.0-02") that is
		// not part of the comparable version.
		if idx := strings.IndexByte(version, '-'); idx > 0 {
			version = version[:idx]
		}
		status.Version = version
	}
	for _, field := range fields[1:] {
		trimmed := strings.TrimSuffix(strings.TrimPrefix(field, "("), ")")
		if strings.EqualFold(trimmed, "PRO") || strings.EqualFold(trimmed, "OSS") ||
			strings.EqualFold(trimmed, "COMMUNITY") {
			status.Edition = strings.ToUpper(trimmed)
		}
	}
	return status
}
