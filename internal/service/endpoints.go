package service

import (
	"fmt"
	"net/url"

	"ec-dashboard/internal/session"

	"github.com/valyala/fasthttp"
)

// web path and NUI callback for each dashboard operation
var (
	epPlayers    = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/players", Event: "getPlayers"}
	epBans       = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/moderation/bans", Event: "getBans"}
	epBan        = session.Endpoint{Method: fasthttp.MethodPost, Path: "/api/moderation/bans", Event: "banPlayer"}
	epWarnings   = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/moderation/warnings", Event: "getWarnings"}
	epWarn       = session.Endpoint{Method: fasthttp.MethodPost, Path: "/api/moderation/warnings", Event: "warnPlayer"}
	epWhitelist  = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/whitelist", Event: "getWhitelist"}
	epWhitelistA = session.Endpoint{Method: fasthttp.MethodPost, Path: "/api/whitelist", Event: "addWhitelist"}
	epDetections = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/anticheat/detections", Event: "getDetections"}
	epJobs       = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/jobs", Event: "getJobs"}
	epGangs      = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/gangs", Event: "getGangs"}
	epHousing    = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/housing", Event: "getHousing"}
	epSettings   = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/host/settings", Event: "getSettings"}
	epSettingsU  = session.Endpoint{Method: fasthttp.MethodPost, Path: "/api/host/settings", Event: "updateSettings"}
	epResources  = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/host/resources", Event: "getResources"}
	epMetrics    = session.Endpoint{Method: fasthttp.MethodGet, Path: "/api/metrics", Event: "getMetrics"}
)

func epPlayer(id int) session.Endpoint {
	return session.Endpoint{Method: fasthttp.MethodGet, Path: fmt.Sprintf("/api/players/%d", id), Event: "getPlayer"}
}

func epInventory(id int) session.Endpoint {
	return session.Endpoint{Method: fasthttp.MethodGet, Path: fmt.Sprintf("/api/players/%d/inventory", id), Event: "getPlayerInventory"}
}

func epKick(id int) session.Endpoint {
	return session.Endpoint{Method: fasthttp.MethodPost, Path: fmt.Sprintf("/api/players/%d/kick", id), Event: "kickPlayer"}
}

func epUnban(banID string) session.Endpoint {
	return session.Endpoint{Method: fasthttp.MethodDelete, Path: "/api/moderation/bans/" + url.PathEscape(banID), Event: "unbanPlayer"}
}

func epWhitelistRemove(identifier string) session.Endpoint {
	return session.Endpoint{Method: fasthttp.MethodDelete, Path: "/api/whitelist/" + url.PathEscape(identifier), Event: "removeWhitelist"}
}

// BridgeEndpoint returns the endpoint behind a NUI event. Parameterized paths
// carry a placeholder id, which is enough for the access check.
func BridgeEndpoint(event string) (session.Endpoint, bool) {
	for _, ep := range []session.Endpoint{
		epPlayers, epBans, epBan, epWarnings, epWarn, epWhitelist, epWhitelistA,
		epDetections, epJobs, epGangs, epHousing, epSettings, epSettingsU, epResources, epMetrics,
		epPlayer(0), epInventory(0), epKick(0), epUnban("id"), epWhitelistRemove("id"),
	} {
		if ep.Event == event {
			return ep, true
		}
	}
	return session.Endpoint{}, false
}
