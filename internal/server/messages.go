package server

import "ec-dashboard/internal/domain"

type Empty struct{}

type ModeResponse struct {
	Mode          domain.ModeKind `json:"mode"`
	WebAccess     bool            `json:"webAccess"`
	Authenticated bool            `json:"authenticated"`
}

type SetModeRequest struct {
	Mode string `json:"mode"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type PlayerRequest struct {
	ID int `json:"id"`
}

type KickRequest struct {
	ID     int    `json:"id"`
	Reason string `json:"reason"`
}

type UnbanRequest struct {
	BanID string `json:"banId"`
}

type WhitelistRequest struct {
	Identifier string `json:"identifier"`
	Name       string `json:"name,omitempty"`
}

type SettingsMessage struct {
	Settings domain.Settings `json:"settings"`
}

// ListResponse wraps every page listing.
type ListResponse[T any] struct {
	Items []T `json:"items"`
}

func list[T any](items []T) *ListResponse[T] {
	if items == nil {
		items = []T{}
	}
	return &ListResponse[T]{Items: items}
}
