package domain

import (
	"time"
)

type ModeKind string

const (
	ModeUnknown        ModeKind = "unknown"
	ModeHostWeb        ModeKind = "host-web"
	ModeCustomerWeb    ModeKind = "customer-web"
	ModeInGameHost     ModeKind = "in-game-host"
	ModeInGameCustomer ModeKind = "in-game-customer"
)

func ParseModeKind(s string) (ModeKind, bool) {
	switch k := ModeKind(s); k {
	case ModeHostWeb, ModeCustomerWeb, ModeInGameHost, ModeInGameCustomer:
		return k, true
	}
	return ModeUnknown, false
}

func (k ModeKind) IsHost() bool {
	return k == ModeHostWeb || k == ModeInGameHost
}

func (k ModeKind) InGame() bool {
	return k == ModeInGameHost || k == ModeInGameCustomer
}

// Customer returns the lower-privilege twin of k on the same transport.
func (k ModeKind) Customer() ModeKind {
	switch k {
	case ModeHostWeb:
		return ModeCustomerWeb
	case ModeInGameHost:
		return ModeInGameCustomer
	}
	return k
}

// Tenant is the policy subject for the mode.
func (k ModeKind) Tenant() string {
	if k.IsHost() {
		return "host"
	}
	return "customer"
}

type RuntimeMode struct {
	Kind      ModeKind `json:"kind"`
	WebAccess bool     `json:"webAccess"`
}

type TransportConfig struct {
	BaseURL        string
	AuthToken      string
	BridgeResource string
}

// ModeProbe is the body of GET /api/mode/detect.
type ModeProbe struct {
	IsHost *bool  `json:"isHost,omitempty"`
	Mode   string `json:"mode,omitempty"`
}

type ErrorType string

const (
	ErrorTypeUnhandledRejection ErrorType = "unhandledRejection"
	ErrorTypeGlobalError        ErrorType = "globalError"
	ErrorTypeConsoleError       ErrorType = "consoleError"
	ErrorTypeConsoleWarn        ErrorType = "consoleWarn"
	ErrorTypeFetchError         ErrorType = "fetchError"
	ErrorTypeNetworkError       ErrorType = "networkError"
	ErrorTypeNUICallbackError   ErrorType = "nuiCallbackError"
	ErrorTypeRenderError        ErrorType = "renderError"
)

type ErrorReport struct {
	Type      ErrorType      `json:"type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// page records

type Player struct {
	ID         int    `json:"id"`
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
	Ping       int    `json:"ping"`
	Job        string `json:"job,omitempty"`
	Gang       string `json:"gang,omitempty"`
	Server     string `json:"server,omitempty"`
}

type InventoryItem struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Count  int    `json:"count"`
	Weight int    `json:"weight"`
	Slot   int    `json:"slot"`
}

type Ban struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	Reason     string    `json:"reason"`
	BannedBy   string    `json:"bannedBy"`
	ExpiresAt  time.Time `json:"expiresAt,omitempty"`
	Permanent  bool      `json:"permanent"`
}

type Warning struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Reason     string    `json:"reason"`
	IssuedBy   string    `json:"issuedBy"`
	IssuedAt   time.Time `json:"issuedAt"`
}

type WhitelistEntry struct {
	Identifier string    `json:"identifier"`
	Name       string    `json:"name"`
	AddedBy    string    `json:"addedBy"`
	AddedAt    time.Time `json:"addedAt"`
}

type Detection struct {
	ID         string    `json:"id"`
	PlayerID   int       `json:"playerId"`
	PlayerName string    `json:"playerName"`
	Type       string    `json:"type"`
	Severity   string    `json:"severity"`
	Details    string    `json:"details,omitempty"`
	DetectedAt time.Time `json:"detectedAt"`
}

type Job struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Members int    `json:"members"`
	OnDuty  int    `json:"onDuty"`
}

type Gang struct {
	Name    string `json:"name"`
	Label   string `json:"label"`
	Members int    `json:"members"`
}

type House struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Owner  string `json:"owner,omitempty"`
	Price  int    `json:"price"`
	Locked bool   `json:"locked"`
}

type Resource struct {
	Name     string  `json:"name"`
	State    string  `json:"state"`
	CPUMs    float64 `json:"cpuMs"`
	MemoryMB float64 `json:"memoryMb"`
}

type Settings map[string]any

type Overview struct {
	PlayersOnline int       `json:"playersOnline"`
	Resources     int       `json:"resources"`
	ActiveBans    int       `json:"activeBans"`
	Detections    int       `json:"detections"`
	Errors        []string  `json:"errors,omitempty"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type SystemMetrics struct {
	PlayersOnline int     `json:"playersOnline"`
	MaxPlayers    int     `json:"maxPlayers"`
	UptimeSeconds int64   `json:"uptimeSeconds"`
	CPUPercent    float64 `json:"cpuPercent"`
	MemoryMB      float64 `json:"memoryMb"`
}

type BanRequest struct {
	PlayerID      int    `json:"playerId,omitempty"`
	Identifier    string `json:"identifier,omitempty"`
	Reason        string `json:"reason"`
	DurationHours int    `json:"durationHours"`
}

type WarnRequest struct {
	PlayerID int    `json:"playerId"`
	Reason   string `json:"reason"`
}
