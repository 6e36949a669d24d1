package constants

import "time"

const (
	HostWebPort          = 3019
	DefaultServerPort    = 8080
	HostStatusTimeout    = 2000 * time.Millisecond
	HostStatusMessage    = "EC_HOST_STATUS"
	DefaultPollInterval  = 15 * time.Second
	OverviewPollKey      = "overview"
	ModeDetectEndpoint   = "/api/mode/detect"
	LoginEndpoint        = "/api/auth/login"
	TelemetryErrorEvent  = "logError"
	TelemetryRenderEvent = "logReactError"
)

// CustomerWebPorts is the default set of tenant dashboard ports.
var CustomerWebPorts = []int{3018, 3000}

// persisted client state keys
const (
	TokenStateKey = "ec_admin_token"
	ModeStateKey  = "ec_admin_mode"
)

const (
	ExternalAPITimeout = 10 * time.Second
	BridgeTimeout      = 5 * time.Second
	TelemetryTimeout   = 3 * time.Second
	DatabaseTimeout    = 5 * time.Second
	RequestTimeout     = 30 * time.Second
)

const (
	DBMaxOpenConns    = 1
	DBMaxIdleConns    = 1
	DBConnMaxLifetime = 1 * time.Hour
)

const (
	ShutdownTimeout = 5 * time.Second
)
