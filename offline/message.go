package offline

// Control channel message types.
const (
	MsgGetVersion   = "GET_VERSION"
	MsgSkipWaiting  = "SKIP_WAITING"
	MsgClearCache   = "CLEAR_CACHE"
	MsgVersion      = "VERSION"
	MsgActivated    = "ACTIVATED"
	MsgCacheCleared = "CACHE_CLEARED"
	MsgInstalled    = "INSTALLED"

	// pushed to clients
	MsgControllerChange = "controllerchange"
	MsgReload           = "reload"
)

type Message struct {
	Type              string `json:"type"`
	Version           string `json:"version,omitempty"`
	CacheGenerationID string `json:"cacheGenerationId,omitempty"`
	ResourceCount     int    `json:"resourceCount,omitempty"`
	// Incidental marks a SKIP_WAITING that must not reload clients.
	Incidental bool   `json:"incidental,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Notifier pushes messages to every connected client.
type Notifier interface {
	Broadcast(msg Message)
}

type nopNotifier struct{}

func (nopNotifier) Broadcast(Message) {}
