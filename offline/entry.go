package offline

import (
	"net/http"
	"strconv"
	"time"
)

// Entry is a captured GET response.
type Entry struct {
	URL      string      `json:"url"`
	Status   int         `json:"status"`
	Header   http.Header `json:"header"`
	Body     []byte      `json:"body"`
	StoredAt time.Time   `json:"storedAt"`
}

func (e *Entry) ok() bool {
	return e.Status >= 200 && e.Status < 300
}

func (e *Entry) write(w http.ResponseWriter, source string) {
	h := w.Header()
	for k, vs := range e.Header {
		if hopHeaders[k] {
			continue
		}
		h[k] = append([]string(nil), vs...)
	}
	h.Set("Content-Length", strconv.Itoa(len(e.Body)))
	h.Set(HeaderSource, source)
	w.WriteHeader(e.Status)
	_, _ = w.Write(e.Body)
}

// HeaderSource tells the client where a response came from.
const HeaderSource = "X-Offline-Source"

var hopHeaders = map[string]bool{
	"Connection":        true,
	"Keep-Alive":        true,
	"Transfer-Encoding": true,
	"Upgrade":           true,
	"Content-Length":    true,
}

type State string

const (
	StateInstalling State = "installing"
	StateWaiting    State = "waiting"
	StateActive     State = "active"
)

// Generation is one versioned cache.
type Generation struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Version   string    `json:"version"`
	State     State     `json:"state"`
	Resources int       `json:"resources"`
	CreatedAt time.Time `json:"createdAt"`
}
