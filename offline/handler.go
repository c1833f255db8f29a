package offline

import (
	"context"
	"errors"
	"net/http"
)

var _ http.Handler = (*Manager)(nil)

// ServeHTTP applies the routing policy to GET requests. Everything else is
// proxied to upstream untouched.
//
// Every route is cache-first; a miss is fetched and cached. Scripts and
// documents served from cache are revalidated in the background. When both
// cache and network fail a document request gets the cached app shell.
func (m *Manager) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet || !m.Registered() {
		m.proxy.ServeHTTP(w, r)
		return
	}

	ctx := r.Context()
	rt := m.route(r)
	key := r.URL.RequestURI()

	var gen string
	if active, ok := m.Active(); ok {
		gen = active.Name
		e, err := m.store.Get(ctx, gen, key)
		switch {
		case err == nil:
			m.respond(w, e, rt, "cache")
			if rt == routeScript || rt == routeDocument {
				m.revalidate(gen, key, r.Header.Clone())
			}
			return
		case !errors.Is(err, ErrNotCached):
			m.logger.Warn().Err(err).Str("url", key).Msg("cache lookup failed")
		}
	}

	e, err := m.fetch(ctx, key, r.Header)
	if err == nil {
		if gen != "" && e.ok() {
			if err := m.store.Put(ctx, gen, e); err != nil {
				m.logger.Warn().Err(err).Str("url", key).Msg("cache put failed")
			}
		}
		m.respond(w, e, rt, "network")
		return
	}
	m.logger.Debug().Err(err).Str("url", key).Str("route", string(rt)).Msg("network fetch failed")

	if rt == routeDocument && gen != "" {
		for _, shell := range []string{m.cfg.AppShell, "/"} {
			if e, err := m.store.Get(ctx, gen, shell); err == nil {
				m.respond(w, e, rt, "fallback")
				return
			}
		}
	}

	responsesTotal.WithLabelValues(string(rt), "unavailable").Inc()
	w.Header().Set(HeaderSource, "unavailable")
	http.Error(w, "offline and not cached", http.StatusServiceUnavailable)
}

func (m *Manager) respond(w http.ResponseWriter, e *Entry, rt route, source string) {
	responsesTotal.WithLabelValues(string(rt), source).Inc()
	e.write(w, source)
}

// revalidate refreshes key in gen on a detached goroutine. The outcome is
// only logged; the response has already been written.
func (m *Manager) revalidate(gen, key string, header http.Header) {
	if m.closed.Load() {
		return
	}
	m.revalidating.Add(1)
	go func() {
		defer m.revalidating.Done()

		ctx, cancel := context.WithTimeout(context.Background(), m.cfg.RevalidateTimeout)
		defer cancel()

		e, err := m.fetch(ctx, key, header)
		if err != nil {
			revalidationsTotal.WithLabelValues("error").Inc()
			m.logger.Debug().Err(err).Str("url", key).Msg("revalidate failed")
			return
		}
		if !e.ok() {
			revalidationsTotal.WithLabelValues("status").Inc()
			return
		}
		// the generation may have been replaced while fetching
		if active, ok := m.Active(); !ok || active.Name != gen {
			revalidationsTotal.WithLabelValues("stale").Inc()
			return
		}
		if err := m.store.Put(ctx, gen, e); err != nil {
			revalidationsTotal.WithLabelValues("error").Inc()
			m.logger.Warn().Err(err).Str("url", key).Msg("revalidate store failed")
			return
		}
		revalidationsTotal.WithLabelValues("ok").Inc()
	}()
}
