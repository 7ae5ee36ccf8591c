package ldp

import (
	"github.com/go-outernet/receiver/internal/logging"
	"github.com/go-outernet/receiver/internal/metrics"
)

// Handler processes one routed LDP datagram.
type Handler func(Packet)

// Router dispatches LDP datagrams to handlers registered by type. Lookup is
// a dense array index rather than a map, since the type space is a single
// byte.
type Router struct {
	handlers [256]Handler
}

// NewRouter returns a Router with no handlers registered.
func NewRouter() *Router {
	return &Router{}
}

// Register installs fn as the handler for datagrams of the given type,
// replacing any previous registration.
func (r *Router) Register(typ uint8, fn Handler) {
	r.handlers[typ] = fn
}

// Route dispatches p to its registered handler. A datagram whose type has no
// handler is logged and counted, not treated as an error: the carousel
// stream carries types this receiver doesn't implement and that's expected.
func (r *Router) Route(p Packet) {
	fn := r.handlers[p.Type]
	if fn == nil {
		logging.L().Debug("ldp: no handler for datagram type", "type", p.Type)
		metrics.LDPUnroutedTotal.Inc()
		return
	}
	fn(p)
}
