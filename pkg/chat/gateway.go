package chat

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/kayesmahmud/Speaky/pkg/auth"
	"github.com/kayesmahmud/Speaky/pkg/snowflake"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Options struct {
	AllowedOrigins []string
	MaxMessageSize int64
	RateLimit      rate.Limit
	RateBurst      int
}

// Gateway upgrades authenticated HTTP requests to chat sockets.
type Gateway struct {
	hub      *Hub
	relay    *Relay
	verifier auth.Verifier
	ids      *snowflake.Node
	upgrader websocket.Upgrader
	opts     Options
	base     context.Context
	log      *zap.Logger

	allowAll bool
	origins  map[string]struct{}
}

func NewGateway(ctx context.Context, hub *Hub, relay *Relay, verifier auth.Verifier, ids *snowflake.Node, opts Options) *Gateway {
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 8192
	}
	g := &Gateway{
		hub:      hub,
		relay:    relay,
		verifier: verifier,
		ids:      ids,
		opts:     opts,
		base:     ctx,
		log:      hub.log,
		origins:  make(map[string]struct{}),
	}
	for _, o := range opts.AllowedOrigins {
		o = strings.TrimSpace(o)
		if o == "*" {
			g.allowAll = true
			continue
		}
		if n, ok := normalizeOrigin(o); ok {
			g.origins[n] = struct{}{}
		} else if o != "" {
			g.log.Warn("ignoring invalid origin", zap.String("origin", o))
		}
	}
	if len(opts.AllowedOrigins) == 0 {
		g.allowAll = true
	}
	g.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     g.checkOrigin,
	}
	return g
}

// ServeHTTP authenticates before upgrading. A missing or bad credential is
// answered with 401 and never becomes a socket.
func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	token := auth.BearerToken(r)
	if token == "" {
		g.log.Debug("rejecting socket without token", zap.String("remote", r.RemoteAddr))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	userID, err := g.verifier.Verify(token)
	if err != nil {
		g.log.Info("rejecting socket with invalid token", zap.String("remote", r.RemoteAddr), zap.Error(err))
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := g.upgrader.Upgrade(w, r, nil)
	if err != nil {
		g.log.Info("upgrade failed", zap.Error(err))
		return
	}

	var limiter *rate.Limiter
	if g.opts.RateLimit > 0 {
		limiter = rate.NewLimiter(g.opts.RateLimit, g.opts.RateBurst)
	}
	c := newClient(g.hub, conn, g.ids.GenerateString(), userID, limiter)
	ctx, cancel := context.WithCancel(g.base)
	c.cancel = cancel

	g.hub.Register(ctx, c)
	c.log.Info("socket connected")
	g.hub.start(ctx, c, g.relay, g.opts.MaxMessageSize)
}

func (g *Gateway) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || g.allowAll {
		return true
	}
	n, ok := normalizeOrigin(origin)
	if ok {
		if _, allowed := g.origins[n]; allowed {
			return true
		}
	}
	g.log.Warn("blocked websocket origin", zap.String("origin", origin))
	return false
}

func normalizeOrigin(origin string) (string, bool) {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return "", false
	}
	return strings.ToLower(u.Scheme) + "://" + strings.ToLower(u.Host), true
}
