package connector

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/jaller94/andstatus/domain"
)

// resolvedConnection is a ready-to-execute binding: the absolute
// endpoint URI plus the HTTP context of the host it lives on.
type resolvedConnection struct {
	URI  string
	HTTP *Client
	Data *ConnectionData
}

// connectionResolver binds an operation on a target actor to a
// connection for the actor's home host. Actors living on the configured
// origin use the root connection; others get a per-host clone of the
// configuration with freshly registered client keys. Clones are cached
// so repeated resolution for a host is idempotent.
type connectionResolver struct {
	root *pumpioConnection

	mu        sync.Mutex
	hostConns map[string]*pumpioConnection
}

func newConnectionResolver(root *pumpioConnection) *connectionResolver {
	return &connectionResolver{
		root:      root,
		hostConns: make(map[string]*pumpioConnection),
	}
}

// Resolve returns the endpoint URI and connection for the routine on
// the actor. The three failure modes are distinct: no username is a
// capability failure, an empty derived nickname a malformed request,
// and failed client registration a missing-credentials failure.
func (r *connectionResolver) Resolve(ctx context.Context, routine ApiRoutine, actor domain.Actor) (*resolvedConnection, error) {
	username := actor.Username
	if username == "" {
		username = strings.TrimPrefix(actor.Oid, "acct:")
	}
	if username == "" {
		return nil, &ConnError{
			Code:    StatusUnsupportedAPI,
			Message: fmt.Sprintf("%s: no username to resolve an endpoint for actor %q", routine, actor.Oid),
		}
	}
	nickname := usernameToNickname(username)
	if nickname == "" {
		return nil, ErrBadRequest("%s: empty nickname derived from username %q", routine, username)
	}

	conn, err := r.connectionForHost(actorHost(actor, r.root.data))
	if err != nil {
		return nil, err
	}

	template := conn.endpoints[routine]
	if template == "" {
		return nil, ErrUnsupported(routine)
	}
	path := strings.ReplaceAll(template, "%nickname%", url.PathEscape(nickname))
	uri, err := conn.apiPathFromTemplate(path)
	if err != nil {
		return nil, err
	}

	if !conn.data.ClientKeys.ArePresent() {
		if err := registerClient(ctx, conn.data); err != nil {
			return nil, err
		}
		if !conn.data.ClientKeys.ArePresent() {
			return nil, ErrNoCredentials(conn.data.Host())
		}
	}
	return &resolvedConnection{URI: uri, HTTP: conn.data.HTTP, Data: conn.data}, nil
}

// actorHost picks the actor's home host, falling back to the configured
// origin host when the actor carries none.
func actorHost(actor domain.Actor, data *ConnectionData) string {
	host := actor.Host()
	if host == "" {
		host = usernameToHost(actor.Username)
	}
	if host == "" {
		host = actorOidToHost(actor.Oid)
	}
	if host == "" {
		host = data.Host()
	}
	return host
}

// connectionForHost returns the root connection for the configured
// origin host and a cached per-host clone otherwise.
func (r *connectionResolver) connectionForHost(host string) (*pumpioConnection, error) {
	if host == "" || host == r.root.data.Host() {
		return r.root, nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if conn, ok := r.hostConns[host]; ok {
		return conn, nil
	}
	data := r.root.data.Copy()
	data.OriginURL = BuildOriginURL(host, r.root.data.IsSSL)
	conn := newPumpioConnection(data)
	r.hostConns[host] = conn
	return conn, nil
}

// registerClient performs the on-demand OAuth client registration
// handshake against the host of the given configuration.
func registerClient(ctx context.Context, data *ConnectionData) error {
	if data.OriginURL == nil {
		return ErrBadRequest("client registration: no origin URL")
	}
	endpoint := strings.TrimSuffix(data.OriginURL.String(), "/") + "/api/client/register"
	obj, err := data.HTTP.PostObject(ctx, endpoint, map[string]interface{}{
		"type":             "client_associate",
		"application_type": "native",
		"application_name": "andstatus-" + uuid.NewString(),
	})
	if err != nil {
		return fmt.Errorf("registering client at %s: %w", data.Host(), err)
	}
	key := jsonString(obj, "client_id")
	secret := jsonString(obj, "client_secret")
	if key == "" || secret == "" {
		return ErrNoCredentials(data.Host())
	}
	data.ClientKeys.Set(key, secret)
	return nil
}
