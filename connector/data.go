package connector

import (
	"net/url"
	"sync"

	"github.com/jaller94/andstatus/domain"
)

// OriginType selects the protocol adapter family for an origin.
type OriginType string

const (
	OriginTwitter  OriginType = "twitter"
	OriginMastodon OriginType = "mastodon"
	OriginPumpio   OriginType = "pumpio"
	OriginLocal    OriginType = "local"
)

// OAuthClientKeys holds the per-host client credential pair obtained by
// OAuth client registration. Mutation is guarded so that registration
// commits atomically and newly learned keys are visible to subsequent
// commands targeting the same host.
type OAuthClientKeys struct {
	mu             sync.Mutex
	consumerKey    string
	consumerSecret string
}

func NewOAuthClientKeys(key, secret string) *OAuthClientKeys {
	return &OAuthClientKeys{consumerKey: key, consumerSecret: secret}
}

func (k *OAuthClientKeys) ArePresent() bool {
	if k == nil {
		return false
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.consumerKey != "" && k.consumerSecret != ""
}

func (k *OAuthClientKeys) Set(key, secret string) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.consumerKey = key
	k.consumerSecret = secret
}

func (k *OAuthClientKeys) Get() (string, string) {
	if k == nil {
		return "", ""
	}
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.consumerKey, k.consumerSecret
}

// ConnectionData is the per-host connection configuration. Distinct
// instances exist per resolved remote host for federated protocols.
type ConnectionData struct {
	OriginType   OriginType
	OriginURL    *url.URL
	AccountActor domain.Actor
	IsSSL        bool
	ClientKeys   *OAuthClientKeys
	HTTP         *Client
}

// Copy clones the configuration for re-pointing at another host. The
// cached OAuth client keys are deliberately dropped: keys are
// host-specific and the clone must register its own.
func (d *ConnectionData) Copy() *ConnectionData {
	clone := *d
	clone.ClientKeys = &OAuthClientKeys{}
	return &clone
}

// Host returns the configured origin host, empty when no origin URL
// is set.
func (d *ConnectionData) Host() string {
	if d.OriginURL == nil {
		return ""
	}
	return d.OriginURL.Host
}

// BuildOriginURL assembles an origin URL for the given host honoring
// the SSL flag.
func BuildOriginURL(host string, ssl bool) *url.URL {
	scheme := "http"
	if ssl {
		scheme = "https"
	}
	return &url.URL{Scheme: scheme, Host: host}
}

// OriginConfig is the backend-reported posting limits.
type OriginConfig struct {
	TextLimit   int
	UploadLimit int64
}
