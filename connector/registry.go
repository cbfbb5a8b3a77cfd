package connector

// NewConnection builds the protocol adapter for the origin type of the
// given configuration. Unknown origin types get the local adapter, so
// every operation on them fails fast with a capability error.
func NewConnection(data *ConnectionData) Connection {
	switch data.OriginType {
	case OriginTwitter:
		return newTwitterConnection(data)
	case OriginMastodon:
		return newMastodonConnection(data)
	case OriginPumpio:
		return newPumpioConnection(data)
	default:
		return newLocalConnection(data)
	}
}
