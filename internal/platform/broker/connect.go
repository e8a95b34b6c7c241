package broker

// Connect binds the Broker capability for a service. An empty URL selects the
// in-process MemoryBroker, which is only useful when all consumers of the
// queue run in the same process.
func Connect(url string, prefetch int) (Broker, error) {
	if url == "" {
		return NewMemoryBroker(), nil
	}
	return DialAMQP(url, prefetch)
}
