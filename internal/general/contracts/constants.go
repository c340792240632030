package contracts

// Exchanges
const (
	ExchangeRideTopic = "ride_topic"
)

// Producers
const (
	ProducerRideService = "ride-service"
)

// Channel prefix for the redis transport; topic names are appended as-is.
const (
	RedisChannelPrefix = "hailo:"
)
