package publisher

import (
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// ConnectNATS dials a NATS server with connection-state logging.
func ConnectNATS(url, name string, logger zerolog.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn().Err(err).Msg("nats disconnected")
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info().Str("url", nc.ConnectedUrl()).Msg("nats reconnected")
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			logger.Info().Msg("nats connection closed")
		}),
	)
}

// Close drains and closes nc, ignoring a nil connection.
func Close(nc *nats.Conn) {
	if nc == nil {
		return
	}
	_ = nc.Drain()
	nc.Close()
}
