package events

import (
	"fmt"

	"github.com/mesa-pos/api/internal/config"
)

// Open returns the publisher selected by cfg.EventBus.
func Open(cfg *config.Config) (Publisher, error) {
	switch cfg.EventBus {
	case "", config.BusNone:
		return Nop{}, nil
	case config.BusNATS:
		return NewNATSPublisher(cfg.NATSURL)
	case config.BusAMQP:
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	default:
		return nil, fmt.Errorf("unknown event bus %q", cfg.EventBus)
	}
}
