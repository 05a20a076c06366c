// Package statsd wraps the few statsd calls the server makes so the datadog
// client stays in one place.
package statsd

import (
	"errors"
	"time"

	ddstatsd "github.com/DataDog/datadog-go/v5/statsd"
	"github.com/rs/zerolog/log"
)

var client ddstatsd.ClientInterface = &ddstatsd.NoOpClient{}

func Client() ddstatsd.ClientInterface {
	return client
}

// EmitTickStat records how long one stage of a tick took.
func EmitTickStat(start time.Time, stage string) {
	duration := time.Since(start)
	err := Client().Timing("tick", duration, []string{"stage:" + stage}, 1)
	if err != nil {
		log.Warn().Err(err).Msg("failed to emit tick stat")
	}
}

func Count(name string, value int64, tags ...string) {
	if err := Client().Count(name, value, tags, 1); err != nil {
		log.Warn().Err(err).Str("name", name).Msg("failed to emit count stat")
	}
}

func Init(address string, tags []string) error {
	if address == "" {
		return errors.New("address must not be empty")
	}
	opts := []ddstatsd.Option{
		ddstatsd.WithNamespace("tundra"),
	}
	if len(tags) > 0 {
		opts = append(opts, ddstatsd.WithTags(tags))
	}

	newClient, err := ddstatsd.New(address, opts...)
	if err != nil {
		return err
	}
	client = newClient
	return nil
}
