package realtimesvc

import (
	"context"
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	goredis "github.com/redis/go-redis/v9"

	"github.com/trezcool/darasa/core"
)

// envelope keeps the recipients, which core.Event does not serialize.
type envelope struct {
	Event   core.Event `json:"event"`
	UserIDs []string   `json:"user_ids,omitempty"`
}

type RedisBus struct {
	rdb     *goredis.Client
	channel string
	logger  core.Logger
}

var _ Bus = (*RedisBus)(nil)

// NewRedisBus uses an existing client, the caller keeps ownership of it.
func NewRedisBus(rdb *goredis.Client, channel string, logger core.Logger) *RedisBus {
	return &RedisBus{rdb: rdb, channel: channel, logger: logger}
}

// NewRedisClient parses a redis:// URL and checks the connection.
func NewRedisClient(ctx context.Context, url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	opts.DialTimeout = 5 * time.Second

	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func (b *RedisBus) Publish(ctx context.Context, evt core.Event) error {
	raw, err := json.Marshal(envelope{Event: evt, UserIDs: evt.UserIDs})
	if err != nil {
		return errors.Wrap(err, "encoding event")
	}
	return errors.Wrap(b.rdb.Publish(ctx, b.channel, raw).Err(), "publishing event")
}

func (b *RedisBus) StartForwarder(ctx context.Context, onEvent func(core.Event)) error {
	sub := b.rdb.Subscribe(ctx, b.channel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return errors.Wrap(err, "subscribing to realtime channel")
	}

	go func() {
		defer sub.Close()
		ch := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				evt, err := decodeEvent([]byte(msg.Payload))
				if err != nil {
					b.logger.Warn("decoding realtime event", err)
					continue
				}
				onEvent(evt)
			}
		}
	}()
	return nil
}

func decodeEvent(raw []byte) (core.Event, error) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return core.Event{}, err
	}
	env.Event.UserIDs = env.UserIDs
	return env.Event, nil
}
