package cache

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"
)

// Options selects a Redis server. URL wins over Host/Port when both are set.
type Options struct {
	URL      string
	Host     string
	Port     string
	Password string
}

// Configured reports whether any Redis server was named.
func (o Options) Configured() bool { return o.URL != "" || o.Host != "" }

// NewClient builds a client and checks it can reach the server.
func NewClient(ctx context.Context, o Options) (*redis.Client, error) {
	var opts *redis.Options
	if o.URL != "" {
		parsed, err := redis.ParseURL(o.URL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}
		opts = parsed
	} else {
		port := o.Port
		if port == "" {
			port = "6379"
		}
		opts = &redis.Options{
			Addr:     net.JoinHostPort(o.Host, port),
			Password: o.Password,
		}
		// Managed Redis with a password is reached over TLS.
		if o.Password != "" {
			opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		}
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}
