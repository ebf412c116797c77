package kv

import (
	"context"
	"strings"
	"time"

	"github.com/valkey-io/valkey-go"
)

const pingTimeout = 2 * time.Second

// Connect builds a Valkey client for addr and pings it. addr is either a
// host:port pair or a redis:// URL.
func Connect(ctx context.Context, addr string) (valkey.Client, error) {
	opt, err := Options(addr)
	if err != nil {
		return nil, err
	}
	client, err := valkey.NewClient(opt)
	if err != nil {
		return nil, err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := client.Do(pingCtx, client.B().Ping().Build()).Error(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// Options translates an address into client options.
func Options(addr string) (valkey.ClientOption, error) {
	addr = strings.TrimSpace(addr)
	if strings.Contains(addr, "://") {
		return valkey.ParseURL(addr)
	}
	return valkey.ClientOption{InitAddress: []string{addr}}, nil
}
