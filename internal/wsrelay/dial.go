package wsrelay

import (
	"context"
	"fmt"
	"net"
	"time"
)

// DialFunc dials a TCP upstream. Tests inject a fake to avoid touching the
// network; production code uses (&net.Dialer{}).DialContext.
type DialFunc func(ctx context.Context, network, addr string) (net.Conn, error)

// defaultDialTimeout is applied when Config.DialTimeout is zero.
const defaultDialTimeout = 10 * time.Second

// defaultDialer is used when Config.Dial is unset.
func defaultDialer(ctx context.Context, network, addr string) (net.Conn, error) {
	return (&net.Dialer{}).DialContext(ctx, network, addr)
}

func dialTCP(ctx context.Context, dial DialFunc, addr string, timeout time.Duration) (net.Conn, error) {
	if timeout <= 0 {
		timeout = defaultDialTimeout
	}
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn, err := dial(dialCtx, "tcp", addr)
	if err != nil {
		if dialCtx.Err() != nil {
			return nil, fmt.Errorf("dial %s: timed out after %s: %w", addr, timeout, err)
		}
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return conn, nil
}
