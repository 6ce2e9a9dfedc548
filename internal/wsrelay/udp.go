package wsrelay

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/coder/websocket"
	"github.com/relaycore/vlessrelay/internal/udpdns"
	"github.com/relaycore/vlessrelay/internal/vless"
)

// serveUDP decodes length-prefixed DNS datagrams from residual and every
// subsequent binary WebSocket message, resolves each over DoH, and writes
// framed replies back to ws. Replies are delivered in completion order;
// the one-shot VLESS response header is prefixed to the first reply only.
func serveUDP(ctx context.Context, ws *websocket.Conn, req vless.Request, residual []byte, cfg Config, logger *slog.Logger) error {
	resolver := udpdns.NewResolver(cfg.DoHEndpoint, cfg.DoHClient)
	rw := newResponseWriter(vless.Response(req.Version))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	var writeMu sync.Mutex
	fatal := make(chan error, 1)
	reportFatal := func(err error) {
		select {
		case fatal <- err:
			cancel()
		default:
		}
	}

	resolve := func(query []byte) {
		defer wg.Done()
		reply, err := resolver.Resolve(ctx, query)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("doh request failed, dropping datagram", "error", err)
			}
			return // transport errors drop the datagram; not fatal to the connection
		}
		writeMu.Lock()
		frame := rw.frame(udpdns.Encode(reply))
		werr := ws.Write(ctx, websocket.MessageBinary, frame)
		writeMu.Unlock()
		if werr != nil && ctx.Err() == nil {
			reportFatal(wrap(errClient, werr))
		}
	}

	submit := func(frame []byte) bool {
		datagrams, err := udpdns.Decode(frame)
		if err != nil {
			reportFatal(wrap(errProtocol, err))
			return false
		}
		for _, dg := range datagrams {
			wg.Add(1)
			go resolve(dg)
		}
		return true
	}

	if len(residual) > 0 {
		submit(residual)
	}

	var readErr error
	for {
		typ, data, err := ws.Read(ctx)
		if err != nil {
			readErr = err
			break
		}
		if typ == websocket.MessageText {
			reportFatal(wrap(errProtocol, errors.New("text frame received on binary relay")))
			break
		}
		if len(data) == 0 {
			continue
		}
		if !submit(data) {
			break
		}
	}

	cancel()
	wg.Wait()

	select {
	case err := <-fatal:
		return err
	default:
	}
	if readErr == nil {
		return nil
	}
	return classifyWSReadErr(readErr)
}
