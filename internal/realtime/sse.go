package realtime

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/sse"
)

// DefaultPingInterval keeps proxies from closing idle streams.
const DefaultPingInterval = 25 * time.Second

// WriteFrame writes e as one SSE frame: id, event and data lines followed by
// a blank line. The data line is the JSON encoding of e.
func WriteFrame(w io.Writer, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return sse.Encode(w, sse.Event{
		Id:    strconv.FormatInt(e.Seq, 10),
		Event: string(e.Type),
		Data:  data,
	})
}

// SetStreamHeaders prepares w for an event stream.
func SetStreamHeaders(h http.Header) {
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache, no-transform")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
}

// Stream serves sub over w until ctx ends, the subscription closes, or a
// write fails. A hello frame is sent first and a ping every interval. The
// subscription is closed on return.
func (b *Bus) Stream(ctx context.Context, w http.ResponseWriter, sub *Subscription, interval time.Duration) error {
	defer sub.Close()

	flusher, ok := w.(http.Flusher)
	if !ok {
		return fmt.Errorf("streaming not supported by %T", w)
	}
	if interval <= 0 {
		interval = DefaultPingInterval
	}

	SetStreamHeaders(w.Header())
	w.WriteHeader(http.StatusOK)
	bw := bufio.NewWriter(w)

	send := func(e Event) error {
		if err := WriteFrame(bw, e); err != nil {
			return err
		}
		if err := bw.Flush(); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := send(b.MakeEvent(EventHello)); err != nil {
		return nil
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-sub.C:
			if !ok {
				return nil
			}
			if err := send(e); err != nil {
				return nil // client went away
			}
		case <-ticker.C:
			if err := send(b.MakeEvent(EventPing)); err != nil {
				return nil
			}
		}
	}
}
