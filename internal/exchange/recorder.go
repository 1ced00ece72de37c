package exchange

import (
	"context"
	"log/slog"
	"time"

	"cryptopaper/internal/metrics"
	"cryptopaper/internal/model"
	"cryptopaper/internal/ringbuf"
	"cryptopaper/internal/store/sqlite"
	"cryptopaper/pkg/bitso"
)

const (
	recorderRingSize   = 4096
	recorderFlushEvery = 5 * time.Second
)

// Recorder streams live trades from the Bitso websocket and appends them to
// the price history between polling cycles. One ring per book keeps the
// websocket read loop free of database writes.
type Recorder struct {
	books   map[string]string // bitso book -> asset
	rings   map[string]*ringbuf.Ring
	stream  *bitso.TradesStream
	history *sqlite.Writer
	metrics *metrics.Metrics
	log     *slog.Logger
}

// NewRecorder creates a recorder for books that have a Bitso symbol.
func NewRecorder(books []AssetBook, history *sqlite.Writer, m *metrics.Metrics, log *slog.Logger) *Recorder {
	if log == nil {
		log = slog.Default()
	}

	byBook := make(map[string]string)
	rings := make(map[string]*ringbuf.Ring)
	var wsBooks []string
	for _, b := range books {
		if b.BitsoBook == "" {
			continue
		}
		byBook[b.BitsoBook] = b.Asset
		rings[b.BitsoBook] = ringbuf.New(recorderRingSize)
		wsBooks = append(wsBooks, b.BitsoBook)
	}

	r := &Recorder{
		books:   byBook,
		rings:   rings,
		stream:  bitso.NewTradesStream(wsBooks, log),
		history: history,
		metrics: m,
		log:     log,
	}
	r.stream.OnTrade = r.onTrade
	r.stream.OnReconnect = func(attempt int) {
		if r.metrics != nil {
			r.metrics.WSReconnects.Inc()
		}
	}
	return r
}

func (r *Recorder) onTrade(t bitso.WSTrade) {
	ring, ok := r.rings[t.Book]
	if !ok {
		return
	}
	if !ring.Push(model.PricePoint{TS: t.TS, Price: t.Price}) {
		if r.metrics != nil {
			r.metrics.RingBufOverflow.Inc()
		}
		return
	}
	if r.metrics != nil {
		r.metrics.TicksRecorded.Inc()
	}
}

// Run consumes the stream and flushes buffered ticks to SQLite on a fixed
// interval, with a final flush on shutdown.
func (r *Recorder) Run(ctx context.Context) error {
	streamDone := make(chan error, 1)
	go func() { streamDone <- r.stream.Run(ctx) }()

	ticker := time.NewTicker(recorderFlushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.flush(context.Background())
			return ctx.Err()
		case err := <-streamDone:
			r.flush(context.Background())
			return err
		case <-ticker.C:
			r.flush(ctx)
		}
	}
}

func (r *Recorder) flush(ctx context.Context) {
	for book, ring := range r.rings {
		points := ring.Drain()
		if len(points) == 0 {
			continue
		}
		asset := r.books[book]
		start := time.Now()
		if err := r.history.AppendPrices(ctx, asset, points); err != nil {
			r.log.Error("tick flush failed",
				slog.String("asset", asset),
				slog.Int("points", len(points)),
				slog.String("error", err.Error()))
			continue
		}
		if r.metrics != nil {
			r.metrics.SQLiteCommitDur.Observe(time.Since(start).Seconds())
		}
		r.log.Debug("flushed ticks",
			slog.String("asset", asset),
			slog.Int("points", len(points)))
	}
}
