package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/url"
	"os"
	"sync"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/appendblob"
	"github.com/Azure/azure-sdk-for-go/sdk/storage/azblob/bloberror"
)

// dateFolderFormat keeps one folder per day: YYYY/MM/DD
const dateFolderFormat = "%d/%02d/%02d"

type blockAppender interface {
	AppendBlock(ctx context.Context, body io.ReadSeekCloser, o *appendblob.AppendBlockOptions) (appendblob.AppendBlockResponse, error)
}

// BlobSink is a slog.Handler that batches JSON lines into an Azure append blob.
type BlobSink struct {
	ab     blockAppender
	ch     chan []byte
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	ticker *time.Ticker
	attrs  []slog.Attr
	level  slog.Leveler
}

// NewBlobSink creates today's blob for this host and starts flushing every flushEvery.
func NewBlobSink(ctx context.Context, accountName, accountKey, container string, level slog.Leveler, flushEvery time.Duration) (*BlobSink, error) {
	cred, err := azblob.NewSharedKeyCredential(accountName, accountKey)
	if err != nil {
		return nil, err
	}
	host, _ := os.Hostname()
	now := time.Now().UTC()
	blobName := fmt.Sprintf(dateFolderFormat, now.Year(), now.Month(), now.Day()) + "/" + host + ".jsonl"
	blobURL := "https://" + accountName + ".blob.core.windows.net/" + url.PathEscape(container) + "/" + blobName

	ab, err := appendblob.NewClientWithSharedKeyCredential(blobURL, cred, nil)
	if err != nil {
		return nil, err
	}
	if _, err := ab.Create(ctx, nil); err != nil && !bloberror.HasCode(err, bloberror.BlobAlreadyExists) {
		return nil, fmt.Errorf("create log blob %s: %w", blobName, err)
	}
	return newBlobSink(ctx, ab, level, flushEvery), nil
}

func newBlobSink(ctx context.Context, ab blockAppender, level slog.Leveler, flushEvery time.Duration) *BlobSink {
	if flushEvery <= 0 {
		flushEvery = 2 * time.Second
	}
	ctx, cancel := context.WithCancel(ctx)
	s := &BlobSink{
		ab:     ab,
		ch:     make(chan []byte, 1024),
		ctx:    ctx,
		cancel: cancel,
		ticker: time.NewTicker(flushEvery),
		level:  level,
	}
	s.wg.Add(1)
	go s.loop()
	return s
}

// Close flushes what is buffered and stops the sink.
func (s *BlobSink) Close() error {
	s.cancel()
	s.wg.Wait()
	s.ticker.Stop()
	return nil
}

func (s *BlobSink) Enabled(_ context.Context, l slog.Level) bool {
	return s.level == nil || l >= s.level.Level()
}

func (s *BlobSink) Handle(_ context.Context, r slog.Record) error {
	line, err := formatRecord(r, s.attrs)
	if err != nil {
		return err
	}
	select {
	case s.ch <- line:
		return nil
	case <-s.ctx.Done():
		return s.ctx.Err()
	}
}

func (s *BlobSink) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sinkWithAttrs{sink: s, attrs: append(append([]slog.Attr{}, s.attrs...), attrs...)}
}

// groups are flattened
func (s *BlobSink) WithGroup(string) slog.Handler { return s }

type sinkWithAttrs struct {
	sink  *BlobSink
	attrs []slog.Attr
}

func (w *sinkWithAttrs) Enabled(ctx context.Context, l slog.Level) bool {
	return w.sink.Enabled(ctx, l)
}

func (w *sinkWithAttrs) Handle(ctx context.Context, r slog.Record) error {
	r2 := r.Clone()
	r2.AddAttrs(w.attrs...)
	return w.sink.Handle(ctx, r2)
}

func (w *sinkWithAttrs) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sinkWithAttrs{sink: w.sink, attrs: append(append([]slog.Attr{}, w.attrs...), attrs...)}
}

func (w *sinkWithAttrs) WithGroup(string) slog.Handler { return w }

func formatRecord(r slog.Record, extra []slog.Attr) ([]byte, error) {
	ev := make(map[string]any, r.NumAttrs()+len(extra)+3)
	ts := r.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	ev["ts"] = ts.UTC().Format(time.RFC3339Nano)
	ev["level"] = r.Level.String()
	ev["msg"] = r.Message

	add := func(a slog.Attr) bool {
		a.Value = a.Value.Resolve()
		switch a.Value.Kind() {
		case slog.KindGroup:
			m := map[string]any{}
			// one level deep
			for _, aa := range a.Value.Group() {
				aa.Value = aa.Value.Resolve()
				m[aa.Key] = aa.Value.Any()
			}
			ev[a.Key] = m
		default:
			v := a.Value.Any()
			if err, ok := v.(error); ok {
				v = err.Error()
			}
			ev[a.Key] = v
		}
		return true
	}
	for _, a := range extra {
		add(a)
	}
	r.Attrs(add)

	var b bytes.Buffer
	enc := json.NewEncoder(&b)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(ev); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

func (s *BlobSink) loop() {
	defer s.wg.Done()
	var buf []byte
	flush := func(ctx context.Context) {
		if len(buf) == 0 {
			return
		}
		if _, err := s.ab.AppendBlock(ctx, readSeekNopCloser{bytes.NewReader(buf)}, nil); err != nil {
			fmt.Fprintf(os.Stderr, "log sink append failed: %v\n", err)
		}
		buf = buf[:0]
	}

	for {
		select {
		case <-s.ctx.Done():
			// drain what Handle already accepted
			for {
				select {
				case line := <-s.ch:
					buf = append(buf, line...)
				default:
					flush(context.Background())
					return
				}
			}
		case line := <-s.ch:
			buf = append(buf, line...)
		case <-s.ticker.C:
			flush(s.ctx)
		}
	}
}

type readSeekNopCloser struct{ io.ReadSeeker }

func (r readSeekNopCloser) Close() error { return nil }
