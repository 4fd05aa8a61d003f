package loki

import (
	"bytes"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	pushPath      = "/loki/api/v1/push"
	flushSize     = 20
	flushInterval = time.Second
)

// Writer batches log lines and pushes them to Loki. It satisfies
// zapcore.WriteSyncer so it can back a zap core directly.
type Writer struct {
	url    string
	labels map[string]string
	client *http.Client

	mu     sync.Mutex
	buf    [][]string
	ticker *time.Ticker
	done   chan struct{}
	closed sync.Once
}

// NewWriter returns nil when url is empty so callers can skip the sink.
func NewWriter(url string, labels map[string]string) *Writer {
	if url == "" {
		return nil
	}
	w := &Writer{
		url:    strings.TrimSuffix(url, "/") + pushPath,
		labels: labels,
		client: &http.Client{Timeout: 5 * time.Second},
		buf:    make([][]string, 0, 64),
		ticker: time.NewTicker(flushInterval),
		done:   make(chan struct{}),
	}
	go w.flushLoop()
	return w
}

func (w *Writer) Write(p []byte) (int, error) {
	ts := strconv.FormatInt(time.Now().UnixNano(), 10)
	w.mu.Lock()
	for _, line := range bytes.Split(p, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		w.buf = append(w.buf, []string{ts, string(line)})
	}
	needFlush := len(w.buf) >= flushSize
	w.mu.Unlock()

	if needFlush {
		w.flush()
	}
	return len(p), nil
}

func (w *Writer) Sync() error {
	w.flush()
	return nil
}

func (w *Writer) flushLoop() {
	for {
		select {
		case <-w.done:
			return
		case <-w.ticker.C:
			w.flush()
		}
	}
}

type pushRequest struct {
	Streams []stream `json:"streams"`
}

type stream struct {
	Stream map[string]string `json:"stream"`
	Values [][]string        `json:"values"`
}

func (w *Writer) flush() {
	w.mu.Lock()
	if len(w.buf) == 0 {
		w.mu.Unlock()
		return
	}
	values := w.buf
	w.buf = make([][]string, 0, 64)
	w.mu.Unlock()

	raw, err := json.Marshal(pushRequest{Streams: []stream{{Stream: w.labels, Values: values}}})
	if err != nil {
		return
	}
	req, err := http.NewRequest(http.MethodPost, w.url, bytes.NewReader(raw))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := w.client.Do(req)
	if err != nil {
		return
	}
	resp.Body.Close()
}

// Close flushes what is buffered and stops the background flusher.
func (w *Writer) Close() error {
	w.closed.Do(func() {
		w.ticker.Stop()
		close(w.done)
		w.flush()
	})
	return nil
}
