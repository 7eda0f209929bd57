package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"
)

type Publisher interface {
	PublishMessage(ctx context.Context, topic string, payload interface{}) error
}

type CollectionConfig struct {
	TimeInterval   time.Duration // flush interval, 30s when unset
	CountThreshold int           // distinct entries that force a flush, 100 when unset
	Topic          string
	Publisher      Publisher
}

// AggregatedLogEntry is one distinct warn/error line with its repeat count
// inside a flush window.
type AggregatedLogEntry struct {
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	Caller    string                 `json:"caller"`
	Count     int                    `json:"count"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
}

// LogCollector folds repeated warn/error lines together and publishes the
// batch periodically or once CountThreshold distinct lines pile up. A single
// sender goroutine publishes batches in order; Close drains it.
type LogCollector struct {
	config  CollectionConfig
	mu      sync.Mutex
	entries map[string]*AggregatedLogEntry
	closed  bool
	batches chan []AggregatedLogEntry
	stop    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
}

func NewLogCollector(config *CollectionConfig) *LogCollector {
	cfg := *config
	if cfg.TimeInterval <= 0 {
		cfg.TimeInterval = 30 * time.Second
	}
	if cfg.CountThreshold <= 0 {
		cfg.CountThreshold = 100
	}
	d := &LogCollector{
		config:  cfg,
		entries: make(map[string]*AggregatedLogEntry),
		batches: make(chan []AggregatedLogEntry, 4),
		stop:    make(chan struct{}),
	}
	d.wg.Add(2)
	go d.tick()
	go d.send()
	return d
}

func (d *LogCollector) AddLog(level, message string, fields map[string]interface{}, caller string) {
	now := time.Now()
	key := entryKey(level, message, fields, caller)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return
	}
	if e, ok := d.entries[key]; ok {
		e.Count++
		e.LastSeen = now
		return
	}
	d.entries[key] = &AggregatedLogEntry{
		Level:     level,
		Message:   message,
		Fields:    fields,
		Caller:    caller,
		Count:     1,
		FirstSeen: now,
		LastSeen:  now,
	}
	if len(d.entries) >= d.config.CountThreshold {
		d.flushLocked()
	}
}

// entryKey identifies a line by level, call site, message and fields. Map
// keys marshal sorted, so field order does not matter.
func entryKey(level, message string, fields map[string]interface{}, caller string) string {
	f, _ := json.Marshal(fields)
	return level + "|" + caller + "|" + message + "|" + string(f)
}

func (d *LogCollector) tick() {
	defer d.wg.Done()
	ticker := time.NewTicker(d.config.TimeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			d.mu.Lock()
			d.flushLocked()
			d.mu.Unlock()
		case <-d.stop:
			d.mu.Lock()
			d.flushLocked()
			d.closed = true
			d.mu.Unlock()
			close(d.batches)
			return
		}
	}
}

// flushLocked hands the current window to the sender, oldest first. When the
// sender is backed up the window is dropped rather than blocking the caller.
func (d *LogCollector) flushLocked() {
	if len(d.entries) == 0 {
		return
	}
	batch := make([]AggregatedLogEntry, 0, len(d.entries))
	for _, e := range d.entries {
		batch = append(batch, *e)
	}
	sort.Slice(batch, func(i, j int) bool { return batch[i].FirstSeen.Before(batch[j].FirstSeen) })
	d.entries = make(map[string]*AggregatedLogEntry)

	select {
	case d.batches <- batch:
	default:
		fmt.Fprintf(os.Stderr, "log collector: sender busy, dropped %d entries\n", len(batch))
	}
}

func (d *LogCollector) send() {
	defer d.wg.Done()
	for batch := range d.batches {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		// the logger cannot log its own publish failures
		if err := d.config.Publisher.PublishMessage(ctx, d.config.Topic, batch); err != nil {
			fmt.Fprintf(os.Stderr, "log collector: publish to %s failed: %v\n", d.config.Topic, err)
		}
		cancel()
	}
}

// Close flushes the open window and waits until every batch is published.
func (d *LogCollector) Close() {
	d.once.Do(func() { close(d.stop) })
	d.wg.Wait()
}
