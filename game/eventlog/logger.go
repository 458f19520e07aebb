package eventlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/wricardo/lotsim/game/engine"
	"github.com/wricardo/lotsim/game/ledger"
)

const (
	KindTick    = "tick"
	KindMessage = "message"
)

// Entry is one line of an event log
type Entry struct {
	Kind    string              `json:"kind"`
	Session string              `json:"session,omitempty"`
	At      time.Time           `json:"at"`
	Tick    *engine.TickSummary `json:"tick,omitempty"`
	Message *ledger.Message     `json:"message,omitempty"`
}

// Logger writes tick summaries and narration of one session. It implements
// engine.TickObserver and ledger.MessageObserver.
type Logger struct {
	w       *JSONLZstdWriter
	session string
	every   int

	mu     sync.Mutex
	failed bool
}

// NewLogger logs into dir. Every every-th tick is written, plus every tick
// that emitted messages; every <= 1 writes them all.
func NewLogger(dir, session string, every int) *Logger {
	prefix := "events"
	if session != "" {
		prefix = "events-" + session
	}
	if every < 1 {
		every = 1
	}
	return &Logger{
		w:       NewJSONLZstdWriter(dir, prefix),
		session: session,
		every:   every,
	}
}

// ObserveTick implements engine.TickObserver
func (l *Logger) ObserveTick(s engine.TickSummary) {
	if s.Tick%l.every != 0 && s.Messages == 0 {
		return
	}
	l.write(Entry{Kind: KindTick, Session: l.session, At: l.w.now(), Tick: &s})
}

// RecordMessage implements ledger.MessageObserver
func (l *Logger) RecordMessage(m ledger.Message) {
	l.write(Entry{Kind: KindMessage, Session: l.session, At: m.At, Message: &m})
}

func (l *Logger) write(e Entry) {
	if err := l.w.Write(e); err != nil {
		l.mu.Lock()
		defer l.mu.Unlock()
		// one line per logger is enough, the simulation keeps running
		if !l.failed {
			log.Printf("event log %s: %v", l.session, err)
			l.failed = true
		}
	}
}

// Path returns the current log file, empty before the first entry
func (l *Logger) Path() string {
	return l.w.Path()
}

// Close flushes the log
func (l *Logger) Close() error {
	return l.w.Close()
}

// ReadFile decodes every entry of a log file
func ReadFile(path string) ([]Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer dec.Close()

	var entries []Entry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e Entry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return entries, fmt.Errorf("%s:%d: %w", path, line, err)
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("%s: %w", path, err)
	}
	return entries, nil
}

// Files lists the log files in dir sorted by name
func Files(dir string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.jsonl.zst"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}
