package ledger

import (
	"strings"
	"time"

	"github.com/wricardo/lotsim/game/traffic"
)

// Message is one narrated event
type Message struct {
	Seq       int       `json:"seq"`
	Tick      int       `json:"tick"`
	Code      string    `json:"code"`
	SubjectID string    `json:"subject_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
	Text      string    `json:"text"`
	At        time.Time `json:"at"`
}

// MessageObserver is told about every emitted message
type MessageObserver interface {
	RecordMessage(m Message)
}

// DefaultTemplates maps message codes to player-facing text. {subject} and
// {detail} are substituted.
func DefaultTemplates() map[string]string {
	return map[string]string{
		traffic.MsgRefusedPayAtSpot:  "{subject} drove on: paying at the spot was not worth it",
		traffic.MsgRefusedPayAtExit:  "{subject} drove on: the exit fee was too high",
		traffic.MsgLotFull:           "{subject} could not find a free spot",
		traffic.MsgRestrictedSurface: "{subject} had to drive over {detail}",
		traffic.MsgFeeCollected:      "{subject} paid {detail}",
		traffic.MsgUnfulfilledNeeds:  "{subject} went back with {detail} unmet needs",
		traffic.MsgPedestrianLost:    "{subject} could not find the way back to {detail}",
		traffic.MsgExitBlocked:       "{subject} found no way out from its spot at {detail}",
	}
}

// MessageLog is a bounded narration log
type MessageLog struct {
	capacity  int
	templates map[string]string
	messages  []Message
	seq       int
	tick      func() int
	observer  MessageObserver
	now       func() time.Time
}

// NewMessageLog creates a log keeping at most capacity messages. Templates
// override the defaults code by code.
func NewMessageLog(capacity int, templates map[string]string) *MessageLog {
	if capacity <= 0 {
		capacity = 500
	}
	merged := DefaultTemplates()
	for code, text := range templates {
		merged[code] = text
	}
	return &MessageLog{
		capacity:  capacity,
		templates: merged,
		tick:      func() int { return 0 },
		now:       time.Now,
	}
}

// SetTickSource lets the log stamp messages with the simulation tick
func (l *MessageLog) SetTickSource(tick func() int) {
	l.tick = tick
}

// SetObserver installs the sink for emitted messages
func (l *MessageLog) SetObserver(o MessageObserver) {
	l.observer = o
}

// Emit records a message
func (l *MessageLog) Emit(code, subjectID, detail string) {
	l.seq++
	m := Message{
		Seq:       l.seq,
		Tick:      l.tick(),
		Code:      code,
		SubjectID: subjectID,
		Detail:    detail,
		Text:      l.render(code, subjectID, detail),
		At:        l.now(),
	}
	l.messages = append(l.messages, m)
	if len(l.messages) > l.capacity {
		l.messages = l.messages[len(l.messages)-l.capacity:]
	}
	if l.observer != nil {
		l.observer.RecordMessage(m)
	}
}

func (l *MessageLog) render(code, subjectID, detail string) string {
	tmpl, ok := l.templates[code]
	if !ok {
		tmpl = code + ": {subject} {detail}"
	}
	r := strings.NewReplacer("{subject}", subjectID, "{detail}", detail)
	return strings.TrimSpace(r.Replace(tmpl))
}

// Since returns messages with a sequence number greater than seq
func (l *MessageLog) Since(seq int) []Message {
	var out []Message
	for _, m := range l.messages {
		if m.Seq > seq {
			out = append(out, m)
		}
	}
	return out
}

// Recent returns up to n of the newest messages, oldest first
func (l *MessageLog) Recent(n int) []Message {
	if n <= 0 || n > len(l.messages) {
		n = len(l.messages)
	}
	out := make([]Message, n)
	copy(out, l.messages[len(l.messages)-n:])
	return out
}

// Count returns how many messages with code were emitted and are still held
func (l *MessageLog) Count(code string) int {
	c := 0
	for _, m := range l.messages {
		if m.Code == code {
			c++
		}
	}
	return c
}

// LastSeq returns the sequence number of the newest message
func (l *MessageLog) LastSeq() int {
	return l.seq
}
