package session

import "time"

// Session is the journal of one recording session.
type Session struct {
	ID        string     `json:"id"`
	StartTime time.Time  `json:"start_time"`
	StopTime  *time.Time `json:"stop_time,omitempty"`
	APK       string     `json:"apk"`
	Package   string     `json:"package"`
	Launcher  string     `json:"launcher"`
	Device    string     `json:"device,omitempty"`
	Records   []Record   `json:"records"`
}

// Record is one operator line, kept in the order it was issued.
type Record struct {
	Seq  int       `json:"seq"`
	Raw  string    `json:"raw"`
	Time time.Time `json:"time"`
}

// Append records raw as the next line of the session.
func (s *Session) Append(raw string, at time.Time) Record {
	seq := 1
	if n := len(s.Records); n > 0 {
		seq = s.Records[n-1].Seq + 1
	}
	r := Record{Seq: seq, Raw: raw, Time: at}
	s.Records = append(s.Records, r)
	return r
}

// Pop removes the most recent record, if any.
func (s *Session) Pop() {
	if n := len(s.Records); n > 0 {
		s.Records = s.Records[:n-1]
	}
}

// Lines returns the raw text of every record in order.
func (s *Session) Lines() []string {
	lines := make([]string, len(s.Records))
	for i, r := range s.Records {
		lines[i] = r.Raw
	}
	return lines
}
