package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"reddit_responder/internal/fsutil"
	"reddit_responder/internal/model"
)

// zonedLayouts and naiveLayouts are the timestamp forms accepted on read.
// Naive forms carry no zone and are interpreted as UTC.
var (
	zonedLayouts = []string{
		time.RFC3339Nano,
		"2006-01-02T15:04:05.999999999Z0700",
		"2006-01-02 15:04:05.999999999Z07:00",
	}
	naiveLayouts = []string{
		"2006-01-02T15:04:05.999999999",
		"2006-01-02 15:04:05.999999999",
		"2006-01-02T15:04",
		"2006-01-02",
	}
)

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range zonedLayouts {
		if v, err := time.Parse(layout, s); err == nil {
			return v.UTC(), nil
		}
	}
	for _, layout := range naiveLayouts {
		if v, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return v, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// JSONFile implements History as a JSON array rewritten on every append.
type JSONFile struct {
	path string
	log  *slog.Logger
	mu   sync.Mutex
}

// NewJSONFile returns a History backed by the JSON file at path. The file is
// created on first append.
func NewJSONFile(path string, log *slog.Logger) *JSONFile {
	return &JSONFile{path: path, log: log}
}

type fileRecord struct {
	PostID       string    `json:"post_id"`
	Subreddit    string    `json:"subreddit"`
	Title        string    `json:"title"`
	TemplateUsed string    `json:"template_used"`
	Timestamp    timestamp `json:"timestamp"`
	URL          string    `json:"url"`
}

type timestamp time.Time

func (t timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Time(t).UTC().Format(time.RFC3339Nano))
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("decode timestamp: %w", err)
	}
	v, err := parseTimestamp(s)
	if err != nil {
		return err
	}
	*t = timestamp(v)
	return nil
}

// looseRecord reads a record whose timestamp could not be parsed.
type looseRecord struct {
	fileRecord
	Timestamp json.RawMessage `json:"timestamp"`
}

// Append adds rec to the end of the history.
func (j *JSONFile) Append(_ context.Context, rec *model.PostRecord) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	recs := j.load()
	recs = append(recs, *rec)
	if err := j.save(recs); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	return nil
}

// Query returns matching records, newest first.
func (j *JSONFile) Query(_ context.Context, q Query) ([]model.PostRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return q.apply(j.load()), nil
}

// Stats aggregates the whole history.
func (j *JSONFile) Stats(_ context.Context) (model.Stats, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	return ComputeStats(j.load()), nil
}

// Clear empties the history.
func (j *JSONFile) Clear(_ context.Context) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.save(nil); err != nil {
		return fmt.Errorf("clear history: %w", err)
	}
	j.log.Info("cleared post history", "path", j.path)
	return nil
}

// Close is a no-op; the file is not held open.
func (j *JSONFile) Close() error {
	return nil
}

// load reads the history. A missing file is empty history. An unreadable
// file, or one that is not a JSON array, is logged and treated as empty.
// Records are decoded one by one: a record with an unparseable timestamp is
// kept with a zero timestamp, and a record that cannot be decoded at all is
// dropped. Whenever content would be lost on the next save, the file is first
// copied aside with fsutil.Backup.
func (j *JSONFile) load() []model.PostRecord {
	data, err := fsutil.ReadFileIfExists(j.path)
	if err != nil {
		j.log.Error("history file unreadable, treating as empty (lossy recovery)", "path", j.path, "error", err)
		return nil
	}
	if len(data) == 0 {
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		j.log.Error("history file corrupt, treating as empty (lossy recovery)", "path", j.path, "error", err)
		j.backup(data)
		return nil
	}

	recs := make([]model.PostRecord, 0, len(items))
	lossy := false
	for i, item := range items {
		var r fileRecord
		if err := json.Unmarshal(item, &r); err != nil {
			var loose looseRecord
			if lerr := json.Unmarshal(item, &loose); lerr != nil {
				j.log.Error("dropping undecodable history record", "path", j.path, "index", i, "error", lerr)
				lossy = true
				continue
			}
			j.log.Error("history record has unparseable timestamp, keeping it with a zero timestamp",
				"path", j.path, "post_id", loose.PostID, "timestamp", string(loose.Timestamp), "error", err)
			r = loose.fileRecord
			r.Timestamp = timestamp{}
			lossy = true
		}
		recs = append(recs, model.PostRecord{
			PostID:       r.PostID,
			Subreddit:    r.Subreddit,
			Title:        r.Title,
			TemplateUsed: r.TemplateUsed,
			ReplyURL:     r.URL,
			Timestamp:    time.Time(r.Timestamp),
		})
	}
	if lossy {
		j.backup(data)
	}
	return recs
}

func (j *JSONFile) backup(data []byte) {
	backup, err := fsutil.Backup(j.path, data)
	if err != nil {
		j.log.Error("could not back up history file", "path", j.path, "error", err)
		return
	}
	j.log.Error("history file copied aside before it is rewritten", "backup", backup)
}

func (j *JSONFile) save(recs []model.PostRecord) error {
	raw := make([]fileRecord, len(recs))
	for i, r := range recs {
		raw[i] = fileRecord{
			PostID:       r.PostID,
			Subreddit:    r.Subreddit,
			Title:        r.Title,
			TemplateUsed: r.TemplateUsed,
			Timestamp:    timestamp(r.Timestamp),
			URL:          r.ReplyURL,
		}
	}
	data, err := json.MarshalIndent(raw, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}
	return fsutil.WriteFileAtomic(j.path, append(data, '\n'))
}
