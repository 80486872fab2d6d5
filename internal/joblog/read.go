package joblog

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"
)

const (
	maxLineBytes = 1024 * 1024
	pollInterval = 250 * time.Millisecond
)

// Query selects lines from a job log. A negative Offset returns the last
// Limit matching lines; otherwise lines after Offset are returned. With
// Follow, an empty read waits up to Wait for new lines.
type Query struct {
	Offset   int64
	Limit    int
	Follow   bool
	Wait     time.Duration
	Stage    string
	MinLevel string
}

// Page is one read: the matching raw JSON lines and the offset to resume
// from.
type Page struct {
	Lines  []string
	Offset int64
}

// Entry holds the fields filters look at.
type Entry struct {
	Time  string `json:"ts"`
	Level string `json:"level"`
	Msg   string `json:"msg"`
	Stage string `json:"stage"`
	Event string `json:"event_type"`
}

// Parse decodes a log line. Lines that are not JSON objects report false.
func Parse(line string) (Entry, bool) {
	var e Entry
	if err := json.Unmarshal([]byte(line), &e); err != nil {
		return Entry{}, false
	}
	return e, true
}

var levelRank = map[string]int{"debug": 0, "info": 1, "warn": 2, "error": 3}

func (q Query) matches(line string) bool {
	if q.Stage == "" && q.MinLevel == "" {
		return true
	}
	e, ok := Parse(line)
	if !ok {
		return false
	}
	if q.Stage != "" && !strings.EqualFold(e.Stage, q.Stage) {
		return false
	}
	if q.MinLevel != "" {
		want, known := levelRank[strings.ToLower(q.MinLevel)]
		if known && levelRank[strings.ToLower(e.Level)] < want {
			return false
		}
	}
	return true
}

// Read returns lines from path according to q. A missing file yields an
// empty page at offset zero, since a queued job has no log yet.
func Read(ctx context.Context, path string, q Query) (Page, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Page{}, nil
		}
		return Page{}, fmt.Errorf("stat job log: %w", err)
	}
	if info.IsDir() {
		return Page{}, fmt.Errorf("job log %q is a directory", path)
	}
	if q.Wait < 0 {
		q.Wait = 0
	}

	var page Page
	if q.Offset < 0 {
		page, err = readLast(path, q)
	} else {
		offset := q.Offset
		if offset > info.Size() {
			offset = info.Size()
		}
		page, err = readFrom(path, offset, q)
	}
	if err != nil {
		return page, err
	}
	if q.Follow && q.Wait > 0 && len(page.Lines) == 0 {
		return waitFor(ctx, path, page.Offset, q)
	}
	return page, nil
}

func scan(path string, offset int64, visit func(string)) (int64, error) {
	file, err := os.Open(path)
	if err != nil {
		return offset, fmt.Errorf("open job log: %w", err)
	}
	defer file.Close()
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return offset, fmt.Errorf("seek job log: %w", err)
	}

	reader := bufio.NewReaderSize(file, 64*1024)
	pos := offset
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			// A partial last line is still being written; leave it for the
			// next read.
			if errors.Is(err, io.EOF) {
				return pos, nil
			}
			return pos, fmt.Errorf("read job log: %w", err)
		}
		pos += int64(len(line))
		if len(line) > maxLineBytes {
			continue
		}
		visit(strings.TrimRight(line, "\r\n"))
	}
}

func readLast(path string, q Query) (Page, error) {
	var ring []string
	end, err := scan(path, 0, func(line string) {
		if !q.matches(line) {
			return
		}
		ring = append(ring, line)
		if q.Limit > 0 && len(ring) > q.Limit {
			ring = ring[1:]
		}
	})
	if err != nil {
		return Page{}, err
	}
	if q.Limit <= 0 {
		ring = nil
	}
	return Page{Lines: ring, Offset: end}, nil
}

func readFrom(path string, offset int64, q Query) (Page, error) {
	var lines []string
	end, err := scan(path, offset, func(line string) {
		if q.matches(line) && (q.Limit <= 0 || len(lines) < q.Limit) {
			lines = append(lines, line)
		}
	})
	if err != nil {
		return Page{Offset: offset}, err
	}
	return Page{Lines: lines, Offset: end}, nil
}

func waitFor(ctx context.Context, path string, offset int64, q Query) (Page, error) {
	deadline := time.Now().Add(q.Wait)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	page := Page{Offset: offset}
	for {
		next, err := readFrom(path, page.Offset, q)
		if err != nil {
			return page, err
		}
		page.Offset = next.Offset
		if len(next.Lines) > 0 || time.Now().After(deadline) {
			page.Lines = next.Lines
			return page, nil
		}
		select {
		case <-ctx.Done():
			return page, ctx.Err()
		case <-ticker.C:
		}
	}
}
