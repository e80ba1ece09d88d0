// Package journal persists vault events to an append-only JSONL file in
// which every record carries the hash of its predecessor.
package journal

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/jvs-project/timelock/pkg/errclass"
	"github.com/jvs-project/timelock/pkg/jsonutil"
	"github.com/jvs-project/timelock/pkg/model"
)

// maxLine bounds a single record; events are small.
const maxLine = 1 << 20

// Journal appends events to a hash-chained JSONL file.
type Journal struct {
	path string
	mu   sync.Mutex
}

// New returns a journal backed by path. The file is created on first append.
func New(path string) *Journal {
	return &Journal{path: path}
}

// Path returns the backing file.
func (j *Journal) Path() string { return j.path }

// Handle appends ev, letting a Journal subscribe to an event bus.
func (j *Journal) Handle(_ context.Context, ev model.Event) error {
	_, err := j.Append(ev)
	return err
}

// Append writes ev as the next record in the chain and returns it.
func (j *Journal) Append(ev model.Event) (*model.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(j.path), 0755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	file, err := os.OpenFile(j.path, os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return nil, fmt.Errorf("lock journal: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return nil, err
	}

	rec := &model.JournalRecord{Event: ev, PrevHash: prevHash}
	if rec.RecordHash, err = recordHash(rec); err != nil {
		return nil, err
	}

	line, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("marshal journal record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return nil, fmt.Errorf("seek journal: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return nil, fmt.Errorf("write journal record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return nil, fmt.Errorf("sync journal: %w", err)
	}
	return rec, nil
}

// Read returns every record in file order. A missing file reads as empty.
func (j *Journal) Read() ([]model.JournalRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var records []model.JournalRecord
	err = scan(file, func(n int, line []byte) error {
		var rec model.JournalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return fmt.Errorf("journal line %d: %w", n, err)
		}
		records = append(records, rec)
		return nil
	})
	return records, err
}

// Events returns the journaled events in order.
func (j *Journal) Events() ([]model.Event, error) {
	records, err := j.Read()
	if err != nil {
		return nil, err
	}
	evs := make([]model.Event, len(records))
	for i, r := range records {
		evs[i] = r.Event
	}
	return evs, nil
}

// Verify walks the chain and returns the number of intact records. A
// malformed line, a hash mismatch or a broken link fails with
// ErrJournalChainBroken naming the first bad line.
func (j *Journal) Verify() (int, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	file, err := os.Open(j.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, nil
		}
		return 0, fmt.Errorf("open journal: %w", err)
	}
	defer file.Close()

	var (
		prev  model.HashValue
		count int
	)
	err = scan(file, func(n int, line []byte) error {
		var rec model.JournalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return errclass.ErrJournalChainBroken.WithMessagef("line %d: malformed record: %v", n, err)
		}
		if rec.PrevHash != prev {
			return errclass.ErrJournalChainBroken.WithMessagef("line %d: prev_hash %q does not match %q", n, rec.PrevHash, prev)
		}
		want, err := recordHash(&rec)
		if err != nil {
			return err
		}
		if rec.RecordHash != want {
			return errclass.ErrJournalChainBroken.WithMessagef("line %d: record_hash mismatch", n)
		}
		prev = rec.RecordHash
		count++
		return nil
	})
	return count, err
}

func scan(r io.Reader, fn func(n int, line []byte) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	n := 0
	for scanner.Scan() {
		n++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		if err := fn(n, scanner.Bytes()); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("scan journal: %w", err)
	}
	return nil
}

func lastRecordHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek journal: %w", err)
	}
	var last model.HashValue
	err := scan(file, func(n int, line []byte) error {
		var rec model.JournalRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return errclass.ErrJournalChainBroken.WithMessagef("line %d: malformed record: %v", n, err)
		}
		last = rec.RecordHash
		return nil
	})
	return last, err
}

// hashedRecord is the part of a record covered by its hash.
type hashedRecord struct {
	Event    model.Event     `json:"event"`
	PrevHash model.HashValue `json:"prev_hash"`
}

func recordHash(rec *model.JournalRecord) (model.HashValue, error) {
	sum, err := jsonutil.SHA256Hex(hashedRecord{Event: rec.Event, PrevHash: rec.PrevHash})
	if err != nil {
		return "", fmt.Errorf("hash journal record: %w", err)
	}
	return model.HashValue(sum), nil
}
