// Package jsonl reads and writes the record files the harness consumes and
// produces: one JSON object per line, caller fields preserved verbatim.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/quarrylabs/verilim/internal/record"
)

// maxLineBytes bounds a single JSONL line; prompts and answers can get long.
const maxLineBytes = 8 * 1024 * 1024

// Read loads up to limit records from path. limit <= 0 means no cap. Blank
// lines are skipped. A malformed line never fails the read: its line number
// comes back in skipped so callers can log it, and the batch continues.
// Only opening or scanning the file itself is fatal.
func Read(path string, limit int) ([]record.Record, []int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var records []record.Record
	var skipped []int
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if limit > 0 && len(records) >= limit {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec record.Record
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			skipped = append(skipped, lineNo)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return records, skipped, nil
}

// Write writes records to path, creating parent directories as needed.
func Write(path string, records []record.Record) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return fmt.Errorf("encoding record: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flushing %s: %w", path, err)
	}
	return nil
}

// sampleRecords seed a first run when no input file exists yet.
var sampleRecords = []record.Record{
	{
		"Title": "SAP SuccessFactors Recruitement",
		"Description": "SAP SuccessFactors Recruitment: assess whether the solution provides data export " +
			"capability in different formats (e.g., CSV, Excel, PDF) for hiring managers, HR " +
			"business partners, and recruitment super users for all recruitment data stored and created.",
		"Area":    []string{},
		"Product": []string{},
	},
}

// EnsureSampleInput writes the sample input file if nothing exists at path.
// An existing file, whatever its content, is left untouched.
func EnsureSampleInput(path string) error {
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return err
	}
	return Write(path, sampleRecords)
}
