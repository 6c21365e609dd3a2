package logtail

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// chunkSize is how much of the log is read per step when walking backwards.
const chunkSize = 32 * 1024

// Read returns the last maxLines lines of the log at path, oldest first. A
// non-positive maxLines returns every line. A missing log yields nil, nil.
func Read(path string, maxLines int) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("open log: %w", err)
	}
	defer file.Close()

	var data []byte
	if maxLines <= 0 {
		data, err = io.ReadAll(file)
	} else {
		var info os.FileInfo
		if info, err = file.Stat(); err != nil {
			return nil, fmt.Errorf("stat log: %w", err)
		}
		data, err = tail(file, info.Size(), maxLines)
	}
	if err != nil {
		return nil, fmt.Errorf("read log: %w", err)
	}
	return lastLines(data, maxLines), nil
}

// Entries reads the last maxLines lines of the log at path and parses every
// non-blank one.
func Entries(path string, maxLines int) ([]Entry, error) {
	lines, err := Read(path, maxLines)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		entries = append(entries, Parse(line))
	}
	return entries, nil
}

// tail reads r backwards from size until the buffer holds more than maxLines
// line breaks or the start of the file is reached.
func tail(r io.ReaderAt, size int64, maxLines int) ([]byte, error) {
	var buf []byte
	for offset := size; offset > 0; {
		n := min(int64(chunkSize), offset)
		offset -= n
		chunk := make([]byte, n)
		read, err := r.ReadAt(chunk, offset)
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, err
		}
		buf = append(chunk[:read], buf...)
		// The final newline ends the last line; it does not start another.
		if bytes.Count(bytes.TrimSuffix(buf, []byte("\n")), []byte("\n")) >= maxLines {
			break
		}
	}
	return buf, nil
}

func lastLines(data []byte, maxLines int) []string {
	text := strings.TrimSuffix(string(data), "\n")
	if text == "" {
		return nil
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSuffix(line, "\r")
	}
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return lines
}
