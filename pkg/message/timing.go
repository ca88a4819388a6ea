package message

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
)

type TimingEntry struct {
	Delay float64 // seconds since the previous chunk
	Bytes int
}

func (e TimingEntry) String() string {
	return FormatTimingLine(e.Delay, e.Bytes)
}

// FormatTimingLine renders one timing line, newline included.
func FormatTimingLine(delay float64, n int) string {
	return fmt.Sprintf("%f %d\n", delay, n)
}

// ParseTiming reads a timing list. Blank lines are skipped.
func ParseTiming(text string) ([]TimingEntry, error) {
	var entries []TimingEntry
	sc := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for sc.Scan() {
		lineNo += 1
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) != 2 {
			return nil, fmt.Errorf("timing line %d: expected 2 fields, got %d", lineNo, len(fields))
		}
		delay, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("timing line %d: bad delay %q", lineNo, fields[0])
		}
		n, err := strconv.Atoi(fields[1])
		if err != nil || n < 0 {
			return nil, fmt.Errorf("timing line %d: bad byte count %q", lineNo, fields[1])
		}
		entries = append(entries, TimingEntry{Delay: delay, Bytes: n})
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return entries, nil
}

func FormatTiming(entries []TimingEntry) string {
	var b strings.Builder
	for _, e := range entries {
		b.WriteString(e.String())
	}
	return b.String()
}

func TotalBytes(entries []TimingEntry) int {
	total := 0
	for _, e := range entries {
		total += e.Bytes
	}
	return total
}
