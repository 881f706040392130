package lyrics

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Document is the result of parsing one LRC body.
type Document struct {
	Lines []Line
	Words []Word
	// Offset carries the [offset:ms] tag, converted to seconds.
	Offset float64
}

// ParseLRC parses an LRC document. Repeated time tags on one line and
// enhanced <mm:ss.xx> word marks are both understood, so the same
// parser serves remote providers and local .lrc files.
func ParseLRC(raw string) Document {
	var doc Document
	if raw == "" {
		return doc
	}

	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}

		tags, rest := splitTimeTags(trimmed)
		if len(tags) == 0 {
			if off, ok := parseOffsetTag(trimmed); ok {
				doc.Offset = off
			}
			continue
		}

		text, words := splitWordMarks(rest)
		if text == "" {
			continue
		}

		for _, t := range tags {
			doc.Lines = append(doc.Lines, Line{Time: t, Text: text})
		}
		doc.Words = append(doc.Words, words...)
	}

	sort.SliceStable(doc.Lines, func(i, j int) bool { return doc.Lines[i].Time < doc.Lines[j].Time })
	sort.SliceStable(doc.Words, func(i, j int) bool { return doc.Words[i].Time < doc.Words[j].Time })
	fillWordDurations(doc.Words)

	return doc
}

// splitTimeTags consumes the leading [mm:ss.xx] tags of a line.
// Compressed lines carry several tags for one text.
func splitTimeTags(line string) ([]float64, string) {
	var tags []float64
	rest := line

	for strings.HasPrefix(rest, "[") {
		end := strings.Index(rest, "]")
		if end <= 1 {
			break
		}
		t, err := parseTimestamp(rest[1:end])
		if err != nil {
			break
		}
		tags = append(tags, t)
		rest = rest[end+1:]
	}

	return tags, strings.TrimSpace(rest)
}

// splitWordMarks extracts enhanced-format <mm:ss.xx> word marks. The
// returned text has the marks stripped. Lines without marks come back
// unchanged with no words.
func splitWordMarks(text string) (string, []Word) {
	if !strings.Contains(text, "<") {
		return text, nil
	}

	var words []Word
	var plain []string
	rest := text
	current := -1.0

	flush := func(segment string) {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			return
		}
		plain = append(plain, segment)
		if current >= 0 {
			words = append(words, Word{Time: current, Text: segment})
		}
	}

	for {
		start := strings.Index(rest, "<")
		if start < 0 {
			flush(rest)
			break
		}
		end := strings.Index(rest[start:], ">")
		if end < 0 {
			flush(rest)
			break
		}
		end += start

		t, err := parseTimestamp(rest[start+1 : end])
		if err != nil {
			// angle brackets that belong to the lyric itself
			flush(rest[:end+1])
			rest = rest[end+1:]
			continue
		}

		flush(rest[:start])
		current = t
		rest = rest[end+1:]
	}

	if len(words) == 0 {
		return strings.TrimSpace(text), nil
	}
	return strings.Join(plain, " "), words
}

func fillWordDurations(words []Word) {
	for i := range words {
		if i+1 >= len(words) {
			break
		}
		if d := words[i+1].Time - words[i].Time; d > 0 {
			words[i].Duration = d
		}
	}
}

func parseOffsetTag(line string) (float64, bool) {
	if !strings.HasPrefix(line, "[offset:") {
		return 0, false
	}
	end := strings.Index(line, "]")
	if end < 0 {
		return 0, false
	}
	ms, err := strconv.ParseFloat(strings.TrimSpace(strings.TrimPrefix(line[:end], "[offset:")), 64)
	if err != nil {
		return 0, false
	}
	return ms / 1000, true
}

func parseTimestamp(raw string) (float64, error) {
	if raw == "" {
		return 0, errors.New("empty time value")
	}

	parts := strings.Split(raw, ":")
	if len(parts) < 2 || len(parts) > 3 {
		return 0, fmt.Errorf("invalid time format: %s", raw)
	}

	var hours, minutes, seconds float64
	var err error

	if len(parts) == 3 {
		hours, err = parseFloatSafe(parts[0])
		if err != nil {
			return 0, err
		}
		minutes, err = parseFloatSafe(parts[1])
		if err != nil {
			return 0, err
		}
		seconds, err = parseFloatSafe(parts[2])
		if err != nil {
			return 0, err
		}
	} else {
		minutes, err = parseFloatSafe(parts[0])
		if err != nil {
			return 0, err
		}
		seconds, err = parseFloatSafe(parts[1])
		if err != nil {
			return 0, err
		}
	}

	total := hours*3600 + minutes*60 + seconds
	if total < 0 {
		return 0, errors.New("negative time not allowed")
	}

	return total, nil
}

func parseFloatSafe(s string) (float64, error) {
	value, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, fmt.Errorf("failed to parse float %q: %w", s, err)
	}
	return value, nil
}
