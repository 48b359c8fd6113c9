package markdown

import (
	"bytes"
	"strings"
	"time"
)

var frontmatterFence = []byte("---")

// SplitFrontmatter separates a leading YAML block fenced by "---" lines from
// the document body. Documents without one return nil front matter.
func SplitFrontmatter(raw []byte) (front []byte, body string) {
	raw = bytes.TrimPrefix(raw, []byte("\ufeff"))
	raw = bytes.ReplaceAll(raw, []byte("\r\n"), []byte("\n"))
	if !bytes.HasPrefix(raw, frontmatterFence) {
		return nil, string(raw)
	}

	rest := raw[len(frontmatterFence):]
	nl := bytes.IndexByte(rest, '\n')
	if nl < 0 || len(bytes.TrimSpace(rest[:nl])) != 0 {
		return nil, string(raw)
	}
	rest = rest[nl+1:]

	for offset := 0; offset <= len(rest); {
		end := bytes.IndexByte(rest[offset:], '\n')
		var line []byte
		if end < 0 {
			line = rest[offset:]
		} else {
			line = rest[offset : offset+end]
		}
		if bytes.Equal(bytes.TrimRight(line, " \t"), frontmatterFence) {
			front = rest[:offset]
			if end < 0 {
				return front, ""
			}
			return front, string(rest[offset+end+1:])
		}
		if end < 0 {
			break
		}
		offset += end + 1
	}
	return nil, string(raw)
}

// ParseTime attempts several common date/time layouts.
func ParseTime(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}
	}

	layouts := []string{
		time.RFC3339Nano,
		time.RFC3339,
		"2006-01-02 15:04:05",
		"2006-01-02T15:04:05",
		"2006-01-02",
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, raw); err == nil {
			return parsed
		}
	}
	return time.Time{}
}
