package normalizer

import "strings"

// The legacy single-string convention embeds sections with textual markers:
//
//	System: <system prompt, up to "Contexto Extra" or end of input>
//	Contexto Extra Human:
//	Query: <query, up to "user_key:" or end of input>
//	user_key: <key, up to end of line>
//
// and, when no context block carries a query, a bare "Human: <query>" line.
// All markers are matched case-sensitively; every capture is trimmed. Each
// section runs until the next marker or end of input.
const (
	markerSystem       = "System:"
	markerContextStart = "Contexto Extra"
	markerContextBlock = "Contexto Extra Human:"
	markerQuery        = "Query:"
	markerUserKey      = "user_key:"
	markerHuman        = "Human:"
)

type legacySections struct {
	SystemPrompt string
	Query        string
	UserKey      string
}

// parseLegacyString applies the ordered, all-optional sectioning grammar to
// one legacy-format string.
func parseLegacyString(text string) legacySections {
	var sections legacySections

	sections.SystemPrompt = captureSection(text, markerSystem, markerContextStart)

	if idx := strings.Index(text, markerContextBlock); idx >= 0 {
		block := text[idx+len(markerContextBlock):]
		sections.Query = captureSection(block, markerQuery, markerUserKey)
		sections.UserKey = captureLine(block, markerUserKey)
	}

	if sections.Query == "" {
		sections.Query = captureHumanFallback(text)
	}

	return sections
}

// captureHumanFallback returns the trimmed remainder of the first top-level
// "Human:" line. An occurrence that is the tail of the "Contexto Extra
// Human:" marker does not count, and neither does one with nothing left on
// its line.
func captureHumanFallback(text string) string {
	offset := 0
	for {
		idx := strings.Index(text[offset:], markerHuman)
		if idx < 0 {
			return ""
		}
		idx += offset
		offset = idx + len(markerHuman)
		if isContextMarkerTail(text, idx) {
			continue
		}
		line := text[idx+len(markerHuman):]
		if stop := strings.IndexByte(line, '\n'); stop >= 0 {
			line = line[:stop]
		}
		if captured := strings.TrimSpace(line); captured != "" {
			return captured
		}
	}
}

func isContextMarkerTail(text string, idx int) bool {
	prefixLen := len(markerContextBlock) - len(markerHuman)
	return idx >= prefixLen && text[idx-prefixLen:idx+len(markerHuman)] == markerContextBlock
}

// captureSection returns the trimmed text between the first occurrence of
// start and the following occurrence of end (or end of input). Empty when
// start is absent.
func captureSection(text, start, end string) string {
	idx := strings.Index(text, start)
	if idx < 0 {
		return ""
	}
	section := text[idx+len(start):]
	if stop := strings.Index(section, end); stop >= 0 {
		section = section[:stop]
	}
	return strings.TrimSpace(section)
}

// captureLine returns the trimmed remainder of the line following the first
// occurrence of the marker. Empty when the marker is absent.
func captureLine(text, marker string) string {
	idx := strings.Index(text, marker)
	if idx < 0 {
		return ""
	}
	line := text[idx+len(marker):]
	if stop := strings.IndexByte(line, '\n'); stop >= 0 {
		line = line[:stop]
	}
	return strings.TrimSpace(line)
}
