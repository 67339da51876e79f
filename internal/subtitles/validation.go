package subtitles

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ParseTimestamp converts an SRT timestamp (HH:MM:SS,mmm) to milliseconds.
// A period is accepted in place of the comma.
func ParseTimestamp(value string) (int64, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, fmt.Errorf("empty timestamp")
	}
	value = strings.ReplaceAll(value, ".", ",")
	timeParts := strings.Split(value, ",")
	if len(timeParts) != 2 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hms := strings.Split(timeParts[0], ":")
	if len(hms) != 3 {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	hours, errH := strconv.Atoi(hms[0])
	minutes, errM := strconv.Atoi(hms[1])
	seconds, errS := strconv.Atoi(hms[2])
	millis, errMS := strconv.Atoi(timeParts[1])
	if errH != nil || errM != nil || errS != nil || errMS != nil {
		return 0, fmt.Errorf("invalid timestamp %q", value)
	}
	if minutes > 59 || seconds > 59 || millis > 999 || hours < 0 || minutes < 0 || seconds < 0 || millis < 0 {
		return 0, fmt.Errorf("timestamp %q out of range", value)
	}
	return int64(hours*3600+minutes*60+seconds)*1000 + int64(millis), nil
}

// CountCues returns the number of non-empty records in SRT content.
func CountCues(content string) int {
	content = strings.TrimSpace(strings.ReplaceAll(content, "\r\n", "\n"))
	if content == "" {
		return 0
	}
	count := 0
	for _, block := range strings.Split(content, "\n\n") {
		if strings.TrimSpace(block) != "" {
			count++
		}
	}
	return count
}

// Validate reads an SRT file and reports format problems. An empty slice
// means the file passed. want is the expected cue count; pass a negative
// value to skip that comparison.
func Validate(path string, want int) []string {
	data, err := os.ReadFile(path)
	if err != nil {
		return []string{fmt.Sprintf("read_error: %v", err)}
	}
	content := string(data)

	var issues []string
	cues := CountCues(content)
	if want >= 0 && cues != want {
		issues = append(issues, fmt.Sprintf("cue_count_mismatch: want=%d got=%d", want, cues))
	}
	if cues == 0 {
		return issues
	}

	for i, line := range strings.Split(content, "\n") {
		if !strings.Contains(line, "-->") {
			continue
		}
		parts := strings.Split(line, "-->")
		if len(parts) != 2 {
			issues = append(issues, fmt.Sprintf("malformed_timing: line=%d", i+1))
			continue
		}
		if _, err := ParseTimestamp(parts[0]); err != nil {
			issues = append(issues, fmt.Sprintf("bad_start: line=%d", i+1))
		}
		if _, err := ParseTimestamp(parts[1]); err != nil {
			issues = append(issues, fmt.Sprintf("bad_end: line=%d", i+1))
		}
	}
	return issues
}
