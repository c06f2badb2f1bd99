package subtitles

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

// FormatSRT serializes a track as SubRip: index, time range, text, blank line.
func FormatSRT(track types.SubtitleTrack) []byte {
	var b bytes.Buffer
	for _, c := range track.Cues {
		fmt.Fprintf(&b, "%d\n", c.Index)
		fmt.Fprintf(&b, "%s --> %s\n", srtTime(c.Start), srtTime(c.End))
		for _, ln := range strings.Split(c.Text, "\n") {
			if ln = strings.TrimSpace(ln); ln != "" {
				b.WriteString(ln)
				b.WriteByte('\n')
			}
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}

// ParseSRT reads SubRip data. Multi-line cue text is joined with "\n".
func ParseSRT(data []byte) (types.SubtitleTrack, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var (
		track  types.SubtitleTrack
		cur    *types.Cue
		text   []string
		lineNo int
		state  int // 0 index, 1 timing, 2 text
	)
	flush := func() {
		if cur != nil {
			cur.Text = strings.Join(text, "\n")
			track.Cues = append(track.Cues, *cur)
		}
		cur, text, state = nil, nil, 0
	}

	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimRight(sc.Text(), "\r"))
		switch state {
		case 0:
			if line == "" {
				continue
			}
			idx, err := strconv.Atoi(line)
			if err != nil {
				return types.SubtitleTrack{}, fmt.Errorf("srt line %d: invalid index %q", lineNo, line)
			}
			cur = &types.Cue{Index: idx}
			state = 1
		case 1:
			start, end, err := parseSRTRange(line)
			if err != nil {
				return types.SubtitleTrack{}, fmt.Errorf("srt line %d: %w", lineNo, err)
			}
			cur.Start, cur.End = start, end
			state = 2
		case 2:
			if line == "" {
				flush()
				continue
			}
			text = append(text, line)
		}
	}
	if err := sc.Err(); err != nil {
		return types.SubtitleTrack{}, fmt.Errorf("read srt: %w", err)
	}
	if state == 1 {
		return types.SubtitleTrack{}, fmt.Errorf("srt line %d: missing time range", lineNo)
	}
	flush()
	return track, nil
}

func parseSRTRange(line string) (time.Duration, time.Duration, error) {
	parts := strings.Split(line, "-->")
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid time range %q", line)
	}
	start, err := parseSRTTime(parts[0])
	if err != nil {
		return 0, 0, err
	}
	// Some writers append position hints after the end time.
	endField := strings.Fields(parts[1])
	if len(endField) == 0 {
		return 0, 0, fmt.Errorf("invalid time range %q", line)
	}
	end, err := parseSRTTime(endField[0])
	if err != nil {
		return 0, 0, err
	}
	return start, end, nil
}

func parseSRTTime(s string) (time.Duration, error) {
	s = strings.TrimSpace(strings.Replace(s, ".", ",", 1))
	var h, m, sec, ms int
	if _, err := fmt.Sscanf(s, "%d:%d:%d,%d", &h, &m, &sec, &ms); err != nil {
		return 0, fmt.Errorf("invalid timestamp %q: %w", s, err)
	}
	if m > 59 || sec > 59 || ms > 999 || h < 0 || m < 0 || sec < 0 || ms < 0 {
		return 0, fmt.Errorf("invalid timestamp %q", s)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(m)*time.Minute +
		time.Duration(sec)*time.Second +
		time.Duration(ms)*time.Millisecond, nil
}

// srtTime formats d as HH:MM:SS,mmm rounded to the millisecond.
func srtTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	d = d.Round(time.Millisecond)
	h := d / time.Hour
	d -= h * time.Hour
	m := d / time.Minute
	d -= m * time.Minute
	s := d / time.Second
	d -= s * time.Second
	ms := d / time.Millisecond
	return fmt.Sprintf("%02d:%02d:%02d,%03d", int(h), int(m), int(s), int(ms))
}
