package subtitles

import (
	"fmt"
	"strings"
	"time"

	"github.com/forPelevin/clipforge/internal/types"
)

// Position is the on-screen placement of burned captions.
type Position string

const (
	PositionBottom Position = "bottom"
	PositionMiddle Position = "middle"
)

func (p Position) Valid() bool { return p == PositionBottom || p == PositionMiddle }

// Alignment maps the position to the ASS numpad alignment.
func (p Position) Alignment() int {
	if p == PositionMiddle {
		return 5
	}
	return 2
}

type Style struct {
	Position Position
	FontName string
	FontSize int
	// PlayResX/PlayResY define the coordinate space; 1080x1920 suits vertical clips.
	PlayResX int
	PlayResY int
}

func DefaultStyle() Style {
	return Style{Position: PositionBottom, FontName: "Inter", FontSize: 64, PlayResX: 1920, PlayResY: 1080}
}

// RenderASS renders the track as an Advanced SubStation script using style.
func RenderASS(track types.SubtitleTrack, style Style) string {
	var b strings.Builder
	b.WriteString(assHeader(style))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	for _, c := range track.Cues {
		b.WriteString("Dialogue: 0,")
		b.WriteString(assTime(c.Start))
		b.WriteString(",")
		b.WriteString(assTime(c.End))
		b.WriteString(",Caption,,0,0,0,,")
		b.WriteString(strings.ReplaceAll(sanitizeASS(c.Text), "\n", "\\N"))
		b.WriteString("\n")
	}
	return b.String()
}

func assHeader(st Style) string {
	if st.FontName == "" {
		st.FontName = "Inter"
	}
	if st.FontSize <= 0 {
		st.FontSize = 64
	}
	if st.PlayResX <= 0 || st.PlayResY <= 0 {
		st.PlayResX, st.PlayResY = 1920, 1080
	}
	marginV := 85
	if st.Position == PositionMiddle {
		marginV = 0
	}
	return strings.TrimSpace(fmt.Sprintf(`
[Script Info]
ScriptType: v4.00+
PlayResX: %d
PlayResY: %d
ScaledBorderAndShadow: yes

[V4+ Styles]
Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding
Style: Caption, %s, %d, &H00FFFFFF, &H00FFD200, &H00000000, &H64000000, 1,0,0,0,100,100,0,0,1,6,2,%d, 80,80,%d,1
`, st.PlayResX, st.PlayResY, st.FontName, st.FontSize, st.Position.Alignment(), marginV))
}

func assTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	hs := int(d / time.Hour)
	d -= time.Duration(hs) * time.Hour
	ms := int(d / time.Minute)
	d -= time.Duration(ms) * time.Minute
	s := int(d / time.Second)
	d -= time.Duration(s) * time.Second
	cs := int(d / (10 * time.Millisecond))
	return fmt.Sprintf("%d:%02d:%02d.%02d", hs, ms, s, cs)
}

func sanitizeASS(s string) string {
	s = strings.ReplaceAll(s, "\\", "\\\\")
	s = strings.ReplaceAll(s, "{", "(")
	s = strings.ReplaceAll(s, "}", ")")
	return strings.TrimSpace(s)
}
