package subtitles

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/forPelevin/blockcut/internal/domain/templates"
	"github.com/forPelevin/blockcut/internal/types"
)

// Render builds an ASS preview of a short: the title pinned for the whole clip
// and the subtitle cues as karaoke lines, both styled by tpl. With clipLocal
// set, event times are offsets from the short's start.
func Render(s types.Short, tpl templates.Template, clipLocal bool) (string, error) {
	if s.End <= s.Start {
		return "", fmt.Errorf("subtitles: short has no duration (%.2f..%.2f)", s.Start, s.End)
	}
	start, end := dur(s.Start), dur(s.End)
	base := time.Duration(0)
	if clipLocal {
		base = start
	}

	words := collectWords(s.Subtitles, start, end, base)

	var b strings.Builder
	b.WriteString(assHeader(tpl))
	b.WriteString("\n[Events]\n")
	b.WriteString("Format: Layer, Start, End, Style, Name, MarginL, MarginR, MarginV, Effect, Text\n")
	if title := sanitizeASS(s.Title); title != "" {
		writeEvent(&b, 1, start-base, end-base, "Title", title)
	}
	if len(words) > 0 {
		for _, ln := range packWords(words) {
			writeEvent(&b, 0, ln.Start, ln.End, "Sub", karaoke(ln))
		}
	}
	return b.String(), nil
}

type wword struct {
	Start time.Duration
	End   time.Duration
	Text  string
}

type line struct {
	Start time.Duration
	End   time.Duration
	Words []wword
}

// collectWords spreads each cue's duration evenly over its words; cues carry
// no per-word timing.
func collectWords(cues []types.Subtitle, start, end, base time.Duration) []wword {
	var out []wword
	for _, c := range cues {
		cs, ce := dur(c.Start), dur(c.End)
		if ce <= start || cs >= end {
			continue
		}
		if cs < start {
			cs = start
		}
		if ce > end {
			ce = end
		}
		fields := strings.Fields(sanitizeASS(c.Text))
		if len(fields) == 0 {
			continue
		}
		step := (ce - cs) / time.Duration(len(fields))
		for i, f := range fields {
			ws := cs + time.Duration(i)*step
			we := ws + step
			if i == len(fields)-1 {
				we = ce
			}
			out = append(out, wword{Start: ws - base, End: we - base, Text: f})
		}
	}
	return out
}

func packWords(words []wword) []line {
	var out []line
	cur := line{Start: words[0].Start}
	charBudget := 42
	wordBudget := 9
	curLen := 0
	for i, w := range words {
		wl := len([]rune(w.Text))
		nextLen := curLen
		if curLen > 0 {
			nextLen++
		}
		nextLen += wl
		if len(cur.Words) > 0 && (len(cur.Words) >= wordBudget || nextLen > charBudget) {
			cur.End = cur.Words[len(cur.Words)-1].End
			out = append(out, cur)
			cur = line{Start: w.Start}
			curLen = 0
		}
		cur.Words = append(cur.Words, w)
		if curLen > 0 {
			curLen++
		}
		curLen += wl
		if i == len(words)-1 {
			cur.End = w.End
			out = append(out, cur)
		}
	}
	return out
}

func karaoke(ln line) string {
	parts := make([]string, 0, len(ln.Words))
	for _, w := range ln.Words {
		durCS := int((w.End - w.Start) / (10 * time.Millisecond))
		if durCS < 1 {
			durCS = 1
		}
		parts = append(parts, fmt.Sprintf("{\\k%d}%s", durCS, w.Text))
	}
	return strings.Join(parts, " ")
}

func writeEvent(b *strings.Builder, layer int, start, end time.Duration, style, text string) {
	fmt.Fprintf(b, "Dialogue: %d,%s,%s,%s,,0,0,0,,%s\n", layer, assTime(start), assTime(end), style, text)
}

func assHeader(tpl templates.Template) string {
	var b strings.Builder
	b.WriteString("[Script Info]\n")
	b.WriteString("ScriptType: v4.00+\n")
	b.WriteString("PlayResX: 1080\n")
	b.WriteString("PlayResY: 1920\n")
	b.WriteString("ScaledBorderAndShadow: yes\n\n")
	b.WriteString("[V4+ Styles]\n")
	b.WriteString("Format: Name, Fontname, Fontsize, PrimaryColour, SecondaryColour, OutlineColour, BackColour, Bold, Italic, Underline, StrikeOut, ScaleX, ScaleY, Spacing, Angle, BorderStyle, Outline, Shadow, Alignment, MarginL, MarginR, MarginV, Encoding\n")
	b.WriteString(styleLine("Title", tpl.Title))
	b.WriteString(styleLine("Sub", tpl.Subtitles))
	return b.String()
}

const playResY = 1920

func styleLine(name string, st templates.Style) string {
	// y is a top offset for titles ("250") or a bottom expression for subtitles
	// ("h-330"); both map to a vertical margin with matching alignment.
	align, marginV := 8, 0
	if px, ok := st.Y.Pixels(); ok {
		marginV = px
		if px > playResY/2 {
			align, marginV = 2, playResY-px
		}
	} else if rest, ok := strings.CutPrefix(string(st.Y), "h-"); ok {
		if n, err := strconv.Atoi(rest); err == nil {
			align, marginV = 2, n
		}
	}

	borderStyle, back := 1, "&H80000000"
	if st.Box == 1 {
		borderStyle = 3
		if st.BoxColor != "" {
			back = Colour(st.BoxColor)
		}
	}
	outline := Colour(st.BorderColor)
	if borderStyle == 3 {
		// BorderStyle 3 paints the box with OutlineColour.
		outline = back
	}
	shadow := 0
	if st.ShadowColor != "" {
		shadow = max(1, st.ShadowX, st.ShadowY)
	}
	font := strings.TrimSuffix(strings.TrimSuffix(st.Font, ".ttc"), ".ttf")
	if font == "" {
		font = "Arial"
	}
	return fmt.Sprintf("Style: %s,%s,%d,%s,&H000000FF,%s,%s,1,0,0,0,100,100,0,0,%d,%d,%d,%d,60,60,%d,1\n",
		name, font, st.FontSize, Colour(st.FontColor), outline, back, borderStyle, st.BorderW, shadow, align, marginV)
}

var namedColours = map[string]string{
	"black":   "000000",
	"white":   "FFFFFF",
	"red":     "FF0000",
	"green":   "008000",
	"blue":    "0000FF",
	"yellow":  "FFFF00",
	"cyan":    "00FFFF",
	"magenta": "FF00FF",
}

// Colour converts a drawtext colour ("white", "#00BFFF", "black@0.8") to an ASS
// &HAABBGGRR literal. Unknown colours render white.
func Colour(c string) string {
	c = strings.TrimSpace(c)
	name, opacity := c, 1.0
	if i := strings.LastIndexByte(c, '@'); i >= 0 {
		name = c[:i]
		if f, err := strconv.ParseFloat(c[i+1:], 64); err == nil && f >= 0 && f <= 1 {
			opacity = f
		}
	}
	hex, ok := namedColours[strings.ToLower(name)]
	if !ok {
		hex = strings.TrimPrefix(strings.TrimPrefix(name, "#"), "0x")
	}
	if len(hex) != 6 {
		hex = "FFFFFF"
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		hex = "FFFFFF"
	}
	hex = strings.ToUpper(hex)
	alpha := int((1-opacity)*255 + 0.5)
	return fmt.Sprintf("&H%02X%s%s%s", alpha, hex[4:6], hex[2:4], hex[0:2])
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
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

func dur(sec float64) time.Duration { return time.Duration(sec * float64(time.Second)) }
