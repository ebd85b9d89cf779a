package pipeline

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/zhe.chen/landmark-story/internal/resolver"
	"github.com/zhe.chen/landmark-story/pkg/types"
)

// Narration chunk bounds, in characters.
const (
	chunkMin = 150
	chunkMax = 180
)

type shotTemplate struct {
	shotType   string
	duration   int
	mood       string
	transition string
}

var shotCycle = []shotTemplate{
	{"Establishing shot", 8, "Grand", "Fade in"},
	{"Medium shot", 6, "Detailed", "Cut"},
	{"Close-up", 5, "Intimate", "Dissolve"},
	{"Tracking shot", 6, "Reflective", "Cut"},
	{"Aerial shot", 7, "Majestic", "Fade out"},
}

var dominantFeatures = []string{
	"dome", "tower", "minaret", "column", "facade", "arch",
	"pyramid", "obelisk", "statue", "temple", "wall", "gate",
}

var (
	nameLine     = regexp.MustCompile(`(?im)^[^a-z\n]*name\b[^:\n]{0,40}:\s*(.+)$`)
	locationLine = regexp.MustCompile(`(?im)^[^a-z\n]*location\b[^:\n]{0,20}:\s*(.+)$`)
	inPlace      = regexp.MustCompile(`\bin ((?:[A-Z][\w'-]+)(?:,? [A-Z][\w'-]+)*)`)
	styleLine    = regexp.MustCompile(`(?im)architectural style[^:\n]{0,10}:\s*(.+)$`)
	stylePhrase  = regexp.MustCompile(`(?i)\b([a-z][\w-]*(?: [a-z][\w-]*)?) style\b`)

	periodPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th) century(?: (?:BC|BCE|AD|CE))?`),
		regexp.MustCompile(`(?i)\b\d{1,4} ?(?:BC|BCE|AD|CE)\b`),
		regexp.MustCompile(`(?i)\b[\w-]+ dynasty\b`),
		regexp.MustCompile(`\b[A-Z][\w-]+ (?:era|period)\b`),
		regexp.MustCompile(`\b[1-9]\d{2,3}\b`),
	}
)

// details are the facts the template shots are written from.
type details struct {
	name     string
	location string
	style    string
	period   string
	feature  string
}

func extractDetails(analysis, landmark string) details {
	var d details
	if landmark != "" && landmark != types.UnknownLandmark {
		d.name = landmark
	} else if m := nameLine.FindStringSubmatch(analysis); m != nil {
		if name, ok := resolver.CleanName(m[1]); ok {
			d.name = name
		}
	}

	if m := locationLine.FindStringSubmatch(analysis); m != nil {
		d.location = cleanValue(m[1])
	} else if m := inPlace.FindStringSubmatch(analysis); m != nil {
		d.location = m[1]
	}

	if m := styleLine.FindStringSubmatch(analysis); m != nil {
		d.style = cleanValue(m[1])
	} else if m := stylePhrase.FindStringSubmatch(analysis); m != nil {
		d.style = m[1]
	}

	for _, re := range periodPatterns {
		if m := re.FindString(analysis); m != "" {
			d.period = m
			break
		}
	}

	lower := strings.ToLower(analysis)
	for _, feature := range dominantFeatures {
		if strings.Contains(lower, feature) {
			d.feature = feature
			break
		}
	}
	return d
}

func cleanValue(s string) string {
	s = strings.Trim(strings.TrimSpace(s), "*_`\"' ")
	return strings.TrimSuffix(s, ".")
}

// FallbackShots builds a shot list from the story alone, used when the
// model's shot list is unusable. It returns between 1 and count shots.
func FallbackShots(story, analysis, landmark string, count int) []types.Shot {
	count = max(count, 1)
	d := extractDetails(analysis, landmark)

	chunks := chunkNarration(story)
	if len(chunks) == 0 {
		subject := "This historic landmark"
		if d.name != "" {
			subject = d.name
		}
		chunks = []string{subject + " stands as a testament to time, its story written in stone."}
	}
	if len(chunks) > count {
		tail := strings.Join(chunks[count-1:], " ")
		chunks = append(chunks[:count-1], tail)
	}

	shots := make([]types.Shot, len(chunks))
	for i, narration := range chunks {
		tpl := shotCycle[i%len(shotCycle)]
		visual, prompt := describeShot(tpl.shotType, d)
		shots[i] = types.Shot{
			ShotNumber:         i + 1,
			DurationSeconds:    tpl.duration,
			ShotType:           tpl.shotType,
			VisualDescription:  visual,
			Narration:          narration,
			Mood:               tpl.mood,
			Transition:         tpl.transition,
			AIGenerationPrompt: prompt,
		}
	}
	return shots
}

func describeShot(shotType string, d details) (visual, prompt string) {
	subject := "the historic landmark"
	if d.name != "" {
		subject = d.name
	}
	where := ""
	if d.location != "" {
		where = " in " + d.location
	}
	style := "historic"
	if d.style != "" {
		style = d.style
	}
	feature := "architectural details"
	if d.feature != "" {
		feature = d.feature + "s"
	}
	era := ""
	if d.period != "" {
		era = ", evoking the " + d.period
	}

	switch shotType {
	case "Establishing shot":
		visual = fmt.Sprintf("Wide panoramic view of %s%s in its surroundings", subject, where)
		prompt = fmt.Sprintf("Cinematic establishing shot of %s%s, %s architecture, wide angle, golden hour lighting, 4K", subject, where, style)
	case "Medium shot":
		visual = fmt.Sprintf("Medium view of the %s and facade of %s", feature, subject)
		prompt = fmt.Sprintf("Medium shot of %s, %s in %s style, soft daylight, professional documentary footage", subject, feature, style)
	case "Close-up":
		visual = fmt.Sprintf("Close-up of the %s and the craftsmanship of %s", feature, subject)
		prompt = fmt.Sprintf("Close-up of intricate %s on %s, textured stone, shallow depth of field, cinematic", feature, subject)
	case "Tracking shot":
		visual = fmt.Sprintf("Slow tracking shot along %s%s", subject, era)
		prompt = fmt.Sprintf("Smooth tracking shot moving along %s%s, %s architecture, warm light, cinematic", subject, era, style)
	default:
		visual = fmt.Sprintf("Aerial view rising over %s%s", subject, where)
		prompt = fmt.Sprintf("Aerial drone shot rising over %s%s, sweeping view, sunset, epic documentary style", subject, where)
	}
	return visual, prompt
}

// chunkNarration groups sentences into chunks of at most chunkMax
// characters, closing a chunk once it reaches chunkMin.
func chunkNarration(text string) []string {
	var chunks []string
	var cur []string
	curLen := 0

	flush := func() {
		if len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
		}
		cur, curLen = nil, 0
	}

	for _, sentence := range splitSentences(text) {
		for runeLen(sentence) > chunkMax {
			flush()
			head, rest := cutAtWord(sentence, chunkMax)
			chunks = append(chunks, head)
			sentence = rest
		}
		if sentence == "" {
			continue
		}

		n := runeLen(sentence)
		if len(cur) > 0 && curLen+1+n > chunkMax {
			flush()
		}
		if len(cur) > 0 {
			curLen++
		}
		cur = append(cur, sentence)
		curLen += n
		if curLen >= chunkMin {
			flush()
		}
	}
	flush()
	return chunks
}

// splitSentences splits after '.', '!' or '?' followed by whitespace or the
// end of the text.
func splitSentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		if i+1 < len(runes) && !unicode.IsSpace(runes[i+1]) {
			continue
		}
		if s := strings.Join(strings.Fields(string(runes[start:i+1])), " "); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if s := strings.Join(strings.Fields(string(runes[start:])), " "); s != "" {
		out = append(out, s)
	}
	return out
}

// cutAtWord splits s at the last space within limit characters, or hard at
// limit when there is none.
func cutAtWord(s string, limit int) (string, string) {
	runes := []rune(s)
	if len(runes) <= limit {
		return s, ""
	}
	cut := limit
	for i := limit; i > limit/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut])), strings.TrimSpace(string(runes[cut:]))
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
