package pipeline

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"trendclip/internal/stage"
)

// Clip length bounds in seconds. Windows outside this range do not survive
// on short-form platforms.
const (
	minClipSeconds = 20
	maxClipSeconds = 60
)

// defaultMaxClips caps how many highlight windows one job produces.
const defaultMaxClips = 3

// highlightKeywords score transcript segments and double as hashtag sources.
var highlightKeywords = []string{
	"amazing", "best", "crazy", "epic", "finally", "incredible",
	"insane", "never", "record", "secret", "unbelievable", "wow",
}

// Clipper selects highlight windows from the transcript. It is pure: no
// external tools, no filesystem, deterministic for a given transcript.
type Clipper struct {
	MaxClips int

	titleCaser cases.Caser
}

// NewClipper constructs the clipping stage with the default clip cap.
func NewClipper() *Clipper {
	return &Clipper{
		MaxClips:   defaultMaxClips,
		titleCaser: cases.Title(language.English),
	}
}

func (c *Clipper) Execute(ctx context.Context, env *stage.Env) error {
	if env.Transcript == nil || env.Media == nil {
		return Wrap(ErrValidation, "clip", "check input", "no transcript available", nil)
	}
	env.Progress(0, "Analyzing transcript")

	plans := c.Plan(env.Transcript, env.Media.Duration)
	if len(plans) == 0 {
		return Wrap(ErrValidation, "clip", "select highlights", "source too short to produce a clip", nil)
	}

	env.Plans = plans
	env.Progress(100, fmt.Sprintf("Selected %d highlight(s)", len(plans)))
	return nil
}

func (c *Clipper) HealthCheck(ctx context.Context) stage.Health {
	return stage.Healthy("clip")
}

// Plan scores the transcript and returns up to MaxClips non-overlapping
// highlight windows of 20 to 60 seconds, ordered by start time.
func (c *Clipper) Plan(transcript *stage.Transcript, mediaDuration float64) []stage.ClipPlan {
	segments := transcript.Segments
	if len(segments) == 0 || mediaDuration <= 0 {
		return nil
	}

	// Media shorter than a minimum clip becomes a single whole-source clip.
	if mediaDuration < minClipSeconds {
		window := segments
		return []stage.ClipPlan{c.buildPlan(window, 0, mediaDuration)}
	}

	type candidate struct {
		first, last int
		score       float64
	}

	var candidates []candidate
	for seed := range segments {
		first, last := c.growWindow(segments, seed, mediaDuration)
		if first < 0 {
			continue
		}
		score := 0.0
		for i := first; i <= last; i++ {
			score += segmentScore(segments[i])
		}
		candidates = append(candidates, candidate{first: first, last: last, score: score})
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].first < candidates[j].first
	})

	maxClips := c.MaxClips
	if maxClips < 1 {
		maxClips = 1
	}

	var chosen []candidate
	for _, cand := range candidates {
		if len(chosen) == maxClips {
			break
		}
		overlaps := false
		for _, existing := range chosen {
			if cand.first <= existing.last && existing.first <= cand.last {
				overlaps = true
				break
			}
		}
		if !overlaps {
			chosen = append(chosen, cand)
		}
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].first < chosen[j].first })

	plans := make([]stage.ClipPlan, 0, len(chosen))
	for _, cand := range chosen {
		window := segments[cand.first : cand.last+1]
		start := clampFloat(window[0].Start, 0, mediaDuration)
		end := clampFloat(window[len(window)-1].End, 0, mediaDuration)
		plans = append(plans, c.buildPlan(window, start, end))
	}
	return plans
}

// growWindow expands from the seed segment toward neighbors until the window
// reaches the minimum clip length, stopping before it exceeds the maximum.
// Returns -1 when no valid window contains the seed.
func (c *Clipper) growWindow(segments []stage.Segment, seed int, mediaDuration float64) (int, int) {
	first, last := seed, seed

	windowLen := func() float64 { return segments[last].End - segments[first].Start }

	for windowLen() < minClipSeconds {
		extendLeft := first > 0
		extendRight := last < len(segments)-1
		if !extendLeft && !extendRight {
			return -1, -1
		}
		// Prefer the neighbor that scores higher; ties extend forward.
		switch {
		case extendLeft && extendRight:
			if segmentScore(segments[first-1]) > segmentScore(segments[last+1]) {
				first--
			} else {
				last++
			}
		case extendRight:
			last++
		default:
			first--
		}
		if windowLen() > maxClipSeconds {
			return -1, -1
		}
	}
	return first, last
}

func (c *Clipper) buildPlan(window []stage.Segment, start, end float64) stage.ClipPlan {
	best := window[0]
	for _, segment := range window {
		if segmentScore(segment) > segmentScore(best) {
			best = segment
		}
	}

	return stage.ClipPlan{
		Title:       c.clipTitle(best.Text),
		Description: clipDescription(window),
		Start:       start,
		End:         end,
		Hashtags:    extractHashtags(window),
	}
}

// clipTitle turns the strongest segment into a short title.
func (c *Clipper) clipTitle(text string) string {
	words := strings.Fields(strings.Trim(text, ".!? "))
	if len(words) > 8 {
		words = words[:8]
	}
	title := c.titleCaser.String(strings.Join(words, " "))
	if title == "" {
		title = "Untitled Clip"
	}
	return title
}

func clipDescription(window []stage.Segment) string {
	var builder strings.Builder
	for _, segment := range window {
		if builder.Len()+len(segment.Text) > 200 {
			break
		}
		if builder.Len() > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(segment.Text)
	}
	return builder.String()
}

// extractHashtags collects keyword hits across the window in first-hit order.
func extractHashtags(window []stage.Segment) []string {
	seen := make(map[string]struct{})
	var tags []string
	for _, segment := range window {
		lowered := strings.ToLower(segment.Text)
		for _, keyword := range highlightKeywords {
			if _, dup := seen[keyword]; dup {
				continue
			}
			if strings.Contains(lowered, keyword) {
				seen[keyword] = struct{}{}
				tags = append(tags, "#"+keyword)
			}
		}
	}
	tags = append(tags, "#shorts")
	return tags
}

// segmentScore rates a segment's highlight potential: punctuation energy,
// keyword hits, and speech density.
func segmentScore(segment stage.Segment) float64 {
	text := segment.Text
	lowered := strings.ToLower(text)

	score := 0.0
	score += float64(strings.Count(text, "!")) * 2
	score += float64(strings.Count(text, "?"))
	for _, keyword := range highlightKeywords {
		if strings.Contains(lowered, keyword) {
			score += 3
		}
	}

	length := segment.End - segment.Start
	if length > 0 {
		wordsPerSecond := float64(len(strings.Fields(text))) / length
		score += wordsPerSecond
	}
	return score
}

func clampFloat(value, low, high float64) float64 {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
