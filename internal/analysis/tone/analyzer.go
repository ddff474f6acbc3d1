// Package tone tags debate turns with the register they were delivered in.
package tone

import "strings"

// Label 表示一轮发言的语气。
type Label string

const (
	Neutral      Label = "neutral"
	Heated       Label = "heated"
	Enthusiastic Label = "enthusiastic"
	Conciliatory Label = "conciliatory"
	Skeptical    Label = "skeptical"
	Grave        Label = "grave"
)

// Reading 是一次语气判断，Intensity 在 [0, 5] 之间。
type Reading struct {
	Label     Label
	Score     int
	Intensity float32
}

type bucket struct {
	label    Label
	keywords []string
}

// 顺序即平分时的优先级。
var buckets = []bucket{
	{Heated, []string{
		"nonsense", "absurd", "ridiculous", "outrageous", "wrong", "never", "how dare",
		"utterly", "disgrace", "fool", "lies", "荒谬", "胡说", "愤怒",
	}},
	{Skeptical, []string{
		"really?", "doubt", "hardly", "prove", "evidence", "unconvinced", "so you say",
		"i question", "dubious", "naive", "怀疑", "证据",
	}},
	{Conciliatory, []string{
		"agree", "fair point", "you're right", "common ground", "granted", "i concede",
		"perhaps we both", "respect", "understand", "together", "同意", "理解",
	}},
	{Enthusiastic, []string{
		"wonderful", "marvelous", "brilliant", "delight", "splendid", "exciting",
		"magnificent", "imagine", "love", "精彩", "太棒了",
	}},
	{Grave, []string{
		"must", "duty", "responsibility", "consequence", "danger", "grave", "solemn",
		"history will", "warn", "peril", "责任", "必须",
	}},
}

// Analyze 根据一轮发言的文本判断语气。
func Analyze(utterance string) Reading {
	normalized := strings.ToLower(strings.TrimSpace(utterance))
	if normalized == "" {
		return Reading{Label: Neutral}
	}

	scores := make(map[Label]int, len(buckets))
	for _, b := range buckets {
		for _, word := range b.keywords {
			if strings.Contains(normalized, word) {
				scores[b.label] += 3
			}
		}
	}

	// 感叹号加重激烈或热情，问号加重质疑。
	if n := strings.Count(utterance, "!"); n > 0 {
		if scores[Heated] > 0 {
			scores[Heated] += 2 * n
		} else {
			scores[Enthusiastic] += 2 * n
		}
	}
	if n := strings.Count(utterance, "?"); n > 1 {
		scores[Skeptical] += n
	}

	best := Reading{Label: Neutral}
	for _, b := range buckets {
		if s := scores[b.label]; s > best.Score {
			best = Reading{Label: b.label, Score: s}
		}
	}
	if best.Score == 0 {
		return best
	}

	intensity := 1 + float32(best.Score)/4
	if best.Label == Conciliatory && intensity > 3 {
		intensity = 3
	}
	if intensity > 5 {
		intensity = 5
	}
	best.Intensity = intensity
	return best
}
