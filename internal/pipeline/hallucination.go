package pipeline

import (
	"strings"

	"golang.org/x/text/cases"
)

var foldCase = cases.Fold()

// hallucinations is the set of short filler phrases speech recognizers
// produce on silent or noisy input. Matched after normalization (lowercase,
// right-stripped punctuation).
var hallucinations = map[string]struct{}{
	"thank you": {}, "thank you for watching": {}, "thanks for watching": {},
	"thanks": {}, "bye": {}, "goodbye": {}, "all right": {}, "you": {},
	"the end": {}, "subscribe": {}, "like and subscribe": {}, "see you next time": {},
	"so": {}, "okay": {}, "yeah": {}, "yes": {}, "no": {}, "hmm": {}, "uh": {},
	"谢谢观看": {}, "感谢观看": {}, "请订阅": {}, "点赞": {}, "订阅": {},
	"谢谢大家": {}, "谢谢": {}, "再见": {}, "好的": {}, "嗯": {},
	"字幕": {}, "字幕由": {}, "字幕提供": {},
}

// hallucinationSubstrings are longer boilerplate phrases matched anywhere in
// the lowercased (unstripped) text.
var hallucinationSubstrings = []string{
	"点赞", "订阅", "转发", "打赏", "关注",
	"字幕由", "字幕提供", "subtitles by",
	"thank you for watching", "thanks for watching",
	"like and subscribe",
	"明镜", "栏目", "支持明镜",
	"请不吝", "视频来源",
}

// trailingPunctuation is stripped before the exact-match test.
const trailingPunctuation = ".!?,。！？，"

// FilterHallucination returns "" if text matches a known spurious-recognition
// pattern, otherwise returns text unchanged. Idempotent: FilterHallucination
// applied to its own output always returns that same output, since an empty
// string never matches either table and an unmatched string is untouched.
func FilterHallucination(text string) string {
	normalized := foldCase.String(strings.TrimRight(text, trailingPunctuation))
	if _, ok := hallucinations[normalized]; ok {
		return ""
	}

	lower := foldCase.String(text)
	for _, pattern := range hallucinationSubstrings {
		if strings.Contains(lower, pattern) {
			return ""
		}
	}

	return text
}
