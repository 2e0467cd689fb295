package services

import (
	"strings"

	"github.com/closedroom/portal/internal/models"
)

// InstrumentCode tags a survey with its scoring rule set. Option→point
// tables are never shared between instruments, even when option text
// overlaps.
type InstrumentCode string

const (
	InstrumentMBSSS   InstrumentCode = "MBSSS"
	InstrumentSSSS    InstrumentCode = "SSSS"
	InstrumentIIEF    InstrumentCode = "IIEF"
	InstrumentFSFI    InstrumentCode = "FSFI"
	InstrumentSASI    InstrumentCode = "SASI"
	InstrumentSAST    InstrumentCode = "SAST"
	InstrumentUnknown InstrumentCode = ""
)

// resolveOrder is significant: "SSSS" is a substring of "MBSSS", so MBSSS
// must be probed first.
var resolveOrder = []InstrumentCode{
	InstrumentMBSSS,
	InstrumentSSSS,
	InstrumentIIEF,
	InstrumentFSFI,
	InstrumentSASI,
	InstrumentSAST,
}

// ResolveInstrument maps a survey's display title to its scoring rule set
// by substring match. Resolution happens once, when an attempt is created,
// not at every scoring call. Titles matching no known code resolve to
// InstrumentUnknown, which scores every answer as 0.
func ResolveInstrument(title string) InstrumentCode {
	for _, code := range resolveOrder {
		if strings.Contains(title, string(code)) {
			return code
		}
	}
	return InstrumentUnknown
}

var mbsssScores = map[string]int{
	"① Огт тохирохгүй": 1,
	"② Бага зэрэг":     2,
	"③ Дунд зэрэг":     3,
	"④ Ихэвчлэн үнэн":  4,
	"⑤ Бараг үнэн":     5,
	"⑥ Бүрэн үнэн":     6,
}

var ssssScores = map[string]int{
	"😐 Огт биш":     1,
	"🙂 Бага зэрэг":  2,
	"😏 Ихэвчлэн":    3,
	"🔥 Маш их":      4,
}

var iiefScores = map[string]int{
	"😞 Огт биш":            0,
	"😕 Бараг хэзээ ч үгүй": 1,
	"🧐 Ховор":              2,
	"🙂 Заримдаа":           3,
	"❤️‍🔥 Ихэнхдээ":          4,
	"💯 Байнга / үргэлж":    5,
}

// FSFI scores by question index then option letter. The first two
// questions use a 1-based table; the rest start at 0.
var (
	fsfiDesireRow = map[string]int{"A": 1, "B": 2, "C": 3, "D": 4, "E": 5, "F": 5}
	fsfiCommonRow = map[string]int{"A": 0, "B": 1, "C": 2, "D": 3, "E": 4, "F": 5}
)

const fsfiQuestionCount = 19

func fsfiRow(questionIndex int) map[string]int {
	if questionIndex < 0 || questionIndex >= fsfiQuestionCount {
		return nil
	}
	if questionIndex < 2 {
		return fsfiDesireRow
	}
	return fsfiCommonRow
}

var sasiScores = map[string]int{
	"A. Бүрэн үнэн":      5,
	"B. Хэсэгчлэн үнэн":  4,
	"C. Дунд зэрэг":      3,
	"D. Хэсэгчлэн буруу": 2,
	"E. Бүрэн буруу":     1,
}

var sasiReverseScores = map[string]int{
	"A. Бүрэн үнэн":      1,
	"B. Хэсэгчлэн үнэн":  2,
	"C. Дунд зэрэг":      3,
	"D. Хэсэгчлэн буруу": 4,
	"E. Бүрэн буруу":     5,
}

// sasiReverseQuestions are the 0-based indices whose letter→point table is
// inverted.
var sasiReverseQuestions = map[int]bool{1: true, 3: true, 5: true, 7: true, 9: true}

const sastAffirmative = "✅ Тийм"

// OptionScore returns the point value of choosing option for the question
// at questionIndex under the given instrument's rule set. Unmapped options
// and unknown instruments score 0; scoring never fails.
func OptionScore(code InstrumentCode, questionIndex int, option string) int {
	switch code {
	case InstrumentMBSSS:
		return mbsssScores[option]
	case InstrumentSSSS:
		return ssssScores[option]
	case InstrumentIIEF:
		return iiefScores[option]
	case InstrumentFSFI:
		row := fsfiRow(questionIndex)
		if row == nil {
			return 0
		}
		// The option letter is the text after ". ".
		parts := strings.SplitN(option, ". ", 2)
		if len(parts) != 2 {
			return 0
		}
		return row[parts[1]]
	case InstrumentSASI:
		if sasiReverseQuestions[questionIndex] {
			return sasiReverseScores[option]
		}
		return sasiScores[option]
	case InstrumentSAST:
		if strings.Contains(option, sastAffirmative) {
			return 1
		}
		return 0
	default:
		return 0
	}
}

// MaxScore is the instrument's score ceiling. FSFI is fixed at 36
// regardless of question count; the others scale with it.
func MaxScore(code InstrumentCode, questionCount int) float64 {
	switch code {
	case InstrumentMBSSS:
		return float64(questionCount * 6)
	case InstrumentSSSS:
		return float64(questionCount * 4)
	case InstrumentIIEF:
		return float64(questionCount * 5)
	case InstrumentFSFI:
		return 36
	case InstrumentSASI:
		return float64(questionCount * 5)
	case InstrumentSAST:
		return float64(questionCount)
	default:
		return float64(questionCount * 4)
	}
}

// DomainScore is one FSFI sub-scale's weighted sum.
type DomainScore struct {
	Name  string
	Score float64
}

type fsfiDomain struct {
	name     string
	from, to int // inclusive question index range
	weight   float64
}

var fsfiDomains = []fsfiDomain{
	{"Desire", 0, 1, 0.6},
	{"Arousal", 2, 5, 0.3},
	{"Lubrication", 6, 9, 0.3},
	{"Orgasm", 10, 12, 0.4},
	{"Satisfaction", 13, 15, 0.4},
	{"Pain", 16, 18, 0.4},
}

// FSFIDomainScores aggregates per-question points into the six named FSFI
// domains. Indices past the end of scores contribute 0.
func FSFIDomainScores(scores []int) []DomainScore {
	out := make([]DomainScore, 0, len(fsfiDomains))
	for _, d := range fsfiDomains {
		sum := 0
		for i := d.from; i <= d.to; i++ {
			if i < len(scores) {
				sum += scores[i]
			}
		}
		out = append(out, DomainScore{Name: d.name, Score: float64(sum) * d.weight})
	}
	return out
}

// CumulativeScore folds per-question points into the attempt total. Every
// instrument except FSFI is a plain sum; FSFI sums its weighted domains.
func CumulativeScore(code InstrumentCode, scores []int) float64 {
	if code == InstrumentFSFI {
		var total float64
		for _, d := range FSFIDomainScores(scores) {
			total += d.Score
		}
		return total
	}
	var total int
	for _, v := range scores {
		total += v
	}
	return float64(total)
}

// UndeterminedResult is rendered when no result bucket contains the score.
const UndeterminedResult = "Үр дүн тодорхойлогдоогүй байна."

// ResolveResult picks the first declared bucket whose [MinScore, MaxScore]
// range (inclusive both ends) contains score. The boolean is false when no
// bucket matches.
func ResolveResult(results []models.SurveyResult, score float64) (models.SurveyResult, bool) {
	for _, r := range results {
		if score >= r.MinScore && score <= r.MaxScore {
			return r, true
		}
	}
	return models.SurveyResult{}, false
}
