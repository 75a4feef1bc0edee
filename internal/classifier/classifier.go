package classifier

import (
	"strings"

	"github.com/xaenox/reality-filter-bot/internal/models"
)

const (
	baseScore = 5
	minScore  = 0
	maxScore  = 20
)

// Advice is the recommendation attached to a classified message.
type Advice string

const (
	AdviceIgnore    Advice = "spam/low-value, safe to ignore."
	AdviceCritical  Advice = "critical, respond immediately."
	AdviceImportant Advice = "important, respond within the hour."
	AdviceFamily    Advice = "family, don't ignore but no rush."
	AdviceOrdinary  Advice = "ordinary, can wait."
)

// Result is the outcome of classifying one message.
type Result struct {
	Category models.Category
	Score    int
	Advice   Advice
}

// Rule adds Delta to the score when any of Words occurs in the lowercased
// text. An Override rule always sets Category; otherwise Category is only
// assigned while the message is still CategoryOther.
type Rule struct {
	Category models.Category
	Words    []string
	Delta    int
	Override bool
}

// Rules returns the built-in rules in evaluation order. Spam comes last
// and wins over everything before it.
func Rules() []Rule {
	return []Rule{
		{
			Category: models.CategoryUrgent,
			Words:    []string{"срочно", "пожар", "авария", "код красный", "быстро", "problem", "urgent", "help", "помоги"},
			Delta:    10,
			Override: true,
		},
		{
			Category: models.CategoryWork,
			Words:    []string{"отчет", "начальник", "deadline", "работа", "зарплата", "клиент", "проект", "босс", "work"},
			Delta:    5,
		},
		{
			Category: models.CategoryFamily,
			Words:    []string{"мама", "папа", "сын", "дочь", "жена", "муж", "родной", "бабушка", "дедушка", "брат", "сестра"},
			Delta:    7,
		},
		{
			Category: models.CategorySpam,
			Words:    []string{"купи", "скидка", "казино", "выигрыш", "инвестиции", "сайт", "заработок", "бесплатно", "оффер"},
			Delta:    -10,
			Override: true,
		},
	}
}

// Classifier scores message text with keyword rules. It holds no mutable
// state and is safe for concurrent use.
type Classifier struct {
	rules []Rule
}

// New returns a Classifier using the built-in rules.
func New() *Classifier {
	return NewWithRules(Rules())
}

// NewWithRules returns a Classifier evaluating rules in the given order.
func NewWithRules(rules []Rule) *Classifier {
	cp := make([]Rule, len(rules))
	for i, r := range rules {
		cp[i] = r
		cp[i].Words = lowerAll(r.Words)
	}
	return &Classifier{rules: cp}
}

// Classify returns the category, clamped score and advice for text.
func (c *Classifier) Classify(text string) Result {
	lower := strings.ToLower(text)

	score := baseScore
	category := models.CategoryOther
	for _, r := range c.rules {
		if !containsAny(lower, r.Words) {
			continue
		}
		score += r.Delta
		if r.Override || category == models.CategoryOther {
			category = r.Category
		}
	}
	score = max(minScore, min(maxScore, score))

	return Result{
		Category: category,
		Score:    score,
		Advice:   adviceFor(category, score),
	}
}

// adviceFor applies the advice thresholds; the first match wins.
func adviceFor(category models.Category, score int) Advice {
	switch {
	case category == models.CategorySpam || score < 3:
		return AdviceIgnore
	case score > 15:
		return AdviceCritical
	case score > 10:
		return AdviceImportant
	case category == models.CategoryFamily:
		return AdviceFamily
	default:
		return AdviceOrdinary
	}
}

func containsAny(text string, words []string) bool {
	for _, w := range words {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

func lowerAll(words []string) []string {
	out := make([]string, len(words))
	for i, w := range words {
		out[i] = strings.ToLower(w)
	}
	return out
}
