package parser

import (
	"errors"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/Alias1177/CardPredictor/models"
)

// Rejection reasons. Rejected messages never reach the detector or the tracker.
var (
	ErrExcluded   = errors.New("message carries an exclusion marker")
	ErrInProgress = errors.New("game still in progress")
	ErrMalformed  = errors.New("message does not match the result grammar")
)

var (
	gameNumberRe = regexp.MustCompile(`#[nN](\d+)`)
	handRe       = regexp.MustCompile(`\(([^)]*)\)`)
	cardValueRe  = regexp.MustCompile(`(10|[2-9AKQJ])`)
)

// Messages still being played carry one of these and get edited once finished
var pendingMarkers = []string{"⏰", "▶", "🕐", "➡️"}

// A finished message carries this marker
const completionMarker = "✅"

// Parser turns raw channel text into Outcomes
type Parser struct {
	exclusions []string
}

// New creates a parser rejecting messages that contain any of the exclusion tokens
func New(exclusions []string) *Parser {
	return &Parser{exclusions: append([]string(nil), exclusions...)}
}

// Parse extracts an Outcome from a result message posted in channel
func (p *Parser) Parse(text string, channel int64, now time.Time) (models.Outcome, error) {
	for _, tok := range p.exclusions {
		if tok != "" && strings.Contains(text, tok) {
			return models.Outcome{}, ErrExcluded
		}
	}
	if hasAny(text, pendingMarkers) && !strings.Contains(text, completionMarker) {
		return models.Outcome{}, ErrInProgress
	}

	m := gameNumberRe.FindStringSubmatch(text)
	if m == nil {
		return models.Outcome{}, ErrMalformed
	}
	id, err := strconv.Atoi(m[1])
	if err != nil || id <= 0 {
		return models.Outcome{}, ErrMalformed
	}

	hands := handRe.FindAllStringSubmatch(text, -1)
	if len(hands) == 0 {
		return models.Outcome{}, ErrMalformed
	}
	first := hands[0][1]
	symbol, suits := classifyHand(first)
	if symbol == "" {
		return models.Outcome{}, ErrMalformed
	}

	return models.Outcome{
		ID:        id,
		Symbol:    symbol,
		Suits:     suits,
		Counts:    CountSuits(text),
		Channel:   channel,
		Timestamp: now,
	}, nil
}

// classifyHand returns the dominant symbol of a hand and its distinct suits.
// Suits win over card values, card values over special cards.
func classifyHand(hand string) (models.Symbol, []models.Symbol) {
	found := scanSuits(hand)
	if len(found) > 0 {
		counts := make(map[models.Symbol]int, 4)
		var distinct []models.Symbol
		for _, s := range found {
			if counts[s] == 0 {
				distinct = append(distinct, s)
			}
			counts[s]++
		}
		best := distinct[0]
		for _, s := range distinct[1:] {
			if counts[s] > counts[best] {
				best = s
			}
		}
		return best, distinct
	}
	if v := cardValueRe.FindString(hand); v != "" {
		return models.Symbol(v), nil
	}
	if strings.Contains(hand, string(models.Joker)) {
		return models.Joker, nil
	}
	return "", nil
}

// CountSuits counts every suit occurrence in text
func CountSuits(text string) map[models.Symbol]int {
	counts := make(map[models.Symbol]int, 4)
	for _, s := range scanSuits(text) {
		counts[s]++
	}
	return counts
}

// scanSuits returns the suits of text in order, normalising emoji variants
func scanSuits(text string) []models.Symbol {
	var out []models.Symbol
	for _, r := range text {
		switch r {
		case '♠', '♤':
			out = append(out, models.Spade)
		case '♥', '❤', '♡':
			out = append(out, models.Heart)
		case '♦', '♢':
			out = append(out, models.Diamond)
		case '♣', '♧':
			out = append(out, models.Club)
		}
	}
	return out
}

func hasAny(text string, markers []string) bool {
	for _, m := range markers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

// Reason returns a short label for a parse rejection, used in logs and metrics
func Reason(err error) string {
	switch {
	case errors.Is(err, ErrExcluded):
		return "excluded"
	case errors.Is(err, ErrInProgress):
		return "in_progress"
	default:
		return "malformed"
	}
}
