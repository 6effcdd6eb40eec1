package backtest

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"time"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/internal/engine"
	"github.com/Alias1177/CardPredictor/internal/parser"
	"github.com/Alias1177/CardPredictor/models"
)

// Line is one exported channel message
type Line struct {
	Date time.Time `json:"date"`
	Text string    `json:"text"`
}

// Results summarise a replay
type Results struct {
	Lines    int                    `json:"lines"`
	Outcomes int                    `json:"outcomes"`
	Rejected map[string]int         `json:"rejected"`
	Restarts int                    `json:"restarts"` // game numbering restarts
	Signals  int                    `json:"signals"`
	Denied   int                    `json:"denied"`
	Stats    models.PredictionStats `json:"stats"`
	WinRate  float64                `json:"win_rate"`

	MaxConsecutive struct {
		Wins  int `json:"wins"`
		Loses int `json:"loses"`
	} `json:"max_consecutive"`

	Predictions []models.Prediction `json:"predictions"`
}

// Run replays lines through the parser, the sequencer and the per-channel
// state the bot runs, using the message dates as the clock.
func Run(ctx context.Context, lines []Line, s config.Settings) (*Results, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("invalid settings: %w", err)
	}

	const channel = 0
	var (
		p       = parser.New(s.ExclusionTokens)
		seq     = parser.NewSequencer()
		state   = engine.NewChannel(channel, s.HistoryWindowSize, len(lines)+1)
		results = &Results{Rejected: make(map[string]int)}
	)

	for i, line := range lines {
		if i%1000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		results.Lines++

		o, err := p.Parse(line.Text, channel, line.Date)
		if err != nil {
			results.Rejected[parser.Reason(err)]++
			continue
		}
		switch seq.Observe(channel, o.ID) {
		case parser.Duplicate:
			results.Rejected["duplicate"]++
			continue
		case parser.Restarted:
			results.Restarts++
		}
		results.Outcomes++

		st := state.Apply(o, s)
		if !st.Signal.Fire {
			continue
		}
		results.Signals++
		if st.Denied {
			results.Denied++
		}
	}

	tracker := state.Tracker()
	results.Predictions = tracker.Resolved()
	if open, ok := tracker.Open(); ok {
		results.Predictions = append(results.Predictions, open)
	}

	wins, loses := 0, 0
	for _, pr := range results.Predictions {
		results.Stats.Add(pr.Status)
		switch pr.Status {
		case models.StatusVerified0, models.StatusVerified1:
			wins++
			loses = 0
		case models.StatusFailed:
			loses++
			wins = 0
		}
		results.MaxConsecutive.Wins = max(results.MaxConsecutive.Wins, wins)
		results.MaxConsecutive.Loses = max(results.MaxConsecutive.Loses, loses)
	}
	results.WinRate = results.Stats.WinRate()

	return results, nil
}

// MonteCarloResults describe how long losing streaks get when the same
// resolved predictions arrive in random order
type MonteCarloResults struct {
	Simulations     int     `json:"simulations"`
	Median          int     `json:"median_max_loses"`
	P90             int     `json:"p90_max_loses"`
	Worst           int     `json:"worst_max_loses"`
	Observed        int     `json:"observed_max_loses"`
	AtLeastObserved float64 `json:"at_least_observed_pct"` // shuffles with a streak at least as long as observed
}

// MonteCarloSimulation shuffles the resolved predictions of results and
// measures the longest losing streak of each shuffle
func MonteCarloSimulation(results *Results, simulations int, seed int64) *MonteCarloResults {
	var outcomes []bool
	for _, p := range results.Predictions {
		if p.Status.Terminal() {
			outcomes = append(outcomes, p.Status != models.StatusFailed)
		}
	}
	if len(outcomes) < 10 || simulations < 1 {
		return nil
	}

	rng := rand.New(rand.NewSource(seed))
	streaks := make([]int, simulations)
	shuffled := make([]bool, len(outcomes))
	for sim := range streaks {
		copy(shuffled, outcomes)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		streaks[sim] = longestLosing(shuffled)
	}
	sort.Ints(streaks)

	observed := results.MaxConsecutive.Loses
	atLeast := 0
	for _, s := range streaks {
		if s >= observed {
			atLeast++
		}
	}

	return &MonteCarloResults{
		Simulations:     simulations,
		Median:          streaks[simulations/2],
		P90:             streaks[simulations*9/10],
		Worst:           streaks[simulations-1],
		Observed:        observed,
		AtLeastObserved: float64(atLeast) / float64(simulations) * 100,
	}
}

func longestLosing(outcomes []bool) int {
	longest, run := 0, 0
	for _, won := range outcomes {
		if won {
			run = 0
			continue
		}
		run++
		longest = max(longest, run)
	}
	return longest
}
