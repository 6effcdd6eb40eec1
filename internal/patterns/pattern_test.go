package patterns

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alias1177/CardPredictor/internal/config"
	"github.com/Alias1177/CardPredictor/models"
)

func outcome(id int, s models.Symbol) models.Outcome {
	return models.Outcome{ID: id, Symbol: s, Suits: []models.Symbol{s}}
}

func observeAll(d *Detector, s config.Settings, symbols ...models.Symbol) Signal {
	var sig Signal
	for i, sym := range symbols {
		sig = d.Observe(outcome(i+1, sym), s)
	}
	return sig
}

func TestDetector_MirrorRule(t *testing.T) {
	settings := config.DefaultSettings()

	tests := []struct {
		name      string
		symbols   []models.Symbol
		wantFire  bool
		wantMatch models.Symbol
	}{
		{name: "three identical", symbols: []models.Symbol{models.Heart, models.Heart, models.Heart}, wantFire: true, wantMatch: models.Heart},
		{name: "last differs", symbols: []models.Symbol{models.Heart, models.Heart, models.Spade}, wantFire: false, wantMatch: models.Spade},
		{name: "window shorter than threshold", symbols: []models.Symbol{models.Club, models.Club}, wantFire: false, wantMatch: models.Club},
		{name: "run broken in the middle", symbols: []models.Symbol{models.Club, models.Club, models.Diamond, models.Club, models.Club}, wantFire: false, wantMatch: models.Club},
		{name: "longer run still fires", symbols: []models.Symbol{models.Spade, models.Diamond, models.Diamond, models.Diamond, models.Diamond}, wantFire: true, wantMatch: models.Diamond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := observeAll(NewDetector(settings.HistoryWindowSize), settings, tt.symbols...)
			assert.Equal(t, tt.wantFire, sig.Fire)
			assert.Equal(t, tt.wantMatch, sig.Matched)
		})
	}
}

func TestDetector_PredictionModes(t *testing.T) {
	mirror := config.DefaultSettings()
	sig := observeAll(NewDetector(10), mirror, models.Heart, models.Heart, models.Heart)
	require.True(t, sig.Fire)
	assert.Equal(t, models.Club, sig.Predicted)

	repeat := config.DefaultSettings()
	repeat.PredictionMode = config.ModeRepeat
	sig = observeAll(NewDetector(10), repeat, models.Spade, models.Spade, models.Spade)
	require.True(t, sig.Fire)
	assert.Equal(t, models.Spade, sig.Predicted)
}

func TestDetector_MessageScope(t *testing.T) {
	s := config.DefaultSettings()
	s.MirrorScope = config.ScopeMessage
	d := NewDetector(10)

	o := outcome(1, models.Spade)
	o.Counts = map[models.Symbol]int{models.Spade: 3, models.Heart: 1}
	sig := d.Observe(o, s)
	require.True(t, sig.Fire)
	assert.Equal(t, models.Spade, sig.Matched)
	assert.Equal(t, models.Diamond, sig.Predicted)
	assert.Equal(t, 3, sig.Run)

	o2 := outcome(2, models.Spade)
	o2.Counts = map[models.Symbol]int{models.Spade: 2, models.Club: 2}
	assert.False(t, d.Observe(o2, s).Fire)
}

func TestDetector_Eviction(t *testing.T) {
	// A window of two can never hold three matching outcomes, whatever was seen before.
	s := config.DefaultSettings()
	s.HistoryWindowSize = 2
	d := NewDetector(2)

	sig := observeAll(d, s, models.Heart, models.Heart, models.Heart, models.Heart)
	assert.False(t, sig.Fire)
	assert.Equal(t, 2, d.Window().Len())

	ids := []int{}
	for _, o := range d.Window().Snapshot() {
		ids = append(ids, o.ID)
	}
	assert.Equal(t, []int{3, 4}, ids)
}

func TestDetector_ResizeKeepsNewest(t *testing.T) {
	s := config.DefaultSettings()
	s.HistoryWindowSize = 5
	d := NewDetector(5)
	observeAll(d, s, models.Heart, models.Heart, models.Spade, models.Spade, models.Spade)

	s.HistoryWindowSize = 3
	sig := d.Observe(outcome(6, models.Spade), s)
	assert.True(t, sig.Fire)
	assert.Equal(t, 3, d.Window().Len())
	newest, ok := d.Window().Newest(0)
	require.True(t, ok)
	assert.Equal(t, 6, newest.ID)
}

func TestHistoryWindow(t *testing.T) {
	w := NewHistoryWindow(3)
	for i := 1; i <= 5; i++ {
		w.Push(outcome(i, models.Club))
	}
	assert.Equal(t, 3, w.Len())
	oldest, ok := w.Newest(2)
	require.True(t, ok)
	assert.Equal(t, 3, oldest.ID)

	_, ok = w.Newest(3)
	assert.False(t, ok)

	w.Clear()
	assert.Equal(t, 0, w.Len())
	assert.Equal(t, 3, w.Capacity())
}

func TestMirrorTable(t *testing.T) {
	assert.Equal(t, models.Club, models.Heart.Mirror())
	assert.Equal(t, models.Diamond, models.Spade.Mirror())
	assert.Equal(t, models.Spade, models.Diamond.Mirror())
	assert.Equal(t, models.Heart, models.Club.Mirror())
	assert.Equal(t, models.Symbol("K"), models.Symbol("K").Mirror())
}
