package editor

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/Alias1177/CardPredictor/internal/prediction"
	"github.com/Alias1177/CardPredictor/models"
)

// namespace scopes the edit keys of this bot
var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("cardpredictor/edit-intent"))

// Adapter turns tracker transitions into edit intents for the messenger.
// It holds no state: applying the same transition twice yields identical intents.
type Adapter struct{}

// New creates an Adapter
func New() *Adapter { return &Adapter{} }

// Apply builds the edit of the prediction message for tr
func (a *Adapter) Apply(tr prediction.Transition) models.EditIntent {
	p := tr.Prediction
	return models.EditIntent{
		Key:          Key(p.MessageRef, p.ID, p.Status),
		MessageRef:   p.MessageRef,
		Source:       p.Channel,
		PredictionID: p.ID,
		Status:       p.Status,
		Glyph:        p.Status.Glyph(),
		Text:         prediction.Text(p),
	}
}

// Key is the idempotency key of one edit
func Key(ref models.MessageRef, predictionID int, status models.Status) string {
	name := fmt.Sprintf("%d:%d:%d:%s", ref.ChatID, ref.MessageID, predictionID, status)
	return uuid.NewSHA1(namespace, []byte(name)).String()
}
