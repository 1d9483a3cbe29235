package game

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mcdev12/casino/go/internal/models"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// AmountPayload is the body of every wager action.
type AmountPayload struct {
	Amount float64 `json:"amount" validate:"gt=0"`
}

// GameIDPayload addresses a coinflip instance.
type GameIDPayload struct {
	GameID string `json:"game_id" validate:"required,uuid4"`
}

// DecodePayload unmarshals and validates an action payload.
func DecodePayload(raw []byte, dst any) error {
	if len(raw) == 0 {
		raw = []byte("{}")
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return Invalid("malformed payload")
	}
	if err := validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, strings.ToLower(fe.Field())+" failed "+fe.Tag())
			}
			return Invalid("invalid payload: %s", strings.Join(fields, ", "))
		}
		return Invalid("invalid payload")
	}
	return nil
}

// DecodeWager decodes an amount payload and rounds it to cents.
func DecodeWager(raw []byte) (models.Amount, error) {
	var p AmountPayload
	if err := DecodePayload(raw, &p); err != nil {
		return 0, err
	}
	amount, err := models.AmountFromFloat(p.Amount)
	if err != nil {
		return 0, Invalid("%s", err.Error())
	}
	if amount <= 0 {
		return 0, Invalid("amount must be at least 0.01")
	}
	return amount, nil
}

// RequireParticipant rejects anonymous origins.
func RequireParticipant(origin Origin) error {
	if origin.Participant.Anonymous() {
		return ErrUnauthenticated
	}
	return nil
}
