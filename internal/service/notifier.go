package service

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/bazaarhq/storefront-api/internal/models"
)

// LogNotifier is a development-only CodeNotifier that writes the code to the
// application log instead of delivering it. Production deployments wire a
// real channel (mail, SMS) or provision codes externally.
type LogNotifier struct{}

// Deliver logs the code for the administrator.
func (LogNotifier) Deliver(_ context.Context, admin *models.Administrator, code string) error {
	log.Info().
		Str("email", admin.Email).
		Str("code", code).
		Msg("Second-factor code issued (log delivery)")
	return nil
}
