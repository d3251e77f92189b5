package server

import (
	"github.com/jrsteele09/go-oauth-provider/clients"
	"github.com/jrsteele09/go-oauth-provider/clients/fakerepo"
	"github.com/jrsteele09/go-oauth-provider/internal/config"
	"github.com/jrsteele09/go-oauth-provider/oauth2"
	"github.com/jrsteele09/go-oauth-provider/users"
	"github.com/jrsteele09/go-oauth-provider/users/repofake"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// SeedDevData registers a demo client and resource owner so the interactive
// flows work out of the box in development. Overridable through the
// SEED_* environment variables.
func SeedDevData(clientRepo *fakerepo.FakeClientRepo, userRepo *repofake.FakeUserRepo) error {
	clientID := config.GetEnv("SEED_CLIENT_ID", "demo-app")
	clientSecret := config.GetEnv("SEED_CLIENT_SECRET", "demo-secret")
	redirectURI := config.GetEnv("SEED_REDIRECT_URI", "http://localhost:3000/callback")
	username := config.GetEnv("SEED_USERNAME", "demo")
	password := config.GetEnv("SEED_PASSWORD", "password")

	clientRepo.Add(&clients.Client{
		ID:              clientID,
		Secret:          clientSecret,
		RedirectURI:     redirectURI,
		ApplicationName: "Demo Application",
		Type:            clients.ClientTypeConfidential,
		GrantTypes: []oauth2.GrantType{
			oauth2.AuthorizationCodeGrant,
			oauth2.PasswordGrant,
			oauth2.ClientCredentialsGrant,
			oauth2.RefreshTokenGrant,
		},
	})

	hash, err := users.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "[SeedDevData] HashPassword")
	}
	userRepo.Upsert(&users.AuthenticatedUser{
		ID:           username,
		PasswordHash: hash,
	})

	log.Info().
		Str("client_id", clientID).
		Str("username", username).
		Msg("seeded development client and resource owner")
	return nil
}
