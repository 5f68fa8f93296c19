package warcraft

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"
	"golang.org/x/oauth2/clientcredentials"
)

// AuthError is the token endpoint's answer when client credentials are refused.
type AuthError struct {
	ErrorType    string `json:"error"`
	ErrorMessage string `json:"error_description"`
}

func (a AuthError) Error() string {
	return fmt.Sprintf("%s: %s", a.ErrorType, a.ErrorMessage)
}

// BaseURL is the game API host for a region such as "us" or "eu".
func BaseURL(region string) string {
	return fmt.Sprintf("https://%s.api.blizzard.com", region)
}

// NewClient returns a resty client whose transport fetches and refreshes a
// client-credentials token on its own.
func NewClient(ctx context.Context, clientID, clientSecret, region string) *resty.Client {
	creds := clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     fmt.Sprintf("https://%s.battle.net/oauth/token", region),
	}
	c := resty.NewWithClient(creds.Client(ctx))
	c.SetBaseURL(BaseURL(region))
	c.SetHeader("Accept", "application/json")
	c.SetHeader("User-Agent", "crafterDirectory")
	return c
}
