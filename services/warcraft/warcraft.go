package warcraft

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crafterDirectory/crafter"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

// Service issues read requests against the game API. Fetch calls are plain
// I/O without caching and return the raw JSON payload; the Parse functions
// in this package turn payloads into crafter types.
type Service interface {
	FetchServerListJSON(ctx context.Context) (string, error)
	FetchRosterJSON(ctx context.Context) (string, error)
	// CheckCharacterExists maps a 404 from the profile endpoint to false.
	CheckCharacterExists(ctx context.Context, c crafter.Character) (bool, error)
	FetchCharacterClass(ctx context.Context, c crafter.Character) (string, error)
	FetchProfessions(ctx context.Context, c crafter.Character) (string, error)
	FetchRecipeRank(ctx context.Context, recipeID int) (string, error)
}

type Config struct {
	Region      string
	Locale      string
	GuildServer string
	GuildName   string
	// Timeout bounds every single request.
	Timeout time.Duration
}

type service struct {
	http   *resty.Client
	config Config
}

var _ Service = (*service)(nil)

const (
	realmIndexPath  = "/data/wow/realm/index"
	rosterPath      = "/data/wow/guild/{realm}/{guild}/roster"
	profilePath     = "/profile/wow/character/{realm}/{name}"
	professionsPath = "/profile/wow/character/{realm}/{name}/professions"
	recipePath      = "/data/wow/recipe/{id}"

	dynamicNamespace = "dynamic"
	profileNamespace = "profile"
	staticNamespace  = "static"

	defaultTimeout = 15 * time.Second
)

var errNotFound = errors.New("not found")

func NewService(client *resty.Client, config Config) Service {
	if config.Timeout <= 0 {
		config.Timeout = defaultTimeout
	}
	if config.Region == "" {
		config.Region = "us"
	}
	if config.Locale == "" {
		config.Locale = "en_US"
	}
	return &service{
		http:   client,
		config: config,
	}
}

func (s *service) FetchServerListJSON(ctx context.Context) (string, error) {
	resp, err := s.get(ctx, realmIndexPath, dynamicNamespace, nil)
	if err != nil {
		return "", fmt.Errorf("failed to fetch server list: %w", err)
	}
	return resp.String(), nil
}

func (s *service) FetchRosterJSON(ctx context.Context) (string, error) {
	if s.config.GuildServer == "" || s.config.GuildName == "" {
		return "", fmt.Errorf("guild server and name are not configured")
	}
	resp, err := s.get(ctx, rosterPath, profileNamespace, map[string]string{
		"realm": Slug(s.config.GuildServer),
		"guild": Slug(s.config.GuildName),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch guild roster: %w", err)
	}
	return resp.String(), nil
}

func (s *service) CheckCharacterExists(ctx context.Context, c crafter.Character) (bool, error) {
	_, err := s.get(ctx, profilePath, profileNamespace, characterParams(c))
	if errors.Is(err, errNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", c, err)
	}
	return true, nil
}

func (s *service) FetchCharacterClass(ctx context.Context, c crafter.Character) (string, error) {
	resp, err := s.get(ctx, profilePath, profileNamespace, characterParams(c))
	if errors.Is(err, errNotFound) {
		return "", fmt.Errorf("%w: %s", crafter.ErrCharacterNotFound, c)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch profile of %s: %w", c, err)
	}
	return ParseCharacterClass(resp.String())
}

func (s *service) FetchProfessions(ctx context.Context, c crafter.Character) (string, error) {
	resp, err := s.get(ctx, professionsPath, profileNamespace, characterParams(c))
	if errors.Is(err, errNotFound) {
		return "", fmt.Errorf("%w: %s", crafter.ErrCharacterNotFound, c)
	}
	if err != nil {
		return "", fmt.Errorf("failed to fetch professions of %s: %w", c, err)
	}
	return resp.String(), nil
}

func (s *service) FetchRecipeRank(ctx context.Context, recipeID int) (string, error) {
	resp, err := s.get(ctx, recipePath, staticNamespace, map[string]string{
		"id": strconv.Itoa(recipeID),
	})
	if err != nil {
		return "", fmt.Errorf("failed to fetch recipe %d: %w", recipeID, err)
	}
	return resp.String(), nil
}

func (s *service) get(ctx context.Context, path, namespace string, params map[string]string) (*resty.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, s.config.Timeout)
	defer cancel()

	resp, err := s.http.R().
		SetContext(ctx).
		SetPathParams(params).
		SetQueryParams(map[string]string{
			"namespace": namespace + "-" + s.config.Region,
			"locale":    s.config.Locale,
		}).
		Get(path)
	if err != nil {
		var retrieveErr *oauth2.RetrieveError
		if errors.As(err, &retrieveErr) {
			return nil, AuthError{ErrorType: retrieveErr.ErrorCode, ErrorMessage: retrieveErr.ErrorDescription}
		}
		return nil, err
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, errNotFound
	case resp.StatusCode() == http.StatusServiceUnavailable:
		return nil, ErrServiceDown
	case resp.IsError():
		log.Error().
			Str("path", path).
			Int("status", resp.StatusCode()).
			Msg("unexpected response from warcraft api")
		return nil, fmt.Errorf("unexpected status %s", resp.Status())
	}
	return resp, nil
}

func characterParams(c crafter.Character) map[string]string {
	return map[string]string{
		"realm": Slug(c.Server),
		"name":  strings.ToLower(c.Name),
	}
}

// Slug turns a display name into its URL form: "Kel'Thuzad" becomes
// "kelthuzad" and "Moon Guard" becomes "moon-guard".
func Slug(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = strings.ReplaceAll(s, "'", "")
	return strings.Join(strings.Fields(s), "-")
}
