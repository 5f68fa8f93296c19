package envvars

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const (
	BlizzardClientID     = "BLIZZARD_CLIENT_ID"
	BlizzardClientSecret = "BLIZZARD_CLIENT_SECRET"
	Environment          = "ENVIRONMENT"
	Region               = "REGION"
	Locale               = "LOCALE"
	GuildServer          = "GUILD_SERVER"
	GuildName            = "GUILD_NAME"
	HomeServer           = "HOME_SERVER"
	DirectoryFile        = "DIRECTORY_FILE"
	BackupBucket         = "BACKUP_BUCKET"
	AdminToken           = "ADMIN_TOKEN"
	Port                 = "PORT"
	LogLevel             = "LOG_LEVEL"
	ConfigFile           = "CONFIG_FILE"

	ProductionEnv = "production"
	DevEnv        = "dev"
)

type Env struct {
	ClientID      string
	ClientSecret  string
	Environment   string
	Region        string
	Locale        string
	GuildServer   string
	GuildName     string
	HomeServer    string
	DirectoryFile string
	BackupBucket  string
	AdminToken    string
	Port          string
	LogLevel      string
	ConfigFile    string
}

func GetEnv() Env {
	clientID, ok := os.LookupEnv(BlizzardClientID)
	if !ok {
		log.Fatal().Msgf("%s required", BlizzardClientID)
	}
	clientSecret, ok := os.LookupEnv(BlizzardClientSecret)
	if !ok {
		log.Fatal().Msgf("%s required", BlizzardClientSecret)
	}
	guildServer := os.Getenv(GuildServer)
	return Env{
		ClientID:      clientID,
		ClientSecret:  clientSecret,
		Environment:   lookup(Environment, DevEnv),
		Region:        lookup(Region, "us"),
		Locale:        lookup(Locale, "en_US"),
		GuildServer:   guildServer,
		GuildName:     os.Getenv(GuildName),
		HomeServer:    lookup(HomeServer, guildServer),
		DirectoryFile: lookup(DirectoryFile, "./directory.txt"),
		BackupBucket:  os.Getenv(BackupBucket),
		AdminToken:    os.Getenv(AdminToken),
		Port:          lookup(Port, "8080"),
		LogLevel:      lookup(LogLevel, "info"),
		ConfigFile:    os.Getenv(ConfigFile),
	}
}

func lookup(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && value != "" {
		return value
	}
	return fallback
}

func IsProd(env Env) bool {
	return env.Environment == ProductionEnv
}

func IsDev(env Env) bool {
	return env.Environment == DevEnv
}

// Timing holds the knobs that can be overridden from the YAML config file.
type Timing struct {
	Schedules struct {
		Servers time.Duration `yaml:"servers"`
		Roster  time.Duration `yaml:"roster"`
		Rebuild time.Duration `yaml:"rebuild"`
	} `yaml:"schedules"`
	Timeouts struct {
		Request time.Duration `yaml:"request"`
		Rebuild time.Duration `yaml:"rebuild"`
	} `yaml:"timeouts"`
	RankTTL            time.Duration `yaml:"rankTTL"`
	RebuildParallelism int           `yaml:"rebuildParallelism"`
}

func DefaultTiming() Timing {
	var t Timing
	t.Schedules.Servers = 7 * 24 * time.Hour
	t.Schedules.Roster = 45 * time.Minute
	t.Schedules.Rebuild = 90 * time.Minute
	t.Timeouts.Request = 15 * time.Second
	t.Timeouts.Rebuild = 10 * time.Minute
	t.RankTTL = 24 * time.Hour
	t.RebuildParallelism = 4
	return t
}

// LoadTiming reads overrides from path on top of DefaultTiming. An empty
// path yields the defaults.
func LoadTiming(path string) (Timing, error) {
	timing := DefaultTiming()
	if path == "" {
		return timing, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return timing, fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)
	if err := decoder.Decode(&timing); err != nil && !errors.Is(err, io.EOF) {
		return timing, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if timing.RebuildParallelism < 1 {
		return timing, fmt.Errorf("rebuildParallelism must be at least 1, got %d", timing.RebuildParallelism)
	}
	return timing, nil
}
