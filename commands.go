package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"crafterDirectory/clients/gcp"
	"crafterDirectory/crafter"
	"crafterDirectory/envvars"
	"crafterDirectory/services/directory"
	"crafterDirectory/services/warcraft"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

// app holds everything a command needs to talk to the directory.
type app struct {
	env    envvars.Env
	store  *directory.Store
	backup *gcp.Backup
}

func newApp(ctx context.Context) (*app, error) {
	env := envvars.GetEnv()
	setupLogging(env)
	timing, err := envvars.LoadTiming(env.ConfigFile)
	if err != nil {
		return nil, err
	}

	client := warcraft.NewClient(ctx, env.ClientID, env.ClientSecret, env.Region)
	gateway := warcraft.NewService(client, warcraft.Config{
		Region:      env.Region,
		Locale:      env.Locale,
		GuildServer: env.GuildServer,
		GuildName:   env.GuildName,
		Timeout:     timing.Timeouts.Request,
	})

	opts := directory.Options{
		Path:               env.DirectoryFile,
		HomeServer:         env.HomeServer,
		RankTTL:            timing.RankTTL,
		RebuildTimeout:     timing.Timeouts.Rebuild,
		RebuildParallelism: timing.RebuildParallelism,
		Schedules: directory.Schedules{
			Servers: timing.Schedules.Servers,
			Roster:  timing.Schedules.Roster,
			Rebuild: timing.Schedules.Rebuild,
		},
	}
	a := &app{env: env}
	if env.BackupBucket != "" {
		a.backup, err = gcp.NewBackup(ctx, env.BackupBucket)
		if err != nil {
			return nil, err
		}
		opts.Backup = a.backup
	}
	a.store, err = directory.New(gateway, opts)
	if err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func (a *app) close() {
	if a.store != nil {
		a.store.Close()
	}
	if a.backup != nil {
		if err := a.backup.Close(); err != nil {
			log.Warn().Err(err).Msg("failed to close backup client")
		}
	}
}

// boot loads the directory file and fills it from the game API. Only a
// broken file or an unreachable server list stop the boot.
func (a *app) boot(ctx context.Context) error {
	if err := a.store.Load(ctx); err != nil {
		return fmt.Errorf("failed to load directory: %w", err)
	}
	if err := a.store.RefreshServers(ctx); err != nil {
		return fmt.Errorf("failed to fetch server list: %w", err)
	}
	if err := a.store.RefreshRoster(ctx); err != nil {
		log.Warn().Err(err).Msg("guild roster unavailable")
	}
	if err := a.store.RebuildAll(ctx); err != nil {
		log.Warn().Err(err).Msg("initial rebuild failed, serving file data until the next scheduled rebuild")
	}
	return nil
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the directory over HTTP and keep it refreshed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.boot(ctx); err != nil {
				return err
			}
			a.store.StartSchedules(ctx)

			if envvars.IsProd(a.env) {
				gin.SetMode(gin.ReleaseMode)
			}
			r := gin.Default()
			r.Use(cors.Default())
			NewServer(a.store).Register(r, a.env.AdminToken)

			s := &http.Server{
				Handler: r,
				Addr:    "0.0.0.0:" + a.env.Port,
			}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
				defer cancel()
				if err := s.Shutdown(shutdownCtx); err != nil {
					log.Warn().Err(err).Msg("HTTP server shutdown")
				}
			}()

			log.Info().Msgf("Starting HTTP server on port %s", a.env.Port)
			if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}

			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return a.store.Flush(flushCtx)
		},
	}
}

func newRebuildCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rebuild",
		Short: "Refresh every character once and write the directory file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := a.store.Load(ctx); err != nil {
				return err
			}
			if err := a.store.RefreshServers(ctx); err != nil {
				return err
			}
			if err := a.store.RebuildAll(ctx); err != nil {
				return err
			}
			if err := a.store.Flush(ctx); err != nil {
				return err
			}
			status := a.store.Status()
			fmt.Fprintf(cmd.OutOrStdout(), "rebuilt %d characters of %d owners, %d items\n",
				status.Characters, status.Owners, status.Items)
			return nil
		},
	}
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <file>",
		Short: "Validate a directory file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()

			owners, err := crafter.ReadDirectoryFile(f)
			if err != nil {
				return err
			}
			characters, professions := 0, 0
			for _, owner := range owners {
				characters += len(owner.Characters)
				for _, c := range owner.Characters {
					professions += len(c.Professions)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d owners, %d characters, %d professions\n",
				args[0], len(owners), characters, professions)
			return nil
		},
	}
}
