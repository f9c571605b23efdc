package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"contactbook/internal/cache"
	"contactbook/internal/config"
	"contactbook/internal/database"
	"contactbook/internal/log"
	"contactbook/internal/repository"
	"contactbook/internal/service"
)

// admin creates an admin account, or promotes an existing user to admin.
func main() {
	username := flag.String("username", "", "admin username")
	email := flag.String("email", "", "admin email, used when the account is created")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment, cfg.Logging.Level)
	ctx := context.Background()

	if strings.TrimSpace(*username) == "" {
		fmt.Fprintln(os.Stderr, "usage: admin -username NAME [-email EMAIL]")
		os.Exit(2)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}
	defer pool.Close()

	if cfg.Postgres.AutoMigrate {
		if err := database.Migrate(ctx, cfg.Postgres.DSN); err != nil {
			logger.Fatal().Err(err).Msg("migrations failed")
		}
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}
	defer redisClient.Close()

	users := service.NewPostgresUsers(repository.NewUserRepository(pool, cfg.Postgres.OpTimeout))
	sessions := cache.NewSessionCache(redisClient, cfg.Redis.OpTimeout)
	svc := service.NewUserService(users, sessions, nil, cfg.Storage.MaxAvatarSize, logger)

	input := service.AdminInput{Username: *username, Email: *email}
	if _, err := users.FindByUsername(ctx, strings.TrimSpace(*username)); err != nil {
		password, err := readPassword()
		if err != nil {
			logger.Fatal().Err(err).Msg("read password")
		}
		input.Password = password
	}

	user, created, err := svc.EnsureAdmin(ctx, input)
	if err != nil {
		logger.Fatal().Err(err).Msg("ensure admin failed")
	}

	if created {
		logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("admin created")
		return
	}
	logger.Info().Str("user_id", user.ID).Str("username", user.Username).Msg("user promoted to admin")
}

func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "Password: ")
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", err
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
