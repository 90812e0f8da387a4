package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"campusrun/internal/config"
	"campusrun/internal/domain"
	"campusrun/internal/events"
	"campusrun/internal/logging"
	"campusrun/internal/notify"
	"campusrun/internal/repository"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const notifierQueue = "campusrun.notifier"

func main() {
	if err := run(); err != nil {
		log.Fatalf("Fatal error: %v", err)
	}
}

func run() error {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	baseLogger, closer, err := logging.New(cfg.Logging, cfg.App)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger := *logging.Component(baseLogger, "notifier")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sender domain.TelegramSender
	if cfg.Telegram.BotToken != "" {
		bot, err := notify.NewTelegramSender(cfg.Telegram.BotToken, cfg.Telegram.Debug)
		if err != nil {
			return err
		}
		logger.Info().Str("bot", bot.Self.UserName).Msg("Telegram bot authorized")
		sender = bot
	} else {
		logger.Warn().Msg("telegram.bot_token is empty, notifications are logged only")
	}

	ttl, err := time.ParseDuration(cfg.Events.ViewTTL)
	if err != nil || ttl <= 0 {
		ttl = 30 * 24 * time.Hour
	}

	var views domain.StateRepository = repository.NewMemoryStateRepository(ttl)
	var redisClient *redis.Client
	if cfg.Redis.Address != "" {
		redisClient = repository.NewRedisClient(cfg.Redis)
		defer redisClient.Close()
		primary := repository.NewRedisStateRepository(redisClient, ttl)
		views = repository.NewFailoverStateRepository(primary, views, &logger)
	}

	notifier := notify.NewNotifier(views, sender, cfg.Telegram.Chats, &logger)
	handler := func(event *events.Event) error {
		return notifier.HandleContext(ctx, event)
	}

	if cfg.AMQP.URL != "" {
		consumer, err := events.NewAMQPConsumer(cfg.AMQP.URL, cfg.AMQP.Exchange, notifierQueue, &logger)
		if err != nil {
			return err
		}
		defer consumer.Close()

		logger.Info().Str("exchange", cfg.AMQP.Exchange).Str("queue", notifierQueue).Msg("Consuming mission events from AMQP")
		return consumer.Consume(ctx, handler)
	}

	if redisClient == nil {
		return errors.New("either amqp.url or redis.address must be configured")
	}

	logger.Info().Str("channel", cfg.Events.RedisChannel).Msg("Subscribing to mission events")
	return subscribeWithRetry(ctx, func(ctx context.Context) error {
		return events.SubscribeRedis(ctx, redisClient, cfg.Events.RedisChannel, handler, &logger)
	}, &logger)
}

// subscribeWithRetry reconnects after a dropped subscription until ctx is done.
func subscribeWithRetry(ctx context.Context, subscribe func(context.Context) error, logger *zerolog.Logger) error {
	delay := time.Second
	for {
		err := subscribe(ctx)
		if ctx.Err() != nil {
			return nil
		}
		if err != nil {
			logger.Error().Err(err).Dur("retry_in", delay).Msg("Subscription failed")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
		if delay < 30*time.Second {
			delay *= 2
		}
	}
}
