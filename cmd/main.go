package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Netflix/go-env"
	"github.com/blugelabs/bluge"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/mama165/sdk-go/logs"

	"campus-chat/backend"
	"campus-chat/broadcast"
	"campus-chat/domain"
	"campus-chat/moderation"
	"campus-chat/roster"
	"campus-chat/runtime/workers"
	"campus-chat/search"
	"campus-chat/services"
	"campus-chat/subscribe"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Fatal error: %v\n", err)
		os.Exit(1)
	}
}

// run initializes all components, walks through a short conversation
// between two seeded users against the local backend, and shuts down
// cleanly. It returns errors instead of exiting so that every defer
// (database close, subscription release) executes on all paths.
func run() error {
	// 1. Configuration & Logger
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	log := logs.GetLoggerFromString(config.LogLevel)

	// 2. Storage (BadgerDB + Bluge)
	db, err := badger.Open(badger.DefaultOptions(config.BadgerFilepath).
		WithLoggingLevel(badger.WARNING))
	if err != nil {
		return fmt.Errorf("database opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing BadgerDB...")
		_ = db.Close()
	}()

	blugeWriter, err := bluge.OpenWriter(bluge.DefaultConfig(config.BlugeFilepath))
	if err != nil {
		return fmt.Errorf("index opening failed: %w", err)
	}
	defer func() {
		log.Info("Closing index...")
		_ = blugeWriter.Close()
	}()

	// 3. Local backend & chat service
	local := backend.NewLocal(db, log, config.HistoryLimit)
	service := services.NewChatService(local, log).
		WithIndex(search.NewIndex(blugeWriter, log))
	defer service.Close()

	if len(config.CensoredWords) > 0 {
		replacement, err := characterRune(config.CensorCharacter)
		if err != nil {
			return err
		}
		censor, err := moderation.NewCensor(config.CensoredWords, replacement)
		if err != nil {
			return fmt.Errorf("building censor: %w", err)
		}
		service.WithCensor(censor)
	}

	// 4. Context & Signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// 5. Broadcast state (feature flags, announcements), kept live by a
	// supervised resubscriber on the control channel.
	state := broadcast.NewState()
	controlSubs := subscribe.NewManager(local, log)
	supervisor := workers.NewSupervisor(log)
	supervisor.Add(subscribe.NewResubscriber(controlSubs, domain.ControlRoom, state,
		config.RetryInitial, config.RetryMax, log))
	go supervisor.Run(ctx)
	defer supervisor.Stop()

	if err := local.SetFlag(ctx, "announcements", true); err != nil {
		return err
	}
	flags, err := local.Flags()
	if err != nil {
		return err
	}
	state.Seed(flags)

	// 6. Walk through a short conversation
	if err := seedProfiles(local); err != nil {
		return err
	}

	roomID, err := service.StartDirect(ctx, "alice", "bob")
	if err != nil {
		return err
	}
	log.Info("Direct room resolved", "room", roomID)

	if _, err := service.Send(ctx, domain.Draft{
		RoomID:     roomID,
		AuthorID:   "alice",
		AuthorName: "Alice",
		AuthorRole: domain.RoleStudent,
		Content:    "hello, anyone around?",
	}); err != nil {
		return err
	}

	for _, group := range service.Render("alice") {
		marker := "them"
		if group.Own {
			marker = "me"
		}
		log.Info("Timeline entry", "from", marker, "author", group.AuthorName,
			"badge", group.Badge, "content", group.Content, "pending", group.Pending)
	}

	summaries, err := roster.NewAggregator(local, log).List(ctx, "alice")
	if err != nil {
		return err
	}
	for _, summary := range summaries {
		log.Info("Conversation", "room", summary.RoomID, "type", summary.Type, "name", summary.Name)
	}

	log.Info("Demo finished, flags", "announcements", state.Flag("announcements"))
	return nil
}

func seedProfiles(local *backend.Local) error {
	profiles := []domain.Profile{
		{UserID: "alice", DisplayName: "Alice", Role: domain.RoleStudent},
		{UserID: "bob", DisplayName: "Bob", Role: domain.RoleSenior},
	}
	for _, profile := range profiles {
		if err := local.UpsertProfile(profile); err != nil {
			return err
		}
	}
	return nil
}
