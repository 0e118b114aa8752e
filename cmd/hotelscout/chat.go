package main

import (
	"os"
	"os/user"

	"github.com/Veraticus/hotel-scout/internal/bot"
	"github.com/Veraticus/hotel-scout/internal/cache"
	"github.com/Veraticus/hotel-scout/internal/cli"
	"github.com/Veraticus/hotel-scout/internal/photos"
	"github.com/Veraticus/hotel-scout/internal/service"
	"github.com/spf13/cobra"
)

func chatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the assistant in the terminal",
		Long: `Run the conversation in the terminal instead of Telegram.

Buttons are numbered: type #N to press one, !N to pick a control under the
results, and /quit to leave. Only Amadeus credentials are required.`,
		RunE: runChat,
	}

	cmd.Flags().Int64("user-id", 1, "user id recorded with searches")
	cmd.Flags().String("name", "", "name used in greetings (default: your login name)")
	cmd.Flags().Bool("memory", false, "keep the response cache in memory and do not record history")
	cmd.Flags().Bool("no-photos", false, "skip the hotel photo search")

	return cmd
}

func runChat(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetInt64("user-id")
	name, _ := cmd.Flags().GetString("name")
	memory, _ := cmd.Flags().GetBool("memory")
	noPhotos, _ := cmd.Flags().GetBool("no-photos")
	if name == "" {
		name = "traveller"
		if u, err := user.Current(); err == nil && u.Username != "" {
			name = u.Username
		}
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	var (
		cacheStore service.CacheStore
		history    service.HistoryStore
		photoStore service.PhotoStore
	)
	if memory {
		cacheStore = cache.NewMemoryStore()
	} else {
		store, err := initStorage(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer func() { _ = store.Close() }()
		cacheStore, history, photoStore = store, store, store
	}

	provider, err := newProvider(cfg, cacheStore)
	if err != nil {
		return err
	}
	defer func() { _ = provider.Close() }()

	var enricher *photos.Enricher
	if !noPhotos {
		if enricher, err = newEnricher(cfg, cacheStore, photoStore); err != nil {
			return err
		}
	}

	console := cli.NewConsole(os.Stdin, os.Stdout, bot.Sender{Name: name, UserID: userID, ChatID: userID})
	b, err := bot.New(bot.Config{
		Gateway:  console,
		Provider: provider,
		History:  history,
		Enricher: enricher,
	})
	if err != nil {
		return err
	}

	interrupts := cli.NewInterruptHandler(os.Stdout)
	ctx := interrupts.HandleInterrupts(cmd.Context(), history != nil)

	runErr := console.Run(ctx, b)
	if enricher != nil {
		enricher.Cancel(userID)
		enricher.Wait()
	}
	return runErr
}
