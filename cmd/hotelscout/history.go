package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/Veraticus/hotel-scout/internal/cli"
	"github.com/Veraticus/hotel-scout/internal/model"
	"github.com/spf13/cobra"
)

func historyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show a user's stored searches",
		Long: `Print the searches a user made, newest first.

Without --date every search is shown; with --date only the searches made
on that day.`,
		RunE: runHistory,
	}

	cmd.Flags().Int64("user-id", 0, "Telegram user id (required)")
	cmd.Flags().String("date", "", "only show searches made on this day (YYYY-MM-DD)")
	cmd.Flags().Int("limit", 0, "show at most this many searches (0 for all)")
	_ = cmd.MarkFlagRequired("user-id")

	return cmd
}

func runHistory(cmd *cobra.Command, _ []string) error {
	userID, _ := cmd.Flags().GetInt64("user-id")
	dateStr, _ := cmd.Flags().GetString("date")
	limit, _ := cmd.Flags().GetInt("limit")

	var day *time.Time
	if dateStr != "" {
		d, err := time.Parse(model.DateLayout, dateStr)
		if err != nil {
			return fmt.Errorf("invalid date %q, use YYYY-MM-DD: %w", dateStr, err)
		}
		day = &d
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	records, err := store.ReadHistory(cmd.Context(), userID, day)
	if err != nil {
		return fmt.Errorf("failed to read history: %w", err)
	}
	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, cli.FormatInfo(fmt.Sprintf("No searches found for user %d.", userID)))
		return nil
	}
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}

	fmt.Fprintln(os.Stdout, cli.FormatTitle(fmt.Sprintf("Search history of user %d", userID)))
	for _, rec := range records {
		fmt.Fprintln(os.Stdout, renderRecord(rec))
	}
	return nil
}

func renderRecord(rec model.SearchRecord) string {
	c := rec.Criteria
	title := fmt.Sprintf("#%d  %s  /%s", rec.ID, rec.CreatedAt.Format("2006-01-02 15:04"), c.Sort)

	var b strings.Builder
	fmt.Fprintf(&b, "%s, %s (%s)\n", c.City.Name, c.City.CountryName, c.City.Code)
	fmt.Fprintf(&b, "%s → %s, %d night(s)\n",
		c.Dates.CheckIn.Format(model.DateLayout), c.Dates.CheckOut.Format(model.DateLayout), c.Dates.Nights())
	fmt.Fprintf(&b, "Price %s %s, radius %d km", c.PriceRange, c.Currency.Code, c.Radius)

	if len(rec.Hotels) == 0 {
		b.WriteString("\n" + cli.SubtleStyle.Render("no hotels"))
	}
	for i, h := range rec.Hotels {
		line := fmt.Sprintf("%d. %s  %s %s  %.1f %s", i+1, h.Name, h.Total, h.Currency,
			h.Distance.Value, strings.ToLower(h.Distance.Unit))
		if h.Rating > 0 {
			line += fmt.Sprintf("  ★ %d", h.Rating)
		}
		if len(h.Photos) > 0 {
			line += cli.SubtleStyle.Render(fmt.Sprintf("  %s %d", cli.PhotoIcon, len(h.Photos)))
		}
		b.WriteString("\n" + line)
	}
	return cli.RenderBox(title, b.String())
}
