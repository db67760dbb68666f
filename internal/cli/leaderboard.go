package cli

import (
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"

	"quiz-portal/internal/app"
	"quiz-portal/internal/config"
	"quiz-portal/internal/domain"
	"quiz-portal/internal/pocketbase"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
)

// NewLeaderboardCmd prints a board computed straight from PocketBase.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		board    string
		category string
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print a leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			client := pocketbase.New(cfg.PocketBaseURL(), pocketbase.WithTimeout(config.TTLDuration(cfg.PocketBase.Timeout, 15*time.Second)))
			rankings := app.NewRankings(app.NewPortal(client), clockwork.NewRealClock())

			var snap domain.LeaderboardSnapshot
			if category != "" {
				snap, err = rankings.Category(cmd.Context(), category)
			} else {
				snap, err = rankings.Board(cmd.Context(), domain.Board(board))
			}
			if err != nil {
				return err
			}
			renderLeaderboard(cmd.OutOrStdout(), snap)
			return nil
		},
	}
	cmd.Flags().StringVar(&board, "board", string(domain.BoardOverall), "board to print")
	cmd.Flags().StringVar(&category, "category", "", "rank a quiz category instead of a board")
	return cmd
}

func renderLeaderboard(w io.Writer, snap domain.LeaderboardSnapshot) {
	title := string(snap.Board)
	if snap.Category != "" {
		title = snap.Category
	}
	fmt.Fprintln(w, titleStyle.Render("Leaderboard: "+title))
	if len(snap.Rows) == 0 {
		fmt.Fprintln(w, mutedStyle.Render("No ranked users yet."))
		return
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(mutedStyle).
		Headers("#", "Name", "Quizzes", "Avg", "Points", "Accuracy", "Score").
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	for _, r := range snap.Rows {
		name := r.Name
		if name == "" {
			name = r.Username
		}
		t.Row(
			strconv.Itoa(r.Rank),
			name,
			strconv.Itoa(r.TotalQuizzes),
			strconv.Itoa(r.AverageScore)+"%",
			strconv.Itoa(r.TotalPoints),
			strconv.Itoa(r.AccuracyRate)+"%",
			strconv.FormatFloat(r.WeightedScore, 'f', 1, 64),
		)
	}
	fmt.Fprintln(w, t.Render())
	fmt.Fprintln(w, mutedStyle.Render("Updated "+snap.UpdatedAt.Format("2006-01-02 15:04:05")))
}
