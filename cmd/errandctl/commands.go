package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"campusrun/internal/auth"
	"campusrun/internal/config"
	"campusrun/internal/database"
	"campusrun/internal/export"
	"campusrun/internal/google"
	"campusrun/internal/models"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the mission store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				fmt.Fprintf(cmd.OutOrStdout(), "schema is up to date: %s\n", db.Path())
				return nil
			})
		},
	}
}

func missionsCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "missions", Short: "Inspect missions"}
	cmd.AddCommand(missionsListCmd())
	cmd.AddCommand(missionsShowCmd())
	cmd.AddCommand(missionsHistoryCmd())
	return cmd
}

type listFlags struct {
	statuses  string
	studentID string
	runnerID  string
	limit     uint64
}

func (f listFlags) filter() (models.MissionFilter, error) {
	statuses, err := parseStatuses(f.statuses)
	if err != nil {
		return models.MissionFilter{}, err
	}
	return models.MissionFilter{
		Statuses:  statuses,
		StudentID: f.studentID,
		RunnerID:  f.runnerID,
		Limit:     f.limit,
	}, nil
}

func addListFlags(cmd *cobra.Command, f *listFlags, defaultLimit uint64) {
	cmd.Flags().StringVar(&f.statuses, "status", "", "comma separated status filter")
	cmd.Flags().StringVar(&f.studentID, "student", "", "student id filter")
	cmd.Flags().StringVar(&f.runnerID, "runner", "", "runner id filter")
	cmd.Flags().Uint64Var(&f.limit, "limit", defaultLimit, "maximum number of missions")
}

func parseStatuses(raw string) ([]string, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []string
	for _, s := range strings.Split(raw, ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if !models.StatusIn(s, models.AllStatuses) {
			return nil, fmt.Errorf("unknown status %q", s)
		}
		out = append(out, s)
	}
	return out, nil
}

func missionsListCmd() *cobra.Command {
	var f listFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List missions, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter()
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				missions, err := db.ListMissions(ctx, filter)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), missions)
				}
				renderMissions(cmd.OutOrStdout(), missions)
				return nil
			})
		},
	}
	addListFlags(cmd, &f, models.DefaultListLimit)
	return cmd
}

func missionsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <mission-id>",
		Short: "Show one mission with its applicants",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				m, err := db.GetMission(ctx, args[0])
				if err != nil {
					return err
				}
				applicants, err := db.ListApplicants(ctx, m.ID)
				if err != nil {
					return err
				}
				for _, a := range applicants {
					a.Outcome = models.ApplicantOutcome(m, a.RunnerID)
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), map[string]any{"mission": m, "applicants": applicants})
				}
				renderMission(cmd.OutOrStdout(), m, applicants, cfg.Pricing.Currency)
				return nil
			})
		},
	}
}

func missionsHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <mission-id>",
		Short: "Show the status history of a mission",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				if _, err := db.GetMission(ctx, args[0]); err != nil {
					return err
				}
				history, err := db.GetMissionHistory(ctx, args[0])
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), history)
				}
				renderHistory(cmd.OutOrStdout(), history)
				return nil
			})
		},
	}
}

func exportCmd() *cobra.Command {
	var f listFlags
	var dir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write missions to an XLSX report",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := f.filter()
			if err != nil {
				return err
			}
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				missions, err := db.ListMissions(ctx, filter)
				if err != nil {
					return err
				}
				if dir == "" {
					dir = cfg.Exports.Path
				}
				path, err := export.SaveMissions(dir, missions, cfg.Pricing.Currency, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "exported %d missions to %s\n", len(missions), path)
				return nil
			})
		},
	}
	addListFlags(cmd, &f, 0)
	cmd.Flags().StringVar(&dir, "dir", "", "output directory (defaults to exports.path)")
	return cmd
}

func tokenCmd() *cobra.Command {
	var userID, role string
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token for local testing",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return fmt.Errorf("--user required")
			}
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			provider, err := auth.NewJWTProvider(cfg.API.Auth)
			if err != nil {
				return err
			}
			token, err := provider.Issue(userID, role)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&userID, "user", "", "platform user id")
	cmd.Flags().StringVar(&role, "role", models.RoleStudent, "student or runner")
	return cmd
}

func backupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Snapshot the mission store and prune old snapshots",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				svc := database.NewBackupService(db, cfg.Backup, cliLogger())
				path, err := svc.PerformBackup(ctx)
				if err != nil {
					return err
				}
				removed := svc.CleanupOldBackups()
				fmt.Fprintf(cmd.OutOrStdout(), "backup written to %s (%d old snapshots removed)\n", path, removed)
				return nil
			})
		},
	}
}

func syncCmd() *cobra.Command {
	cmd := &cobra.Command{Use: "sheets", Short: "Manage the Google Sheets mirror"}
	cmd.AddCommand(&cobra.Command{
		Use:   "failed",
		Short: "List sync tasks that exhausted their retries",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				tasks, err := db.GetFailedSyncTasks(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(cmd.OutOrStdout(), tasks)
				}
				renderSyncTasks(cmd.OutOrStdout(), tasks)
				return nil
			})
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "resync",
		Short: "Rewrite the whole missions sheet from the store",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDB(cmd.Context(), func(ctx context.Context, cfg *config.Config, db *database.DB) error {
				if cfg.Google.GoogleCredentialsFile == "" || cfg.Google.MissionsSpreadsheetID == "" {
					return fmt.Errorf("google.credentials_file and google.missions_spreadsheet_id are required")
				}
				sheets, err := google.NewMissionSheets(ctx, cfg.Google.GoogleCredentialsFile,
					cfg.Google.MissionsSpreadsheetID, cfg.Google.MissionsSheetName)
				if err != nil {
					return err
				}
				missions, err := db.ListMissions(ctx, models.MissionFilter{})
				if err != nil {
					return err
				}
				if err := sheets.ReplaceMissionsSheet(ctx, missions); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "wrote %d missions to sheet %q\n", len(missions), cfg.Google.MissionsSheetName)
				return nil
			})
		},
	})
	return cmd
}

func formatAmount(minor int64, currency string) string {
	return fmt.Sprintf("%s %d.%02d", currency, minor/100, minor%100)
}

func renderMissions(w io.Writer, missions []*models.Mission) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Status", "Type", "Student", "Runner", "Price", "Version", "Updated"})
	for _, m := range missions {
		tw.AppendRow(table.Row{m.ID, m.Status, m.Type, m.StudentID, m.Runner(), m.PriceEstimate, m.Version,
			m.UpdatedAt.Format(time.RFC3339)})
	}
	tw.AppendFooter(table.Row{"", "", "", "", "Total", len(missions)})
	tw.SetColumnConfigs([]table.ColumnConfig{{Name: "Price", Align: text.AlignRight}})
	tw.Render()
}

func renderMission(w io.Writer, m *models.Mission, applicants []*models.Applicant, currency string) {
	status := m.Status
	if m.IsTerminal() {
		status += " (closed)"
	}

	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetTitle("Mission " + m.ID)
	tw.AppendRows([]table.Row{
		{"Status", status},
		{"Type", m.Type},
		{"Student", m.StudentID},
		{"Runner", m.Runner()},
		{"Pickup", m.PickupAddress},
		{"Dropoff", m.DropoffAddress},
		{"Item cost", formatAmount(m.ItemCost, currency)},
		{"Service fee", formatAmount(m.ServiceFee, currency)},
		{"Additional cost", formatAmount(m.AdditionalCost, currency)},
		{"Price estimate", formatAmount(m.PriceEstimate, currency)},
		{"Version", m.Version},
	})
	tw.Render()

	if len(applicants) == 0 {
		return
	}
	at := table.NewWriter()
	at.SetOutputMirror(w)
	at.AppendHeader(table.Row{"Runner", "Applied", "Outcome"})
	for _, a := range applicants {
		at.AppendRow(table.Row{a.RunnerID, a.AppliedAt.Format(time.RFC3339), a.Outcome})
	}
	at.Render()
}

func renderHistory(w io.Writer, history []*models.TransitionRecord) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"Version", "From", "To", "Actor", "At"})
	for _, h := range history {
		tw.AppendRow(table.Row{h.Version, h.FromStatus, h.ToStatus, h.ActorID, h.CreatedAt.Format(time.RFC3339)})
	}
	tw.Render()
}

func renderSyncTasks(w io.Writer, tasks []models.SyncTask) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.AppendHeader(table.Row{"ID", "Mission", "Type", "Retries", "Last error"})
	for _, t := range tasks {
		lastErr := ""
		if t.LastError != nil {
			lastErr = *t.LastError
		}
		tw.AppendRow(table.Row{t.ID, t.MissionID, t.TaskType, t.RetryCount, lastErr})
	}
	tw.Render()
}
