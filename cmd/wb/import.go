package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/zulandar/waybill/internal/db"
	"github.com/zulandar/waybill/internal/github"
	"golang.org/x/term"
)

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import issues from external trackers",
	}

	cmd.AddCommand(newImportGitHubCmd())
	return cmd
}

func newImportGitHubCmd() *cobra.Command {
	var (
		configPath string
		projectID  uint
	)

	cmd := &cobra.Command{
		Use:   "github <owner>/<repo>",
		Short: "Import open GitHub issues into a project",
		Long:  "Fetches open issues from the GitHub repository and creates a Waybill issue for each one not already imported. Pull requests are skipped and re-runs are idempotent.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImportGitHub(cmd, configPath, projectID, args[0])
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "waybill.yaml", "path to Waybill config file")
	cmd.Flags().UintVarP(&projectID, "project", "p", 0, "target project ID (required)")
	cmd.MarkFlagRequired("project")
	return cmd
}

func runImportGitHub(cmd *cobra.Command, configPath string, projectID uint, repoArg string) error {
	out := cmd.OutOrStdout()

	owner, repo, ok := strings.Cut(repoArg, "/")
	if !ok || owner == "" || repo == "" {
		return fmt.Errorf("repository must be <owner>/<repo>, got %q", repoArg)
	}

	cfg, err := loadConfigOrDefault(configPath)
	if err != nil {
		return err
	}

	token := cfg.GitHub.Token
	if token == "" {
		fmt.Fprint(out, "GitHub token (empty for anonymous access): ")
		raw, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return fmt.Errorf("read token: %w", err)
		}
		token = strings.TrimSpace(string(raw))
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return err
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		return err
	}

	ctx := cmd.Context()
	importer := github.New(ctx, token)
	result, err := importer.Import(ctx, gormDB, projectID, owner, repo)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Imported %d issues from %s/%s (%d already present)\n",
		result.Imported, owner, repo, result.Skipped)
	return nil
}
