package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/sheetsync/sheetsync/internal/config"
	"github.com/sheetsync/sheetsync/internal/store"
	"github.com/sheetsync/sheetsync/internal/ui"
)

var configCmd = &cobra.Command{
	Use:     "config",
	GroupID: "setup",
	Short:   "Create or inspect the configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a configuration file",
	Long: `Write a configuration file as TOML.

The file is written to the given path, --config, or ./sheetsync.toml. An
existing file is kept unless --force is set. With --interactive the
spreadsheet and database settings are asked for; otherwise the defaults are
written.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		path := config.DefaultFile
		if configFile != "" {
			path = configFile
		}
		if len(args) == 1 {
			path = args[0]
		}

		force, _ := cmd.Flags().GetBool("force")
		interactive, _ := cmd.Flags().GetBool("interactive")

		c := config.Default()
		if interactive {
			if !ui.IsTerminal(os.Stdin) {
				fatalf("--interactive needs a terminal")
			}
			if err := askConfig(&c); err != nil {
				if errors.Is(err, huh.ErrUserAborted) {
					fmt.Println("Aborted")
					return
				}
				fatalf("Error reading answers: %v", err)
			}
		}

		if err := config.Write(path, c, force); err != nil {
			fatalf("Error writing configuration: %v", err)
		}
		fmt.Printf("%s Wrote %s\n", ui.RenderPass("✓"), path)
		if c.Spreadsheet.ID == "" {
			fmt.Printf("   Set spreadsheet.id (or SHEET_ID) before running the daemon\n")
		}
	},
}

// askConfig fills the settings that have no usable default.
func askConfig(c *config.Config) error {
	port := strconv.Itoa(c.Database.Port)

	err := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Spreadsheet ID").
				Description("The long id in the sheet URL").
				Value(&c.Spreadsheet.ID),
			huh.NewInput().
				Title("Sheet name").
				Value(&c.Spreadsheet.Sheet),
			huh.NewInput().
				Title("Service account credentials file").
				Value(&c.Spreadsheet.CredentialsFile),
			huh.NewSelect[string]().
				Title("Database").
				Options(
					huh.NewOption("SQLite file", store.DriverSQLite),
					huh.NewOption("MySQL server", store.DriverMySQL),
				).
				Value(&c.Database.Driver),
		),
		huh.NewGroup(
			huh.NewInput().Title("SQLite path").Value(&c.Database.Path),
		).WithHideFunc(func() bool { return c.Database.Driver != store.DriverSQLite }),
		huh.NewGroup(
			huh.NewInput().Title("Host").Value(&c.Database.Host),
			huh.NewInput().
				Title("Port").
				Validate(func(s string) error {
					_, err := strconv.Atoi(s)
					return err
				}).
				Value(&port),
			huh.NewInput().Title("User").Value(&c.Database.User),
			huh.NewInput().Title("Password").EchoMode(huh.EchoModePassword).Value(&c.Database.Password),
			huh.NewInput().Title("Database name").Value(&c.Database.Name),
		).WithHideFunc(func() bool { return c.Database.Driver != store.DriverMySQL }),
	).Run()
	if err != nil {
		return err
	}

	c.Database.Port, _ = strconv.Atoi(port)
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		requireConfig()

		data, err := config.EncodeYAML(cfg)
		if err != nil {
			fatalf("Error encoding configuration: %v", err)
		}

		source := loader.File()
		if source == "" {
			source = "defaults and environment"
		}
		fmt.Fprintf(os.Stderr, "%s\n", ui.RenderMuted("# from "+source))
		_, _ = os.Stdout.Write(data)
	},
}

func init() {
	configInitCmd.Flags().BoolP("force", "f", false, "overwrite an existing file")
	configInitCmd.Flags().BoolP("interactive", "i", false, "ask for the spreadsheet and database settings")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
