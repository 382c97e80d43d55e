package main

import (
	"os"
	"sort"

	"github.com/brizzai/passport/internal/auth"
	"github.com/brizzai/passport/internal/config"
	"github.com/brizzai/passport/internal/logger"
	"github.com/brizzai/passport/internal/server"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

func main() {
	Execute()
}

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "passport-demo",
	Short: "Serve a demo login site for the configured OAuth strategies",
	Long: `passport-demo serves a small site that signs users in with the OAuth 2.0
strategies listed in passport.yaml. Each strategy gets /auth/<name>, and the
provider sends the user back to /auth/<name>/callback or /auth/callback.`,
	SilenceUsage: true,
	RunE:         runServer,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	// Place version check in PreRun to ensure flags are parsed first
	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		versionFlag, _ := cmd.Flags().GetBool("version")
		if versionFlag {
			pterm.Info.Println(config.GetVersionInfo())
			os.Exit(0)
		}
	}

	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err)
		os.Exit(1)
	}
}

func init() {
	config.InitFlags(rootCmd.PersistentFlags())
	rootCmd.PersistentFlags().BoolP("version", "v", false, "Show version information")
	rootCmd.AddCommand(strategiesCmd)
}

// strategiesCmd prints the strategies the config would register
var strategiesCmd = &cobra.Command{
	Use:   "strategies",
	Short: "List the configured strategies",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cmd.Flags())
		if err != nil {
			return err
		}

		data := pterm.TableData{{"Name", "Provider", "Redirect URL", "PKCE"}}
		names := make([]string, 0, len(cfg.Strategies))
		for name := range cfg.Strategies {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			s := cfg.Strategies[name]
			pkce := "default"
			if s.PKCE != nil {
				pkce = map[bool]string{true: "on", false: "off"}[*s.PKCE]
			}
			data = append(data, []string{name, s.Provider, s.RedirectURL, pkce})
		}
		if len(data) == 1 {
			pterm.Warning.Println("No strategies configured")
			return nil
		}
		return pterm.DefaultTable.WithHasHeader().WithData(data).Render()
	},
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cmd.Flags())
	if err != nil {
		return err
	}
	if err := logger.InitLogger(&cfg.Logging); err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	if len(cfg.Strategies) == 0 {
		pterm.Warning.Println("No strategies configured, the login page will be empty")
	}
	pterm.Info.Printfln("Serving on http://%s", cfg.Server.Address())

	app := fx.New(
		fx.Supply(cfg),
		fx.WithLogger(func() fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger.GetLogger().WithOptions(zap.IncreaseLevel(zap.WarnLevel))}
		}),
		auth.Module,
		server.Module,
	)
	if err := app.Err(); err != nil {
		return err
	}
	app.Run()
	return nil
}
