package cmd

import (
	"github.com/mj1618/findclose/internal/hub"
	"github.com/mj1618/findclose/internal/output"
	"github.com/mj1618/findclose/internal/settings"
	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Show or change the persisted enable preference",
	Long: `Read or write the isFindCloseEnabled preference. Running watch sessions pick
up changes to the settings file as they happen.

Examples:
  findclose settings get
  findclose settings enable
  findclose settings toggle`,
}

func init() {
	rootCmd.AddCommand(settingsCmd)
	settingsCmd.PersistentFlags().String("path", "", "Settings file (default from config, else $HOME/.config/findclose/settings.yaml)")

	settingsCmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Print the stored preference",
		RunE:  runSettingsGet,
	})
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "enable",
		Short: "Enable shake detection",
		RunE:  func(cmd *cobra.Command, args []string) error { return runSettingsSet(cmd, true) },
	})
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "disable",
		Short: "Disable shake detection",
		RunE:  func(cmd *cobra.Command, args []string) error { return runSettingsSet(cmd, false) },
	})
	settingsCmd.AddCommand(&cobra.Command{
		Use:   "toggle",
		Short: "Flip the preference, as a click on the toolbar icon does",
		RunE:  runSettingsToggle,
	})
}

// settingsView is the printed preference.
type settingsView struct {
	Path              string `yaml:"path" json:"path"`
	settings.Settings `yaml:",inline"`
	Icon              string `yaml:"icon" json:"icon"`
}

func newSettingsView(store *settings.FileStore, s settings.Settings) settingsView {
	return settingsView{Path: store.Path(), Settings: s, Icon: hub.IconPath(s.IsFindCloseEnabled)}
}

// openSettingsStore resolves the settings file from --path, config, or the
// default location.
func openSettingsStore(cmd *cobra.Command) (*settings.FileStore, error) {
	path := appCfg.Settings.Path
	if f := cmd.Flags().Lookup("path"); f != nil && f.Changed {
		path = f.Value.String()
	}
	if path == "" {
		p, err := settings.DefaultPath()
		if err != nil {
			return nil, err
		}
		path = p
	}
	return settings.NewFileStore(path, logger), nil
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	store, err := openSettingsStore(cmd)
	if err != nil {
		return err
	}
	s, err := store.Load(cmd.Context())
	if err != nil {
		return err
	}
	return output.Print(newSettingsView(store, s))
}

func runSettingsSet(cmd *cobra.Command, enabled bool) error {
	store, err := openSettingsStore(cmd)
	if err != nil {
		return err
	}
	s := settings.Settings{IsFindCloseEnabled: enabled}
	if err := store.Save(cmd.Context(), s); err != nil {
		return err
	}
	return output.Print(newSettingsView(store, s))
}

func runSettingsToggle(cmd *cobra.Command, args []string) error {
	store, err := openSettingsStore(cmd)
	if err != nil {
		return err
	}
	h := hub.New(hub.Options{Store: store, Logger: logger})
	h.Start(cmd.Context())
	defer h.Close()
	s := h.Toggle(cmd.Context(), 0)
	return output.Print(newSettingsView(store, s))
}
