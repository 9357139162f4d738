package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "backofficectl",
	Short: "backofficectl operates the firm back-office API",
	Long: `backofficectl talks to the admin API of the back-office service.

Common workflows:

  Inspect a generation queue and hand stuck items back:
    backofficectl queue diagnostics blog
    backofficectl queue reset-stuck blog

  Requeue everything that failed:
    backofficectl queue retry-failed news

  Dashboard numbers:
    backofficectl stats leads/contact --group-by status
    backofficectl stats payroll --group-by period --sum net

  Browse leads:
    backofficectl leads list --kind beckham_law --status new

Configuration:
  Flags, environment variables or $HOME/.backofficectl.yaml:
    BACKOFFICE_URL      API endpoint (default: http://localhost:8080)
    BACKOFFICE_TOKEN    Admin API token`,
	SilenceUsage: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigName(".backofficectl")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BACKOFFICE")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

func newClient() *Client {
	return NewClient(viper.GetString("url"), viper.GetString("token"))
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.backofficectl.yaml)")

	rootCmd.PersistentFlags().String("url", "http://localhost:8080", "back-office API URL")
	viper.BindPFlag("url", rootCmd.PersistentFlags().Lookup("url"))

	rootCmd.PersistentFlags().StringP("token", "t", "", "admin API token")
	viper.BindPFlag("token", rootCmd.PersistentFlags().Lookup("token"))
}
