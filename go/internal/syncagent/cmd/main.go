package main

import (
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/mcdev12/countdown/go/clients/timer_client"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var rootCmd = &cobra.Command{
	Use:   "timerctl",
	Short: "Drive shared countdown timers from the command line",
	Long: `timerctl talks to a countdown server.

It can create groups, apply owner actions and simulate several
browser tabs that share one leader and one broadcast channel.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		return viper.BindPFlags(cmd.Flags())
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server", timer_client.DefaultBaseURL, "base URL of the countdown server")
	rootCmd.PersistentFlags().String("actor", "", "actor id sent in the X-Actor-ID header")
	rootCmd.PersistentFlags().Duration("timeout", 10*time.Second, "timeout for a single request")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug logging")

	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(patchCmd)
	rootCmd.AddCommand(watchCmd)
}

// initConfig reads TIMER_* environment variables and .env files
func initConfig() {
	_ = godotenv.Load(".env")
	_ = godotenv.Load(".env.local")

	viper.SetEnvPrefix("timer")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	zerolog.SetGlobalLevel(zerolog.WarnLevel)
	if viper.GetBool("debug") {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}
}

func newClient() *timer_client.TimerClient {
	client := timer_client.NewTimerClient(viper.GetString("server"), viper.GetString("actor"))
	client.SetTimeout(viper.GetDuration("timeout"))
	return client
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
