package cmd

import (
	"fmt"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
	logwriter "github.com/sirupsen/logrus/hooks/writer"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/gradle-enterprise-insights/build-report/internal/api"
	"github.com/gradle-enterprise-insights/build-report/pkg"
	"github.com/gradle-enterprise-insights/build-report/pkg/cmd/exp"
	"github.com/gradle-enterprise-insights/build-report/pkg/cmd/get"
	"github.com/gradle-enterprise-insights/build-report/pkg/cmd/report"
	"github.com/gradle-enterprise-insights/build-report/pkg/version"
)

var config = &pkg.Config{}

// NewRootCmd creates the base command, the server settings are read into c
// before any child command runs.
func NewRootCmd(c *pkg.Config) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   pkg.ProjectName,
		Short: "Gradle Enterprise build report",
		Long:  `gebr reports the slowest projects and users, the build cache issues and the tasks with negative avoidance savings of the builds published to a Gradle Enterprise server`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(); err != nil {
				return err
			}
			c.ServerURL = viper.GetString("server-url")
			c.AuthKey = viper.GetString("auth-key")
			c.Timeout = viper.GetDuration("timeout")
			return nil
		},
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String("server-url", "", "Gradle Enterprise server URL. Example: https://ge.example.com")
	rootCmd.PersistentFlags().String("auth-key", "", "Access key sent as bearer token")
	rootCmd.PersistentFlags().Duration("timeout", api.DefaultTimeout, "Timeout of each request to the server")
	rootCmd.PersistentFlags().String("log-level", "info", "logging level")
	rootCmd.PersistentFlags().String("log-file", "", "Also write the logs to the file")
	rootCmd.PersistentFlags().String("config", "", fmt.Sprintf("Config file (default %s/%s)", pkg.ConfigDirectory, pkg.ConfigFileName))
	for _, flag := range []string{"server-url", "auth-key", "timeout", "log-level", "log-file", "config"} {
		initBindFlag(rootCmd, flag)
	}

	// Link in child commands
	rootCmd.AddCommand(report.NewCmdReport(c))
	rootCmd.AddCommand(get.NewCmdGet(c))
	rootCmd.AddCommand(exp.NewCmdExp())
	rootCmd.AddCommand(version.NewCmdVersion())

	return rootCmd
}

func setupLogging() error {
	// Validate logging level
	logrusLevel, err := log.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return err
	}
	log.SetLevel(logrusLevel)

	// Additional log options
	log.SetFormatter(&log.TextFormatter{
		FullTimestamp: true,
	})

	// the report goes to stdout
	log.SetOutput(os.Stderr)
	logFile := viper.GetString("log-file")
	if logFile == "" {
		return nil
	}
	fdLog, err := os.OpenFile(logFile, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0644)
	if err != nil {
		log.Errorf("error opening file %s: %v", logFile, err)
		return nil
	}
	log.AddHook(&logwriter.Hook{
		Writer:    fdLog,
		LogLevels: log.AllLevels,
	})
	return nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	rootCmd := NewRootCmd(config)
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}

func initBindFlag(cmd *cobra.Command, flag string) {
	err := viper.BindPFlag(flag, cmd.PersistentFlags().Lookup(flag))
	if err != nil {
		log.Warnf("Unable to bind flag %s\n", flag)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	viper.SetEnvPrefix(pkg.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	if file := viper.GetString("config"); file != "" {
		viper.SetConfigFile(file)
	} else {
		viper.SetConfigName(strings.TrimSuffix(pkg.ConfigFileName, ".yaml"))
		viper.SetConfigType("yaml")
		viper.AddConfigPath(pkg.ConfigDirectory)
	}
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Warnf("Unable to read the config file: %v", err)
		}
		return
	}
	log.Debugf("Using config file %s", viper.ConfigFileUsed())
}
