// engagectl — инструмент командной строки для управления движком
// через операционный HTTP API.
//
// Использование:
//
//	engagectl [--api-url URL] [--secret SECRET] [--json] <command> [flags]
//
// Команды:
//
//	status      Статус планировщика
//	start/stop  Запуск и остановка планировщика
//	run         Ручной запуск задачи
//	config      Изменение настроек планировщика
//	enrollment  Управление enrollments
//	reminders   Статистика напоминаний
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/shaiso/Engage/internal/cli"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var apiURL string
	var secret string
	var jsonOutput bool

	rootCmd := &cobra.Command{
		Use:           "engagectl",
		Short:         "engagectl — Engage engine control tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("ENGAGE_API_URL", "http://localhost:8090"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&secret, "secret", os.Getenv("CRON_SECRET"), "Value for the X-Cron-Secret header")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, secret) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }

	rootCmd.AddCommand(cli.NewEngineCmds(clientFn, outputFn)...)
	rootCmd.AddCommand(
		cli.NewEnrollmentCmd(clientFn, outputFn),
		cli.NewRemindersCmd(clientFn, outputFn),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
