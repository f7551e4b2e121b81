package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/frahmantamala/auth-rbac/internal/metrics"
	"github.com/frahmantamala/auth-rbac/internal/notification"
	"github.com/frahmantamala/auth-rbac/pkg/logger"
	"github.com/spf13/cobra"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
	Long:  `Start the workers that process queued jobs outside the HTTP server.`,
}

var notificationWorkerCmd = &cobra.Command{
	Use:   "notifications",
	Short: "Deliver queued verification codes",
	Long:  `Consume the notification queue and hand every message to the mailer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return startNotificationWorker()
	},
}

var (
	workerQueue string
	workerCount int
)

func startNotificationWorker() error {
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if !config.Broker.Enabled {
		return errors.New("broker is disabled; notifications are delivered in-process by the server")
	}

	log := logger.LoggerWrapper()
	queue := getStringFlag(workerQueue, config.Broker.Queue)

	consumer := notification.NewConsumer(
		config.Broker.URL,
		queue,
		notification.NewLogMailer(log),
		metrics.New(),
		log,
	).WithWorkers(workerCount)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("notification worker is running. Press Ctrl+C to stop.", "queue", queue, "workers", workerCount)
	if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("notification worker shutdown complete")
	return nil
}

func getStringFlag(flagValue, configValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return configValue
}

func init() {
	notificationWorkerCmd.Flags().StringVar(&workerQueue, "queue", "", "Queue name (overrides config)")
	notificationWorkerCmd.Flags().IntVar(&workerCount, "workers", 4, "Deliveries handled concurrently")

	workerCmd.AddCommand(notificationWorkerCmd)

	rootCmd.AddCommand(workerCmd)
}
