package cmd

import (
	"context"
	"fmt"
	"time"

	tokenDatamodel "github.com/frahmantamala/auth-rbac/internal/core/datamodel/token"
	"github.com/frahmantamala/auth-rbac/internal/core/events"
	"github.com/frahmantamala/auth-rbac/internal/metrics"
	"github.com/frahmantamala/auth-rbac/internal/notification"
	"github.com/frahmantamala/auth-rbac/pkg/logger"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var eventCmd = &cobra.Command{
	Use:   "event",
	Short: "Event management commands",
	Long:  `Manage events: publish test events through the configured notification path`,
}

var publishEventCmd = &cobra.Command{
	Use:   "publish [event-type]",
	Short: "Publish a test event",
	Long: `Publish a test event to the event bus for testing and debugging. A
verification.issued event travels the same path as a real verification code:
the RabbitMQ queue when the broker is enabled, the log mailer otherwise.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return publishTestEvent(cmd.Context(), args[0])
	},
}

var (
	eventData  string
	eventEmail string
)

func publishTestEvent(ctx context.Context, eventType string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	config, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.LoggerWrapper()

	deps := &Dependencies{Config: config, Logger: log, Metrics: metrics.New()}
	defer deps.close()

	eventBus := events.NewEventBus(log)
	sender, err := notificationSender(deps)
	if err != nil {
		return err
	}
	notification.Subscribe(eventBus, sender)

	eventBus.Subscribe(eventType, func(ctx context.Context, event events.Event) error {
		log.Info("test handler received event",
			"event_id", event.EventID(),
			"event_type", event.EventType())
		return nil
	})

	now := time.Now()
	var testEvent events.Event
	if eventType == events.EventTypeVerificationIssued {
		testEvent = events.NewVerificationIssuedEvent("", eventEmail, tokenDatamodel.TypeUserVerification, eventData, now.Add(5*time.Minute), now)
	} else {
		testEvent = events.BaseEvent{
			ID:        uuid.NewString(),
			Type:      eventType,
			Timestamp: now,
			Data: map[string]interface{}{
				"message": eventData,
				"source":  "cli-command",
			},
		}
	}

	log.Info("publishing test event", "event_type", eventType, "event_id", testEvent.EventID())

	if err := eventBus.PublishSync(ctx, testEvent); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	log.Info("test event published successfully")
	return nil
}

func init() {
	publishEventCmd.Flags().StringVar(&eventData, "data", "test message", "Event data message, used as the code of verification.issued")
	publishEventCmd.Flags().StringVar(&eventEmail, "email", "test@example.com", "Recipient of verification.issued")

	eventCmd.AddCommand(publishEventCmd)

	rootCmd.AddCommand(eventCmd)
}
