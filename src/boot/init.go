package boot

import (
	"context"
	"errors"
	"log"
	"os"
	"path"
	"tourledger/src/config"
	"tourledger/src/db"
	"tourledger/src/lib"
	libaws "tourledger/src/lib/aws"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/go-co-op/gocron/v2"
	"gorm.io/gorm"
)

const ReminderJobName = "payment-reminders"

func InitDb(cfg *config.Config) *gorm.DB {
	conn, err := db.Open(cfg.Database)
	if err != nil {
		log.Fatalf("error connecting to database: %s", err.Error())
	}
	if err := db.Migrate(conn); err != nil {
		log.Fatalf("error migration: %s", err.Error())
	}
	return conn
}

// CredentialsPath is where the identity provider's service account file lives.
func CredentialsPath(cfg *config.Config) string {
	return path.Join(cfg.SecretsDir, cfg.AWS.CredentialsKey)
}

// DownloadSDKFileFromS3 fetches the service account file when it is not
// already on disk and a secrets bucket is configured.
func DownloadSDKFileFromS3(ctx context.Context, awsCfg aws.Config, cfg *config.Config) error {
	dest := CredentialsPath(cfg)
	if _, err := os.Stat(dest); err == nil {
		log.Println("File exists!")
		return nil
	}
	if cfg.AWS.SecretsBucket == "" {
		return errors.New("credentials file missing and S3_SECRETS_BUCKET is not set")
	}
	log.Println("File not found. Downloading...")
	return libaws.S3Download(ctx, awsCfg, cfg.AWS.SecretsBucket, cfg.AWS.CredentialsKey, dest)
}

var ErrWebhookSecretMissing = errors.New("stripe webhook secret is not configured")

// ResolveWebhookSecret prefers the secret stored in Secrets Manager and falls
// back to STRIPE_WEBHOOK_SECRET. It fails when neither yields a value.
func ResolveWebhookSecret(ctx context.Context, awsCfg aws.Config, cfg *config.Config) (string, error) {
	secret := cfg.Stripe.WebhookSecret
	if cfg.Stripe.WebhookSecretArn != "" {
		stored, err := libaws.SecretValue(ctx, awsCfg, cfg.Stripe.WebhookSecretArn, "STRIPE_WEBHOOK_SECRET")
		if err != nil || stored == "" {
			log.Printf("[Secrets] falling back to STRIPE_WEBHOOK_SECRET: %v\n", err)
		} else {
			secret = stored
		}
	}
	if secret == "" {
		return "", ErrWebhookSecretMissing
	}
	return secret, nil
}

// InitBroker creates the events topic on a local broker.
func InitBroker(ctx context.Context, cfg *config.Config) {
	if cfg.KafkaBroker == "" || cfg.IsProd() {
		return
	}
	results, err := lib.KafkaCreateTopics(ctx, cfg.KafkaBroker, cfg.EventsTopic)
	if err != nil {
		return
	}
	for _, r := range results {
		log.Printf("[Kafka] topic %s: %s\n", r.Topic, r.Error.String())
	}
}

// InitScheduler starts the in-process daily reminder job. It returns nil
// when reminders are triggered externally.
func InitScheduler(cfg *config.Config, task func()) gocron.Scheduler {
	if !cfg.CronInProcess {
		return nil
	}
	sched, err := lib.NewScheduler()
	if err != nil {
		log.Println("An error has occurred. Check logs for info")
		return nil
	}
	if _, err := lib.ScheduleDaily(sched, ReminderJobName, cfg.CronAt, task); err != nil {
		log.Printf("Error scheduling %s: %s\n", ReminderJobName, err.Error())
		return nil
	}
	log.Println("Jobs in queue:", len(sched.Jobs()))
	sched.Start()
	return sched
}

func StopScheduler(sched gocron.Scheduler) {
	if sched == nil {
		return
	}
	if err := sched.Shutdown(); err != nil {
		log.Println("An error has occurred while stopping Scheduler. Check logs for info")
	}
}
