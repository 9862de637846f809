package cmd

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/spf13/cobra"

	"github.com/jmehdipour/notifications-delivery/internal/awscfg"
	"github.com/jmehdipour/notifications-delivery/internal/codec"
	"github.com/jmehdipour/notifications-delivery/internal/config"
	"github.com/jmehdipour/notifications-delivery/internal/queue"
	"github.com/jmehdipour/notifications-delivery/internal/service/producer"
)

var enqueueArgs producer.Notification

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Sign a notification and put it on its delivery queue",
	Example: `  notifications-delivery enqueue --type sms --service svc-1 --template tpl-1 --to +447700900123 --content "Hi"
  notifications-delivery enqueue --type email --service svc-1 --template tpl-1 --to a@example.com \
      --from no-reply@example.com --subject "Hello" --body "World" --job J1`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		signer, err := codec.NewSigner(cfg.Crypto.SecretKey, cfg.Crypto.Salt)
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		awsCfg, err := awscfg.Load(ctx, cfg.AWS.Region)
		if err != nil {
			return err
		}

		svc := producer.New(signer, queue.NewSQS(awsCfg, cfg.AWS.Endpoint), cfg.Queue.NamePrefix)
		rcpt, err := svc.Enqueue(ctx, enqueueArgs)
		if err != nil {
			return fmt.Errorf("enqueue: %w", err)
		}

		log.Printf(">> enqueued notification=%s message=%s queue=%s", rcpt.NotificationID, rcpt.MessageID, rcpt.Queue)
		return nil
	},
}

func init() {
	f := enqueueCmd.Flags()
	f.StringVar(&enqueueArgs.Type, "type", "sms", "notification type (email | sms)")
	f.StringVar(&enqueueArgs.ServiceID, "service", "", "service id")
	f.StringVar(&enqueueArgs.TemplateID, "template", "", "template id")
	f.StringVar(&enqueueArgs.NotificationID, "notification", "", "notification id (generated when empty)")
	f.StringVar(&enqueueArgs.To, "to", "", "recipient phone number or email address")
	f.StringVar(&enqueueArgs.JobID, "job", "", "job id; the outcome is reported back when set")
	f.StringVar(&enqueueArgs.Content, "content", "", "inline sms content (template is rendered when empty)")
	f.StringVar(&enqueueArgs.FromAddress, "from", "", "email sender address")
	f.StringVar(&enqueueArgs.Subject, "subject", "", "email subject")
	f.StringVar(&enqueueArgs.Body, "body", "", "email body")
	_ = enqueueCmd.MarkFlagRequired("service")
	_ = enqueueCmd.MarkFlagRequired("template")
	_ = enqueueCmd.MarkFlagRequired("to")
}
