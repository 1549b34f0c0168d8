/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/classvault/apiserver/config"
	"github.com/classvault/apiserver/internal/mailer"
	"github.com/classvault/apiserver/internal/mq"
	"github.com/spf13/cobra"
)

// workerCmd drains the mail queue and delivers OTP email over SMTP.
var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Runs the mail delivery worker",
	Long: `Consumes queued OTP mail messages and delivers them over SMTP.
Failed deliveries are nacked so the broker can redeliver them.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.LoadConfig()
		logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		queue, err := mq.NewFromConfig(ctx, cfg)
		if err != nil {
			return fmt.Errorf("connect mq failed: %w", err)
		}
		defer func() {
			_ = queue.Close()
		}()

		sender := mailer.NewSMTPSender(cfg.SMTP)

		logger.Info("mail worker started", "channel", cfg.MQ.MailChannel)
		err = queue.Subscribe(ctx, cfg.MQ.MailChannel, func(ctx context.Context, msg mq.Message) error {
			var mail mailer.MailMessage
			if err := json.Unmarshal(msg.Data, &mail); err != nil {
				// Malformed payloads can never succeed; ack and move on.
				logger.Error("dropping malformed mail message", "messageId", msg.ID, "error", err)
				return nil
			}

			if err := sender.Send(mail); err != nil {
				logger.Error("mail delivery failed", "messageId", msg.ID, "error", err)
				return err
			}

			logger.Info("mail delivered", "messageId", msg.ID)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(workerCmd)
}
