package telegram

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"gopkg.in/telebot.v3"
)

func RegisterBotCommands(b *telebot.Bot, adminService AdminCommands, baseLogger *logrus.Entry) {
	startHelpLogger := baseLogger.WithField("handler_group", "start_help")
	b.Handle("/start", startHandler(adminService, startHelpLogger))
	b.Handle("/help", helpHandler(adminService, startHelpLogger))
}

func startHandler(adminService AdminCommands, logger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logger.WithFields(logrus.Fields{"command": "/start", "sender_id": senderID}).Info("Processing /start command")

		if adminService.IsAdmin(senderID) {
			return c.Send(fmt.Sprintf("Hello, %s! Failure alerts for expiration reminders will arrive here. Use /help for the command list.", c.Sender().FirstName))
		}
		return c.Send("This bot is reserved for the reminder service operator.")
	}
}

func helpHandler(adminService AdminCommands, logger *logrus.Entry) telebot.HandlerFunc {
	return func(c telebot.Context) error {
		senderID := c.Sender().ID
		logger.WithFields(logrus.Fields{"command": "/help", "sender_id": senderID}).Info("Processing /help command")

		if !adminService.IsAdmin(senderID) {
			return c.Send("No commands are available to you.")
		}
		var helpText strings.Builder
		helpText.WriteString("Admin commands:\n\n")
		helpText.WriteString("`/status`\n - Reminder counts by status, due reminders and active interval rules.\n\n")
		helpText.WriteString("`/sweep`\n - Run one dispatch sweep now and report the result.\n\n")
		helpText.WriteString("`/help`\n - Show this message.")
		return c.Send(helpText.String(), &telebot.SendOptions{ParseMode: telebot.ModeMarkdown})
	}
}
