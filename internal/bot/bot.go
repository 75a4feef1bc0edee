package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/xaenox/reality-filter-bot/internal/digest"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"github.com/xaenox/reality-filter-bot/internal/presence"
	"github.com/xaenox/reality-filter-bot/internal/storage"
	"github.com/xaenox/reality-filter-bot/internal/triage"
	"go.uber.org/zap"
)

// Sender delivers outgoing Telegram messages. *tgbotapi.BotAPI implements it.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Triager interface {
	Triage(ctx context.Context, ownerID int64, text, senderLabel string) (*triage.Decision, error)
}

type PresenceController interface {
	EnterSleep(ctx context.Context, userID int64, hours float64) (time.Time, error)
	Wake(ctx context.Context, userID int64) (bool, error)
}

type DigestBuilder interface {
	Daily(ctx context.Context, ownerID int64) (digest.Report, error)
	AllTime(ctx context.Context, ownerID int64) (digest.Report, error)
}

// Services are the collaborators the bot maps commands onto.
type Services struct {
	Users    storage.UserStorage
	Triage   Triager
	Presence PresenceController
	Digest   DigestBuilder
}

type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	services Services
	logger   *zap.Logger
	location *time.Location
	timeout  int
}

func New(token string, timeout int, services Services, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	b := newBot(api, services, logger)
	b.api = api
	b.timeout = timeout
	return b, nil
}

func newBot(sender Sender, services Services, logger *zap.Logger) *Bot {
	return &Bot{
		sender:   sender,
		services: services,
		logger:   logger,
		location: time.Local,
		timeout:  60,
	}
}

// Sender exposes the outgoing side for the digest scheduler.
func (b *Bot) Sender() Sender {
	return b.sender
}

// Start polls for updates until ctx is cancelled. Each message is handled
// in its own goroutine.
func (b *Bot) Start(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.timeout

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot started", zap.String("username", b.api.Self.UserName))

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, message *tgbotapi.Message) {
	if message.From == nil {
		return
	}

	logger := b.logger.With(
		zap.String("request_id", uuid.NewString()),
		zap.Int64("user_id", message.From.ID))

	// first contact creates the user; later contacts refresh the labels
	if err := b.services.Users.UpsertUser(ctx, &models.User{
		ID:          message.From.ID,
		Handle:      message.From.UserName,
		DisplayName: displayName(message.From),
	}); err != nil {
		logger.Error("Failed to upsert user", zap.Error(err))
	}

	switch {
	case message.IsCommand():
		b.handleCommand(ctx, logger, message)
	case isForwarded(message):
		b.handleForwarded(ctx, logger, message)
	case message.Text != "":
		b.sendHTML(message.Chat.ID, "📎 To analyze a message, <b>forward it to me</b>.\n\n"+
			"Tap the message → Forward → pick me.")
	}
}

func (b *Bot) handleCommand(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	switch message.Command() {
	case "start":
		b.handleStart(message)
	case "help":
		b.handleHelp(message)
	case "about":
		b.handleAbout(message)
	case "sleep":
		b.handleSleep(ctx, logger, message)
	case "wake":
		b.handleWake(ctx, logger, message)
	case "digest":
		b.handleDigest(ctx, logger, message)
	case "stats":
		b.handleStats(ctx, logger, message)
	default:
		b.sendMessage(message.Chat.ID, "Unknown command. Use /help to see available commands.")
	}
}

func (b *Bot) handleStart(message *tgbotapi.Message) {
	welcome := fmt.Sprintf(`👋 Hi, <b>%s</b>!

I'm your <b>digital secretary</b>: I filter out the noise and keep what matters.

📌 <b>What I can do:</b>
• Analyze forwarded messages
• "Do not disturb" mode with an auto-reply
• Daily digest of what you missed

📎 <b>How to use me:</b>
Forward me any message and I'll tell you how important it is.

⚙️ <b>Commands:</b>
/sleep 2 - sleep for 2 hours
/wake - wake up
/digest - digest for the last 24 hours
/help - all commands`, html.EscapeString(message.From.FirstName))

	b.sendHTML(message.Chat.ID, welcome)
}

func (b *Bot) handleHelp(message *tgbotapi.Message) {
	help := `🔍 <b>All commands:</b>

/sleep N - do not disturb for N hours (for example: /sleep 3)
/wake - turn sleep mode off
/digest - digest of messages from the last 24 hours
/stats - statistics by category
/about - about the bot`

	b.sendHTML(message.Chat.ID, help)
}

func (b *Bot) handleAbout(message *tgbotapi.Message) {
	about := `🧠 <b>Reality Filter Bot</b>

Filters the information noise so notifications don't drive you mad.

• Offline keyword analysis
• Deep sleep mode
• Your data stays in this bot's storage`

	b.sendHTML(message.Chat.ID, about)
}

func (b *Bot) handleSleep(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	hours, err := parseHours(message.CommandArguments())
	if err != nil {
		b.sendMessage(message.Chat.ID, "❌ Give the number of hours, for example: /sleep 2")
		return
	}

	wakeAt, err := b.services.Presence.EnterSleep(ctx, message.From.ID, hours)
	switch {
	case errors.Is(err, presence.ErrInvalidDuration):
		b.sendMessage(message.Chat.ID, fmt.Sprintf("⏰ Sleep must be more than 0 and at most %d hours.", presence.MaxSleepHours))
		return
	case err != nil:
		logger.Error("Failed to enter sleep", zap.Error(err), zap.Float64("hours", hours))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't turn on sleep mode. Please try again.")
		return
	}

	b.sendHTML(message.Chat.ID, fmt.Sprintf("😴 <b>Sleep mode on</b> for %s h.\nWaking up: %s\n\n"+
		"Forwarded messages will get an auto-reply.",
		strconv.FormatFloat(hours, 'f', -1, 64), wakeAt.In(b.location).Format("15:04 02.01")))
}

func (b *Bot) handleWake(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	wasAsleep, err := b.services.Presence.Wake(ctx, message.From.ID)
	if err != nil {
		logger.Error("Failed to wake", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't turn off sleep mode. Please try again.")
		return
	}

	if wasAsleep {
		b.sendHTML(message.Chat.ID, "👋 <b>I'm awake!</b> Back online.")
		return
	}
	b.sendMessage(message.Chat.ID, "✅ I wasn't asleep. Working as usual.")
}

func (b *Bot) handleDigest(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	report, err := b.services.Digest.Daily(ctx, message.From.ID)
	if err != nil {
		logger.Error("Failed to build digest", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't build your digest.")
		return
	}
	b.sendHTML(message.Chat.ID, renderDigest(report))
}

func (b *Bot) handleStats(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	report, err := b.services.Digest.AllTime(ctx, message.From.ID)
	if err != nil {
		logger.Error("Failed to build stats", zap.Error(err))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't retrieve your statistics.")
		return
	}
	b.sendHTML(message.Chat.ID, renderStats(report))
}

func (b *Bot) handleForwarded(ctx context.Context, logger *zap.Logger, message *tgbotapi.Message) {
	label := senderLabel(message)

	decision, err := b.services.Triage.Triage(ctx, message.From.ID, messageText(message), label)
	switch {
	case errors.Is(err, triage.ErrEmptyMessage):
		b.sendMessage(message.Chat.ID, "❌ I can't analyze a message without text.")
		return
	case err != nil:
		logger.Error("Failed to triage message", zap.Error(err), zap.String("sender", label))
		b.sendErrorMessage(message.Chat.ID, "Sorry, I couldn't save this message. Please forward it again.")
		return
	}

	reply := tgbotapi.NewMessage(message.Chat.ID, renderDecision(decision, b.location))
	reply.ParseMode = tgbotapi.ModeHTML
	reply.ReplyToMessageID = message.MessageID
	if _, err := b.sender.Send(reply); err != nil {
		logger.Error("Failed to send triage decision",
			zap.Error(err),
			zap.Int64("chat_id", message.Chat.ID),
			zap.Int64("record_id", decision.RecordID))
	}
}

// parseHours reads the /sleep argument. Range checks belong to presence.
func parseHours(args string) (float64, error) {
	fields := strings.Fields(args)
	if len(fields) == 0 {
		return 0, errors.New("missing duration")
	}
	return strconv.ParseFloat(strings.ReplaceAll(fields[0], ",", "."), 64)
}

func (b *Bot) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendHTML(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}

func (b *Bot) sendErrorMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, "⚠️ "+text)
	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Error("Failed to send error message",
			zap.Error(err),
			zap.Int64("chat_id", chatID))
	}
}
