package bot

import (
	"fmt"
	"html"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/xaenox/reality-filter-bot/internal/classifier"
	"github.com/xaenox/reality-filter-bot/internal/digest"
	"github.com/xaenox/reality-filter-bot/internal/models"
	"github.com/xaenox/reality-filter-bot/internal/triage"
)

const unknownSender = "unknown sender"

var categoryTitles = map[models.Category]string{
	models.CategoryUrgent: "⚠️ Urgent",
	models.CategoryWork:   "💼 Work",
	models.CategoryFamily: "👨‍👩‍👧 Family",
	models.CategorySpam:   "📛 Spam",
	models.CategoryOther:  "📨 Other",
}

// isForwarded reports whether msg was forwarded from a user, a hidden user
// or a channel.
func isForwarded(msg *tgbotapi.Message) bool {
	return msg.ForwardFrom != nil || msg.ForwardFromChat != nil || msg.ForwardSenderName != ""
}

// senderLabel describes who originally wrote a forwarded message.
func senderLabel(msg *tgbotapi.Message) string {
	switch {
	case msg.ForwardFrom != nil:
		name := strings.TrimSpace(msg.ForwardFrom.FirstName + " " + msg.ForwardFrom.LastName)
		if msg.ForwardFrom.UserName != "" {
			name += " (@" + msg.ForwardFrom.UserName + ")"
		}
		return strings.TrimSpace(name)
	case msg.ForwardFromChat != nil:
		return "Channel: " + msg.ForwardFromChat.Title
	case msg.ForwardSenderName != "":
		return msg.ForwardSenderName
	default:
		return unknownSender
	}
}

// messageText returns the text or, for media, the caption.
func messageText(msg *tgbotapi.Message) string {
	if msg.Text != "" {
		return msg.Text
	}
	return msg.Caption
}

func displayName(u *tgbotapi.User) string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

func renderDecision(d *triage.Decision, loc *time.Location) string {
	sender := html.EscapeString(d.SenderLabel)
	if d.Deferred {
		return fmt.Sprintf("🤖 <b>Auto-reply:</b> the user is asleep until %s.\n"+
			"The message from <i>%s</i> will be delivered after they wake up.",
			d.WakeAt.In(loc).Format("15:04"), sender)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📨 <b>From:</b> %s\n\n", sender)
	fmt.Fprintf(&sb, "📝 <b>Text:</b> %s", html.EscapeString(d.Text))
	if d.Truncated {
		sb.WriteString("...")
	}
	fmt.Fprintf(&sb, "\n\n%s %s", adviceIcon(d), html.EscapeString(string(d.Advice)))
	if d.Escalate {
		sb.WriteString("\n\n⚡ <b>Reply as soon as possible.</b>")
	}
	return sb.String()
}

func adviceIcon(d *triage.Decision) string {
	switch d.Advice {
	case classifier.AdviceIgnore:
		return "🔴"
	case classifier.AdviceCritical:
		return "⚠️"
	case classifier.AdviceImportant:
		return "🟡"
	case classifier.AdviceFamily:
		return "💚"
	default:
		return "🔵"
	}
}

func renderDigest(r digest.Report) string {
	if r.Empty() {
		return "📭 No messages were analyzed in the last 24 hours."
	}

	var sb strings.Builder
	sb.WriteString("📊 <b>Digest for the last 24 hours:</b>\n\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&sb, "%s: %d\n", categoryTitle(row.Category), row.Count)
	}
	fmt.Fprintf(&sb, "\n<b>Total:</b> %d messages", r.Total)
	if r.Noisy() {
		sb.WriteString("\n\n💡 That's a lot of noise. Try /sleep more often.")
	}
	return sb.String()
}

func renderStats(r digest.Report) string {
	if r.Empty() {
		return "📭 No statistics yet. Start forwarding me messages!"
	}

	var sb strings.Builder
	sb.WriteString("📈 <b>All-time statistics:</b>\n\n")
	for _, row := range r.Rows {
		fmt.Fprintf(&sb, "%s: %d (%.1f%%)\n", categoryTitle(row.Category), row.Count, row.Percent)
	}
	return sb.String()
}

func categoryTitle(c models.Category) string {
	if t, ok := categoryTitles[c]; ok {
		return t
	}
	return "📌 " + html.EscapeString(string(c))
}
