package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"quota-scraper/render"
	"quota-scraper/session"
	"quota-scraper/sheets"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Telegram rejects messages longer than this
const maxMessageLen = 4096

const (
	ActionFetchBoth   = "fetch_both"
	ActionFetchFirst  = "fetch_first"
	ActionFetchSecond = "fetch_second"
	ActionToggle      = "toggle"
)

const helpText = "Commands:\n" +
	"/start - Start the bot\n" +
	"/help - Show this help\n" +
	"/fetch - Choose which pages to fetch\n" +
	"/status - Show the current data\n\n" +
	"Fetching both pages enables the comparative view."

// Sender is the part of tgbotapi.BotAPI the bot uses
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Orchestrator is the part of session.Orchestrator the bot drives
type Orchestrator interface {
	TriggerFetch(wantFirst, wantSecond bool) error
	ToggleMode() (session.DisplayMode, error)
	View() session.View
	Snapshot() (session.FetchSession, bool)
}

// Bot answers Telegram updates by driving an orchestrator
type Bot struct {
	api     Sender
	allowed map[int64]bool
	limit   int
	log     *zap.SugaredLogger
	writer  *sheets.Writer

	mu          sync.Mutex
	orch        Orchestrator
	pendingChat int64
}

// New creates a bot. An empty allowed list lets every user in.
func New(api Sender, allowedUsers []int64, limit int, log *zap.SugaredLogger) *Bot {
	allowed := make(map[int64]bool, len(allowedUsers))
	for _, id := range allowedUsers {
		allowed[id] = true
	}
	return &Bot{
		api:     api,
		allowed: allowed,
		limit:   limit,
		log:     log,
	}
}

// WithSheets makes the bot copy every settled view to a new sheet
func (b *Bot) WithSheets(w *sheets.Writer) *Bot {
	b.writer = w
	return b
}

// Attach sets the orchestrator driven by the bot
func (b *Bot) Attach(o Orchestrator) {
	b.mu.Lock()
	b.orch = o
	b.mu.Unlock()
}

// Run handles updates until ctx is done or the channel closes
func (b *Bot) Run(ctx context.Context, updates tgbotapi.UpdatesChannel) {
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(update)
		}
	}
}

// HandleUpdate dispatches one update
func (b *Bot) HandleUpdate(update tgbotapi.Update) {
	if update.CallbackQuery != nil {
		b.handleCallbackQuery(update.CallbackQuery)
		return
	}
	if update.Message == nil || update.Message.From == nil {
		return
	}

	msg := update.Message
	chatID := msg.Chat.ID
	if !b.isAllowed(msg.From.ID) {
		b.log.Warnf("Unauthorized user attempted to use bot: %d", msg.From.ID)
		b.send(tgbotapi.NewMessage(chatID, "Sorry, you are not authorized to use this bot."))
		return
	}

	if !msg.IsCommand() {
		b.sendKeyboard(chatID, "Choose which pages to fetch:")
		return
	}

	switch msg.Command() {
	case "start":
		b.sendKeyboard(chatID, "Welcome! Choose which pages to fetch. Fetch both pages to compare quotas.")
	case "help":
		b.send(tgbotapi.NewMessage(chatID, helpText))
	case "fetch":
		b.sendKeyboard(chatID, "Choose which pages to fetch:")
	case "status":
		b.sendView(chatID)
	default:
		b.send(tgbotapi.NewMessage(chatID, "Unknown command. Use /help for available commands."))
	}
}

func (b *Bot) handleCallbackQuery(callback *tgbotapi.CallbackQuery) {
	if !b.isAllowed(callback.From.ID) {
		b.log.Warnf("Unauthorized user attempted to use callback: %d", callback.From.ID)
		b.request(tgbotapi.NewCallback(callback.ID, "Sorry, you are not authorized."))
		return
	}
	if callback.Message == nil {
		return
	}
	chatID := callback.Message.Chat.ID

	// Acknowledge callback
	b.request(tgbotapi.NewCallback(callback.ID, ""))

	orch := b.orchestrator()
	if orch == nil {
		b.send(tgbotapi.NewMessage(chatID, "Bot is still starting, try again in a moment."))
		return
	}

	action := callback.Data
	if action == ActionToggle {
		if _, err := orch.ToggleMode(); err != nil {
			b.send(tgbotapi.NewMessage(chatID, "The comparative view needs a finished fetch of both pages."))
			return
		}
		b.sendView(chatID)
		return
	}

	wantFirst, wantSecond, err := ParseFetchAction(action)
	if err != nil {
		b.log.Warnf("Ignoring callback %q: %v", action, err)
		return
	}

	b.mu.Lock()
	prev := b.pendingChat
	b.pendingChat = chatID
	b.mu.Unlock()

	if err := orch.TriggerFetch(wantFirst, wantSecond); err != nil {
		b.mu.Lock()
		b.pendingChat = prev
		b.mu.Unlock()
		if errors.Is(err, session.ErrFetchInFlight) {
			b.send(tgbotapi.NewMessage(chatID, "⏳ A fetch is already running, results will follow."))
			return
		}
		b.send(tgbotapi.NewMessage(chatID, fmt.Sprintf("❌ Could not start fetch: %v", err)))
		return
	}

	b.send(tgbotapi.NewMessage(chatID, "🔄 Fetching data..."))
}

// Notify sends the settled session to the chat that requested it.
// It is meant to be registered with session.WithOnSettle.
func (b *Bot) Notify(s session.FetchSession) {
	b.mu.Lock()
	chatID := b.pendingChat
	b.pendingChat = 0
	b.mu.Unlock()

	if chatID == 0 {
		return
	}

	v := session.BuildView(s, session.ModeNormal, b.limit)
	text := render.Text(v, true)

	if b.writer != nil && s.HasData() {
		sheetName := s.StartedAt.Format("2006-01-02 15.04.05")
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		_, sheetID, err := b.writer.CreateSheetAndWriteView(ctx, sheetName, v, "telegram")
		cancel()
		if err != nil {
			b.log.Warnf("Failed to write to Google Sheets: %v", err)
		} else {
			text += "\n📊 " + b.writer.SheetURL(sheetID)
		}
	}

	b.sendText(chatID, text, v.CanToggle())
}

func (b *Bot) sendView(chatID int64) {
	orch := b.orchestrator()
	if orch == nil {
		return
	}
	_, ok := orch.Snapshot()
	v := orch.View()
	b.sendText(chatID, render.Text(v, ok), v.CanToggle())
}

// sendText splits text into message-sized parts; the keyboard goes on the last part
func (b *Bot) sendText(chatID int64, text string, canToggle bool) {
	parts := splitMessage(text, maxMessageLen)
	for i, part := range parts {
		msg := tgbotapi.NewMessage(chatID, part)
		if i == len(parts)-1 {
			msg.ReplyMarkup = BuildKeyboard(canToggle)
		}
		b.send(msg)
	}
}

func (b *Bot) sendKeyboard(chatID int64, text string) {
	canToggle := false
	if orch := b.orchestrator(); orch != nil {
		canToggle = orch.View().CanToggle()
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = BuildKeyboard(canToggle)
	b.send(msg)
}

func (b *Bot) orchestrator() Orchestrator {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.orch
}

func (b *Bot) isAllowed(userID int64) bool {
	return len(b.allowed) == 0 || b.allowed[userID]
}

func (b *Bot) send(c tgbotapi.Chattable) {
	if _, err := b.api.Send(c); err != nil {
		b.log.Warnf("Error sending message: %v", err)
	}
}

func (b *Bot) request(c tgbotapi.Chattable) {
	if _, err := b.api.Request(c); err != nil {
		b.log.Warnf("Error answering callback: %v", err)
	}
}

// BuildKeyboard returns the fetch buttons, plus the toggle button when the view can switch modes
func BuildKeyboard(canToggle bool) tgbotapi.InlineKeyboardMarkup {
	rows := [][]tgbotapi.InlineKeyboardButton{
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📊 Both pages", ActionFetchBoth),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("1️⃣ First page", ActionFetchFirst),
			tgbotapi.NewInlineKeyboardButtonData("2️⃣ Second page", ActionFetchSecond),
		),
	}
	if canToggle {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🔁 Toggle view", ActionToggle),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// ParseFetchAction maps callback data to the pages to fetch
func ParseFetchAction(data string) (wantFirst, wantSecond bool, err error) {
	switch data {
	case ActionFetchBoth:
		return true, true, nil
	case ActionFetchFirst:
		return true, false, nil
	case ActionFetchSecond:
		return false, true, nil
	default:
		return false, false, fmt.Errorf("unknown action %q", data)
	}
}

// splitMessage splits a message into chunks of at most maxLen bytes, on line boundaries where possible
func splitMessage(text string, maxLen int) []string {
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	var current strings.Builder

	for _, line := range strings.Split(text, "\n") {
		if current.Len()+len(line)+1 > maxLen {
			if current.Len() > 0 {
				parts = append(parts, current.String())
				current.Reset()
			}
			// A single line that is too long is cut
			if len(line) >= maxLen {
				for len(line) >= maxLen {
					parts = append(parts, line[:maxLen])
					line = line[maxLen:]
				}
				if line == "" {
					continue
				}
			}
		}
		current.WriteString(line)
		current.WriteString("\n")
	}

	if current.Len() > 0 {
		parts = append(parts, current.String())
	}

	return parts
}
