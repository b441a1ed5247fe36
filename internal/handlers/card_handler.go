package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/mymmrac/telego"

	"newscard/internal/bot"
	"newscard/internal/card"
	"newscard/internal/files"
	"newscard/internal/image"
	"newscard/internal/services"
	"newscard/internal/storage"
)

const (
	cmdStart  = "/start"
	cmdCancel = "/cancel"
	skip      = "-"

	msgBusy = "😵‍💫 Slow down, I'm already rendering it!"
)

type ChannelStore interface {
	Channels() []card.Channel
}

// CardHandler runs the Telegram dialogue: pick a channel, answer one prompt
// per form field, pick a quality, receive the card.
type CardHandler struct {
	cards       *services.CardService
	channels    ChannelStore
	bot         bot.Bot
	fileManager files.FileManager
	stateStore  *storage.RenderStateStore
	tempDir     string
	logger      *log.Logger
}

func NewCardHandler(
	cards *services.CardService,
	channels ChannelStore,
	bot bot.Bot,
	fileManager files.FileManager,
	stateStore *storage.RenderStateStore,
	tempDir string,
	logger *log.Logger,
) *CardHandler {
	if logger == nil {
		logger = log.Default()
	}
	return &CardHandler{
		cards:       cards,
		channels:    channels,
		bot:         bot,
		fileManager: fileManager,
		stateStore:  stateStore,
		tempDir:     tempDir,
		logger:      logger,
	}
}

func (h *CardHandler) HandleUpdate(ctx context.Context, update telego.Update) {
	if update.Message == nil {
		return
	}
	msg := update.Message
	chatID := msg.Chat.ID

	// Albums arrive as concurrent updates; each one must see the step the
	// previous one stored.
	unlock := h.stateStore.Lock(chatID)
	defer unlock()

	switch strings.TrimSpace(msg.Text) {
	case cmdStart:
		h.stateStore.Reset(chatID)
		_ = h.showChannels(ctx, chatID)
		return
	case cmdCancel:
		h.stateStore.Reset(chatID)
		_ = h.bot.SendText(ctx, chatID, "🛑 Cancelled. Send /start to make a new card.")
		return
	}

	if h.stateStore.IsProcessing(chatID) {
		_ = h.bot.SendText(ctx, chatID, msgBusy)
		return
	}

	sess, ok := h.stateStore.Session(chatID)
	if !ok {
		h.pickChannel(ctx, msg)
		return
	}

	tpl, form, err := h.cards.TemplateForm(sess.TemplateID)
	if err != nil {
		h.stateStore.Reset(chatID)
		_ = h.fail(chatID, "template lookup failed", "🚧 This template is gone. Send /start to begin again.", err)
		return
	}

	if sess.Step < len(form.Fields) {
		h.answerField(ctx, msg, sess, form)
		return
	}
	h.pickQuality(ctx, msg, sess, tpl, unlock)
}

func (h *CardHandler) showChannels(ctx context.Context, chatID int64) error {
	channels := h.channels.Channels()
	if len(channels) == 0 {
		return h.bot.SendText(ctx, chatID, "📭 No channels are set up yet.")
	}
	rows := make([][]string, 0, len(channels))
	for _, ch := range channels {
		rows = append(rows, []string{ch.Name})
	}
	return h.bot.SendKeyboard(ctx, chatID, "📰 Pick a channel:", rows)
}

func (h *CardHandler) pickChannel(ctx context.Context, msg *telego.Message) {
	chatID := msg.Chat.ID
	ch, ok := findChannel(h.channels.Channels(), msg.Text)
	if !ok {
		_ = h.showChannels(ctx, chatID)
		return
	}

	tpl, err := h.cards.ChannelTemplate(ch.ID)
	if err != nil {
		_ = h.fail(chatID, "channel template lookup failed", "📭 No templates for this channel yet.", err)
		return
	}
	sess := storage.Session{ChannelID: ch.ID, TemplateID: tpl.ID}
	h.stateStore.SetSession(chatID, sess)

	_, form, err := h.cards.TemplateForm(tpl.ID)
	if err != nil {
		_ = h.fail(chatID, "form lookup failed", "🚧 Error while preparing the form.", err)
		return
	}
	_ = h.bot.SendText(ctx, chatID, fmt.Sprintf("✅ %s: «%s». Send %s to skip a field.", ch.Name, tpl.Name, skip))
	_ = h.prompt(ctx, chatID, sess, form)
}

func (h *CardHandler) answerField(ctx context.Context, msg *telego.Message, sess storage.Session, form *services.Form) {
	chatID := msg.Chat.ID
	field := form.Fields[sess.Step]
	text := strings.TrimSpace(getText(msg))

	switch {
	case text == skip && !hasPhoto(msg):
	case field.Kind == card.KindText:
		if msg.Text == "" {
			_ = h.bot.SendText(ctx, chatID, fmt.Sprintf("❌ Please, send text for %s.", field.Label))
			return
		}
		sess.SetAnswer(field.Key, msg.Text)
	case field.Kind == card.KindImage:
		if !hasPhoto(msg) {
			_ = h.bot.SendText(ctx, chatID, fmt.Sprintf("❌ Please, send a photo or document for %s.", field.Label))
			return
		}
		fileID, _ := extractFileID(msg)
		data, err := h.fileManager.Download(ctx, fileID)
		if err != nil {
			_ = h.fail(chatID, "download failed", "🚧 Error downloading image, try again.", err)
			return
		}
		sess.SetUpload(field.Key, data)
	case field.Kind.Selectable():
		asset, ok := findAsset(field.Options, text)
		if !ok {
			_ = h.bot.SendKeyboard(ctx, chatID, fmt.Sprintf("❌ Pick one of the %s options.", field.Label), assetRows(field.Options))
			return
		}
		sess.SetAnswer(field.Key, asset.ID)
	}

	sess.Step++
	h.stateStore.SetSession(chatID, sess)
	_ = h.prompt(ctx, chatID, sess, form)
}

// prompt asks for the field at sess.Step, or for the quality once every
// field is answered.
func (h *CardHandler) prompt(ctx context.Context, chatID int64, sess storage.Session, form *services.Form) error {
	if sess.Step >= len(form.Fields) {
		return h.bot.SendKeyboard(ctx, chatID, "🎚️ Pick a quality:", [][]string{qualityLabels(services.PlanFree)})
	}
	field := form.Fields[sess.Step]
	switch {
	case field.Kind == card.KindImage:
		return h.bot.SendText(ctx, chatID, fmt.Sprintf("🖼️ Send a photo for %s:", field.Label))
	case field.Kind.Selectable():
		if len(field.Options) == 0 {
			return h.bot.SendText(ctx, chatID, fmt.Sprintf("📂 No options for %s, send %s.", field.Label, skip))
		}
		return h.bot.SendKeyboard(ctx, chatID, fmt.Sprintf("📂 Pick %s:", field.Label), assetRows(field.Options))
	}
	return h.bot.SendText(ctx, chatID, fmt.Sprintf("✏️ Write %s:", field.Label))
}

// pickQuality renders once a valid quality is chosen. The chat is unlocked
// for the render so that messages meanwhile get the busy reply.
func (h *CardHandler) pickQuality(ctx context.Context, msg *telego.Message, sess storage.Session, tpl *card.Template, unlock func()) {
	chatID := msg.Chat.ID
	q, err := services.ParseQuality(msg.Text)
	if err != nil || !services.PlanFree.Allows(q) {
		_ = h.bot.SendKeyboard(ctx, chatID, "❌ Pick one of the offered qualities.", [][]string{qualityLabels(services.PlanFree)})
		return
	}

	_ = h.withProcessing(ctx, chatID, unlock, func() error {
		return h.renderCard(ctx, chatID, sess, tpl, q)
	})
}

func (h *CardHandler) renderCard(ctx context.Context, chatID int64, sess storage.Session, tpl *card.Template, q services.Quality) error {
	_ = h.bot.SendText(ctx, chatID, "⏳ Rendering...")
	_ = h.bot.SendChatAction(ctx, chatID, "upload_photo")

	res, err := h.cards.Render(ctx, services.RenderRequest{
		TemplateID: tpl.ID,
		ChannelID:  sess.ChannelID,
		FormData:   formData(sess),
		Quality:    q,
		Plan:       services.PlanFree,
	})
	if err != nil {
		return h.fail(chatID, "render failed", "🚧 Error while rendering.", err)
	}

	path, cleanup, err := files.SaveTemp(h.tempDir, res.FileName, res.PNG)
	if err != nil {
		return h.fail(chatID, "save failed", "🚧 Error while saving the card.", err)
	}
	defer cleanup()

	if err := h.bot.SendFileAuto(ctx, chatID, path); err != nil {
		return h.fail(chatID, "send error", "🚧 Error sending the card.", err)
	}
	h.stateStore.Reset(chatID)
	return h.bot.SendText(ctx, chatID, "✅ Card rendered! Send /start for another one.")
}

func (h *CardHandler) withProcessing(ctx context.Context, chatID int64, unlock func(), fn func() error) error {
	if !h.stateStore.TryStart(chatID) {
		_ = h.bot.SendText(ctx, chatID, msgBusy)
		return fmt.Errorf("already processing")
	}
	defer h.stateStore.Finish(chatID)
	unlock()
	return fn()
}

func (h *CardHandler) fail(chatID int64, logMsg, userMsg string, err error) error {
	h.logger.Printf("%s: %v", logMsg, err)
	_ = h.bot.SendText(context.Background(), chatID, userMsg)
	return err
}

func formData(sess storage.Session) image.FormData {
	form := make(image.FormData, len(sess.Answers)+len(sess.Uploads))
	for k, v := range sess.Answers {
		form[k] = image.Text(v)
	}
	for k, v := range sess.Uploads {
		form[k] = image.Upload(v)
	}
	return form
}

func findChannel(channels []card.Channel, name string) (card.Channel, bool) {
	name = strings.TrimSpace(name)
	for _, ch := range channels {
		if strings.EqualFold(ch.Name, name) || ch.Slug == name {
			return ch, true
		}
	}
	return card.Channel{}, false
}

func findAsset(assets []card.Asset, name string) (card.Asset, bool) {
	for _, a := range assets {
		if strings.EqualFold(a.Name, name) {
			return a, true
		}
	}
	return card.Asset{}, false
}

func assetRows(assets []card.Asset) [][]string {
	rows := make([][]string, 0, len(assets)+1)
	for _, a := range assets {
		rows = append(rows, []string{a.Name})
	}
	return append(rows, []string{skip})
}

func qualityLabels(plan services.Plan) []string {
	var labels []string
	for _, q := range services.Qualities {
		if plan.Allows(q) {
			labels = append(labels, string(q))
		}
	}
	return labels
}

func extractFileID(msg *telego.Message) (string, error) {
	if len(msg.Photo) > 0 {
		return msg.Photo[len(msg.Photo)-1].FileID, nil
	}
	if msg.Document != nil {
		return msg.Document.FileID, nil
	}
	return "", fmt.Errorf("no file")
}

func hasPhoto(msg *telego.Message) bool {
	return len(msg.Photo) > 0 || msg.Document != nil
}

func getText(msg *telego.Message) string {
	if msg.Caption != "" {
		return msg.Caption
	}
	return msg.Text
}
