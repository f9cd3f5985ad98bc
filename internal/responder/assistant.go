package responder

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sashabaranov/go-openai"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/andrrrrey/avito-crm/internal/domain"
	"github.com/andrrrrey/avito-crm/internal/normalize"
	"github.com/andrrrrey/avito-crm/internal/repo"
)

const (
	DefaultOpenAIBaseURL = "https://api.openai.com/v1"
	historySeed          = 20
	threadKey            = "openaiThreadId"
)

// Assistant answers through the OpenAI Assistants v2 API with one thread per
// chat. Settings are read from the ai_assistant row on every call so edits
// take effect without a restart.
type Assistant struct {
	DB           *gorm.DB
	BaseURL      string
	HTTP         *http.Client
	PollInterval time.Duration
	RunTimeout   time.Duration
}

// NewAssistant returns an Assistant with default transport settings.
func NewAssistant(db *gorm.DB, baseURL string) *Assistant {
	if strings.TrimSpace(baseURL) == "" {
		baseURL = DefaultOpenAIBaseURL
	}
	return &Assistant{
		DB:           db,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		HTTP:         &http.Client{Timeout: 30 * time.Second},
		PollInterval: time.Second,
		RunTimeout:   2 * time.Minute,
	}
}

// Reply runs the assistant on text. Disabled or incomplete settings, a
// missing chat, or a run that ends in any state but completed yield "".
func (a *Assistant) Reply(ctx context.Context, chatID, text string) (string, error) {
	ctx, span := otel.Tracer("responder/Assistant").Start(ctx, "Reply",
		trace.WithAttributes(attribute.String("chat.id", chatID)),
	)
	defer span.End()

	s, err := repo.GetAiSettings(ctx, a.DB)
	if err != nil {
		return "", err
	}
	apiKey, assistantID := value(s.APIKey), value(s.AssistantID)
	if !s.Enabled || apiKey == "" || assistantID == "" {
		log.Debug().Str("chat_id", chatID).Bool("enabled", s.Enabled).Msg("assistant skipped: disabled or not configured")
		return "", nil
	}

	chat, err := repo.GetChat(ctx, a.DB, chatID)
	if errors.Is(err, repo.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}

	api := a.client(apiKey)

	threadID := domain.DecodeRaw(chat.Raw).String(threadKey)
	if threadID == "" {
		threadID, err = a.newThread(ctx, api, chat, s, text)
		if err != nil {
			return "", err
		}
	}
	span.SetAttributes(attribute.String("openai.thread_id", threadID))

	if err := addMessage(ctx, api, threadID, openai.ChatMessageRoleUser, text); err != nil {
		return "", err
	}

	run := openai.RunRequest{
		AssistantID:            assistantID,
		Model:                  value(s.Model),
		AdditionalInstructions: additionalInstructions(chat, s),
	}
	if value(s.VectorStoreID) != "" {
		run.Tools = []openai.Tool{{Type: openai.ToolType("file_search")}}
	}

	status, err := a.runAndPoll(ctx, api, threadID, run)
	if err != nil {
		return "", err
	}
	if status != openai.RunStatusCompleted {
		log.Warn().Str("chat_id", chatID).Str("status", string(status)).Msg("assistant run did not complete")
		return "", nil
	}

	reply, err := lastAssistantText(ctx, api, threadID)
	if err != nil {
		return "", err
	}
	return normalize.StripAnnotations(reply), nil
}

func (a *Assistant) client(apiKey string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = a.BaseURL
	if a.HTTP != nil {
		cfg.HTTPClient = a.HTTP
	}
	return openai.NewClientWithConfig(cfg)
}

// newThread creates a thread, remembers it on the chat, and seeds it with
// recent history so the assistant sees earlier context.
func (a *Assistant) newThread(ctx context.Context, api *openai.Client, chat *domain.Chat, s *domain.AiAssistant, incoming string) (string, error) {
	var req openai.ThreadRequest
	if vs := value(s.VectorStoreID); vs != "" {
		req.ToolResources = &openai.ToolResourcesRequest{
			FileSearch: &openai.FileSearchToolResourcesRequest{VectorStoreIDs: []string{vs}},
		}
	}
	th, err := api.CreateThread(ctx, req)
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	if th.ID == "" {
		return "", errors.New("create thread: empty id")
	}

	if _, err := repo.UpdateChatRaw(ctx, a.DB, chat.ID, func(b domain.RawBag) {
		b[threadKey] = th.ID
	}); err != nil {
		return "", fmt.Errorf("store thread id: %w", err)
	}

	history, err := repo.ListMessagesTail(ctx, a.DB, chat.ID, historySeed)
	if err != nil {
		log.Warn().Err(err).Str("chat_id", chat.ID).Msg("assistant: load history")
		return th.ID, nil
	}
	for i, m := range history {
		t := strings.TrimSpace(m.Text)
		if t == "" {
			continue
		}
		// the current message is posted separately
		if i == len(history)-1 && m.Direction == domain.DirectionIn && t == strings.TrimSpace(incoming) {
			continue
		}
		role := openai.ChatMessageRoleAssistant
		if m.Direction == domain.DirectionIn {
			role = openai.ChatMessageRoleUser
		}
		if err := addMessage(ctx, api, th.ID, role, m.Text); err != nil {
			log.Warn().Err(err).Str("chat_id", chat.ID).Msg("assistant: seed history")
			break
		}
	}
	return th.ID, nil
}

var terminalRunStates = map[openai.RunStatus]bool{
	openai.RunStatusCompleted:      true,
	openai.RunStatusFailed:         true,
	openai.RunStatusCancelled:      true,
	openai.RunStatusExpired:        true,
	openai.RunStatus("incomplete"): true,
	openai.RunStatusRequiresAction: true,
}

func (a *Assistant) runAndPoll(ctx context.Context, api *openai.Client, threadID string, req openai.RunRequest) (openai.RunStatus, error) {
	run, err := api.CreateRun(ctx, threadID, req)
	if err != nil {
		return "", fmt.Errorf("create run: %w", err)
	}

	timeout := a.RunTimeout
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	interval := a.PollInterval
	if interval <= 0 {
		interval = time.Second
	}
	for !terminalRunStates[run.Status] {
		select {
		case <-pctx.Done():
			return "", fmt.Errorf("poll run %s: %w", run.ID, pctx.Err())
		case <-time.After(interval):
		}
		if run, err = api.RetrieveRun(pctx, threadID, run.ID); err != nil {
			return "", fmt.Errorf("poll run: %w", err)
		}
	}
	return run.Status, nil
}

func addMessage(ctx context.Context, api *openai.Client, threadID, role, content string) error {
	_, err := api.CreateMessage(ctx, threadID, openai.MessageRequest{Role: role, Content: content})
	if err != nil {
		return fmt.Errorf("add message: %w", err)
	}
	return nil
}

// lastAssistantText returns the newest message's text when the assistant
// wrote it.
func lastAssistantText(ctx context.Context, api *openai.Client, threadID string) (string, error) {
	limit, order := 1, "desc"
	list, err := api.ListMessage(ctx, threadID, &limit, &order, nil, nil, nil)
	if err != nil {
		return "", fmt.Errorf("list messages: %w", err)
	}
	if len(list.Messages) == 0 || list.Messages[0].Role != openai.ChatMessageRoleAssistant {
		return "", nil
	}
	for _, c := range list.Messages[0].Content {
		if c.Type == "text" && c.Text != nil {
			return c.Text.Value, nil
		}
	}
	return "", nil
}
