package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ivanychev/otodom-monitoring/internal/constants"
	"github.com/ivanychev/otodom-monitoring/internal/core/domain"
	"github.com/ivanychev/otodom-monitoring/internal/core/port"
)

const apiBaseURL = "https://api.telegram.org"

// TelegramNotifier реализует NotifierPort поверх Telegram Bot API.
// Транспорт — обычный net/http: sendMessage/sendPhoto как JSON,
// sendDocument как multipart (диагностика уезжает файлом).
type TelegramNotifier struct {
	botToken   string
	channelID  int64
	httpClient *http.Client
	logger     port.LoggerPort
}

// ResolveChannelID принимает численный ID или имя из реестра каналов.
func ResolveChannelID(raw string) (int64, error) {
	if id, ok := constants.CanonicalChannelIDs[raw]; ok {
		return id, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, &domain.ConfigurationError{
			Reason: fmt.Sprintf("telegram channel %q is neither a canonical name nor a numeric id", raw),
		}
	}
	return id, nil
}

func NewTelegramNotifier(botToken string, channelID int64, logger port.LoggerPort) (*TelegramNotifier, error) {
	if botToken == "" {
		return nil, fmt.Errorf("telegram notifier: bot token is required")
	}
	return &TelegramNotifier{
		botToken:   botToken,
		channelID:  channelID,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger.WithFields(port.Fields{"component": "TelegramNotifier"}),
	}, nil
}

func (n *TelegramNotifier) NotifyNew(ctx context.Context, flat domain.Flat, filterName string) error {
	prefix := fmt.Sprintf("Filter: <code>%s</code>\n<b>NEW</b>", html.EscapeString(filterName))
	return n.sendFlatSummary(ctx, flat, prefix)
}

func (n *TelegramNotifier) NotifyUpdated(ctx context.Context, flat domain.Flat, filterName string) error {
	prefix := fmt.Sprintf("Filter: <code>%s</code>\n<b>UPDATED</b>", html.EscapeString(filterName))
	return n.sendFlatSummary(ctx, flat, prefix)
}

func (n *TelegramNotifier) NotifySummary(ctx context.Context, report domain.CycleReport) error {
	text := fmt.Sprintf(
		"Found %d new flats, %d updated flats for filter #%s at %s, total flats: %d",
		report.NewCount, report.UpdatedCount, report.FilterName,
		report.FinishedAt.Format(time.RFC3339), report.TotalInScope,
	)
	return n.SendMessage(ctx, text)
}

// NotifyError — одно сообщение на упавший цикл; если ошибка несёт
// диагностику, она прикладывается документом.
func (n *TelegramNotifier) NotifyError(ctx context.Context, runErr error) error {
	text := fmt.Sprintf(
		"Error occurred to the bot:\n\n<pre>%s</pre>\n\nPlease check the server.",
		html.EscapeString(runErr.Error()),
	)
	if err := n.SendMessage(ctx, text); err != nil {
		return err
	}

	var diagnostic domain.Diagnostic
	if errors.As(runErr, &diagnostic) {
		return n.sendDocument(ctx, diagnostic.DiagnosticFilename(), diagnostic.DiagnosticPayload())
	}
	return nil
}

// NotifyText отправляет служебное сообщение как есть.
func (n *TelegramNotifier) NotifyText(ctx context.Context, text string) error {
	return n.SendMessage(ctx, text)
}

// ComposeFlatReport — HTML-карточка объявления для канала.
func ComposeFlatReport(flat domain.Flat, prefix string) string {
	price := "?"
	if flat.Price != nil {
		price = strconv.FormatInt(*flat.Price, 10)
	}
	report := fmt.Sprintf(
		"<strong>%s</strong>\n\n<strong>Location:</strong> %s\n<strong>Price:</strong> %s\n\n<a href=\"%s\">Link</a>\n",
		html.EscapeString(flat.Title),
		html.EscapeString(flat.SummaryLocation),
		price,
		flat.URL,
	)
	if prefix != "" {
		report = prefix + "\n" + report
	}
	return report
}

func (n *TelegramNotifier) sendFlatSummary(ctx context.Context, flat domain.Flat, prefix string) error {
	if err := n.SendMessage(ctx, ComposeFlatReport(flat, prefix)); err != nil {
		return err
	}
	if flat.PictureURL != "" {
		if err := n.sendPhoto(ctx, flat.PictureURL); err != nil {
			// Картинка — приятный бонус, от неё цикл не должен падать.
			n.logger.Warn("Failed to send a flat photo", port.Fields{
				"url":   flat.PictureURL,
				"error": err.Error(),
			})
		}
	}
	return nil
}

// SendMessage отправляет HTML-сообщение в канал.
func (n *TelegramNotifier) SendMessage(ctx context.Context, text string) error {
	return n.call(ctx, "sendMessage", map[string]interface{}{
		"chat_id":    n.channelID,
		"text":       text,
		"parse_mode": "HTML",
	})
}

func (n *TelegramNotifier) sendPhoto(ctx context.Context, photoURL string) error {
	return n.call(ctx, "sendPhoto", map[string]interface{}{
		"chat_id": n.channelID,
		"photo":   photoURL,
	})
}

func (n *TelegramNotifier) call(ctx context.Context, method string, payload map[string]interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("telegram %s: failed to marshal payload: %w", method, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.methodURL(method), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("telegram %s: failed to build request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")
	return n.do(req, method)
}

// sendDocument загружает диагностический файл как документ.
func (n *TelegramNotifier) sendDocument(ctx context.Context, filename string, payload []byte) error {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	if err := writer.WriteField("chat_id", strconv.FormatInt(n.channelID, 10)); err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	part, err := writer.CreateFormFile("document", filename)
	if err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	if _, err := part.Write(payload); err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("telegram sendDocument: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.methodURL("sendDocument"), &buf)
	if err != nil {
		return fmt.Errorf("telegram sendDocument: failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return n.do(req, "sendDocument")
}

func (n *TelegramNotifier) methodURL(method string) string {
	return fmt.Sprintf("%s/bot%s/%s", apiBaseURL, n.botToken, method)
}

func (n *TelegramNotifier) do(req *http.Request, method string) error {
	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("telegram %s: request failed: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("telegram %s: got status %d: %s", method, resp.StatusCode, strings.TrimSpace(string(respBody)))
	}
	return nil
}
