// Package narrative turns a scored report into a short plain-language summary,
// either templated or written by an OpenAI chat model.
package narrative

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/lox/kitecast/internal/advisory"
	"github.com/lox/kitecast/internal/models"
	"github.com/lox/kitecast/internal/scoring"
)

const DefaultModel = string(openai.ChatModelGPT4oMini)

const systemPrompt = "You write two or three sentence kitesurfing outlooks for a lake spot. " +
	"Use only the scores and factors given. Be direct, mention the best day and the main reason. " +
	"Do not invent wind numbers."

// Writer produces free text for a prompt.
type Writer interface {
	Write(ctx context.Context, system, prompt string) (string, error)
}

// OpenAIWriter is a Writer backed by the chat completions API.
type OpenAIWriter struct {
	client openai.Client
	model  string
}

func NewOpenAIWriter(apiKey, model string) (*OpenAIWriter, error) {
	if apiKey == "" {
		return nil, errors.New("openai api key not set")
	}
	if model == "" {
		model = DefaultModel
	}
	return &OpenAIWriter{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}, nil
}

func (w *OpenAIWriter) Write(ctx context.Context, system, prompt string) (string, error) {
	resp, err := w.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(w.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(200),
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("no completion returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", errors.New("empty completion returned")
	}
	return text, nil
}

// DayLabel names a day relative to today.
func DayLabel(offset int, date time.Time) string {
	switch offset {
	case 0:
		return "Today"
	case 1:
		return "Tomorrow"
	default:
		return date.Format("Monday")
	}
}

func humanName(factor string) string {
	return strings.ReplaceAll(factor, "_", " ")
}

// Summary is the templated narrative used when no Writer is configured or
// the Writer fails.
func Summary(report *advisory.Report) string {
	if report == nil || len(report.Days) == 0 {
		return ""
	}
	var parts []string
	for i, d := range report.Days {
		s := fmt.Sprintf("%s: %s (%d/%d).", DayLabel(d.Offset, d.Date), d.Tier.Label, d.Total, report.MaxTotal)
		if i == 0 {
			if up, down := drivers(d); up != "" || down != "" {
				if up != "" {
					s += " Helped by " + up + "."
				}
				if down != "" {
					s += " Held back by " + down + "."
				}
			}
		}
		parts = append(parts, s)
	}
	if report.Foehn.Valid && report.Foehn.Score != 0 {
		parts = append(parts, fmt.Sprintf("Foehn: %s.", report.Foehn.Label()))
	}
	return strings.Join(parts, " ")
}

// drivers lists the scored factors that added and removed points, largest
// contribution first.
func drivers(d models.DayScore) (up, down string) {
	scored := make([]models.FactorResult, 0, len(d.Factors))
	for _, f := range d.Factors {
		if f.Status == models.FactorScored && f.Points != 0 {
			scored = append(scored, f)
		}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		return abs(scored[i].Points) > abs(scored[j].Points)
	})

	var plus, minus []string
	for _, f := range scored {
		item := fmt.Sprintf("%s (%s)", humanName(f.Name), f.Label)
		if f.Points > 0 && len(plus) < 2 {
			plus = append(plus, item)
		}
		if f.Points < 0 && len(minus) < 2 {
			minus = append(minus, item)
		}
	}
	return strings.Join(plus, " and "), strings.Join(minus, " and ")
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Prompt describes the report for the Writer.
func Prompt(p scoring.Policy, report *advisory.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Spot: %s. Policy %s, best possible score %d.\n", report.Site, report.Policy, report.MaxTotal)
	for _, d := range report.Days {
		fmt.Fprintf(&b, "%s (%s): %d points, %s.\n", DayLabel(d.Offset, d.Date), d.Date.Format("2006-01-02"), d.Total, d.Tier.Label)
		for _, f := range d.Factors {
			if f.Status != models.FactorScored {
				continue
			}
			fmt.Fprintf(&b, "  %s %s: %s, %+d\n", humanName(f.Name), scoring.FormatValue(p, f), f.Label, f.Points)
		}
	}
	if report.Foehn.Valid {
		fmt.Fprintf(&b, "Foehn now: %s (from %s).\n", report.Foehn.Label(), report.Foehn.Source)
	}
	return b.String()
}

type entry struct {
	text      string
	expiresAt time.Time
}

// Narrator caches one narrative per report fingerprint.
type Narrator struct {
	writer  Writer
	policy  scoring.Policy
	ttl     time.Duration
	timeout time.Duration
	clock   clockwork.Clock
	logger  *slog.Logger

	mu    sync.Mutex
	cache map[string]entry
}

// NewNarrator returns a Narrator. writer may be nil, in which case only the
// templated summary is used.
func NewNarrator(writer Writer, p scoring.Policy, ttl time.Duration, clock clockwork.Clock, logger *slog.Logger) *Narrator {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Narrator{
		writer:  writer,
		policy:  p,
		ttl:     ttl,
		timeout: 15 * time.Second,
		clock:   clock,
		logger:  logger.With("component", "narrative"),
		cache:   make(map[string]entry),
	}
}

// Narrate returns the narrative for report. It never fails.
func (n *Narrator) Narrate(ctx context.Context, report *advisory.Report) string {
	if n.writer == nil || report == nil || len(report.Days) == 0 {
		return Summary(report)
	}

	key := report.Fingerprint()
	now := n.clock.Now()

	n.mu.Lock()
	e, ok := n.cache[key]
	n.mu.Unlock()
	if ok && now.Before(e.expiresAt) {
		return e.text
	}

	wctx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	text, err := n.writer.Write(wctx, systemPrompt, Prompt(n.policy, report))
	if err != nil {
		n.logger.Warn("narrative generation failed, using summary", "error", err)
		return Summary(report)
	}

	n.mu.Lock()
	for k, old := range n.cache {
		if now.After(old.expiresAt) {
			delete(n.cache, k)
		}
	}
	n.cache[key] = entry{text: text, expiresAt: now.Add(n.ttl)}
	n.mu.Unlock()
	return text
}
