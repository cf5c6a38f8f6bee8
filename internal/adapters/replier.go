package adapters

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/tOgg1/ren/internal/config"
	"github.com/tOgg1/ren/internal/models"
)

// ErrMissingAPIKey is returned when the Gemini replier has no credentials.
var ErrMissingAPIKey = errors.New("model.api_key (or GEMINI_API_KEY) is required unless model.project and model.location select Vertex AI")

// Replier generates the model's turn given the active conversation.
type Replier interface {
	Reply(ctx context.Context, history []models.StoredMessage, text string) (string, error)
}

// EchoReplier answers without a model. It is deterministic and offline.
type EchoReplier struct{}

// Reply implements Replier.
func (EchoReplier) Reply(_ context.Context, _ []models.StoredMessage, text string) (string, error) {
	return fmt.Sprintf("I hear you. You said %q. Tell me a little more about how that makes you feel.", strings.TrimSpace(text)), nil
}

// GeminiReplier generates replies with the Gemini API or Vertex AI.
type GeminiReplier struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewGeminiReplier creates a replier for cfg. Vertex AI is used when both
// project and location are set; otherwise an API key is required.
func NewGeminiReplier(ctx context.Context, cfg config.ModelConfig) (*GeminiReplier, error) {
	cc := &genai.ClientConfig{}
	if cfg.Project != "" && cfg.Location != "" {
		cc.Project = cfg.Project
		cc.Location = cfg.Location
		cc.Backend = genai.BackendVertexAI
	} else {
		if cfg.APIKey == "" {
			return nil, ErrMissingAPIKey
		}
		cc.APIKey = cfg.APIKey
		cc.Backend = genai.BackendGeminiAPI
	}

	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}

	return &GeminiReplier{client: client, model: cfg.Name, timeout: cfg.Timeout}, nil
}

// Reply sends the whole conversation plus text in one request.
func (g *GeminiReplier) Reply(ctx context.Context, history []models.StoredMessage, text string) (string, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	res, err := g.client.Models.GenerateContent(ctx, g.model, BuildContents(history, text), nil)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	return res.Text(), nil
}

// BuildContents converts stored turns and the new user message into the
// request contents.
func BuildContents(history []models.StoredMessage, text string) []*genai.Content {
	contents := make([]*genai.Content, 0, len(history)+1)
	for _, m := range history {
		var role genai.Role = genai.RoleUser
		if m.Role == models.RoleModel {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(m.Content, role))
	}
	return append(contents, genai.NewContentFromText(text, genai.RoleUser))
}
