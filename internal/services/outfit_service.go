package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"catalog-sync-service/internal/clients/openai"
	"catalog-sync-service/internal/models"
)

const (
	candidatePoolSize = 40
	outfitTemperature = 0.7
)

// ErrAssistantDisabled is returned when outfit generation is requested
// without a completion API key configured
var ErrAssistantDisabled = errors.New("outfit assistant disabled: no API key configured")

// ErrNoCandidates is returned when no in-stock products are available
// to build an outfit from
var ErrNoCandidates = errors.New("no in-stock products available for outfit generation")

// CompletionClient runs chat completions
type CompletionClient interface {
	Complete(ctx context.Context, model string, messages []openai.Message, temperature float64) (string, error)
	Configured() bool
}

// OutfitStore persists generated outfits
type OutfitStore interface {
	SaveOutfit(ctx context.Context, outfit *models.OutfitCache) error
	LatestOutfit(ctx context.Context, userID string) (*models.OutfitCache, error)
}

// CandidateStore supplies products for prompt assembly
type CandidateStore interface {
	Candidates(ctx context.Context, gender string, limit int) ([]models.Product, error)
	GetByProductIDs(ctx context.Context, productIDs []string) ([]models.Product, error)
}

// StyleProfile describes what the user wants an outfit for
type StyleProfile struct {
	UserID   string   `json:"userId" binding:"required"`
	Gender   string   `json:"gender,omitempty"`
	Occasion string   `json:"occasion,omitempty"`
	Season   string   `json:"season,omitempty"`
	Budget   *float64 `json:"budget,omitempty"`
	Styles   []string `json:"styles,omitempty"`
	Colors   []string `json:"colors,omitempty"`
}

// OutfitItem is one product in a generated outfit
type OutfitItem struct {
	Product models.Product `json:"product"`
	Reason  string         `json:"reason,omitempty"`
}

// Outfit is a generated outfit recommendation
type Outfit struct {
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Items       []OutfitItem `json:"items"`
	Model       string       `json:"model,omitempty"`
	// Cached is true when the result came from a previous generation
	Cached bool `json:"cached"`
}

// OutfitService generates outfit recommendations from the catalog
type OutfitService struct {
	client        CompletionClient
	products      CandidateStore
	store         OutfitStore
	primaryModel  string
	fallbackModel string
}

// NewOutfitService creates a new outfit service
func NewOutfitService(client CompletionClient, products CandidateStore, store OutfitStore, primaryModel, fallbackModel string) *OutfitService {
	return &OutfitService{
		client:        client,
		products:      products,
		store:         store,
		primaryModel:  primaryModel,
		fallbackModel: fallbackModel,
	}
}

// Generate builds an outfit for the given profile. When both completion
// models fail, the user's most recent cached outfit is returned instead.
func (s *OutfitService) Generate(ctx context.Context, profile StyleProfile) (*Outfit, error) {
	if s.client == nil || !s.client.Configured() {
		return nil, ErrAssistantDisabled
	}

	candidates, err := s.products.Candidates(ctx, strings.ToLower(profile.Gender), candidatePoolSize)
	if err != nil {
		return nil, fmt.Errorf("loading outfit candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoCandidates
	}

	messages := buildOutfitPrompt(profile, candidates)

	content, model, err := s.complete(ctx, messages)
	if err != nil {
		logrus.WithError(err).Warn("Outfit generation failed, trying cached outfit")
		return s.cachedOutfit(ctx, profile.UserID, err)
	}

	outfit, err := s.parseOutfit(ctx, content, candidates)
	if err != nil {
		logrus.WithError(err).Warn("Outfit response unparseable, trying cached outfit")
		return s.cachedOutfit(ctx, profile.UserID, err)
	}
	outfit.Model = model

	s.cacheOutfit(ctx, profile, outfit)
	return outfit, nil
}

func (s *OutfitService) complete(ctx context.Context, messages []openai.Message) (string, string, error) {
	content, err := s.client.Complete(ctx, s.primaryModel, messages, outfitTemperature)
	if err == nil {
		return content, s.primaryModel, nil
	}

	if s.fallbackModel != "" && s.fallbackModel != s.primaryModel {
		logrus.WithError(err).WithField("model", s.primaryModel).
			Warn("Primary completion model failed, trying fallback")
		content, fallbackErr := s.client.Complete(ctx, s.fallbackModel, messages, outfitTemperature)
		if fallbackErr == nil {
			return content, s.fallbackModel, nil
		}
		return "", "", fmt.Errorf("completion failed on both models: %w", fallbackErr)
	}
	return "", "", err
}

// outfitResponse is the JSON shape the model is instructed to return
type outfitResponse struct {
	Name        string `json:"outfit_name"`
	Description string `json:"description"`
	Items       []struct {
		ProductID string `json:"product_id"`
		Reason    string `json:"reason"`
	} `json:"items"`
}

func (s *OutfitService) parseOutfit(ctx context.Context, content string, candidates []models.Product) (*Outfit, error) {
	var parsed outfitResponse
	if err := json.Unmarshal([]byte(stripCodeFence(content)), &parsed); err != nil {
		return nil, fmt.Errorf("decoding outfit response: %w", err)
	}
	if len(parsed.Items) == 0 {
		return nil, errors.New("outfit response contained no items")
	}

	// Only accept product IDs that were actually offered
	offered := make(map[string]models.Product, len(candidates))
	for _, p := range candidates {
		offered[p.ProductID] = p
	}

	outfit := &Outfit{Name: parsed.Name, Description: parsed.Description}
	for _, item := range parsed.Items {
		product, ok := offered[item.ProductID]
		if !ok {
			logrus.WithField("productId", item.ProductID).Warn("Outfit referenced unknown product, skipping")
			continue
		}
		outfit.Items = append(outfit.Items, OutfitItem{Product: product, Reason: item.Reason})
	}
	if len(outfit.Items) == 0 {
		return nil, errors.New("outfit response referenced no known products")
	}
	return outfit, nil
}

func (s *OutfitService) cacheOutfit(ctx context.Context, profile StyleProfile, outfit *Outfit) {
	profileJSON := toJSONB(profile)
	resultJSON := toJSONB(outfit)
	entry := &models.OutfitCache{
		ID:      uuid.New(),
		UserID:  profile.UserID,
		Profile: profileJSON,
		Result:  resultJSON,
		Model:   outfit.Model,
	}
	if err := s.store.SaveOutfit(ctx, entry); err != nil {
		logrus.WithError(err).Warn("Failed to cache outfit")
	}
}

func (s *OutfitService) cachedOutfit(ctx context.Context, userID string, cause error) (*Outfit, error) {
	entry, err := s.store.LatestOutfit(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("outfit generation failed with no cached fallback: %w", cause)
	}

	data, err := json.Marshal(entry.Result)
	if err != nil {
		return nil, fmt.Errorf("outfit generation failed with no cached fallback: %w", cause)
	}
	var outfit Outfit
	if err := json.Unmarshal(data, &outfit); err != nil {
		return nil, fmt.Errorf("outfit generation failed with no cached fallback: %w", cause)
	}
	outfit.Cached = true
	return &outfit, nil
}

// buildOutfitPrompt assembles the stylist prompt with the candidate
// products the model may pick from
func buildOutfitPrompt(profile StyleProfile, candidates []models.Product) []openai.Message {
	var catalog strings.Builder
	for _, p := range candidates {
		price := ""
		if p.Price != nil {
			price = fmt.Sprintf(" %.2f %s", *p.Price, p.Currency)
		}
		fmt.Fprintf(&catalog, "- id=%s | %s | %s | %s | %s%s\n",
			p.ProductID, p.Name, p.Category, p.Color, p.Brand, price)
	}

	var wants []string
	if profile.Occasion != "" {
		wants = append(wants, "occasion: "+profile.Occasion)
	}
	if profile.Season != "" {
		wants = append(wants, "season: "+profile.Season)
	}
	if profile.Budget != nil {
		wants = append(wants, fmt.Sprintf("total budget: %.2f", *profile.Budget))
	}
	if len(profile.Styles) > 0 {
		wants = append(wants, "preferred styles: "+strings.Join(profile.Styles, ", "))
	}
	if len(profile.Colors) > 0 {
		wants = append(wants, "preferred colors: "+strings.Join(profile.Colors, ", "))
	}
	if len(wants) == 0 {
		wants = append(wants, "no specific preferences")
	}

	return []openai.Message{
		{
			Role: "system",
			Content: "You are a personal fashion stylist. Compose one complete outfit " +
				"using only products from the provided catalog. Respond with JSON only, in the shape: " +
				`{"outfit_name": "...", "description": "...", "items": [{"product_id": "...", "reason": "..."}]}`,
		},
		{
			Role: "user",
			Content: fmt.Sprintf("Build an outfit for these preferences:\n%s\n\nCatalog:\n%s",
				strings.Join(wants, "\n"), catalog.String()),
		},
	}
}

// stripCodeFence removes a surrounding markdown code fence if present
func stripCodeFence(content string) string {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "```") {
		return content
	}
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	return strings.TrimSpace(content)
}

func toJSONB(v interface{}) models.JSONB {
	data, err := json.Marshal(v)
	if err != nil {
		return models.JSONB{}
	}
	var out models.JSONB
	if err := json.Unmarshal(data, &out); err != nil {
		return models.JSONB{}
	}
	return out
}
