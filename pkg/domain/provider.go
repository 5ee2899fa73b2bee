package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

type ProviderType string

const (
	ProviderType_Empty        ProviderType = "empty"
	ProviderType_Slack        ProviderType = "slack"
	ProviderType_Teams        ProviderType = "teams"
	ProviderType_GoogleSheets ProviderType = "google_sheets"
	ProviderType_Discord      ProviderType = "discord"
	ProviderType_GitHub       ProviderType = "github"
)

var ErrProviderNotFound = errors.New("provider not found")

// providerAliases maps the identifier spellings that reach the hub from
// node definitions and older clients onto canonical provider types.
var providerAliases = map[string]ProviderType{
	"slack":           ProviderType_Slack,
	"teams":           ProviderType_Teams,
	"microsoft_teams": ProviderType_Teams,
	"microsoftteams":  ProviderType_Teams,
	"msteams":         ProviderType_Teams,
	"google_sheets":   ProviderType_GoogleSheets,
	"googlesheets":    ProviderType_GoogleSheets,
	"google-sheets":   ProviderType_GoogleSheets,
	"sheets":          ProviderType_GoogleSheets,
	"discord":         ProviderType_Discord,
	"github":          ProviderType_GitHub,
}

// NormalizeProviderType canonicalizes a provider identifier. Comparison is
// case-insensitive and tolerates dash, underscore and camelCase variants.
// Unknown identifiers pass through lowercased so lookups against them fail
// consistently instead of panicking.
func NormalizeProviderType(raw string) ProviderType {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.ReplaceAll(key, "-", "_")

	if provider, ok := providerAliases[key]; ok {
		return provider
	}

	// camelCase arrives without separators once lowercased, so a second
	// lookup with separators stripped catches spellings like googleSheets.
	collapsed := strings.ReplaceAll(key, "_", "")
	if provider, ok := providerAliases[collapsed]; ok {
		return provider
	}

	return ProviderType(key)
}

// ConnectionOption is one entry of a provider data pick-list, e.g. a
// spreadsheet or a channel a configuration panel lets the user choose from.
type ConnectionOption struct {
	Key     string `json:"key"`
	Value   string `json:"value"`
	Content string `json:"content"`
}

// PaginationParams is the paging envelope of an option query. Providers
// honor whichever of cursor and offset their upstream API supports.
type PaginationParams struct {
	Limit  int    `json:"limit,omitempty"`
	Cursor string `json:"cursor,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// PaginationMetadata tells the panel how to request the page after this one.
type PaginationMetadata struct {
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor,omitempty"`
	NextOffset int    `json:"next_offset,omitempty"`
}

type OptionQuery struct {
	OptionType  string           `json:"option_type"`
	WorkspaceID string           `json:"workspace_id"`
	PayloadJSON []byte           `json:"payload_json,omitempty"`
	Pagination  PaginationParams `json:"pagination"`
}

type OptionPage struct {
	Options    []ConnectionOption `json:"options"`
	Pagination PaginationMetadata `json:"pagination"`
}

func (q *OptionQuery) GetLimitWithMax(defaultLimit, maxLimit int) int {
	limit := q.Pagination.Limit
	if limit == 0 {
		limit = defaultLimit
	}
	if maxLimit > 0 && limit > maxLimit {
		limit = maxLimit
	}
	return limit
}

// ProviderOptionLoader loads provider-side pick-list data for one provider
// using the credential behind a resolved connection.
type ProviderOptionLoader interface {
	LoadOptions(ctx context.Context, query OptionQuery) (OptionPage, error)
}

type CreateOptionLoaderParams struct {
	CredentialID string
	WorkspaceID  string
}

type OptionLoaderCreator interface {
	CreateOptionLoader(ctx context.Context, p CreateOptionLoaderParams) (ProviderOptionLoader, error)
}

// ProviderDeps carries the shared dependencies option loader creators are
// built from during initialization.
type ProviderDeps struct {
	HubCredentialManager HubCredentialManager
}

type SelectProviderParams struct {
	ProviderType ProviderType
}

type ProviderSelector interface {
	RegisterOptionLoaderCreator(providerType ProviderType, creator OptionLoaderCreator)
	SelectOptionLoaderCreator(ctx context.Context, params SelectProviderParams) (OptionLoaderCreator, error)
}

type providerSelector struct {
	optionLoaderCreatorsByType map[ProviderType]OptionLoaderCreator
}

func NewProviderSelector() ProviderSelector {
	return &providerSelector{
		optionLoaderCreatorsByType: make(map[ProviderType]OptionLoaderCreator),
	}
}

func (s *providerSelector) RegisterOptionLoaderCreator(providerType ProviderType, creator OptionLoaderCreator) {
	s.optionLoaderCreatorsByType[providerType] = creator
}

func (s *providerSelector) SelectOptionLoaderCreator(ctx context.Context, params SelectProviderParams) (OptionLoaderCreator, error) {
	creator, ok := s.optionLoaderCreatorsByType[NormalizeProviderType(string(params.ProviderType))]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, params.ProviderType)
	}

	return creator, nil
}
