package slackprovider

import (
	"context"
	"fmt"

	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/slack-go/slack"
)

const (
	SlackOption_Channels = "channels"
)

type SlackOptionLoaderCreator struct {
	credentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewSlackOptionLoaderCreator(deps domain.ProviderDeps) domain.OptionLoaderCreator {
	return &SlackOptionLoaderCreator{
		credentialGetter: managers.NewHubCredentialGetter[domain.OAuthTokenData](deps.HubCredentialManager),
	}
}

func (c *SlackOptionLoaderCreator) CreateOptionLoader(ctx context.Context, p domain.CreateOptionLoaderParams) (domain.ProviderOptionLoader, error) {
	return NewSlackOptionLoader(ctx, SlackOptionLoaderDependencies{
		CredentialID:     p.CredentialID,
		WorkspaceID:      p.WorkspaceID,
		CredentialGetter: c.credentialGetter,
	})
}

type SlackOptionLoader struct {
	slackClient *slack.Client

	optionFuncs map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error)
}

type SlackOptionLoaderDependencies struct {
	CredentialID string
	WorkspaceID  string

	CredentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewSlackOptionLoader(ctx context.Context, deps SlackOptionLoaderDependencies) (*SlackOptionLoader, error) {
	loader := &SlackOptionLoader{}

	optionFuncs := map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error){
		SlackOption_Channels: loader.LoadChannels,
	}

	loader.optionFuncs = optionFuncs

	if loader.slackClient == nil {
		tokens, err := deps.CredentialGetter.GetDecryptedCredential(ctx, deps.WorkspaceID, deps.CredentialID)
		if err != nil {
			return nil, err
		}

		loader.slackClient = slack.New(tokens.AccessToken)
	}

	return loader, nil
}

func (l *SlackOptionLoader) LoadOptions(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	optionFunc, ok := l.optionFuncs[query.OptionType]
	if !ok {
		return domain.OptionPage{}, fmt.Errorf("option function not found")
	}

	return optionFunc(ctx, query)
}

func (l *SlackOptionLoader) LoadChannels(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	limit := query.GetLimitWithMax(100, 200)

	channels, nextCursor, err := l.slackClient.GetConversationsContext(ctx, &slack.GetConversationsParameters{
		Types:  []string{"public_channel"},
		Limit:  limit,
		Cursor: query.Pagination.Cursor,
	})
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to list channels: %w", err)
	}

	var options []domain.ConnectionOption

	for _, channel := range channels {
		options = append(options, domain.ConnectionOption{
			Key:     channel.ID,
			Value:   channel.ID,
			Content: channel.Name,
		})
	}

	return domain.OptionPage{
		Options: options,
		Pagination: domain.PaginationMetadata{
			NextCursor: nextCursor,
			HasMore:    nextCursor != "",
		},
	}, nil
}
