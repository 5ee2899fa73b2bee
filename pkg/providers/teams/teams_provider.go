package teams

import (
	"context"
	"fmt"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/domain"
	kiotaauth "github.com/microsoft/kiota-authentication-azure-go"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/rs/zerolog/log"
)

const (
	TeamsOption_Teams    = "teams"
	TeamsOption_Channels = "channels"
)

type TeamsOptionLoaderCreator struct {
	credentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewTeamsOptionLoaderCreator(deps domain.ProviderDeps) domain.OptionLoaderCreator {
	return &TeamsOptionLoaderCreator{
		credentialGetter: managers.NewHubCredentialGetter[domain.OAuthTokenData](deps.HubCredentialManager),
	}
}

func (c *TeamsOptionLoaderCreator) CreateOptionLoader(ctx context.Context, p domain.CreateOptionLoaderParams) (domain.ProviderOptionLoader, error) {
	return NewTeamsOptionLoader(ctx, TeamsOptionLoaderDependencies{
		CredentialID:     p.CredentialID,
		WorkspaceID:      p.WorkspaceID,
		CredentialGetter: c.credentialGetter,
	})
}

type TeamsOptionLoader struct {
	graphClient *msgraphsdk.GraphServiceClient

	optionFuncs map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error)
}

type TeamsOptionLoaderDependencies struct {
	CredentialID string
	WorkspaceID  string

	CredentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewTeamsOptionLoader(ctx context.Context, deps TeamsOptionLoaderDependencies) (*TeamsOptionLoader, error) {
	if deps.CredentialID == "" {
		return nil, fmt.Errorf("credential ID is required for the Teams option loader")
	}

	tokens, err := deps.CredentialGetter.GetDecryptedCredential(ctx, deps.WorkspaceID, deps.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decrypted Teams OAuth credential: %w", err)
	}

	graphClient, err := newGraphClient(tokens.AccessToken)
	if err != nil {
		return nil, err
	}

	loader := &TeamsOptionLoader{graphClient: graphClient}
	loader.optionFuncs = map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error){
		TeamsOption_Teams:    loader.LoadTeams,
		TeamsOption_Channels: loader.LoadChannels,
	}

	return loader, nil
}

func (l *TeamsOptionLoader) LoadOptions(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	optionFunc, ok := l.optionFuncs[query.OptionType]
	if !ok {
		return domain.OptionPage{}, fmt.Errorf("option function %s not found for Teams", query.OptionType)
	}

	return optionFunc(ctx, query)
}

type teamRef struct {
	id   string
	name string
}

func (l *TeamsOptionLoader) joinedTeams(ctx context.Context) ([]teamRef, error) {
	result, err := l.graphClient.Me().JoinedTeams().Get(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list joined teams: %w. The signed-in account needs a Teams license and consented Graph permissions", err)
	}
	if result == nil {
		return nil, nil
	}

	var teams []teamRef
	for _, team := range result.GetValue() {
		id, name := team.GetId(), team.GetDisplayName()
		if id == nil || name == nil {
			continue
		}

		teams = append(teams, teamRef{id: *id, name: *name})
	}

	return teams, nil
}

func (l *TeamsOptionLoader) LoadTeams(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	teams, err := l.joinedTeams(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list joined teams")
		return domain.OptionPage{}, err
	}

	options := make([]domain.ConnectionOption, 0, len(teams))
	for _, team := range teams {
		options = append(options, domain.ConnectionOption{
			Key:     team.id,
			Value:   team.id,
			Content: team.name,
		})
	}

	return domain.OptionPage{Options: options}, nil
}

// LoadChannels flattens every channel of every joined team into one list.
// The key carries both IDs because Graph channel operations need the pair.
func (l *TeamsOptionLoader) LoadChannels(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	teams, err := l.joinedTeams(ctx)
	if err != nil {
		log.Error().Err(err).Msg("Failed to list joined teams")
		return domain.OptionPage{}, err
	}

	var options []domain.ConnectionOption
	for _, team := range teams {
		channels, err := l.graphClient.Teams().ByTeamId(team.id).Channels().Get(ctx, nil)
		if err != nil {
			log.Warn().Err(err).Str("team_id", team.id).Str("team_name", team.name).Msg("Skipping team, channel listing failed")
			continue
		}
		if channels == nil {
			continue
		}

		for _, channel := range channels.GetValue() {
			id, name := channel.GetId(), channel.GetDisplayName()
			if id == nil || name == nil {
				continue
			}

			key := team.id + ":" + *id
			options = append(options, domain.ConnectionOption{
				Key:     key,
				Value:   key,
				Content: team.name + " / " + *name,
			})
		}
	}

	return domain.OptionPage{Options: options}, nil
}

func newGraphClient(accessToken string) (*msgraphsdk.GraphServiceClient, error) {
	provider, err := kiotaauth.NewAzureIdentityAuthenticationProvider(&graphTokenCredential{accessToken: accessToken})
	if err != nil {
		return nil, fmt.Errorf("failed to create auth provider: %w", err)
	}

	adapter, err := msgraphsdk.NewGraphRequestAdapter(provider)
	if err != nil {
		return nil, fmt.Errorf("failed to create Graph request adapter: %w", err)
	}

	return msgraphsdk.NewGraphServiceClient(adapter), nil
}

// graphTokenCredential adapts an access token we already hold to the azcore
// credential interface the Graph SDK expects.
type graphTokenCredential struct {
	accessToken string
}

func (c *graphTokenCredential) GetToken(ctx context.Context, options policy.TokenRequestOptions) (azcore.AccessToken, error) {
	return azcore.AccessToken{
		Token:     c.accessToken,
		ExpiresOn: time.Now().Add(time.Hour),
	}, nil
}
