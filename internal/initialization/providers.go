package initialization

import (
	"github.com/dsentr/dsentr/pkg/providers/discord"
	githubprovider "github.com/dsentr/dsentr/pkg/providers/github"
	"github.com/dsentr/dsentr/pkg/providers/googlesheets"
	slackprovider "github.com/dsentr/dsentr/pkg/providers/slack"
	"github.com/dsentr/dsentr/pkg/providers/teams"

	"github.com/dsentr/dsentr/pkg/domain"
)

type providerRegisterParams struct {
	ProviderType domain.ProviderType
	NewCreator   func(deps domain.ProviderDeps) domain.OptionLoaderCreator
}

var providerRegisterParamsList = []providerRegisterParams{
	{
		ProviderType: domain.ProviderType_Slack,
		NewCreator:   slackprovider.NewSlackOptionLoaderCreator,
	},
	{
		ProviderType: domain.ProviderType_Teams,
		NewCreator:   teams.NewTeamsOptionLoaderCreator,
	},
	{
		ProviderType: domain.ProviderType_GoogleSheets,
		NewCreator:   googlesheets.NewGoogleSheetsOptionLoaderCreator,
	},
	{
		ProviderType: domain.ProviderType_Discord,
		NewCreator:   discord.NewDiscordOptionLoaderCreator,
	},
	{
		ProviderType: domain.ProviderType_GitHub,
		NewCreator:   githubprovider.NewGitHubOptionLoaderCreator,
	},
}

func registerProviders(providerSelector domain.ProviderSelector, commonDeps domain.ProviderDeps) error {
	for _, params := range providerRegisterParamsList {
		if params.NewCreator != nil {
			creator := params.NewCreator(commonDeps)
			providerSelector.RegisterOptionLoaderCreator(params.ProviderType, creator)
		}
	}

	return nil
}
