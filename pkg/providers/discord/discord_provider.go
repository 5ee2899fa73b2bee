package discord

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/bwmarrin/discordgo"
)

const (
	DiscordOption_Guilds   = "guilds"
	DiscordOption_Channels = "channels"
)

// DiscordCredential is the decrypted payload behind a Discord connection.
// The token is the bot token minted when the app is installed into a guild.
type DiscordCredential struct {
	Token string `json:"token"`
}

type DiscordOptionLoaderCreator struct {
	credentialGetter domain.CredentialGetter[DiscordCredential]
}

func NewDiscordOptionLoaderCreator(deps domain.ProviderDeps) domain.OptionLoaderCreator {
	return &DiscordOptionLoaderCreator{
		credentialGetter: managers.NewHubCredentialGetter[DiscordCredential](deps.HubCredentialManager),
	}
}

func (c *DiscordOptionLoaderCreator) CreateOptionLoader(ctx context.Context, p domain.CreateOptionLoaderParams) (domain.ProviderOptionLoader, error) {
	return NewDiscordOptionLoader(ctx, DiscordOptionLoaderDependencies{
		CredentialID:     p.CredentialID,
		WorkspaceID:      p.WorkspaceID,
		CredentialGetter: c.credentialGetter,
	})
}

type DiscordOptionLoader struct {
	discordSession *discordgo.Session

	optionFuncs map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error)
}

type DiscordOptionLoaderDependencies struct {
	CredentialID string
	WorkspaceID  string

	CredentialGetter domain.CredentialGetter[DiscordCredential]
}

func NewDiscordOptionLoader(ctx context.Context, deps DiscordOptionLoaderDependencies) (*DiscordOptionLoader, error) {
	if deps.CredentialID == "" {
		return nil, fmt.Errorf("credential ID is required for the Discord option loader")
	}

	credential, err := deps.CredentialGetter.GetDecryptedCredential(ctx, deps.WorkspaceID, deps.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decrypted Discord credential: %w", err)
	}

	session, err := discordgo.New("Bot " + credential.Token)
	if err != nil {
		return nil, fmt.Errorf("build Discord session: %w", err)
	}

	loader := &DiscordOptionLoader{discordSession: session}
	loader.optionFuncs = map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error){
		DiscordOption_Guilds:   loader.LoadGuilds,
		DiscordOption_Channels: loader.LoadChannels,
	}

	return loader, nil
}

func (l *DiscordOptionLoader) LoadOptions(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	optionFunc, ok := l.optionFuncs[query.OptionType]
	if !ok {
		return domain.OptionPage{}, fmt.Errorf("option function not found for Discord: %s", query.OptionType)
	}

	return optionFunc(ctx, query)
}

// LoadGuilds pages through the guilds the bot was installed into. Discord
// cursors by snowflake, so the next cursor is the last guild ID of a full
// page.
func (l *DiscordOptionLoader) LoadGuilds(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	limit := query.GetLimitWithMax(100, 200)

	guilds, err := l.discordSession.UserGuilds(limit, "", query.Pagination.Cursor, false)
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to list guilds: %w", err)
	}

	options := make([]domain.ConnectionOption, 0, len(guilds))
	for _, guild := range guilds {
		options = append(options, domain.ConnectionOption{
			Key:     guild.ID,
			Value:   guild.ID,
			Content: guild.Name,
		})
	}

	var nextCursor string
	if len(guilds) == limit {
		nextCursor = guilds[len(guilds)-1].ID
	}

	return domain.OptionPage{
		Options: options,
		Pagination: domain.PaginationMetadata{
			NextCursor: nextCursor,
			HasMore:    nextCursor != "",
		},
	}, nil
}

type loadChannelsQuery struct {
	GuildID string `json:"guild_id"`
}

// LoadChannels lists the channels of the guild named in the payload. With
// no guild picked yet it yields an empty page. Category headers are not
// postable targets and are dropped.
func (l *DiscordOptionLoader) LoadChannels(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	var params loadChannelsQuery
	if len(query.PayloadJSON) > 0 {
		if err := json.Unmarshal(query.PayloadJSON, &params); err != nil {
			return domain.OptionPage{}, err
		}
	}

	if params.GuildID == "" {
		return domain.OptionPage{}, nil
	}

	channels, err := l.discordSession.GuildChannels(params.GuildID)
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to list channels for guild %s: %w", params.GuildID, err)
	}

	options := make([]domain.ConnectionOption, 0, len(channels))
	for _, channel := range channels {
		if channel.Type == discordgo.ChannelTypeGuildCategory {
			continue
		}

		options = append(options, domain.ConnectionOption{
			Key:     channel.ID,
			Value:   channel.ID,
			Content: channel.Name,
		})
	}

	return domain.OptionPage{Options: options}, nil
}
