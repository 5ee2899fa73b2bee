package githubprovider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dsentr/dsentr/internal/managers"
	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/google/go-github/v57/github"
	"golang.org/x/oauth2"
)

const (
	GitHubOption_Repositories = "repositories"
	GitHubOption_Branches     = "branches"
)

type GitHubOptionLoaderCreator struct {
	credentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewGitHubOptionLoaderCreator(deps domain.ProviderDeps) domain.OptionLoaderCreator {
	return &GitHubOptionLoaderCreator{
		credentialGetter: managers.NewHubCredentialGetter[domain.OAuthTokenData](deps.HubCredentialManager),
	}
}

func (c *GitHubOptionLoaderCreator) CreateOptionLoader(ctx context.Context, p domain.CreateOptionLoaderParams) (domain.ProviderOptionLoader, error) {
	return NewGitHubOptionLoader(ctx, GitHubOptionLoaderDependencies{
		CredentialID:     p.CredentialID,
		WorkspaceID:      p.WorkspaceID,
		CredentialGetter: c.credentialGetter,
	})
}

type GitHubOptionLoader struct {
	githubClient *github.Client

	optionFuncs map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error)
}

type GitHubOptionLoaderDependencies struct {
	CredentialID string
	WorkspaceID  string

	CredentialGetter domain.CredentialGetter[domain.OAuthTokenData]
}

func NewGitHubOptionLoader(ctx context.Context, deps GitHubOptionLoaderDependencies) (*GitHubOptionLoader, error) {
	if deps.CredentialID == "" {
		return nil, fmt.Errorf("credential ID is required for the GitHub option loader")
	}

	tokens, err := deps.CredentialGetter.GetDecryptedCredential(ctx, deps.WorkspaceID, deps.CredentialID)
	if err != nil {
		return nil, fmt.Errorf("failed to get decrypted GitHub OAuth credential: %w", err)
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: tokens.AccessToken}))

	loader := &GitHubOptionLoader{githubClient: github.NewClient(httpClient)}
	loader.optionFuncs = map[string]func(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error){
		GitHubOption_Repositories: loader.LoadRepositories,
		GitHubOption_Branches:     loader.LoadBranches,
	}

	return loader, nil
}

func (l *GitHubOptionLoader) LoadOptions(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	optionFunc, ok := l.optionFuncs[query.OptionType]
	if !ok {
		return domain.OptionPage{}, fmt.Errorf("option function not found for GitHub: %s", query.OptionType)
	}

	return optionFunc(ctx, query)
}

// LoadRepositories lists every repository the connected account can reach.
// GitHub paginates by page number while the panel speaks offsets, so the
// offset is translated before the call.
func (l *GitHubOptionLoader) LoadRepositories(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	limit := query.GetLimitWithMax(20, 100)
	offset := query.Pagination.Offset

	listOpts := github.ListOptions{
		Page:    offset/limit + 1,
		PerPage: limit,
	}

	repos, resp, err := l.githubClient.Repositories.ListByAuthenticatedUser(ctx, &github.RepositoryListByAuthenticatedUserOptions{ListOptions: listOpts})
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to list repositories: %w", err)
	}

	options := make([]domain.ConnectionOption, 0, len(repos))
	for _, repository := range repos {
		fullName := repository.GetFullName()
		if fullName == "" {
			continue
		}

		options = append(options, domain.ConnectionOption{
			Key:     fullName,
			Value:   fullName,
			Content: repository.GetName(),
		})
	}

	return domain.OptionPage{
		Options: options,
		Pagination: domain.PaginationMetadata{
			NextOffset: offset + len(options),
			HasMore:    resp.NextPage > 0,
		},
	}, nil
}

type loadBranchesQuery struct {
	Repository string `json:"repository"`
}

// LoadBranches needs a repository picked first. Until the payload carries
// one it yields an empty page so the panel renders the field as pending.
func (l *GitHubOptionLoader) LoadBranches(ctx context.Context, query domain.OptionQuery) (domain.OptionPage, error) {
	var params loadBranchesQuery
	if len(query.PayloadJSON) > 0 {
		if err := json.Unmarshal(query.PayloadJSON, &params); err != nil {
			return domain.OptionPage{}, err
		}
	}

	if params.Repository == "" {
		return domain.OptionPage{}, nil
	}

	owner, name, ok := strings.Cut(params.Repository, "/")
	if !ok || owner == "" || name == "" {
		return domain.OptionPage{}, fmt.Errorf("invalid repository %q, expected owner/name", params.Repository)
	}

	branches, _, err := l.githubClient.Repositories.ListBranches(ctx, owner, name, nil)
	if err != nil {
		return domain.OptionPage{}, fmt.Errorf("failed to list branches for %s/%s: %w", owner, name, err)
	}

	options := make([]domain.ConnectionOption, 0, len(branches))
	for _, branch := range branches {
		branchName := branch.GetName()
		if branchName == "" {
			continue
		}

		options = append(options, domain.ConnectionOption{
			Key:     branchName,
			Value:   branchName,
			Content: branchName,
		})
	}

	return domain.OptionPage{Options: options}, nil
}
