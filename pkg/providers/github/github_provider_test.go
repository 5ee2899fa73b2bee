package githubprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubCredentialGetter struct {
	tokens domain.OAuthTokenData
	err    error

	calls int
}

func (g *stubCredentialGetter) GetDecryptedCredential(ctx context.Context, workspaceID, credentialID string) (domain.OAuthTokenData, error) {
	g.calls++
	if g.err != nil {
		return domain.OAuthTokenData{}, g.err
	}
	return g.tokens, nil
}

func newTestLoader(t *testing.T) *GitHubOptionLoader {
	t.Helper()

	getter := &stubCredentialGetter{tokens: domain.OAuthTokenData{AccessToken: "gho_test"}}

	loader, err := NewGitHubOptionLoader(context.Background(), GitHubOptionLoaderDependencies{
		CredentialID:     "cred-1",
		WorkspaceID:      "ws-1",
		CredentialGetter: getter,
	})
	require.NoError(t, err)
	require.Equal(t, 1, getter.calls)

	return loader
}

func TestNewGitHubOptionLoaderBuildsClientFromCredential(t *testing.T) {
	loader := newTestLoader(t)
	assert.NotNil(t, loader.githubClient)
}

func TestNewGitHubOptionLoaderPropagatesCredentialFailure(t *testing.T) {
	getter := &stubCredentialGetter{err: errors.New("credential unavailable")}

	_, err := NewGitHubOptionLoader(context.Background(), GitHubOptionLoaderDependencies{
		CredentialID:     "cred-1",
		WorkspaceID:      "ws-1",
		CredentialGetter: getter,
	})
	assert.ErrorContains(t, err, "credential unavailable")
}

func TestLoadBranchesPayloadHandling(t *testing.T) {
	loader := newTestLoader(t)

	tests := []struct {
		name        string
		payload     string
		wantErr     string
		wantOptions int
	}{
		{
			name:    "empty payload returns empty page",
			payload: "",
		},
		{
			name:    "missing repository returns empty page",
			payload: `{"other":"field"}`,
		},
		{
			name:    "repository without owner is rejected",
			payload: `{"repository":"just-a-name"}`,
			wantErr: "invalid repository",
		},
		{
			name:    "malformed payload is rejected",
			payload: `{"repository":`,
			wantErr: "unexpected end",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			page, err := loader.LoadBranches(context.Background(), domain.OptionQuery{
				OptionType:  GitHubOption_Branches,
				PayloadJSON: []byte(tt.payload),
			})
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Len(t, page.Options, tt.wantOptions)
		})
	}
}

func TestLoadOptionsRejectsUnknownOptionType(t *testing.T) {
	loader := newTestLoader(t)

	_, err := loader.LoadOptions(context.Background(), domain.OptionQuery{OptionType: "gists"})
	assert.ErrorContains(t, err, "option function not found")
}
