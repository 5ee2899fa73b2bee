package initialization

import (
	"context"
	"fmt"
	"time"

	"github.com/dsentr/dsentr/pkg/domain"

	"github.com/rs/zerolog/log"
)

type RunFirstTimeSetupParams struct {
	ConfigManager domain.ConfigManager
}

// SetupResult describes the hub identity a completed registration produced.
type SetupResult struct {
	HubID         string
	HubName       string
	WorkspaceID   string
	WorkspaceName string
}

func RunFirstTimeSetup(ctx context.Context, params RunFirstTimeSetupParams) (*SetupResult, error) {
	fmt.Println("🚀 Dsentr connection hub setup")
	fmt.Println()

	config, err := params.ConfigManager.GetConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	hubName := GenerateHubName()
	log.Info().Str("hub_name", hubName).Msg("Generated hub name")

	keys, err := GenerateAllKeys()
	if err != nil {
		return nil, fmt.Errorf("generate hub keys: %w", err)
	}

	fmt.Printf("📡 Registering %q with the platform...\n", hubName)

	verificationCode, err := RegisterHub(ctx, hubName, config.Address, keys, config.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to register hub: %w", err)
	}

	claimURL := fmt.Sprintf("%s/hubs/verify?code=%s", GetVerificationURL(config.APIBaseURL), verificationCode)
	fmt.Println()
	fmt.Println("Open this link to claim the hub:")
	fmt.Println()
	fmt.Printf("    %s\n", claimURL)
	fmt.Println()
	fmt.Println("⏳ Waiting for confirmation in the browser...")

	hubID, workspaceID, workspaceName, err := WaitForVerification(ctx, verificationCode, config.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("hub verification failed: %w", err)
	}

	config = claimedHubConfig(config, hubName, hubID, keys, domain.WorkspaceAssignment{
		WorkspaceID:   workspaceID,
		WorkspaceName: workspaceName,
		AssignedAt:    time.Now(),
	})

	if err := params.ConfigManager.SaveConfig(ctx, config); err != nil {
		return nil, fmt.Errorf("save hub configuration: %w", err)
	}

	fmt.Println()
	fmt.Printf("✅ Hub claimed into workspace %q, configuration saved\n", workspaceName)

	return &SetupResult{
		HubID:         hubID,
		HubName:       hubName,
		WorkspaceID:   workspaceID,
		WorkspaceName: workspaceName,
	}, nil
}

// claimedHubConfig folds a verified registration into the stored config.
func claimedHubConfig(base domain.HubConfig, hubName, hubID string, keys domain.CryptoKeys, assignment domain.WorkspaceAssignment) domain.HubConfig {
	base.HubID = hubID
	base.HubName = hubName
	base.X25519PrivateKey = keys.X25519Private
	base.X25519PublicKey = keys.X25519Public
	base.Ed25519PrivateKey = keys.Ed25519Private
	base.Ed25519PublicKey = keys.Ed25519Public
	base.SetupComplete = true
	base.WorkspaceAssignments = []domain.WorkspaceAssignment{assignment}
	base.LastConnected = time.Now().UTC().Format(time.RFC3339)

	return base
}
