package initialization

import (
	"context"
	"fmt"
	"time"

	"github.com/dsentr/dsentr/pkg/clients/dsentr"
	"github.com/dsentr/dsentr/pkg/domain"
)

const (
	registrationRequestTimeout = 30 * time.Second
	verificationTimeout        = 10 * time.Minute
	verificationPollInterval   = 5 * time.Second
)

// RegisterHub registers the hub with the platform and returns the
// verification code the operator confirms in the web app.
func RegisterHub(ctx context.Context, hubName, address string, keys domain.CryptoKeys, apiBaseURL string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, registrationRequestTimeout)
	defer cancel()

	client := dsentr.NewClient(dsentr.WithBaseURL(apiBaseURL))

	resp, err := client.CreateHubRegistration(ctx, &dsentr.CreateHubRegistrationRequest{
		HubName:          hubName,
		Address:          address,
		X25519PublicKey:  keys.X25519Public,
		Ed25519PublicKey: keys.Ed25519Public,
	})
	if err != nil {
		return "", fmt.Errorf("failed to register hub: %w", err)
	}

	return resp.VerificationCode, nil
}

// WaitForVerification polls until the registration is verified via the
// frontend, returning the assigned hub id and workspace.
func WaitForVerification(ctx context.Context, verificationCode, apiBaseURL string) (string, string, string, error) {
	client := dsentr.NewClient(dsentr.WithBaseURL(apiBaseURL))

	ctx, cancel := context.WithTimeout(ctx, verificationTimeout)
	defer cancel()

	fmt.Printf("Waiting for hub verification (code: %s)...\n", verificationCode)

	ticker := time.NewTicker(verificationPollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return "", "", "", fmt.Errorf("hub was not verified within %s", verificationTimeout)
		case <-ticker.C:
		}

		status, err := client.GetHubRegistrationStatus(ctx, verificationCode)
		if err != nil {
			// Transient API errors are not fatal while polling
			fmt.Printf("Could not check registration status: %v\n", err)
			continue
		}

		switch status.Status {
		case dsentr.RegistrationStatusVerified:
			if status.Hub == nil {
				return "", "", "", fmt.Errorf("verification response carries no hub data")
			}

			fmt.Println("Hub registration verified!")
			return status.Hub.ID, status.Hub.WorkspaceID, status.WorkspaceName, nil
		case dsentr.RegistrationStatusNotFound:
			return "", "", "", fmt.Errorf("registration expired or was removed: %s", status.Message)
		case dsentr.RegistrationStatusPending:
			fmt.Printf("Still pending, the code expires at %s\n", status.ExpiresAt.Format(time.RFC1123))
		default:
			fmt.Printf("Ignoring unknown registration status %q\n", status.Status)
		}
	}
}
