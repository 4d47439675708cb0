package main

import (
	"context"
	"crypto"
	"crypto/x509"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/golang-jwt/jwt/v5"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"software.sslmate.com/src/go-pkcs12"

	"exomigtool/internal/common/logger"
	"exomigtool/internal/common/security"
)

const graphScope = "https://graph.microsoft.com/.default"

// TokenClaims represents relevant claims from Microsoft Entra ID JWT tokens
type TokenClaims struct {
	AppDisplayName string   `json:"app_displayname"` // Application display name from Entra ID
	Roles          []string `json:"roles"`           // Assigned application roles (e.g., Directory.Read.All)
	jwt.RegisteredClaims
}

// requiredRoles are the application permissions the Graph actions use.
var requiredRoles = []string{"Directory.Read.All"}

// setupGraphClient creates credentials and initializes the Microsoft Graph SDK client
func setupGraphClient(ctx context.Context, config *Config, log *slog.Logger) (*msgraphsdk.GraphServiceClient, error) {
	logger.LogDebug(log, "Setting up Microsoft Graph client",
		"tenantID", security.MaskGUID(config.TenantID), "clientID", security.MaskGUID(config.ClientID))

	cred, err := getCredential(config, log)
	if err != nil {
		return nil, fmt.Errorf("authentication setup failed: %w", err)
	}

	if config.VerboseMode {
		token, err := cred.GetToken(ctx, policy.TokenRequestOptions{Scopes: []string{graphScope}})
		if err != nil {
			logger.LogVerbose(config.VerboseMode, "Warning: Could not retrieve token for verbose display: %v", err)
		} else {
			printTokenInfo(os.Stdout, token)
		}
	}

	client, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{graphScope})
	if err != nil {
		return nil, fmt.Errorf("graph client initialization failed: %w", err)
	}

	logger.LogVerbose(config.VerboseMode, "Graph SDK client initialized successfully")
	logger.LogVerbose(config.VerboseMode, "Target scope: %s", graphScope)
	return client, nil
}

func getCredential(config *Config, log *slog.Logger) (azcore.TokenCredential, error) {
	if config.Secret != "" {
		logger.LogDebug(log, "Authentication method: Client Secret")
		return azidentity.NewClientSecretCredential(config.TenantID, config.ClientID, config.Secret, nil)
	}

	if config.PfxPath != "" {
		logger.LogDebug(log, "Authentication method: PFX Certificate File", "path", config.PfxPath)
		pfxData, err := os.ReadFile(config.PfxPath)
		if err != nil {
			logger.LogError(log, "Failed to read PFX file", "path", config.PfxPath, "error", err)
			return nil, fmt.Errorf("failed to read PFX file: %w", err)
		}
		logger.LogDebug(log, "PFX file read successfully", "bytes", len(pfxData))
		return createCertCredential(config.TenantID, config.ClientID, pfxData, config.PfxPass)
	}

	return nil, fmt.Errorf("no valid authentication method provided (use -secret or -pfx)")
}

func createCertCredential(tenantID, clientID string, pfxData []byte, password string) (*azidentity.ClientCertificateCredential, error) {
	// DecodeChain handles SHA-256 MACs and returns the leaf plus CA certificates.
	key, cert, caCerts, err := pkcs12.DecodeChain(pfxData, password)
	if err != nil {
		return nil, fmt.Errorf("failed to decode PFX: %w", err)
	}

	privKey, ok := key.(crypto.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("decoded key is not a valid crypto.PrivateKey")
	}

	// azidentity expects the leaf certificate first.
	certs := append([]*x509.Certificate{cert}, caCerts...)

	return azidentity.NewClientCertificateCredential(tenantID, clientID, certs, privKey,
		&azidentity.ClientCertificateCredentialOptions{SendCertificateChain: true})
}

// printTokenInfo shows token lifetime and the application roles it carries.
func printTokenInfo(w io.Writer, token azcore.AccessToken) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, "Token Information:")
	fmt.Fprintln(w, "------------------")
	fmt.Fprintf(w, "Expires at: %s\n", token.ExpiresOn.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Valid for: %s\n", time.Until(token.ExpiresOn).Round(time.Second))
	fmt.Fprintf(w, "Token (masked): %s\n", security.MaskAccessToken(token.Token))
	fmt.Fprintf(w, "Token length: %d characters\n", len(token.Token))

	fmt.Fprintln(w)
	fmt.Fprintln(w, "JWT Claims:")
	appName, roles, err := parseTokenClaims(token.Token)
	if err != nil {
		fmt.Fprintf(w, "  (Could not parse JWT claims: %v)\n", err)
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "  Application Name: %s\n", ifEmpty(appName, "(not available)"))
	fmt.Fprintf(w, "  Assigned Roles: %s\n", ifEmpty(strings.Join(roles, ", "), "(none)"))
	if missing := missingRoles(roles); len(missing) > 0 {
		fmt.Fprintf(w, "  Missing Roles: %s\n", strings.Join(missing, ", "))
	}
	fmt.Fprintln(w)
}

// parseTokenClaims extracts the application name and assigned roles from a
// JWT access token.
func parseTokenClaims(tokenString string) (string, []string, error) {
	// The Azure SDK has already validated the token.
	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, &TokenClaims{})
	if err != nil {
		return "", nil, fmt.Errorf("failed to parse JWT: %w", err)
	}

	claims, ok := token.Claims.(*TokenClaims)
	if !ok {
		return "", nil, fmt.Errorf("failed to extract claims from token")
	}
	return claims.AppDisplayName, claims.Roles, nil
}

// missingRoles lists the required roles a token lacks. Any *.ReadWrite.All
// role also satisfies the matching *.Read.All role.
func missingRoles(roles []string) []string {
	have := make(map[string]bool, len(roles))
	for _, r := range roles {
		have[r] = true
		have[strings.Replace(r, ".ReadWrite.", ".Read.", 1)] = true
	}
	var missing []string
	for _, r := range requiredRoles {
		if !have[r] {
			missing = append(missing, r)
		}
	}
	return missing
}
