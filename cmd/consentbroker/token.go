package main

import (
	"encoding/json"
	"time"

	"github.com/spf13/cobra"

	"consentbroker/internal/consent/models"
	jwttoken "consentbroker/internal/jwt_token"
)

type tokenOutput struct {
	Token     string `json:"token"`
	Subject   string `json:"subject"`
	Role      string `json:"role"`
	ExpiresIn string `json:"expires_in"`
}

// newTokenCmd signs bearer tokens with the configured key for local use.
func newTokenCmd(a *app) *cobra.Command {
	var (
		subject string
		role    string
		ttl     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for a provider, seeker or admin",
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc := jwttoken.NewJWTService(a.cfg.JWTSigningKey, tokenIssuer, ttl)
			token, err := svc.Sign(subject, models.Role(role), time.Now())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(tokenOutput{
				Token:     token,
				Subject:   subject,
				Role:      role,
				ExpiresIn: ttl.String(),
			})
		},
	}
	cmd.Flags().StringVar(&subject, "subject", "", "party ID, or operator name for admins")
	cmd.Flags().StringVar(&role, "role", string(models.RoleSeeker), "provider, seeker or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", defaultTokenTTL, "token lifetime")
	_ = cmd.MarkFlagRequired("subject")
	return cmd
}
