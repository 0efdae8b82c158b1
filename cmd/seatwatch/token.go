package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/iliyamo/cinema-live-seats/internal/utils"
)

const jwtSecretKey = "jwt_secret"

// newTokenCmd prints a bearer token signed with the server's shared secret,
// for calling the booking endpoints from scripts against a dev server.
func newTokenCmd(v *viper.Viper) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token <userId>",
		Short: "Print a signed bearer token for a development server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			secret := v.GetString(jwtSecretKey)
			if secret == "" {
				return errors.New("jwt secret is required (--jwt-secret or SEATWATCH_JWT_SECRET)")
			}
			role, _ := cmd.Flags().GetString("role")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			tok, err := utils.NewAccessToken(secret, args[0], role, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok.Token)
			return nil
		},
	}
	cmd.Flags().String("jwt-secret", "", "HS256 secret shared with the server")
	cmd.Flags().String("role", "CUSTOMER", "role claim (CUSTOMER or ADMIN)")
	cmd.Flags().Duration("ttl", time.Hour, "token lifetime")
	_ = v.BindPFlag(jwtSecretKey, cmd.Flags().Lookup("jwt-secret"))
	return cmd
}
