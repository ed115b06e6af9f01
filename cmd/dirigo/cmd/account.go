package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/dirigovotes/dirigo/internal/client"
	"github.com/dirigovotes/dirigo/internal/config"
	"github.com/dirigovotes/dirigo/internal/signup"
	"github.com/dirigovotes/dirigo/internal/validation"
	"github.com/spf13/cobra"
)

func apiClient(cmd *cobra.Command) *client.Client {
	api, _ := cmd.Flags().GetString("api")
	token, _ := cmd.Flags().GetString("token")
	return client.New(api, client.WithToken(token))
}

func SignupCmd() *cobra.Command {
	var (
		form     signup.Form
		policy   string
		strategy string
		asJSON   bool
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account, retrying creation calls that time out",
		RunE: func(cmd *cobra.Command, args []string) error {
			if form.ConfirmPassword == "" {
				form.ConfirmPassword = form.Password
			}

			c := apiClient(cmd)
			p := signup.DefaultPolicy()
			p.Password = validation.PasswordRulesFor(policy)
			controller := signup.NewController(c, signup.NewChecker(strategy, c, c), p)

			result := controller.Submit(cmd.Context(), form)
			if asJSON {
				enc := json.NewEncoder(os.Stdout)
				enc.SetIndent("", "  ")
				return enc.Encode(result)
			}

			fmt.Println(result.Message)
			fmt.Printf("state: %s (%s)\n", result.State, joinStates(result.Transitions))
			if result.Retries > 0 {
				fmt.Printf("retries: %d, creation calls: %d\n", result.Retries, result.Creations)
			}
			for _, option := range result.Recovery {
				fmt.Printf("  next: %s\n", option)
			}
			if result.Outcome == signup.OutcomeTimeoutMaxRetries {
				exists, err := controller.CheckAccount(cmd.Context(), form.Email)
				if err == nil && exists {
					fmt.Println("The account exists. Check your inbox or run `dirigo resend` for a new link.")
					return nil
				}
			}
			if result.Outcome != signup.OutcomeSuccess {
				return errors.New(string(result.Outcome))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password")
	cmd.Flags().StringVar(&form.ConfirmPassword, "confirm-password", "", "password confirmation (defaults to --password)")
	cmd.Flags().StringVar(&form.Name, "name", "", "display name")
	cmd.Flags().StringVar(&policy, "policy", config.PasswordPolicyStrict, "password policy: basic or strict")
	cmd.Flags().StringVar(&strategy, "existence-check", config.ExistenceCheckLookup, "existence check: lookup or probe")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the full result as JSON")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func joinStates(states []signup.State) string {
	parts := make([]string, len(states))
	for i, s := range states {
		parts[i] = string(s)
	}
	return strings.Join(parts, " > ")
}

func ResendCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resend <email>",
		Short: "Send the confirmation email again",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := apiClient(cmd)
			controller := signup.NewController(c, signup.NewLookupChecker(c), signup.DefaultPolicy())

			err := controller.ResendVerification(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println("If an account exists for this email, a new confirmation link is on its way.")
			return nil
		},
	}
}

func AccountStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "account-status <email>",
		Short: "Report whether an account exists and is confirmed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := apiClient(cmd).AccountStatus(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("exists: %t\nconfirmed: %t\n", status.Exists, status.Confirmed)
			return nil
		},
	}
}
