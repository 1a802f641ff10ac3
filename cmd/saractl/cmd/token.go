package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/saraAuth"
	"github.com/spf13/cobra"
)

var (
	verbose      bool
	issueID      string
	issueEmail   string
	inspectToken string
	revokeToken  string
	revokeRecord string
	revokeAll    string
)

var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for an existing subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		if (issueID == "") == (issueEmail == "") {
			return errors.New("exactly one of --subject or --email is required")
		}
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, configPath, verbose)
		if err != nil {
			return err
		}
		defer rt.Close()

		var subject saraAuth.Subject
		if issueID != "" {
			subject, err = rt.subjects.FindSubjectByID(ctx, issueID)
		} else {
			subject, err = rt.subjects.FindSubjectByEmail(ctx, issueEmail)
		}
		if err != nil {
			return fmt.Errorf("find subject: %w", err)
		}

		token, err := rt.engine.IssueToken(ctx, subject)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), token)
		return nil
	},
}

type inspectOutput struct {
	Valid     bool              `json:"valid"`
	Error     string            `json:"error,omitempty"`
	SubjectID string            `json:"subject_id,omitempty"`
	RecordID  string            `json:"record_id,omitempty"`
	Revision  uint64            `json:"revision,omitempty"`
	ExpiresAt string            `json:"expires_at,omitempty"`
	Profile   *saraAuth.Profile `json:"profile,omitempty"`
}

var inspectCmd = &cobra.Command{
	Use:   "inspect",
	Short: "Validate a bearer token and print what it carries",
	RunE: func(cmd *cobra.Command, args []string) error {
		if inspectToken == "" {
			return errors.New("--token is required")
		}
		ctx := cmd.Context()
		rt, err := openRuntime(ctx, configPath, verbose)
		if err != nil {
			return err
		}
		defer rt.Close()

		out := inspectOutput{}
		res, err := rt.engine.ValidateToken(ctx, inspectToken)
		switch {
		case err == nil:
			out.Valid = true
			out.SubjectID = res.SubjectID
			out.RecordID = res.TokenRecordID
			out.Revision = res.Revision
			out.ExpiresAt = res.ExpiresAt.UTC().Format(time.RFC3339)
			out.Profile = &res.Profile
		case errors.Is(err, saraAuth.ErrTokenInvalid):
			out.Error = err.Error()
		default:
			return err
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	},
}

var revokeCmd = &cobra.Command{
	Use:   "revoke",
	Short: "Revoke one token, one ledger record, or every token of a subject",
	RunE: func(cmd *cobra.Command, args []string) error {
		set := 0
		for _, v := range []string{revokeToken, revokeRecord, revokeAll} {
			if v != "" {
				set++
			}
		}
		if set != 1 {
			return errors.New("exactly one of --token, --record or --all is required")
		}

		ctx := cmd.Context()
		rt, err := openRuntime(ctx, configPath, verbose)
		if err != nil {
			return err
		}
		defer rt.Close()

		switch {
		case revokeToken != "":
			err = rt.engine.RevokeToken(ctx, revokeToken)
		case revokeRecord != "":
			err = rt.engine.RevokeRecord(ctx, revokeRecord)
		default:
			err = rt.engine.RevokeAll(ctx, revokeAll)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "revoked")
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log engine activity to stderr")

	issueCmd.Flags().StringVar(&issueID, "subject", "", "subject id")
	issueCmd.Flags().StringVar(&issueEmail, "email", "", "subject email")

	inspectCmd.Flags().StringVar(&inspectToken, "token", "", "bearer token")

	revokeCmd.Flags().StringVar(&revokeToken, "token", "", "bearer token to revoke")
	revokeCmd.Flags().StringVar(&revokeRecord, "record", "", "ledger record id to revoke")
	revokeCmd.Flags().StringVar(&revokeAll, "all", "", "subject id whose tokens are all revoked")

	rootCmd.AddCommand(issueCmd, inspectCmd, revokeCmd)
}
