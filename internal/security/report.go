package security

import (
	"fmt"
	"time"
)

// Minimum values below which BuildReport raises a warning. They sit above
// what config validation rejects outright.
const (
	recommendedGuardSecretBytes = 32
	recommendedLoginCodeLength  = 6
	longTokenTTL                = 7 * 24 * time.Hour
)

type Report struct {
	SigningAlgorithm      string
	Issuer                string
	Audience              string
	TokenTTL              time.Duration
	NotBefore             time.Duration
	Leeway                time.Duration
	LedgerTTL             time.Duration
	LedgerBackend         string
	GuardSecretBytes      int
	LoginCodeLength       int
	RegisterCodeLength    int
	EmailChangeCodeLength int
	BruteForceEnabled     bool
	AuditEnabled          bool
	MetricsEnabled        bool
	Warnings              []string
}

type ReportInput struct {
	SigningAlgorithm      string
	Issuer                string
	Audience              string
	TokenTTL              time.Duration
	NotBefore             time.Duration
	Leeway                time.Duration
	LedgerTTL             time.Duration
	LedgerBackend         string
	GuardSecretBytes      int
	LoginCodeLength       int
	RegisterCodeLength    int
	EmailChangeCodeLength int
	BruteForceEnabled     bool
	CodeGuessMaxRetry     int
	AuditEnabled          bool
	MetricsEnabled        bool
}

func BuildReport(input ReportInput) Report {
	report := Report{
		SigningAlgorithm:      input.SigningAlgorithm,
		Issuer:                input.Issuer,
		Audience:              input.Audience,
		TokenTTL:              input.TokenTTL,
		NotBefore:             input.NotBefore,
		Leeway:                input.Leeway,
		LedgerTTL:             input.LedgerTTL,
		LedgerBackend:         input.LedgerBackend,
		GuardSecretBytes:      input.GuardSecretBytes,
		LoginCodeLength:       input.LoginCodeLength,
		RegisterCodeLength:    input.RegisterCodeLength,
		EmailChangeCodeLength: input.EmailChangeCodeLength,
		BruteForceEnabled:     input.BruteForceEnabled,
		AuditEnabled:          input.AuditEnabled,
		MetricsEnabled:        input.MetricsEnabled,
	}

	if !input.BruteForceEnabled {
		report.Warnings = append(report.Warnings, "brute-force guard disabled: short codes can be enumerated")
	} else if input.CodeGuessMaxRetry == 0 {
		report.Warnings = append(report.Warnings, "code guess budget is zero: every confirmation is rejected")
	}
	if input.GuardSecretBytes < recommendedGuardSecretBytes {
		report.Warnings = append(report.Warnings, fmt.Sprintf("guard secret is %d bytes", input.GuardSecretBytes))
	}
	if input.LoginCodeLength < recommendedLoginCodeLength {
		report.Warnings = append(report.Warnings, fmt.Sprintf("login codes have only %d digits", input.LoginCodeLength))
	}
	if input.TokenTTL > longTokenTTL {
		report.Warnings = append(report.Warnings, "token ttl exceeds seven days")
	}
	if input.LedgerTTL > input.TokenTTL && input.TokenTTL > 0 {
		report.Warnings = append(report.Warnings, "ledger rows outlive their tokens")
	}
	return report
}
