package saraAuth

import "github.com/MrEthical07/saraAuth/internal/security"

// SecurityReport summarizes the effective security posture of an [Engine].
// It never carries key material, only sizes and names.
type SecurityReport = security.Report

// SecurityReport returns the posture report of e.
func (e *Engine) SecurityReport() SecurityReport {
	if e == nil {
		return SecurityReport{}
	}

	guardBytes := 0
	if e.guardSecret != nil {
		guardBytes = e.guardSecret.size
	}

	return security.BuildReport(security.ReportInput{
		SigningAlgorithm:      e.jwtManager.Algorithm(),
		Issuer:                e.config.Token.Issuer,
		Audience:              e.config.Token.Audience,
		TokenTTL:              e.config.Token.TTL,
		NotBefore:             e.config.Token.NotBefore,
		Leeway:                e.config.Token.Leeway,
		LedgerTTL:             e.config.ledgerTTL(),
		LedgerBackend:         e.ledgerBackend,
		GuardSecretBytes:      guardBytes,
		LoginCodeLength:       e.config.Sessions.Login.CodeLength,
		RegisterCodeLength:    e.config.Sessions.Register.CodeLength,
		EmailChangeCodeLength: e.config.Sessions.EmailChange.CodeLength,
		BruteForceEnabled:     e.config.BruteForce.Enabled,
		CodeGuessMaxRetry:     e.config.BruteForce.CodeGuess.MaxRetry,
		AuditEnabled:          e.config.Audit.Enabled,
		MetricsEnabled:        e.config.Metrics.Enabled,
	})
}
