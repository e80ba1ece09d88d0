package cli

import (
	"fmt"
	"strings"

	"github.com/jvs-project/timelock/pkg/color"
	"github.com/jvs-project/timelock/pkg/config"
)

// suggestAccounts offers configured account names close to query.
func suggestAccounts(query string, cfg *config.Config) string {
	names := cfg.AccountNames()
	if len(names) == 0 {
		return fmt.Sprintf("No accounts are configured. Add one under %s in %s.", color.Info("accounts"), configPath)
	}

	q := strings.ToLower(query)
	var matches []string
	for _, n := range names {
		if strings.HasPrefix(strings.ToLower(n), q) {
			matches = append(matches, color.Success(n))
		}
	}
	if len(matches) == 0 {
		for _, n := range names {
			if strings.Contains(strings.ToLower(n), q) {
				matches = append(matches, color.Success(n))
			}
		}
	}

	if len(matches) > 0 {
		hint := "Did you mean"
		if len(matches) > 1 {
			hint += " one of"
		}
		return fmt.Sprintf("%s: %s?", hint, strings.Join(matches, ", "))
	}

	all := make([]string, 0, len(names))
	for _, n := range names {
		all = append(all, color.Success(n))
	}
	return fmt.Sprintf("Configured accounts: %s", strings.Join(all, ", "))
}

// formatAccountNotFoundError formats an unknown account error with suggestions.
func formatAccountNotFoundError(name string, cfg *config.Config) string {
	var sb strings.Builder
	sb.WriteString(color.Error(fmt.Sprintf("account '%s' is not configured", name)))
	sb.WriteString("\n")
	sb.WriteString(color.Dim("  " + suggestAccounts(name, cfg)))
	return sb.String()
}
