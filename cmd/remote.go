package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tallyhq/tally/core"
)

// sessionsCmd summarizes agent sessions.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Summarize agent sessions per member",
	Long: `Fetch the agent sessions of a period and fold them per member.

Examples:
  tally sessions
  tally sessions --email dev@example.com --period 2024-W10`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error summarizing sessions", core.ExecuteSessions),
}

// usageCmd summarizes daily editor usage.
var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Summarize daily editor usage per member",
	Long: `Fetch the daily usage rows of a period and fold them per member.

Examples:
  tally usage --period-type monthly
  tally usage --email dev@example.com`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error summarizing usage", core.ExecuteUsage),
}

// rulesCmd groups the incentive rule commands.
var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "List and update incentive rules",
	Long: `Manage the incentive rules stored by the backend.

Subcommands:
  list - Print every rule
  set  - Save weight and cap overrides into a rule`,
}

// rulesListCmd prints the incentive rules.
var rulesListCmd = &cobra.Command{
	Use:     "list",
	Short:   "Print every incentive rule",
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error listing rules", core.ExecuteRules),
}

// rulesSetCmd writes overrides into a rule.
var rulesSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Save weight and cap overrides into an incentive rule",
	Long: `Merge --weights, --caps or --weights-file into rule --rule, normalize the
weights and save the rule on the backend.

Preview the effect first with 'tally score preview' and the same overrides.

Examples:
  tally rules set --rule 1 --weights agent_requests=0.3
  tally rules set --weights-file rule.yaml --recalculate`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error updating rule", core.ExecuteRuleUpdate),
}

// teamCmd prints team seats with spend.
var teamCmd = &cobra.Command{
	Use:     "team",
	Short:   "List team members with their current spend",
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error listing team", core.ExecuteTeam),
}

// alertsCmd prints alert rules and recent events.
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List alert rules and the most recent alert events",
	Long: `List the configured alert rules and the last --limit triggered events.

Examples:
  tally alerts --limit 10`,
	PreRunE: sharedSetupWrapper,
	Run:     runExecutor("Error listing alerts", core.ExecuteAlerts),
}
