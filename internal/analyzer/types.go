package analyzer

// AutomationTeamName is the privileged machine-to-machine principal the
// analyzer ships with. Its first API key seeds the credential bootstrap.
const AutomationTeamName = "Automation"

// AutomationPermissions is the fixed permission set granted to the
// Automation team during bootstrap.
var AutomationPermissions = []string{
	"ACCESS_MANAGEMENT",
	"POLICY_MANAGEMENT",
	"POLICY_VIOLATION_ANALYSIS",
	"PORTFOLIO_MANAGEMENT",
	"PROJECT_CREATION_UPLOAD",
	"SYSTEM_CONFIGURATION",
	"VIEW_PORTFOLIO",
	"VIEW_VULNERABILITY",
	"VULNERABILITY_ANALYSIS",
}

// Team is an analyzer team as returned by the team listing endpoint.
type Team struct {
	UUID    string   `json:"uuid"`
	Name    string   `json:"name"`
	APIKeys []APIKey `json:"apiKeys"`
}

// APIKey is one key attached to a team.
type APIKey struct {
	Key string `json:"key"`
}

// project is the creation request body. The name is generated per run so
// disposable projects never collide.
type project struct {
	Author      string `json:"author"`
	Version     string `json:"version"`
	Classifier  string `json:"classifier"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type projectCreated struct {
	UUID string `json:"uuid"`
}

type uploadReceipt struct {
	Token string `json:"token"`
}

type bomStatus struct {
	Processing bool `json:"processing"`
}

type rotatedKey struct {
	Key string `json:"key"`
}
