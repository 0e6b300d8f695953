package analyzer

import (
	"fmt"
	"strings"
)

// Endpoints builds URLs for the analyzer's REST surface.
type Endpoints struct {
	base string
}

// NewEndpoints creates an endpoint builder rooted at the given base URL.
func NewEndpoints(baseURL string) Endpoints {
	return Endpoints{base: strings.TrimRight(baseURL, "/")}
}

func (e Endpoints) Login() string {
	return e.base + "/api/v1/user/login"
}

func (e Endpoints) ForceChangePassword() string {
	return e.base + "/api/v1/user/forceChangePassword"
}

func (e Endpoints) Teams() string {
	return e.base + "/api/v1/team"
}

func (e Endpoints) AddPermission(permission, teamUUID string) string {
	return fmt.Sprintf("%s/api/v1/permission/%s/team/%s", e.base, permission, teamUUID)
}

func (e Endpoints) RotateKey(key string) string {
	return fmt.Sprintf("%s/api/v1/team/key/%s", e.base, key)
}

func (e Endpoints) CreateProject() string {
	return e.base + "/api/v1/project"
}

func (e Endpoints) DeleteProject(projectUUID string) string {
	return fmt.Sprintf("%s/api/v1/project/%s", e.base, projectUUID)
}

func (e Endpoints) UploadBOM() string {
	return e.base + "/api/v1/bom"
}

func (e Endpoints) BOMStatus(token string) string {
	return fmt.Sprintf("%s/api/v1/bom/token/%s", e.base, token)
}

func (e Endpoints) Findings(projectUUID string) string {
	return fmt.Sprintf("%s/api/v1/finding/project/%s", e.base, projectUUID)
}
