package config

// Role selects which half of the SSO topology this process runs.
type Role string

const (
	RoleIdP Role = "idp"
	RoleRP  Role = "rp"
)

type Config interface {
	EnvConfig
	CorsConfig
	SSOConfig
	PolicyConfig
}

type EnvConfig interface {
	GetPort() string
	GetAppName() string
	GetEnv() string
	GetBaseURL() string
	GetRole() Role
	GetServiceID() string
}

type mainConfig struct {
	EnvVars
	Cors
	SSO
	Policy
}

func New() (Config, error) {
	envVars, err := loadEnvVars()
	if err != nil {
		return nil, err
	}
	return mainConfig{
		EnvVars: envVars,
		Cors:    Cors{origins: envVars.allowedOriginSet()},
		SSO:     SSO{vars: envVars},
		Policy:  Policy{vars: envVars},
	}, nil
}
