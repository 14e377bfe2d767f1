package config

// EnvPrefix namespaces every environment variable the service reads.
const EnvPrefix = "CRUMBS"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "CRUMBS_DB_DSN"
	EnvDBHost = "CRUMBS_DB_HOST"
	EnvDBUser = "CRUMBS_DB_USER"
	EnvDBName = "CRUMBS_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
