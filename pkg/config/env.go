package config

// EnvPrefix is passed to envconfig; variable names are spelled out in full on
// each field, so the prefix stays empty.
const EnvPrefix = ""

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvDBDSN  = "VERIDIA_DB_DSN"
	EnvDBHost = "VERIDIA_DB_HOST"
	EnvDBUser = "VERIDIA_DB_USER"
	EnvDBName = "VERIDIA_DB_NAME"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}

const (
	StoreBackendMemory   = "memory"
	StoreBackendPostgres = "postgres"
	StoreBackendBigQuery = "bigquery"
)

const (
	DeliveryModeInline = "inline"
	DeliveryModePubSub = "pubsub"
)
