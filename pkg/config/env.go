package config

const EnvPrefix = "CARDTROVE"

const (
	AppEnvDev  = "dev"
	AppEnvProd = "prod"
)

const (
	EnvAppEnv = "CARDTROVE_APP_ENV"
	EnvPort   = "CARDTROVE_APP_PORT"

	EnvDBDSN  = "CARDTROVE_DB_DSN"
	EnvDBHost = "CARDTROVE_DB_HOST"
	EnvDBUser = "CARDTROVE_DB_USER"
	EnvDBName = "CARDTROVE_DB_NAME"

	EnvRedisURL = "CARDTROVE_REDIS_URL"

	EnvJWTSecret = "CARDTROVE_JWT_SECRET"
	EnvJWTIssuer = "CARDTROVE_JWT_ISSUER"

	EnvOfferTTL               = "CARDTROVE_OFFER_TTL"
	EnvReportWindow           = "CARDTROVE_REPORT_WINDOW"
	EnvSuspensionThreshold    = "CARDTROVE_SUSPENSION_THRESHOLD"
	EnvProcessorFeeFixedCents = "CARDTROVE_PROCESSOR_FEE_FIXED_CENTS"

	EnvPubSubDomainTopic = "CARDTROVE_PUBSUB_DOMAIN_TOPIC"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
