package model

const (
	AppName = "fortisync"

	LogLevelInfo  = "info"
	LogLevelDebug = "debug"
	LogLevelTrace = "trace"
)

type AppKind string

const (
	AppKindService AppKind = "service"
	AppKindClient  AppKind = "client"
)

// AppKinds returns the supported fortisync app kinds
func AppKinds() []AppKind { return []AppKind{AppKindService, AppKindClient} }

const (
	// AssetSourceFortiCare fetches assets from the FortiCare registration API
	// and refreshes the local snapshot file.
	AssetSourceFortiCare = "forticare"
	// AssetSourceSnapshot reads assets from the local snapshot file only.
	AssetSourceSnapshot = "snapshot"
)
