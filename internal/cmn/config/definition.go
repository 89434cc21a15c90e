package config

// Definition mirrors the YAML configuration file. Keys are snake_case.
type Definition struct {
	Debug     bool   `mapstructure:"debug"`
	LogFormat string `mapstructure:"log_format"`

	SiteURL   string `mapstructure:"site_url"`
	AdminURL  string `mapstructure:"admin_url"`
	AdminPage string `mapstructure:"admin_page"`
	Author    string `mapstructure:"author"`

	License   LicenseDef   `mapstructure:"license"`
	Updater   UpdaterDef   `mapstructure:"updater"`
	Settings  SettingsDef  `mapstructure:"settings"`
	Server    ServerDef    `mapstructure:"server"`
	Scheduler SchedulerDef `mapstructure:"scheduler"`
}

// LicenseDef configures the licensing endpoint.
type LicenseDef struct {
	APIURL             string       `mapstructure:"api_url"`
	Timeout            string       `mapstructure:"timeout"`
	InsecureSkipVerify bool         `mapstructure:"insecure_skip_verify"`
	Products           []ProductDef `mapstructure:"products"`
}

// ProductDef is one licensed extension.
type ProductDef struct {
	Name    string `mapstructure:"name"`
	Version string `mapstructure:"version"`
	File    string `mapstructure:"file"`
}

// UpdaterDef configures the update checker.
type UpdaterDef struct {
	CacheTTL string `mapstructure:"cache_ttl"`
}

// SettingsDef configures the settings store.
type SettingsDef struct {
	Backend  string `mapstructure:"backend"`
	Dir      string `mapstructure:"dir"`
	DSN      string `mapstructure:"dsn"`
	RedisURL string `mapstructure:"redis_url"`
}

// ServerDef configures the admin server.
type ServerDef struct {
	Host        string         `mapstructure:"host"`
	Port        int            `mapstructure:"port"`
	NonceSecret string         `mapstructure:"nonce_secret"`
	Admins      []AdminUserDef `mapstructure:"admins"`
}

// AdminUserDef is a basic-auth admin user.
type AdminUserDef struct {
	Username     string `mapstructure:"username"`
	PasswordHash string `mapstructure:"password_hash"`
}

// SchedulerDef configures the recurring check.
type SchedulerDef struct {
	Enabled     bool   `mapstructure:"enabled"`
	WeeklyCheck string `mapstructure:"weekly_check"`
}
