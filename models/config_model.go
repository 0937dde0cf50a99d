package models

// DatabaseConfig is a stored backend descriptor.
type DatabaseConfig struct {
	ID       string `json:"id,omitempty"`
	Name     string `json:"name"`
	DbType   string `json:"dbType"` // POSTGRES, MYSQL, SQLITE (case-insensitive)
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Schema   string `json:"schema,omitempty"`
}

// DirectDatabaseConfig is an inline descriptor carried on a request instead of
// a stored config id.
type DirectDatabaseConfig struct {
	DbType   string `json:"dbType"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Database string `json:"database"`
	Username string `json:"username"`
	Password string `json:"password"`
	Schema   string `json:"schema,omitempty"`
}

// AsConfig widens a direct config into the stored descriptor shape.
func (d DirectDatabaseConfig) AsConfig() DatabaseConfig {
	return DatabaseConfig{
		DbType:   d.DbType,
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		Username: d.Username,
		Password: d.Password,
		Schema:   d.Schema,
	}
}
