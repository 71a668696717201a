package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/go-sql-driver/mysql"

	"entitymeta/internal/platform"
)

// EffectiveDSN returns the DSN with Password applied. A password already present in the
// DSN is replaced. SQLite DSNs are returned unchanged.
func (p *PlatformConfig) EffectiveDSN() (string, error) {
	dsn := strings.TrimSpace(p.DSN)
	if dsn == "" || p.Password == "" {
		return dsn, nil
	}
	switch strings.ToLower(strings.TrimSpace(p.Name)) {
	case "mysql", "tidb", "mariadb":
		cfg, err := mysql.ParseDSN(dsn)
		if err != nil {
			return "", fmt.Errorf("failed to parse mysql DSN: %w", err)
		}
		cfg.Passwd = p.Password
		return cfg.FormatDSN(), nil
	case "postgres", "postgresql":
		return postgresDSNWithPassword(dsn, p.Password)
	default:
		return dsn, nil
	}
}

// postgresDSNWithPassword handles both URL and keyword/value connection strings.
func postgresDSNWithPassword(dsn, password string) (string, error) {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("failed to parse postgres DSN: %w", err)
		}
		user := ""
		if u.User != nil {
			user = u.User.Username()
		}
		u.User = url.UserPassword(user, password)
		return u.String(), nil
	}
	escaped := strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(password)
	return dsn + " password='" + escaped + "'", nil
}

// PlatformSettings converts the section into the platform factory config.
func (p *PlatformConfig) PlatformSettings() (platform.Config, error) {
	dsn, err := p.EffectiveDSN()
	if err != nil {
		return platform.Config{}, err
	}
	return platform.Config{Name: p.Name, Timezone: p.Timezone, DSN: dsn}, nil
}
