package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type (
	StorageConfig struct {
		Type     string             `yaml:"type"`     // memory, disk, redis or db
		Disk     DiskStorageConfig  `yaml:"disk"`     // disk configuration for disk type
		Redis    RedisStorageConfig `yaml:"redis"`    // redis configuration for redis type
		Database DatabaseConfig     `yaml:"database"` // database configuration for db type
	}

	DiskStorageConfig struct {
		Path string `yaml:"path"` // directory holding one JSON file per document
	}

	RedisStorageConfig struct {
		ClusterType string `yaml:"cluster_type"` // single, sentinel or cluster
		Addr        string `yaml:"addr"`         // ';' or ',' separated for sentinel/cluster
		MasterName  string `yaml:"master_name"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		DB          int    `yaml:"db"`
		Prefix      string `yaml:"prefix"`
	}

	DatabaseConfig struct {
		Type     string `yaml:"type"`     // mysql, postgres, sqlite
		Host     string `yaml:"host"`     // localhost
		Port     int    `yaml:"port"`     // 3306 (for mysql), 5432 (for postgres)
		User     string `yaml:"user"`     // root (for mysql), postgres (for postgres)
		Password string `yaml:"password"` // password
		DBName   string `yaml:"dbname"`   // database name, or file path for sqlite
		SSLMode  string `yaml:"sslmode"`  // disable (for postgres)
	}
)

// GetDSN returns the database connection string
func (c *DatabaseConfig) GetDSN() (string, error) {
	switch c.Type {
	case "postgres":
		return c.getPostgresDSN(), nil
	case "mysql":
		return c.getMySQLDSN(), nil
	case "sqlite":
		if c.DBName == ":memory:" {
			return c.DBName, nil
		}
		if err := os.MkdirAll(filepath.Dir(c.DBName), 0755); err != nil {
			return "", fmt.Errorf("failed to create directory for sqlite database: %w", err)
		}
		return c.DBName, nil // For SQLite, DBName is the file path
	default:
		return "", fmt.Errorf("unsupported database type: %s", c.Type)
	}
}

// getPostgresDSN returns PostgreSQL connection string
func (c *DatabaseConfig) getPostgresDSN() string {
	sslMode := c.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, sslMode)
}

// getMySQLDSN returns MySQL connection string
func (c *DatabaseConfig) getMySQLDSN() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		c.User, c.Password, c.Host, c.Port, c.DBName)
}
