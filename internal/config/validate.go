package config

import (
	"errors"
	"fmt"
	"net"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateFileService(); err != nil {
		return err
	}
	if err := c.validateLocality(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		return errors.New("paths.data_dir must be set")
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		return errors.New("paths.log_dir must be set")
	}
	return nil
}

func (c *Config) validateFileService() error {
	if c.FileService.RequestTimeout <= 0 {
		return errors.New("file_service.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLocality() error {
	if c.Locality.OverrideIP != "" {
		if net.ParseIP(c.Locality.OverrideIP) == nil {
			return fmt.Errorf("locality.override_ip %q is not a valid IP address", c.Locality.OverrideIP)
		}
	}
	if c.Locality.RequestTimeout <= 0 {
		return errors.New("locality.request_timeout must be positive (seconds)")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", c.Logging.Level)
	}
	return nil
}
