package config

import (
	"fmt"
	"net/url"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	if err := c.normalizeFileService(); err != nil {
		return err
	}
	c.normalizeLocality()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeFileService() error {
	c.FileService.BaseURL = strings.TrimRight(strings.TrimSpace(c.FileService.BaseURL), "/")
	if c.FileService.BaseURL != "" {
		if _, err := url.Parse(c.FileService.BaseURL); err != nil {
			return fmt.Errorf("file_service.base_url: %w", err)
		}
	}
	if c.FileService.RequestTimeout <= 0 {
		c.FileService.RequestTimeout = defaultFileServiceTimeout
	}
	return nil
}

func (c *Config) normalizeLocality() {
	c.Locality.EndpointURL = strings.TrimSpace(c.Locality.EndpointURL)
	c.Locality.OverrideIP = strings.TrimSpace(c.Locality.OverrideIP)
	if c.Locality.RequestTimeout <= 0 {
		c.Locality.RequestTimeout = defaultLocalityRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
