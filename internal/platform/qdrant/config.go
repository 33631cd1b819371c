package qdrant

import (
	"fmt"
	"net/url"
	"strings"
)

// Config points the evidence index at one qdrant collection. Every organization's evidence shares
// the collection and is kept apart by a namespace payload key.
type Config struct {
	URL             string
	Collection      string
	NamespacePrefix string
	VectorDim       int
}

type ConfigErrorCode string

const (
	ConfigErrorMissingURL        ConfigErrorCode = "missing_url"
	ConfigErrorInvalidURL        ConfigErrorCode = "invalid_url"
	ConfigErrorMissingCollection ConfigErrorCode = "missing_collection"
	ConfigErrorMissingVectorDim  ConfigErrorCode = "missing_vector_dim"
	ConfigErrorInvalidVectorDim  ConfigErrorCode = "invalid_vector_dim"
)

var configErrorText = map[ConfigErrorCode]string{
	ConfigErrorMissingURL:        "QDRANT_URL is required",
	ConfigErrorInvalidURL:        "QDRANT_URL must be an absolute URL like http://qdrant:6333",
	ConfigErrorMissingCollection: "QDRANT_COLLECTION is required",
	ConfigErrorMissingVectorDim:  "QDRANT_VECTOR_DIM is required",
	ConfigErrorInvalidVectorDim:  "QDRANT_VECTOR_DIM must be a positive integer",
}

type ConfigError struct {
	Code  ConfigErrorCode
	Value string
	Cause error
}

func (e *ConfigError) Error() string {
	if e == nil {
		return "invalid qdrant config"
	}
	msg, ok := configErrorText[e.Code]
	if !ok {
		msg = "invalid qdrant config"
	}
	if e.Value != "" {
		return fmt.Sprintf("%s (got %q)", msg, e.Value)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Validate trims cfg and reports the first problem as a *ConfigError.
func (cfg Config) Validate() (Config, error) {
	cfg.URL = strings.TrimRight(strings.TrimSpace(cfg.URL), "/")
	cfg.Collection = strings.TrimSpace(cfg.Collection)
	cfg.NamespacePrefix = strings.TrimSpace(cfg.NamespacePrefix)
	if cfg.NamespacePrefix == "" {
		cfg.NamespacePrefix = "pi"
	}

	if cfg.URL == "" {
		return cfg, &ConfigError{Code: ConfigErrorMissingURL}
	}
	if u, err := url.Parse(cfg.URL); err != nil || u.Scheme == "" || u.Host == "" {
		return cfg, &ConfigError{Code: ConfigErrorInvalidURL, Value: cfg.URL, Cause: err}
	}
	if cfg.Collection == "" {
		return cfg, &ConfigError{Code: ConfigErrorMissingCollection}
	}
	switch {
	case cfg.VectorDim == 0:
		return cfg, &ConfigError{Code: ConfigErrorMissingVectorDim}
	case cfg.VectorDim < 0:
		return cfg, &ConfigError{Code: ConfigErrorInvalidVectorDim, Value: fmt.Sprint(cfg.VectorDim)}
	}
	return cfg, nil
}
