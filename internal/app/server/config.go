package server

import (
	"bwgen/internal/config/loader"
	"bwgen/internal/config/schema"
	"bwgen/internal/config/source"
	"bwgen/internal/config/validator"
	coreerrors "bwgen/internal/core/errors"
)

// LoadConfig 加载分层配置并校验
// 返回实际使用的配置文件路径，未找到时为空
func LoadConfig(configFile string, overrides source.CLIOverrides) (*schema.Root, string, error) {
	cfg, l, err := loader.Load(configFile, overrides)
	if err != nil {
		return nil, "", err
	}
	if res := validator.ValidateConfig(cfg); !res.IsValid() {
		return cfg, l.ConfigFile(), coreerrors.Wrap(res, coreerrors.CodeConfigError, "invalid configuration")
	}
	return cfg, l.ConfigFile(), nil
}
