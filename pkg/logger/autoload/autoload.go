// Package autoload configures the global logger from LOG_* variables when
// blank-imported.
package autoload

import (
	configx "github.com/ricmunrom/botAtencionClientes/pkg/config"
	logx "github.com/ricmunrom/botAtencionClientes/pkg/logger"
)

func init() {
	conf, err := configx.New[logx.Config]("LOG")
	if err != nil {
		logx.Init()
		return
	}
	logx.Init(*conf)
}
