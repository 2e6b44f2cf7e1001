// Package autoload initializes the global logger from LOG_* env config as a
// side effect of the import.
package autoload

import (
	configx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/config"
	logx "github.com/tanpawarit/Chative-Restaurant-Messaging-Agent/pkg/logger"
)

func init() {
	cfg := configx.MustNew[logx.Config]("LOG")
	logx.Init(*cfg)
}
