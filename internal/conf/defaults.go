// defaults.go default values for settings
package conf

import (
	"time"

	"github.com/spf13/viper"
)

// Sets default values for the configuration.
func setDefaultConfig() {
	viper.SetDefault("debug", false)

	viper.SetDefault("main.name", "DogWalker-Tracker")
	viper.SetDefault("main.log.enabled", true)
	viper.SetDefault("main.log.path", "logs/dogwalker.log")

	viper.SetDefault("frigate.host", "localhost")
	viper.SetDefault("frigate.port", 5000)
	viper.SetDefault("frigate.mqtt.broker", "tcp://localhost:1883")
	viper.SetDefault("frigate.mqtt.username", "")
	viper.SetDefault("frigate.mqtt.password", "")

	viper.SetDefault("tracking.crosscamerawindow", 30*time.Second)
	viper.SetDefault("tracking.samecameradebounce", 60*time.Second)
	viper.SetDefault("tracking.minpersonconfidence", 0.7)
	viper.SetDefault("tracking.dogcorrelation", 5*time.Second)
	viper.SetDefault("tracking.sessiontimeout", 10*time.Minute)
	viper.SetDefault("tracking.sessionpoll", time.Minute)
	viper.SetDefault("tracking.queuesize", 256)

	viper.SetDefault("images.enabled", true)
	viper.SetDefault("images.storagepath", "walker_images/")
	viper.SetDefault("images.maxperwalker", 10)
	viper.SetDefault("images.framequality", 0.7)

	viper.SetDefault("analytics.suspiciousthreshold", 5)
	viper.SetDefault("analytics.regularwalkerdays", 30)

	viper.SetDefault("webserver.enabled", true)
	viper.SetDefault("webserver.port", 8080)

	viper.SetDefault("output.sqlite.enabled", true)
	viper.SetDefault("output.sqlite.path", "dogwalker.db")

	viper.SetDefault("output.mysql.enabled", false)
	viper.SetDefault("output.mysql.username", "dogwalker")
	viper.SetDefault("output.mysql.password", "secret")
	viper.SetDefault("output.mysql.database", "dogwalker")
	viper.SetDefault("output.mysql.host", "localhost")
	viper.SetDefault("output.mysql.port", "3306")
}
