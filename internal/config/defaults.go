package config

import (
	"time"

	"github.com/spf13/viper"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.path", "ecowatch.db")

	v.SetDefault("pipeline.debounce", 250*time.Millisecond)
	v.SetDefault("pipeline.graceperiod", 5*time.Second)

	v.SetDefault("remote.driver", DriverMemory)
	v.SetDefault("remote.s3.bucket", "")
	v.SetDefault("remote.s3.region", "us-east-1")
	v.SetDefault("remote.s3.endpoint", "")
	v.SetDefault("remote.s3.pathstyle", false)
	v.SetDefault("remote.s3.prefix", "species/")
	v.SetDefault("remote.s3.accesskeyid", "")
	v.SetDefault("remote.s3.secretaccesskey", "")
	v.SetDefault("remote.firestore.baseurl", "https://firestore.googleapis.com")
	v.SetDefault("remote.firestore.project", "")
	v.SetDefault("remote.firestore.collection", "species")
	v.SetDefault("remote.firestore.token", "")

	v.SetDefault("sensor.broker", "")
	v.SetDefault("sensor.clientid", "ecowatch")
	v.SetDefault("sensor.username", "")
	v.SetDefault("sensor.password", "")
	v.SetDefault("sensor.temperaturetopic", "")
	v.SetDefault("sensor.humiditytopic", "")

	v.SetDefault("notify.urls", []string{})
	v.SetDefault("notify.timeout", 10*time.Second)

	v.SetDefault("location.fixed", false)
	v.SetDefault("location.latitude", 0.0)
	v.SetDefault("location.longitude", 0.0)
	v.SetDefault("location.fixurl", "")
	v.SetDefault("location.geocoderurl", "https://nominatim.openstreetmap.org")
	v.SetDefault("location.cachettl", 10*time.Minute)

	v.SetDefault("metrics.listen", "")
}
