package director

import (
	"fmt"

	"github.com/go-redis/redis/v8"
	"github.com/shiftdirector/shiftdirector/settings"
)

func RedisClient(conf *settings.Settings) *redis.Client {

	connectionString := fmt.Sprintf("%v:%v", conf.RedisHost, conf.RedisPort)

	rdb := redis.NewClient(&redis.Options{
		Addr:     connectionString,
		Password: conf.RedisPassword,
		DB:       0, // use default DB
	})

	return rdb
}
