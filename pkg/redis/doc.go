// Package redis connects to the Redis instance that backs the shared tenant
// directory cache (see tenant.RedisCache).
//
//	client, err := redis.Connect(ctx, config.MustLoad[redis.Config]())
//	if err != nil {
//		return err
//	}
//	dir := tenant.NewDirectory(store, dirCfg,
//		tenant.WithSharedCache(tenant.NewRedisCache(client, cfg.KeyPrefix)))
package redis
