// Package redisstore implements an endpoint for redis servers using
// github.com/redis/go-redis/v9.
//
// Each endpoint owns a client with a single connection. The typed reads and
// writes map one to one onto redis commands (GET, HGETALL, ZRANGE WITHSCORES,
// SMEMBERS, LRANGE, PTTL, SET, HSET, ZADD, SADD, RPUSH, PEXPIRE, DEL), Dump and
// Restore map onto DUMP and RESTORE [REPLACE], Scan iterates with SCAN MATCH COUNT.
//
// SCAN may report a key more than once. Scan drops these duplicates by
// remembering the keys it has passed on, which costs memory proportional to
// the number of keys. Options.ScanDedup bounds that set, after the limit is
// reached a duplicate reply is passed on and copied a second time.
//
// On Open the endpoint pings the server and reads redis_version from
// INFO server. DUMP blobs are only portable from older to newer servers, so the
// dump format is {Family: "redis-rdb", Version: major*100+minor}. If the version
// cannot be determined or is older than 2.6 the endpoint does not report the
// Dump and Restore features.
//
// Server error replies are converted to *endpoint.Error values (WRONGTYPE maps
// to RetCWrongType, BUSYKEY to RetCInvalidOperation) and redis.Nil maps to
// endpoint.ErrNotFound.
package redisstore
