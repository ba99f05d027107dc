package redisstore

import "github.com/redis/go-redis/v9"

// Both scripts return -1 when the record is gone, 0 when the current status
// does not allow the transition and 1 after applying it.

// claimScript: KEYS[1]=job key; ARGV: expected, next, started_at.
var claimScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], 'started_at', ARGV[3])
return 1
`)

// finishScript: KEYS[1]=job key; ARGV: expected, terminal status,
// payload field, payload, resolved model, completed_at, ttl seconds.
var finishScript = redis.NewScript(`
local status = redis.call('HGET', KEYS[1], 'status')
if not status then
  return -1
end
if status ~= ARGV[1] then
  return 0
end
redis.call('HSET', KEYS[1], 'status', ARGV[2], ARGV[3], ARGV[4], 'resolved_model', ARGV[5], 'completed_at', ARGV[6])
local ttl = tonumber(ARGV[7])
if ttl and ttl > 0 then
  redis.call('EXPIRE', KEYS[1], ttl)
end
return 1
`)
